package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/app"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/cache"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/database"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/leveling"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

// loadConfig is swapped in tests.
var loadConfig = config.Load

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "questctl",
		Short:         "Maintenance commands for quest progress",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(migrateCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(invalidateCmd())
	root.AddCommand(showCmd())
	root.AddCommand(levelCmd())
	root.AddCommand(tokenCmd())
	return root
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Commands never serve HTTP, so the write limiter is not needed.
	cfg.HTTP.WriteRateLimit = 0
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("nothing to migrate with DB_DRIVER=memory")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := database.Connect(ctx, cfg.Database, cfg.Env, log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	var questID uint
	var step string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Recompute one step of a quest and refresh its cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				value, err := a.Progress.Sync(ctx, questID, models.StepType(step))
				if err != nil {
					return err
				}
				if _, err := a.Cache.Refresh(ctx, questID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "quest %d %s = %d\n", questID, step, value)
				return nil
			})
		},
	}
	cmd.Flags().UintVarP(&questID, "quest", "q", 0, "quest id")
	cmd.Flags().StringVarP(&step, "step", "s", string(models.StepContributers), "step type (contributers, finance, material)")
	_ = cmd.MarkFlagRequired("quest")
	return cmd
}

func invalidateCmd() *cobra.Command {
	var questID uint
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the cached snapshot of a quest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Cache.Invalidate(ctx, questID)
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", cache.Key(questID))
				return nil
			})
		},
	}
	cmd.Flags().UintVarP(&questID, "quest", "q", 0, "quest id")
	_ = cmd.MarkFlagRequired("quest")
	return cmd
}

func showCmd() *cobra.Command {
	var questID uint
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached snapshot of a quest, loading it on a miss",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				snap, err := a.Cache.Get(ctx, questID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
	cmd.Flags().UintVarP(&questID, "quest", "q", 0, "quest id")
	_ = cmd.MarkFlagRequired("quest")
	return cmd
}

func levelCmd() *cobra.Command {
	var xp int
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show the level reached with an experience total",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), leveling.ProgressFor(xp))
		},
	}
	cmd.Flags().IntVar(&xp, "xp", 0, "experience total")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or revoke API access tokens",
	}

	var userID uint
	var role string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tok, err := a.Tokens.GenerateAccessToken(userID, role, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	issue.Flags().UintVar(&userID, "user", 0, "user id")
	issue.Flags().StringVar(&role, "role", "user", "role claim (user or admin)")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("user")

	var jti string
	var revokeTTL time.Duration
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Blacklist a token id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, ok := a.KV.(*cache.RedisStore); !ok {
					a.Logger.Printf("[warn] revocation stored in process memory only; configure REDIS_ADDR for it to reach the API")
				}
				if err := a.Tokens.Revoke(ctx, jti, revokeTTL); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s for %s\n", jti, revokeTTL)
				return nil
			})
		},
	}
	revoke.Flags().StringVar(&jti, "jti", "", "token id (jti claim)")
	revoke.Flags().DurationVar(&revokeTTL, "ttl", 24*time.Hour, "how long the revocation is kept")
	_ = revoke.MarkFlagRequired("jti")

	cmd.AddCommand(issue, revoke)
	return cmd
}
