package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

func memoryConfig() config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.Database.Driver = "memory"
	cfg.Auth.JWTSecret = "cli-secret"
	return cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return memoryConfig(), nil }
	t.Cleanup(func() { loadConfig = prev })

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLevelCommand(t *testing.T) {
	out, err := run(t, "level", "--xp", "200")
	require.NoError(t, err)
	assert.Contains(t, out, `"level": 2`)
	assert.Contains(t, out, `"nextLevel": 3`)
}

func TestTokenIssue(t *testing.T) {
	out, err := run(t, "token", "issue", "--user", "7", "--role", "admin")
	require.NoError(t, err)

	issuer := utils.NewTokenIssuer(memoryConfig().Auth, nil)
	claims, err := issuer.ValidateAccessToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	id, ok := utils.ClaimUint(claims, "id")
	require.True(t, ok)
	assert.Equal(t, uint(7), id)
	assert.Equal(t, "admin", claims["role"])
}

func TestShowUnknownQuest(t *testing.T) {
	_, err := run(t, "show", "--quest", "5")
	assert.ErrorIs(t, err, progress.ErrQuestNotFound)
}

func TestRequiredFlags(t *testing.T) {
	_, err := run(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quest")

	_, err = run(t, "token", "revoke")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jti")
}

func TestMigrateRejectsMemoryDriver(t *testing.T) {
	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")
}
