package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/app"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if cfg.Database.AutoMigrate {
		log.Println("Auto-migration enabled")
	} else {
		log.Println("Skipping auto-migration")
	}

	a, err := app.Build(context.Background(), app.Options{Config: cfg, Logger: log.Default()})
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      a.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	// Queued events are drained before the stores close.
	if err := a.Close(); err != nil {
		log.Printf("[warn] close: %v", err)
	}

	log.Println("Server exited")
}
