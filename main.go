package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ifsi-tools/dossier-api/config"
	"github.com/ifsi-tools/dossier-api/handlers"
	"github.com/ifsi-tools/dossier-api/health"
	"github.com/ifsi-tools/dossier-api/logging"
	"github.com/ifsi-tools/dossier-api/scheduler"
	"github.com/ifsi-tools/dossier-api/server"
	"github.com/ifsi-tools/dossier-api/session"
	"github.com/ifsi-tools/dossier-api/store"
	"github.com/ifsi-tools/dossier-api/validation"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir, cfg.LogRetentionWeeks)

	recordStore, err := store.Open(cfg.DataDir)
	if err != nil {
		logging.Error("Failed to open record store", "error", err, "data_dir", cfg.DataDir)
		os.Exit(1)
	}

	hub := session.NewHub()
	validator := validation.NewDossierValidator()
	checker := health.NewHealthChecker(recordStore, hub)
	handler := handlers.NewHTTPHandler(recordStore, validator, hub, checker)

	sched := scheduler.NewScheduler(recordStore, hub, cfg.BackupDir)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
