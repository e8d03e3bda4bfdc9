package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/soremlabs/keyserve/internal/adapters/api"
	"github.com/soremlabs/keyserve/internal/adapters/repository"
	"github.com/soremlabs/keyserve/internal/config"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var repo ports.LicenseRepository
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("unable to connect to database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}()
		if err := db.Ping(); err != nil {
			logger.Warn("could not ping database", "error", err)
		}
		repo = repository.NewPostgresRepository(db)
	case config.BackendFile:
		fileRepo, err := repository.NewFileRepository(cfg.DataFile)
		if err != nil {
			log.Fatalf("unable to open store file: %v", err)
		}
		repo = fileRepo
	}

	if cfg.RedisAddr != "" {
		repo = repository.NewCachedRepository(repo, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		logger.Info("record cache enabled", "addr", cfg.RedisAddr)
	}

	licenseSvc := services.NewLicenseService(repo, []byte(cfg.LicenseSecret), cfg.AllowSelfRegister, logger)
	adminSvc := services.NewAdminService(repo, logger)

	limiter := api.NewRateLimiter(cfg.RateMax, cfg.RateWindow)
	go func() {
		for range time.Tick(cfg.RateWindow) {
			limiter.Cleanup()
		}
	}()

	handler := api.NewAPIHandler(licenseSvc, adminSvc, limiter, cfg.AdminToken, cfg.StoreTimeout, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("license API listening", "addr", srv.Addr, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
