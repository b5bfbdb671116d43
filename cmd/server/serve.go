package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"container-dispatch/api/rest/routes"
	"container-dispatch/config"
	"container-dispatch/core/auth"
	"container-dispatch/core/dispatch"
	"container-dispatch/core/monitoring"
	"container-dispatch/core/repository"
	"container-dispatch/providers/aws"
	"container-dispatch/storage"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", "dialect", db.Dialect)

	// Initialize metrics
	collector := monitoring.NewCollector()
	monitoring.NewJobsExporter(repository.NewJobRepository(db))

	// Initialize image storage
	deps := routes.Deps{
		Jobs: dispatch.NewService(db,
			dispatch.WithMetrics(collector),
			dispatch.WithLogger(logger),
			dispatch.WithLocation(cfg.Location),
		),
		Users:          dispatch.NewUserService(db, logger),
		Addresses:      dispatch.NewAddressService(db),
		Tokens:         auth.NewTokenManager(cfg.AuthSecret, cfg.AuthTokenTTL),
		UploadMaxBytes: cfg.UploadMaxBytes,
		Metrics:        collector,
		MetricsHandler: monitoring.Handler(),
		Logger:         logger,
		CORSOrigins:    cfg.CORSAllowedOrigins,
	}

	var store storage.ImageStore
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := aws.NewS3Store(ctx, aws.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.StoragePublicBaseURL,
		})
		if err != nil {
			return err
		}
		store = s3Store
	default:
		local := storage.LocalStore{Root: cfg.StorageLocalDir, BaseURL: cfg.StoragePublicBaseURL}
		store = local
		deps.Files = local.Handler()
	}
	deps.Uploader = storage.NewUploader(store, cfg.S3Prefix, cfg.UploadMaxBytes, logger)
	logger.Info("image storage ready", "backend", cfg.StorageBackend)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           routes.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
