package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"firefly/internal/config"
	"firefly/internal/database"
	"firefly/internal/logger"
	"firefly/internal/scheduler"
	"firefly/internal/server"
	"firefly/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	config.BindFlags(v, cmd.Flags())
	return cmd
}

// openStore returns nil when no bucket is configured so that the
// attachment endpoints report the feature as disabled.
func openStore(ctx context.Context, cfg config.S3Config, log logger.Logger) (storage.ObjectStore, error) {
	s3, err := storage.NewS3Service(ctx, storage.Config{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
		MaxSize:  cfg.MaxSize,
	})
	if errors.Is(err, storage.ErrDisabled) {
		log.Info("attachments disabled, no bucket configured")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 service: %w", err)
	}
	return s3, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Datastore, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate datastore: %w", err)
	}

	store, err := openStore(ctx, cfg.S3, log)
	if err != nil {
		return err
	}

	jobs := scheduler.New(log)
	cleanup := scheduler.NewNotificationCleanup(db.Models(), cfg.Notifications.Retention, log)
	if _, err := cleanup.Register(jobs, cfg.Notifications.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid notification cleanup schedule: %w", err)
	}
	jobs.Start()
	defer jobs.Stop()

	srv := server.New(cfg, db, store, log).HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
