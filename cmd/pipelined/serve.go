package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/config"
	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/queue"
	"github.com/iliyamo/pipeline-service/internal/router"
	"github.com/iliyamo/pipeline-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	rdb := connectRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.URL, cfg.Events.Queue, log)
		log.Info("pipeline events enabled", "queue", cfg.Events.Queue)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret)
	authSvc, err := service.NewAuthService(auth.NewHasher(cfg.BcryptCost), tokens)
	if err != nil {
		return err
	}

	e := router.New(router.Deps{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Gate:      auth.NewGate(tokens),
		Auth:      authSvc,
		Pipelines: service.NewPipelineService(events, log),
		Log:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// connectRedis returns nil when neither rate limiting nor caching is
// enabled or Redis cannot be reached; both features then pass through.
func connectRedis(ctx context.Context, cfg config.Config, log *slog.Logger) *redis.Client {
	if !cfg.RateLimit.Enabled && !cfg.Cache.Enabled {
		return nil
	}
	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, rate limiting and caching disabled", "addr", cfg.Redis.Addr, "err", err)
		return nil
	}
	log.Info("redis connected", "addr", cfg.Redis.Addr)
	return rdb
}
