package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/config"
	"github.com/xxxsen/coachrag/internal/filestore"
	"github.com/xxxsen/coachrag/internal/handler"
	"github.com/xxxsen/coachrag/internal/job"
	"github.com/xxxsen/coachrag/internal/middleware"
	"github.com/xxxsen/coachrag/internal/schedule"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the search and ingestion http api with background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt secret is not configured: set %s", config.EnvJWTSecret)
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cmd.Context(), a)
		},
	}
}

func runServer(parent context.Context, a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
	)

	var store filestore.Store
	if cfg.FileStore.Data != nil {
		s, err := filestore.New(cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		store = s
	}

	deps := handler.RouterDeps{
		Search:          handler.NewSearchHandler(a.search),
		Ingest:          handler.NewIngestHandler(a.ingest, a.groups, store),
		Sources:         handler.NewSourceHandler(a.sources),
		JWTSecret:       []byte(cfg.JWTSecret),
		SearchRateLimit: time.Duration(cfg.Jobs.SearchRateWindowMs) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := context.WithCancel(parent)
	defer stop()

	scheduler := schedule.NewCronScheduler(schedule.WithJobTimeout(30 * time.Minute))
	staleAfter := time.Duration(cfg.Jobs.StaleAfterMinutes) * time.Minute
	if err := scheduler.AddJob(job.NewReconcileJob(a.reconcile, staleAfter), cfg.Jobs.ReconcileSpec); err != nil {
		return err
	}
	if cfg.EmbedCache.EnableDB {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbedCache.MaxAgeDays), cfg.Jobs.CacheCleanupSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()
	logger.Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
