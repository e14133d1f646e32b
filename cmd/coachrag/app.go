package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/config"
	"github.com/xxxsen/coachrag/internal/db"
	"github.com/xxxsen/coachrag/internal/embedcache"
	"github.com/xxxsen/coachrag/internal/repo"
	"github.com/xxxsen/coachrag/internal/service"
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	sources   *repo.SourceRepo
	chunks    *repo.ChunkRepo
	cacheRepo *repo.EmbeddingCacheRepo
	client    *ai.Client
	groups    service.CoachGroups
	ingest    *service.IngestService
	search    *service.SearchService
	reconcile *service.ReconcileService
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return conn, nil
}

func buildApp(cfg *config.Config) (*app, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	conn, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:       cfg,
		db:        conn,
		sources:   repo.NewSourceRepo(conn),
		chunks:    repo.NewChunkRepo(conn),
		cacheRepo: repo.NewEmbeddingCacheRepo(conn),
		groups:    service.NewCoachGroups(cfg.CoachGroups),
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.client = ai.NewClient(embedder, ai.ClientConfig{
		Dimension:         cfg.AI.Dimension,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		CallTimeout:       time.Duration(cfg.AI.Timeout) * time.Second,
		CacheLayer:        cacheLayer(cfg, a.cacheRepo),
	})
	batch := ai.NewBatchEmbedder(a.client, ai.BatchConfig{
		MaxRetries: cfg.AI.MaxRetries,
		RetryDelay: time.Duration(cfg.AI.RetryDelayMs) * time.Millisecond,
	})
	grantor := service.NewAccessGrantor(repo.NewAccessRepo(conn))
	a.ingest = service.NewIngestService(a.sources, a.chunks, grantor, ai.NewTextChunker(cfg.Chunking.MaxTokens), batch, cfg.AI.Dimension)
	a.search = service.NewSearchService(a.client, a.chunks, service.SearchConfig{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		DefaultThreshold: cfg.Search.DefaultThreshold,
	})
	a.reconcile = service.NewReconcileService(a.sources, a.chunks)
	logutil.GetLogger(context.Background()).Info("app initialized",
		zap.String("embed_model", a.client.ModelName()),
		zap.Int("dimension", a.client.Dimension()),
		zap.Duration("min_interval", a.client.MinInterval()),
	)
	return a, nil
}

// buildEmbedder chains the configured providers in fallback order.
func buildEmbedder(cfg *config.Config) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.AI.Providers))
	for _, pc := range cfg.AI.Providers {
		provider, err := ai.NewEmbedProvider(pc.Name, ai.EmbedProviderArgs{
			Dimension: cfg.AI.Dimension,
			Data:      pc.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", pc.Name, err)
		}
		entries = append(entries, ai.EmbedderEntry{Name: pc.Name, Embedder: ai.NewEmbedder(provider, pc.Model)})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		return nil, fmt.Errorf("no embed provider configured")
	}
	return embedder, nil
}

// cacheLayer puts the persistent cache and then the in-memory one above the
// client's rate limiter, so only cache misses spend a provider slot.
func cacheLayer(cfg *config.Config, cacheStore embedcache.Store) func(ai.IEmbedder) ai.IEmbedder {
	return func(embedder ai.IEmbedder) ai.IEmbedder {
		if cfg.EmbedCache.EnableDB && cacheStore != nil {
			embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheStore)
		}
		if cfg.EmbedCache.LRUSize > 0 {
			embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second)
		}
		return embedder
	}
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
