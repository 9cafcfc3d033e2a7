package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/db"
	"github.com/xxxsen/docqa/internal/embedcache"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/job"
	"github.com/xxxsen/docqa/internal/repo"
	"github.com/xxxsen/docqa/internal/schedule"
	"github.com/xxxsen/docqa/internal/service"
)

// app holds the wired services shared by the server and the CLI commands.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	documents *service.DocumentService
	query     *service.QueryService
	scheduler *schedule.CronScheduler
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	if err := db.CheckDimension(cfg.AI.Dimension); err != nil {
		return nil, err
	}
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

func buildEmbedder(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embed))
	for _, item := range cfg.AI.Embed {
		provider, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     item.Provider + ":" + item.Model,
			Embedder: ai.NewEmbedder(provider, item.Model, cfg.AI.Dimension),
		})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		return nil, fmt.Errorf("no embed provider configured")
	}
	if cfg.EmbedCache.DBEnabled {
		embedder = embedcache.WrapStore(embedder, cacheRepo)
	}
	return embedcache.WrapLRU(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLMinutes)*time.Minute), nil
}

func buildStreamer(cfg *config.Config) (ai.IStreamer, error) {
	provider, err := ai.NewStreamProvider(cfg.AI.Generate.Provider, cfg.AI.Generate.Data)
	if err != nil {
		return nil, fmt.Errorf("init generate provider %s: %w", cfg.AI.Generate.Provider, err)
	}
	return ai.NewStreamer(provider, cfg.AI.Generate.Model), nil
}

func newApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	passageRepo := repo.NewPassageRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	embedder, err := buildEmbedder(cfg, cacheRepo)
	if err != nil {
		return nil, err
	}
	streamer, err := buildStreamer(cfg)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.AI.Timeout) * time.Second

	batcher := service.NewEmbedBatcher(embedder, service.EmbedBatcherConfig{
		BatchSize: cfg.Ingest.EmbedBatchSize,
		Delay:     time.Duration(cfg.Ingest.EmbedBatchDelayMs) * time.Millisecond,
		Dimension: cfg.AI.Dimension,
		Timeout:   timeout,
	})
	ingest := service.NewIngestService(chunker.New(cfg.Ingest.Chunk), batcher, passageRepo, cfg.Ingest.InsertBatchSize)
	documents := service.NewDocumentService(store, ingest, passageRepo)
	query := service.NewQueryService(embedder, passageRepo, streamer, service.QueryConfig{
		TopK:         cfg.Query.TopK,
		SystemRole:   cfg.Query.SystemRole,
		Dimension:    cfg.AI.Dimension,
		EmbedTimeout: timeout,
	})

	scheduler := schedule.NewCronScheduler()
	if cfg.EmbedCache.DBEnabled {
		cleanup := job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.EmbedCache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.EmbedCache.CleanupCron); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
		}
	}
	logutil.GetLogger(context.Background()).Info("services initialised",
		zap.String("embedder", embedder.ModelName()),
		zap.Int("dimension", cfg.AI.Dimension),
		zap.String("generate", cfg.AI.Generate.Provider+":"+cfg.AI.Generate.Model),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Bool("db_cache", cfg.EmbedCache.DBEnabled),
	)
	return &app{cfg: cfg, db: conn, documents: documents, query: query, scheduler: scheduler}, nil
}
