package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/papersearch/internal/ai"
	"github.com/xxxsen/papersearch/internal/config"
	"github.com/xxxsen/papersearch/internal/db"
	"github.com/xxxsen/papersearch/internal/embedcache"
	"github.com/xxxsen/papersearch/internal/filestore"
	"github.com/xxxsen/papersearch/internal/keyword"
	"github.com/xxxsen/papersearch/internal/repo"
	"github.com/xxxsen/papersearch/internal/retrieval"
	"github.com/xxxsen/papersearch/internal/service"
)

// app holds the components every command is built from.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	papers    *repo.PaperRepo
	workshops *repo.WorkshopRepo
	items     *repo.ItemStore
	cache     *repo.EmbeddingCacheRepo
	manager   *ai.Manager
	engine    *retrieval.Engine
	enrich    *service.EnrichService
	auth      *service.AuthService
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a := &app{cfg: cfg, db: conn}
	a.papers = repo.NewPaperRepo(conn)
	a.workshops = repo.NewWorkshopRepo(conn)
	a.items = repo.NewItemStore(conn, a.papers, a.workshops)
	a.cache = repo.NewEmbeddingCacheRepo(conn)

	generator, embedder, err := buildModels(cfg.AI)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.manager = ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:   time.Duration(cfg.AI.Timeout) * time.Second,
		Dimension: cfg.AI.Dimension,
	})

	extractor, err := keyword.Default()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("load lemmatizer: %w", err)
	}
	var expander retrieval.QueryExpander
	if generator != nil {
		expander = a.manager
	}
	// queries go straight to the provider, only offline enrichment is cached
	a.engine, err = retrieval.NewEngine(a.items, expander, a.manager, extractor, retrieval.Config{
		VariantCount:      cfg.Search.VariantCount,
		WorkshopLimit:     cfg.Search.WorkshopLimit,
		PaperLimit:        cfg.Search.PaperLimit,
		WorkshopThreshold: cfg.Search.WorkshopThreshold,
		PaperThreshold:    cfg.Search.PaperThreshold,
		MaxResults:        cfg.Search.MaxResults,
		Timeout:           time.Duration(cfg.Search.Timeout) * time.Second,
		Parallelism:       cfg.Search.Parallelism,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var files filestore.Store
	if cfg.FileStore.Data != nil {
		files, err = filestore.New(cfg.FileStore)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init file store: %w", err)
		}
	}
	enrichEmbedder := ai.WithRateLimit(a.manager, rate.NewLimiter(rate.Limit(cfg.AI.EmbedRPS), 1))
	enrichEmbedder = embedcache.WrapDBCacheToEmbedder(enrichEmbedder, a.cache)
	enrichEmbedder = embedcache.WrapLruCacheToEmbedder(enrichEmbedder, cfg.AI.EmbedCacheSize, time.Duration(cfg.AI.EmbedCacheTTL)*time.Minute)
	a.enrich = service.NewEnrichService(a.papers, a.workshops, files, enrichEmbedder, service.EnrichConfig{
		BatchSize: cfg.Schedule.EnrichBatch,
	})
	a.auth = service.NewAuthService(cfg.Admin.PasswordHash, []byte(cfg.Admin.JWTSecret), time.Duration(cfg.Admin.TTLHours)*time.Hour)
	return a, nil
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildModels(cfg config.AIConfig) (ai.IGenerator, ai.IEmbedder, error) {
	providers := make(map[string]ai.IProvider, len(cfg.Providers))
	for _, item := range cfg.Providers {
		if item.Name == "" {
			return nil, nil, fmt.Errorf("ai provider name is required")
		}
		args := make(map[string]interface{}, len(item.Data)+2)
		for k, v := range item.Data {
			args[k] = v
		}
		if _, ok := args["api_key"]; !ok && cfg.APIKey != "" {
			args["api_key"] = cfg.APIKey
		}
		if _, ok := args["dimension"]; !ok {
			args["dimension"] = cfg.Dimension
		}
		p, err := ai.NewProvider(item.Type, args)
		if err != nil {
			return nil, nil, fmt.Errorf("init ai provider %s: %w", item.Name, err)
		}
		providers[item.Name] = p
	}

	genEntries := make([]ai.GeneratorEntry, 0, len(cfg.Expand))
	for _, m := range cfg.Expand {
		p, ok := providers[m.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("ai.expand refers to unknown provider %s", m.Provider)
		}
		genEntries = append(genEntries, ai.GeneratorEntry{Name: m.Provider + "/" + m.Model, Generator: ai.NewGenerator(p, m.Model)})
	}
	embEntries := make([]ai.EmbedderEntry, 0, len(cfg.Embed))
	for _, m := range cfg.Embed {
		p, ok := providers[m.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("ai.embed refers to unknown provider %s", m.Provider)
		}
		embEntries = append(embEntries, ai.EmbedderEntry{Name: m.Provider + "/" + m.Model, Embedder: ai.NewEmbedder(p, m.Model)})
	}
	embedder, err := ai.NewGroupEmbedder(embEntries)
	if err != nil {
		return nil, nil, err
	}
	return ai.NewGroupGenerator(genEntries), embedder, nil
}
