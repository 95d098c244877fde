// Package bootstrap builds the pipeline components from configuration. Clients
// are constructed once here and injected everywhere else.
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/convert"
	"github.com/madelhuette/carvitra-sub001/internal/core"
	"github.com/madelhuette/carvitra-sub001/internal/core/mapping"
	"github.com/madelhuette/carvitra-sub001/internal/core/resolve"
	"github.com/madelhuette/carvitra-sub001/internal/core/structured"
	"github.com/madelhuette/carvitra-sub001/internal/core/validate"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
	"github.com/madelhuette/carvitra-sub001/internal/llm/anthropic"
	"github.com/madelhuette/carvitra-sub001/internal/llm/openai"
	"github.com/madelhuette/carvitra-sub001/internal/llm/vertex"
	repo "github.com/madelhuette/carvitra-sub001/internal/repository"
	"github.com/madelhuette/carvitra-sub001/internal/storage"
	"github.com/madelhuette/carvitra-sub001/internal/textextract"
)

// App holds the wired components. Close releases every client it opened.
type App struct {
	DB         *repo.DB
	Vocabulary repo.VocabularyRepository
	Mapper     *mapping.Engine
	Text       *textextract.Extractor
	Offers     *structured.Engine
	Resolver   *resolve.Resolver
	Checker    *validate.Checker
	Processor  *core.Processor
	Options    structured.Options

	closers []func()
}

// OpenVocabulary opens the database, applies migrations and wraps the
// repository with the redis snapshot when one is configured.
func OpenVocabulary(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repo.DB, repo.VocabularyRepository, []func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	closers := []func(){func() { db.Close(logger) }}

	if err := db.Migrate(ctx, cfg.Database.Seed, logger); err != nil {
		db.Close(logger)
		return nil, nil, nil, err
	}

	var vocab repo.VocabularyRepository = repo.NewVocabularyRepository(db, logger)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		vocab = repo.NewSnapshot(vocab, rdb, cfg.Redis.KeyPrefix, 0, logger)
		logger.Info("vocabulary snapshot enabled", "addr", cfg.Redis.Addr)
	}
	return db, vocab, closers, nil
}

// NewCompleter builds the configured completion provider.
func NewCompleter(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), func() {}, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{Project: cfg.Project, Region: cfg.Region, Model: cfg.Model}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), func() {}, nil
	}
}

// NewTextExtractor wires the conversion service and object storage when configured.
func NewTextExtractor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*textextract.Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var converter textextract.Converter
	if cfg.Convert.APIKey != "" {
		converter = convert.NewClient(convert.Config{
			BaseURL:  cfg.Convert.BaseURL,
			APIKey:   cfg.Convert.APIKey,
			Language: cfg.Convert.Language,
			Timeout:  cfg.Convert.Timeout,
		}, logger)
	} else {
		logger.Warn("CONVERT_API_KEY not set, using local text extraction only")
	}

	var refs textextract.ReferenceResolver
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinioStore(storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			UseSSL:        cfg.Storage.UseSSL,
			PresignExpiry: cfg.Storage.PresignExpiry,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		refs = store
	}

	return textextract.NewExtractor(converter, refs, textextract.Config{
		Timeout:         cfg.Convert.Timeout,
		MaxRetries:      cfg.Convert.MaxRetries,
		FallbackOnEmpty: cfg.Convert.FallbackOnEmpty,
		Pdftotext:       cfg.Convert.Pdftotext,
		ScanBytes:       cfg.Convert.ScanBytes,
	}, logger), nil
}

// New builds the full pipeline.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{}

	db, vocab, closers, err := OpenVocabulary(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.DB, app.Vocabulary = db, vocab
	app.closers = append(app.closers, closers...)

	completer, closeLLM, err := NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeLLM)

	if app.Text, err = NewTextExtractor(ctx, cfg, logger); err != nil {
		app.Close()
		return nil, err
	}

	app.Mapper = mapping.NewEngine(vocab, mapping.Config{
		Concurrency: cfg.Pipeline.MapConcurrency,
		LoadTimeout: cfg.Pipeline.VocabularyLoadTimeout,
	}, logger)
	app.Offers = structured.NewEngine(completer, cfg.LLM.Model, logger)
	app.Resolver = resolve.NewResolver(completer, resolve.Config{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.FieldMaxTokens,
		Concurrency: cfg.Pipeline.ResolveConcurrency,
		Stagger:     cfg.Pipeline.ResolveStagger,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	app.Checker = validate.NewChecker(validate.DefaultLimits(), nil)
	app.Options = structured.Options{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}
	accept := cfg.Pipeline.AcceptConfidence
	app.Processor = core.NewProcessor(logger, core.ProcessorConfig{
		AcceptConfidence: &accept,
		RequiredFields:   cfg.Pipeline.RequiredFields,
		Structured:       app.Options,
	}, app.Text, app.Offers, app.Resolver, app.Mapper)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
