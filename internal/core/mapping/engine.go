// Package mapping resolves free-text values (brand, fuel type, transmission)
// to canonical reference ids.
package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// VocabularySource is the read-only reference lookup. Entries come back
// ordered by display name.
type VocabularySource interface {
	ListEntries(ctx context.Context, vocabulary constants.Vocabulary) ([]entity.ReferenceEntry, error)
}

// Invalidator is implemented by sources that keep their own copy of the tables.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Request is one entry of a MapFields batch.
type Request struct {
	Name       string
	Vocabulary constants.Vocabulary
	Value      string
}

type Config struct {
	Aliases       constants.AliasTable
	MinSimilarity float64
	Concurrency   int
	LoadTimeout   time.Duration
}

// Engine maps values against lazily loaded, memoized reference tables.
// Tables are loaded at most once per vocabulary until ClearCache.
type Engine struct {
	source VocabularySource
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	gen    uint64
	tables map[constants.Vocabulary][]entity.ReferenceEntry
	loads  singleflight.Group
}

func NewEngine(source VocabularySource, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Aliases == nil {
		cfg.Aliases = constants.DefaultAliases
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = constants.MapFuzzyMinSimilarity
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	return &Engine{
		source: source,
		cfg:    cfg,
		logger: logger,
		tables: make(map[constants.Vocabulary][]entity.ReferenceEntry),
	}
}

// MapToID maps one value. An unavailable vocabulary yields MatchFallback with
// confidence 0; it never returns an error.
func (e *Engine) MapToID(ctx context.Context, vocabulary constants.Vocabulary, value string) entity.FieldMappingResult {
	if value == "" {
		return entity.NotFound()
	}
	start := time.Now()

	entries, err := e.Table(ctx, vocabulary)
	if err != nil {
		e.logger.Error("mapping.table.unavailable",
			"vocabulary", vocabulary, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldMappingResult{MatchType: constants.MatchFallback}
	}

	rule, _ := e.cfg.Aliases.Lookup(vocabulary)
	res := Match(entries, value, rule, e.cfg.MinSimilarity)
	e.logger.Debug("mapping.map",
		"vocabulary", vocabulary,
		"value", value,
		"match_type", res.MatchType,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// MapFields maps every request concurrently. Results are keyed by Request.Name
// (or the vocabulary name when Name is empty).
func (e *Engine) MapFields(ctx context.Context, reqs []Request) map[string]entity.FieldMappingResult {
	out := make(map[string]entity.FieldMappingResult, len(reqs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, r := range reqs {
		g.Go(func() error {
			res := e.MapToID(ctx, r.Vocabulary, r.Value)
			name := r.Name
			if name == "" {
				name = string(r.Vocabulary)
			}
			mu.Lock()
			out[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Table returns the memoized table of vocabulary, loading it on first use.
// Concurrent first callers share one load. The load runs detached from the
// caller's cancellation and is cached only when it succeeds.
func (e *Engine) Table(ctx context.Context, vocabulary constants.Vocabulary) ([]entity.ReferenceEntry, error) {
	e.mu.RLock()
	entries, ok := e.tables[vocabulary]
	gen := e.gen
	e.mu.RUnlock()
	if ok {
		return entries, nil
	}

	key := fmt.Sprintf("%d/%s", gen, vocabulary)
	ch := e.loads.DoChan(key, func() (any, error) {
		e.mu.RLock()
		entries, ok := e.tables[vocabulary]
		e.mu.RUnlock()
		if ok {
			return entries, nil
		}

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.LoadTimeout)
		defer cancel()

		start := time.Now()
		entries, err := e.source.ListEntries(lctx, vocabulary)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary %s: %w", vocabulary, err)
		}

		e.mu.Lock()
		if e.gen == gen {
			e.tables[vocabulary] = entries
		}
		e.mu.Unlock()

		e.logger.Info("mapping.cache.load",
			"vocabulary", vocabulary,
			"entries", len(entries),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entity.ReferenceEntry), nil
	}
}

// ClearCache drops every memoized table. Loads already in flight finish but
// do not repopulate the cache.
func (e *Engine) ClearCache(ctx context.Context) {
	e.mu.Lock()
	e.gen++
	e.tables = make(map[constants.Vocabulary][]entity.ReferenceEntry)
	e.mu.Unlock()

	if inv, ok := e.source.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			e.logger.Warn("mapping.cache.invalidate_failed", "error", err)
		}
	}
	e.logger.Info("mapping.cache.cleared")
}
