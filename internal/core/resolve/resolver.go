// Package resolve re-extracts individual offer fields on demand, so a partial
// result can be completed without repeating the full extraction.
package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
)

const nullSentinel = "null"

type Config struct {
	Model       string
	MaxTokens   int           // default 100
	Concurrency int           // default 3
	Stagger     time.Duration // pause between dispatches, default 100ms, negative disables
	Timeout     time.Duration // per field, default 30s
}

type Resolver struct {
	completer llm.Completer
	cfg       Config
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewResolver(completer llm.Completer, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	} else if cfg.Stagger == 0 {
		cfg.Stagger = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Resolver{completer: completer, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// ResolveSingleField asks for one value. It returns nil when the model answers
// null, answers nothing, or the call fails.
func (r *Resolver) ResolveSingleField(ctx context.Context, text, fieldName, description string) *string {
	log := common.LoggerFrom(ctx, r.logger)
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.completer.Complete(cctx, llm.CompletionRequest{
		System:      llm.FieldSystemPrompt,
		Prompt:      llm.BuildFieldPrompt(text, fieldName, description),
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		log.Warn("resolve.field.failed",
			"field", fieldName,
			"kind", common.Classify(err).Error(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	v := strings.TrimSpace(resp.Text())
	if v == "" || strings.EqualFold(v, nullSentinel) {
		log.Debug("resolve.field.absent", "field", fieldName, "elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}
	log.Debug("resolve.field.ok", "field", fieldName, "tokens", resp.Usage.Total(), "elapsed_ms", time.Since(start).Milliseconds())
	return &v
}

// ResolveMissingFields resolves the required paths absent from existing and
// returns a completed copy. When nothing is missing it returns existing without
// issuing any call. existing is never mutated.
func (r *Resolver) ResolveMissingFields(ctx context.Context, text string, existing entity.StructuredResult, requiredPaths []string) entity.StructuredResult {
	log := common.LoggerFrom(ctx, r.logger)

	doc, err := toMap(existing)
	if err != nil {
		log.Error("resolve.encode_failed", "error", err)
		return existing
	}

	var fields []llm.Field
	for _, p := range MissingPaths(doc, requiredPaths) {
		f, ok := llm.LookupField(p)
		if !ok {
			log.Warn("resolve.unknown_path", "path", p)
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return existing
	}

	start := time.Now()
	log.Info("resolve.missing.start", "fields", len(fields))

	values := make([]*string, len(fields))
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, f := range fields {
		if i > 0 && r.cfg.Stagger > 0 {
			if err := r.sleep(ctx, r.cfg.Stagger); err != nil {
				break
			}
		}
		g.Go(func() error {
			values[i] = r.ResolveSingleField(ctx, text, f.Path, f.Description)
			return nil
		})
	}
	_ = g.Wait()

	resolved := 0
	for i, f := range fields {
		if values[i] == nil {
			continue
		}
		v, ok := coerce(*values[i], f)
		if !ok {
			log.Warn("resolve.uncoercible", "field", f.Path, "value", *values[i], "type", f.Type)
			continue
		}
		setPath(doc, f.Path, v)
		resolved++
	}

	out, err := fromMap(doc)
	if err != nil {
		log.Error("resolve.decode_failed", "error", err)
		return existing
	}
	log.Info("resolve.missing.done",
		"requested", len(fields),
		"resolved", resolved,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// MissingPaths returns the paths (deduplicated, in order) that are absent from doc.
func MissingPaths(doc map[string]any, paths []string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, ok := lookupPath(doc, p); !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// coerce converts a verbatim answer into the JSON type of the field.
func coerce(s string, f llm.Field) (any, bool) {
	v := llm.CoerceField(s, f)
	switch f.Type {
	case llm.TypeInteger:
		_, ok := v.(int64)
		return v, ok
	case llm.TypeNumber:
		_, ok := v.(float64)
		return v, ok
	case llm.TypeBoolean:
		_, ok := v.(bool)
		return v, ok
	default:
		return v, true
	}
}

func toMap(r entity.StructuredResult) (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]any) (entity.StructuredResult, error) {
	var out entity.StructuredResult
	b, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Missing returns the paths absent from r, deduplicated and in order.
func Missing(r entity.StructuredResult, paths []string) []string {
	doc, err := toMap(r)
	if err != nil {
		return nil
	}
	return MissingPaths(doc, paths)
}
