// Package structured turns extracted offer text into a StructuredResult using a
// generative completion service.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/core/retry"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
)

const reasonTooShort = "text too short"

// Options tune a single extraction. Use DefaultOptions and override fields.
type Options struct {
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:   4000,
		Temperature: 0.1,
		Timeout:     constants.DefaultTimeout,
		MaxRetries:  constants.DefaultMaxRetries,
	}
}

type Engine struct {
	completer llm.Completer
	model     string
	schema    map[string]any
	validator *llm.Validator
	logger    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(completer llm.Completer, model string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	schema := llm.OfferSchema()
	return &Engine{
		completer: completer,
		model:     model,
		schema:    schema,
		validator: llm.MustValidator(schema),
		logger:    logger,
		now:       time.Now,
	}
}

// Extract never returns an error: every expected failure yields a
// zero-confidence result whose metadata carries the reason.
func (e *Engine) Extract(ctx context.Context, text string, opts Options) entity.StructuredResult {
	log := common.LoggerFrom(ctx, e.logger)
	start := time.Now()
	opts = withDefaults(opts)

	trimmed := strings.TrimSpace(text)
	chars := utf8.RuneCountInString(trimmed)
	if chars < constants.MinTextLength {
		log.Warn("structured.extract.too_short", "chars", chars, "min", constants.MinTextLength)
		return entity.FailedResult(reasonTooShort, e.model, e.now())
	}

	req := llm.CompletionRequest{
		System:      llm.OfferSystemPrompt,
		Prompt:      llm.BuildOfferPrompt(trimmed),
		Model:       e.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	log.Info("structured.extract.start",
		"model", e.model,
		"chars", chars,
		"truncated", chars > constants.MaxInputChars,
		"max_tokens", opts.MaxTokens,
	)

	policy := retry.Default()
	policy.MaxRetries = opts.MaxRetries
	policy.AttemptTimeout = opts.Timeout
	policy.Sleep = e.sleep
	var (
		result entity.StructuredResult
		usage  llm.Usage
		model  string
	)
	attempts, err := policy.Do(ctx, log, "structured.extract", retryable, func(actx context.Context, _ int) error {
		resp, err := e.completer.Complete(actx, req)
		if err != nil {
			return err
		}
		usage, model = resp.Usage, resp.Model
		result, err = e.parse(resp.Text(), log)
		return err
	})
	if model == "" {
		model = e.model
	}
	if err != nil {
		log.Error("structured.extract.failed",
			"attempts", attempts,
			"kind", common.Classify(err).Error(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		failed := entity.FailedResult(err.Error(), model, e.now())
		if n := usage.Total(); n > 0 {
			failed.Metadata.TokensConsumed = &n
		}
		return failed
	}

	result.Metadata.ExtractionTimestamp = e.now()
	result.Metadata.ModelIdentifier = model
	if n := usage.Total(); n > 0 {
		result.Metadata.TokensConsumed = &n
	}
	log.Info("structured.extract.ok",
		"attempts", attempts,
		"confidence", result.Metadata.ConfidenceScore,
		"tokens", usage.Total(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// parse is the strict boundary: locate, sanitize, validate, decode.
func (e *Engine) parse(reply string, log *slog.Logger) (entity.StructuredResult, error) {
	if strings.TrimSpace(reply) == "" {
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "EMPTY_REPLY", "reply has no text content", nil)
	}
	obj, ok := llm.FirstJSONObject(reply)
	if !ok {
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "NO_JSON", "reply contains no JSON object", nil)
	}
	clean, dropped, err := llm.Sanitize([]byte(obj), e.schema, log)
	if err != nil {
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "SANITIZE", "sanitize reply", err)
	}
	if err := e.validator.Validate(clean); err != nil {
		log.Warn("structured.extract.schema_mismatch", "error", err, "dropped", dropped)
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "SCHEMA", "reply does not match schema", err)
	}

	var out entity.StructuredResult
	if err := json.Unmarshal(clean, &out); err != nil {
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "DECODE", "decode reply", err)
	}
	var conf struct {
		Score *float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(clean, &conf); err != nil {
		return entity.StructuredResult{}, common.NewKindError(common.ErrParse, "DECODE", "decode confidence", err)
	}
	out.Metadata = entity.Metadata{ConfidenceScore: Confidence(conf.Score)}
	return out, nil
}

// Confidence normalizes a model-reported score: absent is the default,
// anything else is read on the 0-100 scale the prompt asks for, rounded and
// clamped. A reported 0.9 is therefore 1, not 90.
func Confidence(score *float64) int {
	if score == nil || math.IsNaN(*score) {
		return constants.DefaultConfidence
	}
	v := math.Round(*score)
	return int(math.Max(0, math.Min(100, v)))
}

// retryable excludes authentication failures and replies that do not parse.
func retryable(err error) bool {
	return !common.IsAuth(err) && !errors.Is(err, common.ErrParse)
}

func withDefaults(o Options) Options {
	d := DefaultOptions()
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Temperature < 0 {
		o.Temperature = d.Temperature
	}
	return o
}
