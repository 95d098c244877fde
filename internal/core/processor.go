// Package core wires the offer pipeline: text extraction, structured
// extraction, plausibility checks, targeted re-extraction and reference mapping.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/core/mapping"
	"github.com/madelhuette/carvitra-sub001/internal/core/resolve"
	"github.com/madelhuette/carvitra-sub001/internal/core/structured"
	"github.com/madelhuette/carvitra-sub001/internal/core/validate"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type TextExtractor interface {
	ExtractText(ctx context.Context, doc entity.Document) entity.ExtractedText
}

type OfferExtractor interface {
	Extract(ctx context.Context, text string, opts structured.Options) entity.StructuredResult
}

type FieldResolver interface {
	ResolveMissingFields(ctx context.Context, text string, existing entity.StructuredResult, requiredPaths []string) entity.StructuredResult
}

type Mapper interface {
	MapFields(ctx context.Context, reqs []mapping.Request) map[string]entity.FieldMappingResult
}

type ProcessorConfig struct {
	AcceptConfidence *int // nil uses constants.AcceptConfidence; 0 accepts every valid result
	RequiredFields   []string
	Structured       structured.Options
	Limits           validate.Limits
	Now              func() time.Time
}

// Processor runs one document through every stage. Stages never fail the
// whole run; each result carries its own confidence and error metadata.
type Processor struct {
	logger   *slog.Logger
	cfg      ProcessorConfig
	text     TextExtractor
	offers   OfferExtractor
	resolver FieldResolver
	mapper   Mapper
	checker  *validate.Checker
	accept   int
}

// NewProcessor wires the stages. resolver and mapper may be nil to skip
// targeted re-extraction and reference mapping.
func NewProcessor(logger *slog.Logger, cfg ProcessorConfig, text TextExtractor, offers OfferExtractor, resolver FieldResolver, mapper Mapper) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	accept := constants.AcceptConfidence
	if cfg.AcceptConfidence != nil {
		accept = *cfg.AcceptConfidence
	}
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = []string{"vehicle.make", "vehicle.model"}
	}
	if cfg.Structured == (structured.Options{}) {
		cfg.Structured = structured.DefaultOptions()
	}
	if cfg.Limits == (validate.Limits{}) {
		cfg.Limits = validate.DefaultLimits()
	}
	return &Processor{
		logger:   logger,
		cfg:      cfg,
		text:     text,
		offers:   offers,
		resolver: resolver,
		mapper:   mapper,
		checker:  validate.NewChecker(cfg.Limits, cfg.Now),
		accept:   accept,
	}
}

// Process extracts, checks and maps one offer document.
func (p *Processor) Process(ctx context.Context, doc entity.Document) entity.OfferResult {
	ctx, jobID := common.EnsureRequestID(ctx)
	log := common.LoggerFrom(ctx, p.logger)
	start := time.Now()

	out := entity.OfferResult{JobID: jobID, Source: doc.Name}
	out.Text = p.text.ExtractText(ctx, doc)
	log.Debug("processor.text",
		"method", out.Text.Method,
		"pages", out.Text.PageCount,
		"chars", len(out.Text.Text),
		"low_confidence", out.Text.LowConfidence,
	)

	if out.Text.Text == "" {
		reason := out.Text.Error
		if reason == "" {
			reason = "no text extractable"
		}
		out.Result = entity.FailedResult(reason, "", p.now())
		out.Report = p.checker.Check(out.Result)
		out.Elapsed = time.Since(start)
		log.Warn("processor.no_text", "reason", reason, "elapsed_ms", out.Elapsed.Milliseconds())
		return out
	}

	out.Result = p.offers.Extract(ctx, out.Text.Text, p.cfg.Structured)
	if out.Text.LowConfidence && out.Result.Metadata.ConfidenceScore > constants.FallbackTextConfidenceCap {
		out.Result.Metadata.ConfidenceScore = constants.FallbackTextConfidenceCap
	}
	out.Report = p.checker.Check(out.Result)

	if !out.Report.IsValid && out.Result.Trusted() && p.resolver != nil {
		missing := resolve.Missing(out.Result, p.cfg.RequiredFields)
		out.Result = p.resolver.ResolveMissingFields(ctx, out.Text.Text, out.Result, p.cfg.RequiredFields)
		still := resolve.Missing(out.Result, p.cfg.RequiredFields)
		out.Resolved = difference(missing, still)
		out.Report = p.checker.Check(out.Result)
		log.Info("processor.resolve",
			"missing", len(missing),
			"resolved", len(out.Resolved),
			"valid", out.Report.IsValid,
		)
	}

	if p.mapper != nil && out.Result.Trusted() {
		out.Mappings = p.mapper.MapFields(ctx, mappingRequests(out.Result.Vehicle))
	}

	out.Accepted = out.Report.IsValid && out.Result.Metadata.ConfidenceScore >= p.accept
	out.Elapsed = time.Since(start)
	log.Info("processor.done",
		"source", doc.Name,
		"confidence", out.Result.Metadata.ConfidenceScore,
		"valid", out.Report.IsValid,
		"warnings", len(out.Report.Warnings),
		"accepted", out.Accepted,
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out
}

func (p *Processor) now() time.Time {
	if p.cfg.Now != nil {
		return p.cfg.Now()
	}
	return time.Now()
}

// mappingRequests lists the vehicle values that have a reference vocabulary.
func mappingRequests(v entity.Vehicle) []mapping.Request {
	var reqs []mapping.Request
	add := func(name string, vocabulary constants.Vocabulary, value *string) {
		if value != nil && *value != "" {
			reqs = append(reqs, mapping.Request{Name: name, Vocabulary: vocabulary, Value: *value})
		}
	}
	add("make", constants.VocabularyMakes, v.Make)
	add("fuel_type", constants.VocabularyFuelTypes, v.FuelType)
	add("transmission", constants.VocabularyTransmissions, v.Transmission)
	return reqs
}

func difference(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, s := range b {
		drop[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := drop[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
