// Package textextract recovers plain text from offer PDFs: a remote conversion
// service first, local best-effort extraction as fallback.
package textextract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/convert"
	"github.com/madelhuette/carvitra-sub001/internal/core/retry"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// Converter is the remote text-conversion service.
type Converter interface {
	ConvertToText(ctx context.Context, url string) (convert.Result, error)
}

// ReferenceResolver makes a retrievable URL for a document that only has bytes.
type ReferenceResolver interface {
	Reference(ctx context.Context, doc entity.Document) (string, error)
}

type Config struct {
	Timeout         time.Duration // per conversion attempt, default 60s
	MaxRetries      int
	FallbackOnEmpty bool   // run the local fallback when the service finds no text
	Pdftotext       string // optional poppler binary; empty disables it
	ScanBytes       int    // byte-scan window, default 200000
}

type Extractor struct {
	converter Converter
	refs      ReferenceResolver
	cfg       Config
	runner    Runner
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExtractor wires the remote converter (nil disables the primary path) and
// an optional reference resolver.
func NewExtractor(converter Converter, refs ReferenceResolver, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ScanBytes <= 0 {
		cfg.ScanBytes = 200_000
	}
	return &Extractor{converter: converter, refs: refs, cfg: cfg, runner: execRunner{}, logger: logger}
}

// ExtractText never returns an error. Empty text without Error means the
// document has no extractable text; Error is set only when the service failed
// and the local fallback recovered nothing either.
func (e *Extractor) ExtractText(ctx context.Context, doc entity.Document) entity.ExtractedText {
	log := common.LoggerFrom(ctx, e.logger)
	start := time.Now()

	if doc.URL == "" && len(doc.Data) == 0 {
		return entity.ExtractedText{Method: constants.MethodNone, Error: "document has neither data nor url", Meta: doc.Meta}
	}

	reason, attempted := e.skipReason(doc), false
	if reason == nil {
		url, err := e.reference(ctx, doc)
		if err != nil {
			reason = err
		} else {
			attempted = true
			out, err := e.primary(ctx, log, url, doc)
			switch {
			case err == nil:
				log.Info("textextract.ok",
					"method", out.Method,
					"pages", out.PageCount,
					"chars", len(out.Text),
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return out
			case errors.Is(err, common.ErrNoText) && !e.cfg.FallbackOnEmpty:
				log.Info("textextract.no_text", "pages", out.PageCount, "elapsed_ms", time.Since(start).Milliseconds())
				return out
			}
			reason = err
		}
	}

	log.Warn("textextract.fallback", "reason", reason.Error(), "kind", common.Classify(reason).Error())
	out := e.fallback(ctx, doc)
	if attempted {
		out.PrimaryError = reason.Error()
		if out.Text == "" && !errors.Is(reason, common.ErrNoText) {
			out.Error = reason.Error()
		}
	}
	log.Info("textextract.fallback.done",
		"method", out.Method,
		"pages", out.PageCount,
		"chars", len(out.Text),
		"low_confidence", out.LowConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// skipReason explains why the remote path cannot be used for doc, or is nil.
func (e *Extractor) skipReason(doc entity.Document) error {
	switch {
	case e.converter == nil:
		return errors.New("conversion service not configured")
	case doc.URL == "" && e.refs == nil:
		return errors.New("document has no retrievable url")
	}
	return nil
}

func (e *Extractor) reference(ctx context.Context, doc entity.Document) (string, error) {
	if doc.URL != "" {
		return doc.URL, nil
	}
	url, err := e.refs.Reference(ctx, doc)
	if err != nil {
		return "", common.WrapError(err, "reference document")
	}
	return url, nil
}

// primary converts url with retries on transient failures. Zero text is
// reported as ErrNoText alongside the (empty) result.
func (e *Extractor) primary(ctx context.Context, log *slog.Logger, url string, doc entity.Document) (entity.ExtractedText, error) {
	policy := retry.Default()
	policy.MaxRetries = e.cfg.MaxRetries
	policy.AttemptTimeout = e.cfg.Timeout
	policy.Sleep = e.sleep
	var res convert.Result
	attempts, err := policy.Do(ctx, log, "textextract.convert", common.IsTransient, func(actx context.Context, _ int) error {
		var err error
		res, err = e.converter.ConvertToText(actx, url)
		return err
	})
	if err != nil {
		log.Warn("textextract.convert.failed", "attempts", attempts, "error", err)
		return entity.ExtractedText{}, err
	}

	out := entity.ExtractedText{
		Text:      Normalize(res.Text),
		PageCount: res.PageCount,
		Method:    constants.MethodRemote,
		Meta:      doc.Meta,
	}
	if len(doc.Data) > 0 {
		if meta, err := ReadMeta(doc.Data); err == nil {
			out.Meta = mergeMeta(doc.Meta, meta)
		}
	}
	if out.PageCount == 0 {
		out.PageCount = out.Meta.PageCount
	}
	if out.Text == "" {
		return out, common.NewKindError(common.ErrNoText, "NO_TEXT", "conversion service returned no text", nil)
	}
	return out, nil
}
