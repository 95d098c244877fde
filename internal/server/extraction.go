package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/core/structured"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type OfferExtractor interface {
	Extract(ctx context.Context, text string, opts structured.Options) entity.StructuredResult
}

type ValueMapper interface {
	MapToID(ctx context.Context, vocabulary constants.Vocabulary, value string) entity.FieldMappingResult
}

type Checker interface {
	Check(r entity.StructuredResult) entity.ValidationReport
}

type ExtractionService struct {
	offers  OfferExtractor
	mapper  ValueMapper
	checker Checker
	opts    structured.Options
	logger  *slog.Logger
}

var _ ExtractionServer = (*ExtractionService)(nil)

func NewExtractionService(offers OfferExtractor, mapper ValueMapper, checker Checker, opts structured.Options, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{offers: offers, mapper: mapper, checker: checker, opts: opts, logger: logger}
}

// ExtractStructured expects {"text": "...", "max_tokens"?: n, "temperature"?: t}
// and answers with the StructuredResult record.
func (s *ExtractionService) ExtractStructured(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	text := fields["text"].GetStringValue()
	if strings.TrimSpace(text) == "" {
		s.logger.Error("extract structured request missing text")
		return nil, common.InvalidArgumentError("text is required")
	}
	opts := s.opts
	if v, ok := fields["max_tokens"]; ok {
		opts.MaxTokens = int(v.GetNumberValue())
	}
	if v, ok := fields["temperature"]; ok {
		opts.Temperature = float32(v.GetNumberValue())
	}
	return toStruct(s.offers.Extract(ctx, text, opts))
}

// MapToID expects {"vocabulary": "makes", "value": "BMW"}.
func (s *ExtractionService) MapToID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	vocabulary, ok := constants.ParseVocabulary(fields["vocabulary"].GetStringValue())
	if !ok {
		return nil, common.InvalidArgumentErrorf("unknown vocabulary %q", fields["vocabulary"].GetStringValue())
	}
	return toStruct(s.mapper.MapToID(ctx, vocabulary, fields["value"].GetStringValue()))
}

// Validate expects a StructuredResult record and answers with its ValidationReport.
func (s *ExtractionService) Validate(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r entity.StructuredResult
	if err := fromStruct(req, &r); err != nil {
		return nil, common.InvalidArgumentErrorf("invalid offer record: %v", err)
	}
	return toStruct(s.checker.Check(r))
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalError("encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalError("encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalError("encode response")
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// LoggingInterceptor tags every call with a request id and logs its outcome.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		ctx, id := common.EnsureRequestID(ctx)
		start := time.Now()
		resp, err := next(ctx, req)
		attrs := []any{"method", info.FullMethod, "req_id", id, "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.call.failed", append(attrs, "error", err)...)
			return nil, common.ToStatus(err)
		}
		logger.Info("grpc.call", attrs...)
		return resp, nil
	}
}
