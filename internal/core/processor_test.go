package core

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/core/mapping"
	"github.com/madelhuette/carvitra-sub001/internal/core/resolve"
	"github.com/madelhuette/carvitra-sub001/internal/core/structured"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
)

const offerText = "BMW 320d Touring, EZ 03/2022, 25.000 km, 190 PS, Diesel, Automatik, 399 EUR/Monat, Autohaus Nord"

const bmwReply = `Hier das Ergebnis:
{"vehicle": {"make": "BMW", "model": "320d Touring", "first_registration": "03/2022",
  "mileage": "25.000", "power_ps": 190, "fuel_type": "Diesel", "transmission": "Automatik"},
 "commercial": {"monthly_rate": "399,00", "offer_type": "leasing"},
 "dealer": {"name": "Autohaus Nord"},
 "confidence_score": 85}`

type fixedText struct {
	out   entity.ExtractedText
	calls atomic.Int32
}

func (f *fixedText) ExtractText(context.Context, entity.Document) entity.ExtractedText {
	f.calls.Add(1)
	return f.out
}

type tableSource map[constants.Vocabulary][]entity.ReferenceEntry

func (s tableSource) ListEntries(_ context.Context, v constants.Vocabulary) ([]entity.ReferenceEntry, error) {
	return s[v], nil
}

var vocab = tableSource{
	constants.VocabularyMakes: {
		{ID: "make-audi", DisplayName: "Audi"},
		{ID: "make-bmw", DisplayName: "BMW"},
		{ID: "make-volkswagen", DisplayName: "Volkswagen"},
	},
	constants.VocabularyFuelTypes: {
		{ID: "fuel-benzin", DisplayName: "Benzin"},
		{ID: "fuel-diesel", DisplayName: "Diesel"},
	},
	constants.VocabularyTransmissions: {
		{ID: "tx-automatik", DisplayName: "Automatik"},
		{ID: "tx-schaltgetriebe", DisplayName: "Schaltgetriebe"},
	},
}

// fakeLLM answers offer requests with offerReply and field requests from fields.
type fakeLLM struct {
	offerReply string
	fields     map[string]string
	offerCalls atomic.Int32
	fieldCalls atomic.Int32
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if req.System == llm.FieldSystemPrompt {
		f.fieldCalls.Add(1)
		for path, v := range f.fields {
			if strings.Contains(req.Prompt, "Field: "+path+"\n") {
				return reply(v), nil
			}
		}
		return reply("null"), nil
	}
	f.offerCalls.Add(1)
	return reply(f.offerReply), nil
}

func reply(s string) llm.CompletionResponse {
	return llm.CompletionResponse{
		Content: []llm.ContentBlock{{Type: "text", Text: s}},
		Usage:   llm.Usage{InputTokens: 900, OutputTokens: 100},
		Model:   "test-model",
	}
}

func newTestProcessor(text *fixedText, model *fakeLLM) *Processor {
	return newTestProcessorWith(ProcessorConfig{}, text, model)
}

func newTestProcessorWith(cfg ProcessorConfig, text *fixedText, model *fakeLLM) *Processor {
	cfg.Now = func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) }
	return NewProcessor(nil,
		cfg,
		text,
		structured.NewEngine(model, "test-model", nil),
		resolve.NewResolver(model, resolve.Config{Stagger: -1}, nil),
		mapping.NewEngine(vocab, mapping.Config{}, nil),
	)
}

func remoteText(s string) *fixedText {
	return &fixedText{out: entity.ExtractedText{Text: s, PageCount: 1, Method: constants.MethodRemote}}
}

func TestProcess_EndToEnd(t *testing.T) {
	model := &fakeLLM{offerReply: bmwReply}
	p := newTestProcessor(remoteText(offerText), model)

	out := p.Process(context.Background(), entity.Document{Name: "bmw.pdf", URL: "https://files/bmw.pdf"})

	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, "bmw.pdf", out.Source)
	require.NotNil(t, out.Result.Vehicle.Mileage)
	assert.Equal(t, 25000, *out.Result.Vehicle.Mileage)
	require.NotNil(t, out.Result.Commercial.MonthlyRate)
	assert.Equal(t, 399.0, *out.Result.Commercial.MonthlyRate)
	assert.Equal(t, 85, out.Result.Metadata.ConfidenceScore)
	assert.Equal(t, "test-model", out.Result.Metadata.ModelIdentifier)

	assert.True(t, out.Report.IsValid)
	assert.Empty(t, out.Report.Errors)
	assert.True(t, out.Accepted)
	assert.Empty(t, out.Resolved)
	assert.Equal(t, int32(1), model.offerCalls.Load())
	assert.Zero(t, model.fieldCalls.Load(), "complete results are not re-extracted")

	require.Len(t, out.Mappings, 3)
	mk := out.Mappings["make"]
	require.NotNil(t, mk.CanonicalID)
	assert.Equal(t, "make-bmw", *mk.CanonicalID)
	assert.Equal(t, 100, mk.Confidence)
	assert.Equal(t, constants.MatchExact, mk.MatchType)
	assert.Equal(t, "fuel-diesel", *out.Mappings["fuel_type"].CanonicalID)
	assert.Equal(t, "tx-automatik", *out.Mappings["transmission"].CanonicalID)
}

func TestProcess_ResolvesMissingRequiredFields(t *testing.T) {
	model := &fakeLLM{
		offerReply: `{"vehicle": {"make": "BMW"}, "confidence_score": 70}`,
		fields:     map[string]string{"vehicle.model": "320d Touring"},
	}
	p := newTestProcessor(remoteText(offerText), model)

	out := p.Process(context.Background(), entity.Document{URL: "u"})

	require.NotNil(t, out.Result.Vehicle.Model)
	assert.Equal(t, "320d Touring", *out.Result.Vehicle.Model)
	assert.Equal(t, []string{"vehicle.model"}, out.Resolved)
	assert.Equal(t, int32(1), model.fieldCalls.Load())
	assert.True(t, out.Report.IsValid)
	assert.True(t, out.Accepted)
}

func TestProcess_UnresolvableFieldStaysInvalid(t *testing.T) {
	model := &fakeLLM{offerReply: `{"vehicle": {"make": "BMW"}, "confidence_score": 70}`}
	p := newTestProcessor(remoteText(offerText), model)

	out := p.Process(context.Background(), entity.Document{URL: "u"})

	assert.Nil(t, out.Result.Vehicle.Model)
	assert.Empty(t, out.Resolved)
	assert.False(t, out.Report.IsValid)
	assert.Contains(t, out.Report.Errors, "vehicle.model is missing")
	assert.False(t, out.Accepted)
}

func TestProcess_ByteScanCapsConfidence(t *testing.T) {
	text := &fixedText{out: entity.ExtractedText{Text: offerText, Method: constants.MethodByteScan, LowConfidence: true}}
	p := newTestProcessor(text, &fakeLLM{offerReply: bmwReply})

	out := p.Process(context.Background(), entity.Document{Data: []byte("%PDF")})

	assert.Equal(t, constants.FallbackTextConfidenceCap, out.Result.Metadata.ConfidenceScore)
	assert.True(t, out.Accepted)
}

func TestProcess_NoTextSkipsModel(t *testing.T) {
	model := &fakeLLM{offerReply: bmwReply}
	p := newTestProcessor(&fixedText{out: entity.ExtractedText{Method: constants.MethodNone}}, model)

	out := p.Process(context.Background(), entity.Document{Data: []byte{0x00}})

	assert.Zero(t, model.offerCalls.Load())
	assert.Zero(t, out.Result.Metadata.ConfidenceScore)
	require.NotNil(t, out.Result.Metadata.Error)
	assert.Equal(t, "no text extractable", *out.Result.Metadata.Error)
	assert.False(t, out.Report.IsValid)
	assert.False(t, out.Accepted)
	assert.Nil(t, out.Mappings)
}

func TestProcess_FailedExtractionSkipsResolveAndMapping(t *testing.T) {
	model := &fakeLLM{offerReply: "Leider kann ich das nicht."}
	p := newTestProcessor(remoteText(offerText), model)

	out := p.Process(context.Background(), entity.Document{URL: "u"})

	assert.Zero(t, out.Result.Metadata.ConfidenceScore)
	assert.NotNil(t, out.Result.Metadata.Error)
	assert.Zero(t, model.fieldCalls.Load())
	assert.Nil(t, out.Mappings)
	assert.False(t, out.Accepted)
}

func TestProcess_BelowAcceptThreshold(t *testing.T) {
	model := &fakeLLM{offerReply: `{"vehicle": {"make": "BMW", "model": "320d"}, "confidence_score": 15}`}
	p := newTestProcessor(remoteText(offerText), model)

	out := p.Process(context.Background(), entity.Document{URL: "u"})

	assert.True(t, out.Report.IsValid)
	assert.False(t, out.Accepted)
}

func TestProcess_AcceptThresholdIsTunable(t *testing.T) {
	threshold := func(v int) *int { return &v }
	for name, tc := range map[string]struct {
		accept *int
		want   bool
	}{
		"default":  {nil, false},
		"zero":     {threshold(0), true},
		"at score": {threshold(15), true},
		"above":    {threshold(16), false},
	} {
		t.Run(name, func(t *testing.T) {
			model := &fakeLLM{offerReply: `{"vehicle": {"make": "BMW", "model": "320d"}, "confidence_score": 15}`}
			p := newTestProcessorWith(ProcessorConfig{AcceptConfidence: tc.accept}, remoteText(offerText), model)

			out := p.Process(context.Background(), entity.Document{URL: "u"})

			assert.True(t, out.Report.IsValid)
			assert.Equal(t, tc.want, out.Accepted)
		})
	}
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, difference([]string{"a", "b", "c"}, []string{"b"}))
	assert.Nil(t, difference(nil, []string{"b"}))
}
