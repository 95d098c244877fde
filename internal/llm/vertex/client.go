// Package vertex implements llm.Completer over Vertex AI Gemini models.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
)

type Config struct {
	Project string
	Region  string // default europe-west3
	Model   string // default gemini-1.5-flash-002
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

// NewClient dials Vertex AI with application default credentials.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" {
		return nil, common.NewKindError(common.ErrInvalidInput, "VERTEX_CONFIG", "vertex project is required", nil)
	}
	if cfg.Region == "" {
		cfg.Region = "europe-west3"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-002"
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Close() error { return c.base.Close() }

// Complete runs one GenerateContent call. Models are configured per request
// because the system instruction differs between callers.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	name := req.Model
	if name == "" {
		name = c.cfg.Model
	}
	model := c.base.GenerativeModel(name)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: genai.Ptr(int32(req.MaxTokens)),
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.logger.Error("llm.vertex.generate_error", "model", name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.CompletionResponse{}, classify(err)
	}
	c.logger.Info("llm.vertex.response", "model", name, "elapsed_ms", time.Since(start).Milliseconds())
	return toCompletion(name, resp)
}

func toCompletion(model string, resp *genai.GenerateContentResponse) (llm.CompletionResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.CompletionResponse{}, common.NewKindError(common.ErrMalformed, "VERTEX_EMPTY", "no candidates in response", nil)
	}
	out := llm.CompletionResponse{Model: model}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.Content = append(out.Content, llm.ContentBlock{Type: "text", Text: string(txt)})
		}
	}
	if len(out.Content) == 0 {
		return llm.CompletionResponse{}, common.NewKindError(common.ErrMalformed, "VERTEX_NO_TEXT", "no text parts in response", nil)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	return out, nil
}

// classify maps gRPC status codes onto the common error kinds.
func classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.NewKindError(common.ErrUnauthorized, "VERTEX_AUTH", st.Message(), err)
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return common.NewKindError(common.ErrTransient, "VERTEX_UNAVAILABLE", st.Message(), err)
	default:
		return common.NewKindError(common.ErrUpstream, "VERTEX_"+st.Code().String(), st.Message(), err)
	}
}
