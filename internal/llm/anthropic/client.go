// Package anthropic implements llm.Completer over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/llm"
)

const service = "anthropic"

type Config struct {
	APIKey  string        // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL string        // default https://api.anthropic.com/v1
	Model   string        // e.g. "claude-3-5-haiku-latest"
	Version string        // anthropic-version header
	Timeout time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type messagesResponse struct {
	Model   string             `json:"model"`
	Content []llm.ContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	StopReason string `json:"stop_reason"`
}

// Complete sends one user turn with the system instruction.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	body := map[string]any{
		"model":       model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.cfg.Version,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	raw, _, err := llm.SendJSON(ctx, c.http, service, endpoint, body, headers, c.logger)
	if err != nil {
		return llm.CompletionResponse{}, err
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return llm.CompletionResponse{}, common.NewKindError(common.ErrMalformed, "ANTHROPIC_DECODE", "decode messages response", err)
	}
	if len(mr.Content) == 0 {
		return llm.CompletionResponse{}, common.NewKindError(common.ErrMalformed, "ANTHROPIC_EMPTY", "no content blocks in response", nil)
	}
	if mr.StopReason == "max_tokens" {
		c.logger.Warn("llm.anthropic.max_tokens", "model", mr.Model, "max_tokens", req.MaxTokens)
	}

	return llm.CompletionResponse{
		Content: mr.Content,
		Usage:   llm.Usage{InputTokens: mr.Usage.InputTokens, OutputTokens: mr.Usage.OutputTokens},
		Model:   mr.Model,
	}, nil
}
