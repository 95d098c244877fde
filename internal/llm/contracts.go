package llm

import (
	"context"
	"strings"
)

// CompletionRequest is a single-turn request to a generative completion service.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// ContentBlock is one block of a completion. Only blocks of type "text" carry text.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

type CompletionResponse struct {
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
	Model   string         `json:"model"`
}

// Text concatenates the text blocks of the response.
func (r CompletionResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Completer is the interface the extraction engines depend on. Implementations
// classify failures with the common error kinds (auth, transient, upstream, malformed).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f(ctx, req)
}
