// Package convert is a client for a remote OCR-capable PDF-to-text conversion
// service (PDF.co compatible API).
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/madelhuette/carvitra-sub001/internal/common"
)

const service = "convert"

type Config struct {
	BaseURL  string        // default https://api.pdf.co/v1
	APIKey   string        // sent as x-api-key
	Language string        // OCR language, default "deu"
	Timeout  time.Duration // http client timeout, default 60s
}

// Result is the text of a converted document. Pages are separated by form feeds.
type Result struct {
	Text             string
	PageCount        int
	RemainingCredits int
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pdf.co/v1"
	}
	if cfg.Language == "" {
		cfg.Language = "deu"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type textRequest struct {
	URL    string `json:"url"`
	Lang   string `json:"lang"`
	Pages  string `json:"pages"`
	Inline bool   `json:"inline"`
	Async  bool   `json:"async"`
	Name   string `json:"name,omitempty"`
}

type textResponse struct {
	Body             string `json:"body"`
	PageCount        int    `json:"pageCount"`
	Error            bool   `json:"error"`
	Status           int    `json:"status"`
	Message          string `json:"message"`
	RemainingCredits int    `json:"remainingCredits"`
}

// ConvertToText submits the document at url for conversion of all pages and
// returns the inline text. Failures carry a common error kind.
func (c *Client) ConvertToText(ctx context.Context, url string) (Result, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	body := textRequest{
		URL:    url,
		Lang:   c.cfg.Language,
		Pages:  "0-",
		Inline: true,
		Async:  false,
		Name:   "offer.txt",
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/pdf/convert/to/text"

	c.logger.Info("convert.request", "req_id", reqID, "lang", c.cfg.Language)
	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("convert.http_error", "req_id", reqID, "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, err
	}

	var tr textResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return Result{}, common.NewKindError(common.ErrMalformed, "CONVERT_DECODE", "decode conversion response", err)
	}
	if tr.Error {
		code := tr.Status
		if code == 0 {
			code = http.StatusBadGateway
		}
		return Result{}, common.StatusError(service, code, []byte(tr.Message))
	}

	c.logger.Info("convert.ok",
		"req_id", reqID,
		"pages", tr.PageCount,
		"chars", len(tr.Body),
		"remaining_credits", tr.RemainingCredits,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Text: tr.Body, PageCount: tr.PageCount, RemainingCredits: tr.RemainingCredits}, nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("convert http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Warn("convert response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("convert read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, common.StatusError(service, resp.StatusCode, buf.Bytes())
	}
	return buf.Bytes(), resp.StatusCode, nil
}
