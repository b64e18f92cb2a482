package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// maxErrorBody bounds how much of a failed response ends up in job errors.
const maxErrorBody = 2048

type Config struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	SummaryModel    string
	EmbeddingModel  string
	VisionModel     string
	Timeout         time.Duration
}

// Client talks to an OpenAI-compatible API. It implements the
// transcription, summarization, embedding and frame description
// capabilities.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) postJSON(ctx context.Context, stage domain.JobType, path string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, domain.Permanent(stage, fmt.Errorf("marshal request: %w", err))
	}
	return c.do(ctx, stage, path, "application/json", bytes.NewReader(b))
}

func (c *Client) do(ctx context.Context, stage domain.JobType, path, contentType string, body io.Reader) ([]byte, error) {
	rid := uuid.NewString()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return nil, domain.Permanent(stage, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn.Printf("provider request failed: req_id=%s path=%s elapsed_ms=%d err=%v",
			rid, path, time.Since(start).Milliseconds(), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.Transient(stage, fmt.Errorf("provider http error: %w", err))
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn.Printf("provider response body close error: %v", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient(stage, fmt.Errorf("read provider response: %w", err))
	}
	logger.Debug.Printf("provider response: req_id=%s path=%s status=%d bytes=%d elapsed_ms=%d",
		rid, path, resp.StatusCode, len(raw), time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return nil, statusError(stage, resp.StatusCode, raw)
	}
	return raw, nil
}

// statusError maps rate limiting and server errors to transient failures.
// Other client errors will not improve on retry.
func statusError(stage domain.JobType, status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	err := fmt.Errorf("provider status %d: %s", status, msg)
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return domain.Transient(stage, err)
	}
	return domain.Permanent(stage, err)
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatJSON posts a chat completion in JSON mode and returns the validated
// message content.
func (c *Client) chatJSON(ctx context.Context, stage domain.JobType, model string, messages []map[string]any, schema *outputSchema) ([]byte, error) {
	body := map[string]any{
		"model":           model,
		"temperature":     0.2,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	raw, err := c.postJSON(ctx, stage, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, domain.Transient(stage, fmt.Errorf("decode chat response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return nil, domain.Transient(stage, errors.New("no choices in chat response"))
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))
	if err := schema.validate(content); err != nil {
		// Model output varies between calls; a retry may produce valid JSON.
		return nil, domain.Transient(stage, fmt.Errorf("chat output failed schema validation: %w", err))
	}
	return content, nil
}
