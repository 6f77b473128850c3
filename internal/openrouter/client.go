// Package openrouter is a small client for the OpenRouter chat-completions
// and models endpoints.
//
// Chat responses are returned as raw JSON: their shape varies by model and
// is interpreted by the normalize package, not here.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ironsheep/openrouter-mcp/internal/conversation"
)

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string

	// Timeout bounds ordinary calls; ImageTimeout bounds image generation.
	Timeout      time.Duration
	ImageTimeout time.Duration

	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

// Client talks to the OpenRouter API.
type Client struct {
	cfg         Config
	http        *http.Client
	imageClient *http.Client
}

// NewClient creates a client. Zero timeouts fall back to 60s and 180s.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 180 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		imageClient: &http.Client{Timeout: cfg.ImageTimeout},
	}
}

// ChatRequest is the body of a chat-completions call.
type ChatRequest struct {
	Model       string                 `json:"model"`
	Messages    []conversation.Message `json:"messages"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`

	// Modalities requests non-text output, e.g. ["image", "text"].
	Modalities []string `json:"modalities,omitempty"`
}

// ChatCompletion posts req and returns the raw response body.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) ([]byte, error) {
	return c.postChat(ctx, c.http, req)
}

// GenerateImage is ChatCompletion with image output requested and the
// longer image timeout applied.
func (c *Client) GenerateImage(ctx context.Context, req ChatRequest) ([]byte, error) {
	if len(req.Modalities) == 0 {
		req.Modalities = []string{"image", "text"}
	}
	return c.postChat(ctx, c.imageClient, req)
}

func (c *Client) postChat(ctx context.Context, hc *http.Client, req ChatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(hc, httpReq)
	if err != nil {
		return nil, err
	}

	// OpenRouter sometimes reports failures with a 200 and an error envelope.
	if apiErr := errorFromBody(http.StatusOK, respBody); apiErr != nil && !hasChoices(respBody) {
		return nil, apiErr
	}
	return respBody, nil
}

// ListModels fetches the model catalog.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(c.http, httpReq)
	if err != nil {
		return nil, err
	}
	return ParseModels(body)
}

func (c *Client) do(hc *http.Client, req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromBody(resp.StatusCode, body)
	}
	return body, nil
}
