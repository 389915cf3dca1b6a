// Package llm talks to the Gemini generateContent REST endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "lifepilot/internal/log"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second

	// maxResponseBytes bounds how much of a response body is decoded.
	maxResponseBytes = 8 << 20
)

var (
	// ErrMissingAPIKey is returned before any network call when no
	// credential is configured.
	ErrMissingAPIKey = errors.New("llm: API key is required")
	// ErrModelSetup wraps configuration problems detected while building the
	// client (unparseable base URL, empty model name).
	ErrModelSetup = errors.New("llm: model setup failed")
)

// Generator produces free text from an ordered list of prompt parts.
type Generator interface {
	Generate(ctx context.Context, prompts []string) (string, error)
}

// Options configures a GeminiClient.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient is a minimal generateContent client.
type GeminiClient struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// NewGeminiClient validates opts and builds a client. It does not contact
// the API.
func NewGeminiClient(opts Options) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := strings.TrimPrefix(strings.TrimSpace(opts.Model), "models/")
	if opts.Model == "" {
		model = DefaultModel
	}
	if model == "" || strings.ContainsAny(model, "/ ") {
		return nil, fmt.Errorf("%w: invalid model name %q", ErrModelSetup, opts.Model)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrModelSetup, opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &GeminiClient{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}, nil
}

// Model returns the model name requests are sent to.
func (c *GeminiClient) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends prompts as the parts of a single user turn and returns the
// concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompts []string) (string, error) {
	if c == nil {
		return "", errors.New("llm: client is nil")
	}
	if len(prompts) == 0 {
		return "", errors.New("llm: generate requires at least one prompt")
	}

	parts := make([]part, 0, len(prompts))
	for _, p := range prompts {
		parts = append(parts, part{Text: p})
	}
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	appLog.Debug("llm generate", "endpoint", appLog.RedactURL(endpoint), "parts", len(parts))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.NewDecoder(body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("llm: status %s: %s", resp.Status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("llm: status %s", resp.Status)
	}

	var decoded generateResponse
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("llm: prompt blocked: %s", decoded.PromptFeedback.BlockReason)
		}
		return "", errors.New("llm: response missing candidates")
	}

	var b strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("llm: response empty")
	}
	return text, nil
}
