package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiClient(Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewGeminiClient(Options{APIKey: "   "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewGeminiClient(Options{APIKey: "k", BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrModelSetup)

	_, err = NewGeminiClient(Options{APIKey: "k", Model: "bad model"})
	assert.ErrorIs(t, err, ErrModelSetup)

	c, err := NewGeminiClient(Options{APIKey: "k", Model: "models/gemini-2.0-flash"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", c.Model())

	c, err = NewGeminiClient(Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestGeminiClientGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		require.Len(t, body.Contents[0].Parts, 2)
		assert.Equal(t, "first", body.Contents[0].Parts[0].Text)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "[\"a\", "}, {"text": "\"b\"]"}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	c, err := NewGeminiClient(Options{APIKey: "secret", BaseURL: srv.URL + "/v1beta", Timeout: 5 * time.Second})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, `["a", "b"]`, text)
}

func TestGeminiClientGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantSub string
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
			},
			wantSub: "API key not valid",
		},
		{
			name: "blocked",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
			},
			wantSub: "SAFETY",
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`))
			},
			wantSub: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := NewGeminiClient(Options{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), []string{"p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestGenerateRejectsOversizedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"`)
		_, _ = io.WriteString(w, strings.Repeat("a", maxResponseBytes+1024))
		_, _ = io.WriteString(w, `"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(Options{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), []string{"p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ []string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 1
	b := NewBreaker(cfg)

	stub := &stubGenerator{err: errors.New("quota exceeded")}
	gen := b.Wrap(stub)

	for i := 0; i < 2; i++ {
		_, err := gen.Generate(context.Background(), []string{"p"})
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := gen.Generate(context.Background(), []string{"p"})
	require.Error(t, err)
	assert.Equal(t, 2, stub.calls, "open breaker must not reach the model")
}

func TestBreakerIgnoresCanceledCalls(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig("canceled")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 1
	b := NewBreaker(cfg)

	stub := &stubGenerator{err: fmt.Errorf("gemini request: %w", context.Canceled)}
	gen := b.Wrap(stub)

	for i := 0; i < 5; i++ {
		_, err := gen.Generate(context.Background(), []string{"p"})
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, 5, stub.calls)
}

func TestBreakerPassesThrough(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{text: "ok"}
	text, err := NewBreaker(DefaultBreakerConfig("pass")).Wrap(stub).Generate(context.Background(), []string{"p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	var nilBreaker *Breaker
	assert.Same(t, stub, nilBreaker.Wrap(stub))
}
