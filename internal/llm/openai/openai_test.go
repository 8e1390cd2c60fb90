package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func TestGenerate(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "small-model", req.Model)
		assert.Equal(t, 64, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-6)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "rendered prompt", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "c1", "object": "chat.completion", "model": req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "  4242 \n"},
			}},
		})
	}))
	defer srv.Close()

	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_LLM_KEY", Model: "small-model", MaxTokens: 64, Temperature: 0.1})
	require.NoError(t, err)
	answer, err := g.Generate(context.Background(), domain.GenerateRequest{Prompt: "rendered prompt", Question: "code?"})
	require.NoError(t, err)
	assert.Equal(t, "4242", answer)
}

func TestGenerate_NoChoices(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_LLM_KEY"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), domain.GenerateRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")
	_, err := New(Config{APIKeyEnv: "TEST_LLM_KEY"})
	assert.Error(t, err)
}

func TestGenerate_DeadlineFromContextOnly(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_LLM_KEY"})
	require.NoError(t, err)
	assert.Zero(t, g.httpClient.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, domain.GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
