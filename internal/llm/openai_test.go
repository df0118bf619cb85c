package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/config"
)

func TestOpenAIClient_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"<think>x</think>answer"},"finish_reason":"stop"}]}`))
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", Timeout: 5 * time.Second}, nil)
	out, err := c.Generate(context.Background(), Request{Prompt: "p", System: "s", MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	msgs, _ := body["messages"].([]any)
	assert.Len(t, msgs, 2)

	assert.True(t, c.Available(context.Background()))
	st := c.Status(context.Background())
	assert.True(t, st.Installed)
	require.Len(t, st.Models, 1)
	assert.Equal(t, "gpt-4o-mini", st.Models[0].Name)
}

func TestOpenAIClient_Generate_upstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second}, nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
	assert.Equal(t, "m", c.Model())

	c, err = NewClient(config.LLMConfig{Provider: "OpenAI", BaseURL: "http://localhost:1234/v1", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient(config.LLMConfig{Provider: "claude"}, nil)
	assert.Error(t, err)
}
