package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "SELECT 1"}}}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", WithBaseURL(server.URL))
	text, err := client.Generate(context.Background(), "gemini-2.5-flash", "generate a query",
		map[string]any{"temperature": 0.0, "max_output_tokens": 256})
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "generate a query", gotBody.Contents[0].Parts[0].Text)
	require.NotNil(t, gotBody.GenerationConfig)
	require.NotNil(t, gotBody.GenerationConfig.Temperature)
	assert.Equal(t, 0.0, *gotBody.GenerationConfig.Temperature)
	require.NotNil(t, gotBody.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 256, *gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGeminiClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded"},
		})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), "gemini-2.5-flash", "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), "gemini-2.5-flash", "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewGeminiClient("test-key", WithBaseURL(server.URL))
	_, err := client.Generate(ctx, "gemini-2.5-flash", "p", nil)
	require.Error(t, err)
}

func TestConfigFromOptions(t *testing.T) {
	assert.Nil(t, configFromOptions(nil))
	assert.Nil(t, configFromOptions(map[string]any{}))
	assert.Nil(t, configFromOptions(map[string]any{"unknown": "x"}))

	cfg := configFromOptions(map[string]any{"temperature": 0.3})
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, 0.3, *cfg.Temperature)
	assert.Nil(t, cfg.MaxOutputTokens)

	cfg = configFromOptions(map[string]any{"max_output_tokens": 128})
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.MaxOutputTokens)
	assert.Equal(t, 128, *cfg.MaxOutputTokens)
}
