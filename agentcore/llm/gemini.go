package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tabletalk-labs/tabletalk/agentcore/observability"
)

// DefaultBaseURL is the Google Generative Language API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const providerName = "gemini"

// GeminiClient implements Provider against the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) GeminiOption {
	return func(c *GeminiClient) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GeminiOption {
	return func(c *GeminiClient) { c.httpClient = client }
}

// NewGeminiClient creates a GeminiClient.
func NewGeminiClient(apiKey string, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the generateContent request/response.

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate calls generateContent for the given model and prompt.
func (c *GeminiClient) Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, model, prompt, options)
	durationMS := int(time.Since(start).Milliseconds())
	if err != nil {
		observability.RecordLLMCall(providerName, model, "error", durationMS)
		return "", err
	}
	observability.RecordLLMCall(providerName, model, "success", durationMS)
	return text, nil
}

func (c *GeminiClient) generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if cfg := configFromOptions(options); cfg != nil {
		reqBody.GenerationConfig = cfg
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: calling gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: reading response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm: decoding response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("llm: gemini returned status %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// configFromOptions maps generic options onto the Gemini generation config.
func configFromOptions(options map[string]any) *generationConfig {
	if len(options) == 0 {
		return nil
	}
	cfg := &generationConfig{}
	set := false
	if v, ok := toFloat64(options["temperature"]); ok {
		cfg.Temperature = &v
		set = true
	}
	if v, ok := toFloat64(options["max_output_tokens"]); ok {
		n := int(v)
		cfg.MaxOutputTokens = &n
		set = true
	}
	if !set {
		return nil
	}
	return cfg
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
