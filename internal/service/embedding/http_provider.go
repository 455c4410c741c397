package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig configures the HTTP embedding provider.
type HTTPConfig struct {
	BaseURL    string        // endpoint root, e.g. https://api.openai.com/v1
	APIKey     string        // bearer token, empty for unauthenticated local servers
	Model      string        // model identifier sent with each request
	Dimensions int           // vector width the model produces
	Timeout    time.Duration // per-request timeout
}

// DefaultHTTPConfig returns settings for a local OpenAI-compatible server.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		BaseURL:    "http://localhost:8081/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 256,
		Timeout:    10 * time.Second,
	}
}

// HTTPProvider calls an OpenAI-compatible /embeddings endpoint.
type HTTPProvider struct {
	config *HTTPConfig
	client *http.Client
}

// NewHTTPProvider creates an embedding provider backed by an HTTP API.
func NewHTTPProvider(config *HTTPConfig) *HTTPProvider {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	return &HTTPProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed requests a vector for the text from the embedding API.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	body, err := json.Marshal(embeddingRequest{
		Model: p.config.Model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding API returned no vector")
	}

	return parsed.Data[0].Embedding, nil
}

// Dimensions returns the configured vector width.
func (p *HTTPProvider) Dimensions() int {
	return p.config.Dimensions
}

// IsAvailable reports whether the provider is configured with an endpoint.
func (p *HTTPProvider) IsAvailable() bool {
	return p.config.BaseURL != ""
}
