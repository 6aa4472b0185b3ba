package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of a reply body is read.
const maxResponseBytes = 1 << 20

// HTTPConfig configures an HTTPBackend.
type HTTPConfig struct {
	Name     string
	Endpoint string
	Model    string
	Shape    Shape
	APIKey   string
	Headers  map[string]string
	Client   *http.Client
}

// HTTPBackend posts one JSON request per turn to a fixed endpoint.
type HTTPBackend struct {
	name     string
	endpoint string
	model    string
	shape    Shape
	apiKey   string
	headers  map[string]string
	client   *http.Client
}

// NewHTTPBackend validates cfg and returns a backend.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("backend %s: endpoint is required", cfg.Name)
	}
	if !cfg.Shape.Valid() {
		return nil, fmt.Errorf("backend %s: unknown response shape %q", cfg.Name, cfg.Shape)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{
		name:     cfg.Name,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		shape:    cfg.Shape,
		apiKey:   cfg.APIKey,
		headers:  cfg.Headers,
		client:   client,
	}, nil
}

// Name returns the configured backend name.
func (b *HTTPBackend) Name() string {
	return b.name
}

// Generate sends req and extracts the reply with the backend's shape.
func (b *HTTPBackend) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := b.shape.Encode(b.model, req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	for k, v := range b.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, b.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %s: read body: %w", ErrRemoteUnavailable, b.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classifyStatus(b.name, resp.StatusCode, body)
	}
	return b.shape.Extract(body)
}
