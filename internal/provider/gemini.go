package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/ashureev/lovecleanup/internal/domain"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures a GeminiBackend.
type GeminiConfig struct {
	Name      string
	APIKey    string
	Model     string
	MaxTokens int32
}

// GeminiBackend generates replies with the Google GenAI SDK.
type GeminiBackend struct {
	name      string
	apiKey    string
	model     string
	maxTokens int32

	mu     sync.RWMutex
	client *genai.Client
}

// NewGeminiBackend applies defaults to cfg. The client is built by Init.
func NewGeminiBackend(cfg GeminiConfig) *GeminiBackend {
	b := &GeminiBackend{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if b.name == "" {
		b.name = "gemini"
	}
	if b.model == "" {
		b.model = defaultGeminiModel
	}
	if b.maxTokens <= 0 {
		b.maxTokens = 300
	}
	return b
}

// Name returns the configured backend name.
func (b *GeminiBackend) Name() string {
	return b.name
}

// Init builds the SDK client.
func (b *GeminiBackend) Init(ctx context.Context) error {
	if !credentialConfigured(b.apiKey) {
		return fmt.Errorf("%s: %w: api key not configured", b.name, ErrInvalidCredential)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("%s: create client: %w", b.name, err)
	}
	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	return nil
}

// Generate sends the recent history plus the prompt.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("%w: %s: client not initialized", ErrRemoteUnavailable, b.name)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == string(domain.RoleAssistant) {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   b.maxTokens,
	}

	res, err := client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return "", classifyGeminiError(b.name, err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("%w: %s returned empty text", ErrMalformedResponse, b.name)
	}
	return text, nil
}

// classifyGeminiError maps SDK errors by their rendered status.
func classifyGeminiError(name string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "permission_denied"):
		return fmt.Errorf("%s: %w: %w", name, ErrInvalidCredential, err)
	case strings.Contains(msg, "resource_exhausted") && mentionsQuota(msg):
		return fmt.Errorf("%s: %w: %w", name, ErrQuotaExhausted, err)
	case strings.Contains(msg, "resource_exhausted"):
		return fmt.Errorf("%w: %s: %w", ErrRateLimited, name, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, name, err)
	}
}
