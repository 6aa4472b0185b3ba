package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultAssistantBaseURL = "https://api.openai.com/v1"
	defaultPollAttempts     = 30
	defaultPollInterval     = time.Second
	assistantInstructions   = "Responda como Luna, a assistente empática do LoveCleanup AI. Seja natural, conversacional e útil."
)

var errMissingThread = errors.New("thread store is required")

// AssistantConfig configures an AssistantBackend.
type AssistantConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	AssistantID  string
	PollAttempts int
	PollInterval time.Duration
	Client       *http.Client
	Logger       *slog.Logger
}

// AssistantBackend talks to a hosted assistant through threads and runs.
// The thread handle lives in the caller's session.
type AssistantBackend struct {
	name         string
	baseURL      string
	apiKey       string
	assistantID  string
	pollAttempts int
	pollInterval time.Duration
	client       *http.Client
	logger       *slog.Logger
}

// NewAssistantBackend applies defaults to cfg.
func NewAssistantBackend(cfg AssistantConfig) *AssistantBackend {
	b := &AssistantBackend{
		name:         cfg.Name,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		assistantID:  cfg.AssistantID,
		pollAttempts: cfg.PollAttempts,
		pollInterval: cfg.PollInterval,
		client:       cfg.Client,
		logger:       cfg.Logger,
	}
	if b.name == "" {
		b.name = "openai-assistant"
	}
	if b.baseURL == "" {
		b.baseURL = defaultAssistantBaseURL
	}
	if b.pollAttempts <= 0 {
		b.pollAttempts = defaultPollAttempts
	}
	if b.pollInterval <= 0 {
		b.pollInterval = defaultPollInterval
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: 30 * time.Second}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Name returns the configured backend name.
func (b *AssistantBackend) Name() string {
	return b.name
}

// Init rejects missing or placeholder credentials.
func (b *AssistantBackend) Init(context.Context) error {
	if !credentialConfigured(b.apiKey) {
		return fmt.Errorf("%s: %w: api key not configured", b.name, ErrInvalidCredential)
	}
	if b.assistantID == "" {
		return fmt.Errorf("%s: assistant id not configured", b.name)
	}
	return nil
}

// Generate adds the prompt to the session thread, runs the assistant and
// returns its latest message.
func (b *AssistantBackend) Generate(ctx context.Context, req Request) (string, error) {
	if req.Thread == nil {
		return "", fmt.Errorf("%s: %w", b.name, errMissingThread)
	}

	threadID := req.Thread.ThreadHandle()
	if threadID == "" {
		id, err := b.createThread(ctx)
		if err != nil {
			return "", err
		}
		threadID = id
		req.Thread.SetThreadHandle(id)
		b.logger.Debug("Assistant thread created", "backend", b.name, "thread_id", id)
	}

	if _, err := b.call(ctx, http.MethodPost, "/threads/"+threadID+"/messages", map[string]any{
		"role":    "user",
		"content": req.Prompt,
	}); err != nil {
		return "", err
	}

	run, err := b.call(ctx, http.MethodPost, "/threads/"+threadID+"/runs", map[string]any{
		"assistant_id": b.assistantID,
		"instructions": assistantInstructions,
	})
	if err != nil {
		return "", err
	}
	runID := run.Get("id").String()
	if runID == "" {
		return "", fmt.Errorf("%w: run without id", ErrMalformedResponse)
	}

	if err := b.waitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}
	return b.latestMessage(ctx, threadID)
}

func (b *AssistantBackend) createThread(ctx context.Context) (string, error) {
	res, err := b.call(ctx, http.MethodPost, "/threads", map[string]any{
		"metadata": map[string]string{
			"session_start": time.Now().UTC().Format(time.RFC3339),
			"app":           "LoveCleanup AI",
		},
	})
	if err != nil {
		return "", err
	}
	id := res.Get("id").String()
	if id == "" {
		return "", fmt.Errorf("%w: thread without id", ErrMalformedResponse)
	}
	return id, nil
}

func (b *AssistantBackend) waitForRun(ctx context.Context, threadID, runID string) error {
	path := "/threads/" + threadID + "/runs/" + runID
	for attempt := 0; attempt < b.pollAttempts; attempt++ {
		run, err := b.call(ctx, http.MethodGet, path, nil)
		switch {
		case err == nil:
			switch status := run.Get("status").String(); status {
			case "completed":
				return nil
			case "failed":
				msg := run.Get("last_error.message").String()
				if mentionsQuota(msg) {
					return fmt.Errorf("%s: run failed: %w: %s", b.name, ErrQuotaExhausted, msg)
				}
				return fmt.Errorf("%w: %s: run failed: %s", ErrRemoteUnavailable, b.name, msg)
			case "cancelled", "expired", "timeout":
				return fmt.Errorf("%w: %s: run %s", ErrRemoteUnavailable, b.name, status)
			}
		case IsSticky(err), ctx.Err() != nil:
			return err
		default:
			b.logger.Debug("Assistant run poll failed, retrying", "backend", b.name, "attempt", attempt+1, "error", err)
		}

		if err := sleepCtx(ctx, b.pollInterval); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, b.name, err)
		}
	}
	return fmt.Errorf("%w: %s: run did not finish after %d polls", ErrRemoteUnavailable, b.name, b.pollAttempts)
}

func (b *AssistantBackend) latestMessage(ctx context.Context, threadID string) (string, error) {
	res, err := b.call(ctx, http.MethodGet, "/threads/"+threadID+"/messages?limit=1", nil)
	if err != nil {
		return "", err
	}
	msg := res.Get("data.0")
	if msg.Get("role").String() != "assistant" {
		return "", fmt.Errorf("%w: latest message is not from the assistant", ErrMalformedResponse)
	}
	content := msg.Get("content.0")
	if content.Get("type").String() != "text" {
		return "", fmt.Errorf("%w: latest message has no text", ErrMalformedResponse)
	}
	text := content.Get("text.value")
	if text.Type != gjson.String {
		return "", fmt.Errorf("%w: latest message has no text", ErrMalformedResponse)
	}
	return text.Str, nil
}

func (b *AssistantBackend) call(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, b.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s: read body: %w", ErrRemoteUnavailable, b.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, classifyStatus(b.name, resp.StatusCode, raw)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: %s returned invalid JSON", ErrMalformedResponse, path)
	}
	return gjson.ParseBytes(raw), nil
}

// credentialConfigured rejects empty keys and the sample placeholder.
func credentialConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.HasPrefix(key, "your_")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
