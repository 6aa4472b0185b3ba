package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "SIDECAR_ADDR", "PROVIDERS_FILE", "PUBLIC_BACKENDS_ENABLED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.RequestLimit != 50 {
		t.Fatalf("RequestLimit = %d, want 50", cfg.Session.RequestLimit)
	}
	if cfg.Session.HistoryWindow != 20 {
		t.Fatalf("HistoryWindow = %d, want 20", cfg.Session.HistoryWindow)
	}
	if cfg.Stream.MinDelay != 30*time.Millisecond || cfg.Stream.MaxDelay != 70*time.Millisecond {
		t.Fatalf("Stream = %+v, want 30ms..70ms", cfg.Stream)
	}
	if len(cfg.Providers) != 0 {
		t.Fatalf("Providers = %+v, want none without credentials", cfg.Providers)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SESSION_REQUEST_LIMIT", "20")
	t.Setenv("STREAM_MAX_DELAY", "100ms")
	t.Setenv("CLEANUP_DELAY_SCALE", "0.5")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PROVIDERS_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.RequestLimit != 20 {
		t.Fatalf("RequestLimit = %d, want 20", cfg.Session.RequestLimit)
	}
	if cfg.Stream.MaxDelay != 100*time.Millisecond {
		t.Fatalf("MaxDelay = %s, want 100ms", cfg.Stream.MaxDelay)
	}
	if cfg.CleanupDelayScale != 0.5 {
		t.Fatalf("CleanupDelayScale = %v, want 0.5", cfg.CleanupDelayScale)
	}

	var found bool
	for _, p := range cfg.Providers {
		if p.Kind == KindGemini {
			found = true
			if p.ResolvedAPIKey() != "k" {
				t.Fatalf("ResolvedAPIKey() = %q, want k", p.ResolvedAPIKey())
			}
		}
	}
	if !found {
		t.Fatal("expected a gemini provider when GEMINI_API_KEY is set")
	}
}

func TestLoadRejectsInvertedStreamDelays(t *testing.T) {
	t.Setenv("STREAM_MIN_DELAY", "90ms")
	t.Setenv("STREAM_MAX_DELAY", "10ms")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for min > max")
	}
}

func TestLoadProvidersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: local-ollama
    kind: http
    shape: generate
    endpoint: http://localhost:11434/api/generate
    model: llama3
    priority: 5
  - name: assistant
    kind: assistant
    api_key_env: TEST_ASSISTANT_KEY
    assistant_id: asst_123
    poll_interval: 500ms
    priority: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	t.Setenv("PROVIDERS_FILE", path)
	t.Setenv("TEST_ASSISTANT_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("len(Providers) = %d, want 2", len(cfg.Providers))
	}
	assistant := cfg.Providers[1]
	if assistant.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %s, want 500ms", assistant.PollInterval)
	}
	if assistant.ResolvedAPIKey() != "sk-test" {
		t.Fatalf("ResolvedAPIKey() = %q, want sk-test", assistant.ResolvedAPIKey())
	}
}

func TestValidateRejectsBadProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: dup
    kind: gemini
  - name: dup
    kind: gemini
  - name: broken
    kind: http
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	t.Setenv("PROVIDERS_FILE", path)

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "declared twice") || !strings.Contains(err.Error(), "endpoint") {
		t.Fatalf("error = %v, want duplicate and endpoint problems", err)
	}
}
