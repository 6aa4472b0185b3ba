package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindHTTP      = "http"
	KindAssistant = "assistant"
	KindGemini    = "gemini"
	KindGRPC      = "grpc"
)

// ProviderConfig declares one backend of the provider chain.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`

	// http
	Shape    string            `yaml:"shape,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty"`
	Model    string            `yaml:"model,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`

	// Credentials. APIKeyEnv wins over APIKey when the variable is set.
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// assistant
	BaseURL      string        `yaml:"base_url,omitempty"`
	AssistantID  string        `yaml:"assistant_id,omitempty"`
	PollAttempts int           `yaml:"poll_attempts,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// grpc
	Address        string        `yaml:"address,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// ResolvedAPIKey returns the key from APIKeyEnv, or APIKey when unset.
func (p ProviderConfig) ResolvedAPIKey() string {
	if p.APIKeyEnv != "" {
		if v, ok := os.LookupEnv(p.APIKeyEnv); ok && v != "" {
			return v
		}
	}
	return p.APIKey
}

// Validate checks the fields each kind requires.
func (p *ProviderConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	switch p.Kind {
	case KindHTTP:
		if p.Endpoint == "" {
			return fmt.Errorf("%s: endpoint cannot be empty", p.Name)
		}
		if p.Shape == "" {
			return fmt.Errorf("%s: shape cannot be empty", p.Name)
		}
	case KindAssistant, KindGemini:
	case KindGRPC:
		if p.Address == "" {
			return fmt.Errorf("%s: address cannot be empty", p.Name)
		}
	default:
		return fmt.Errorf("%s: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProvidersFile reads the provider chain from a YAML file.
func LoadProvidersFile(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}
	return f.Providers, nil
}

// DefaultProviders builds the chain from environment variables. Hosted
// backends are included only when their credential or address is set; the
// public endpoints only when PUBLIC_BACKENDS_ENABLED is true.
func DefaultProviders() []ProviderConfig {
	var out []ProviderConfig
	if os.Getenv("OPENAI_API_KEY") != "" {
		out = append(out, ProviderConfig{
			Name:        "openai-assistant",
			Kind:        KindAssistant,
			Priority:    1,
			APIKeyEnv:   "OPENAI_API_KEY",
			AssistantID: getEnv("OPENAI_ASSISTANT_ID", ""),
		})
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		out = append(out, ProviderConfig{
			Name:      "gemini",
			Kind:      KindGemini,
			Priority:  2,
			APIKeyEnv: "GEMINI_API_KEY",
			Model:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		})
	}
	if addr := os.Getenv("SIDECAR_ADDR"); addr != "" {
		out = append(out, ProviderConfig{
			Name:     "sidecar",
			Kind:     KindGRPC,
			Priority: 3,
			Address:  addr,
		})
	}
	if getEnvBool("PUBLIC_BACKENDS_ENABLED", false) {
		out = append(out,
			ProviderConfig{Name: "ollama", Kind: KindHTTP, Priority: 10, Shape: "generate",
				Endpoint: "https://ollama.ai/api/generate", Model: "llama2"},
			ProviderConfig{Name: "perplexity", Kind: KindHTTP, Priority: 11, Shape: "chat",
				Endpoint: "https://labs-api.perplexity.ai/chat/completions", Model: "llama-3.1-sonar-small-128k-online"},
			ProviderConfig{Name: "together", Kind: KindHTTP, Priority: 12, Shape: "inference",
				Endpoint: "https://api.together.xyz/inference", Model: "togethercomputer/llama-2-7b-chat"},
			ProviderConfig{Name: "replicate", Kind: KindHTTP, Priority: 13, Shape: "prediction",
				Endpoint: "https://api.replicate.com/v1/predictions", Model: "meta/llama-2-7b-chat"},
		)
	}
	return out
}
