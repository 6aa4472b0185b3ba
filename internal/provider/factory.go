package provider

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/lovecleanup/internal/config"
)

// Build turns provider declarations into chain descriptors.
func Build(providers []config.ProviderConfig, client *http.Client, logger *slog.Logger) ([]Descriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Descriptor, 0, len(providers))
	for _, p := range providers {
		var b Backend
		switch p.Kind {
		case config.KindHTTP:
			hb, err := NewHTTPBackend(HTTPConfig{
				Name:     p.Name,
				Endpoint: p.Endpoint,
				Model:    p.Model,
				Shape:    Shape(p.Shape),
				APIKey:   p.ResolvedAPIKey(),
				Headers:  p.Headers,
				Client:   client,
			})
			if err != nil {
				return nil, err
			}
			b = hb
		case config.KindAssistant:
			b = NewAssistantBackend(AssistantConfig{
				Name:         p.Name,
				BaseURL:      p.BaseURL,
				APIKey:       p.ResolvedAPIKey(),
				AssistantID:  p.AssistantID,
				PollAttempts: p.PollAttempts,
				PollInterval: p.PollInterval,
				Client:       client,
				Logger:       logger,
			})
		case config.KindGemini:
			b = NewGeminiBackend(GeminiConfig{
				Name:   p.Name,
				APIKey: p.ResolvedAPIKey(),
				Model:  p.Model,
			})
		case config.KindGRPC:
			b = NewSidecarBackend(SidecarConfig{
				Name:           p.Name,
				Address:        p.Address,
				ConnectTimeout: p.ConnectTimeout,
				Logger:         logger,
			})
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
		out = append(out, Descriptor{Backend: b, Priority: p.Priority})
	}
	return out, nil
}
