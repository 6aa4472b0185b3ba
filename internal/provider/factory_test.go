package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/lovecleanup/internal/config"
)

func TestBuildFromConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-env")

	ds, err := Build([]config.ProviderConfig{
		{Name: "ollama", Kind: config.KindHTTP, Shape: "generate", Endpoint: "http://localhost:11434/api/generate", Priority: 10},
		{Name: "assistant", Kind: config.KindAssistant, APIKeyEnv: "TEST_OPENAI_KEY", AssistantID: "asst", Priority: 1},
		{Name: "gemini", Kind: config.KindGemini, APIKey: "g", Priority: 2},
		{Name: "sidecar", Kind: config.KindGRPC, Address: "localhost:50051", Priority: 3},
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, ds, 4)

	assert.IsType(t, &HTTPBackend{}, ds[0].Backend)
	assistant, ok := ds[1].Backend.(*AssistantBackend)
	require.True(t, ok)
	assert.Equal(t, "sk-env", assistant.apiKey)
	assert.IsType(t, &GeminiBackend{}, ds[2].Backend)
	assert.IsType(t, &SidecarBackend{}, ds[3].Backend)
	assert.Equal(t, 3, ds[3].Priority)

	c := NewChain(ds, Options{})
	names := make([]string, 0, 4)
	for _, st := range c.Backends() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"assistant", "gemini", "sidecar", "ollama"}, names)
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	_, err := Build([]config.ProviderConfig{{Name: "x", Kind: "carrier-pigeon"}}, nil, nil)
	assert.Error(t, err)

	_, err = Build([]config.ProviderConfig{{Name: "x", Kind: config.KindHTTP, Endpoint: "http://x", Shape: "yaml"}}, nil, nil)
	assert.Error(t, err)
}
