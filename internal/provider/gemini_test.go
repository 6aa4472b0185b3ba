package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeminiRequiresCredential(t *testing.T) {
	b := NewGeminiBackend(GeminiConfig{})
	assert.Equal(t, "gemini", b.Name())
	assert.True(t, errors.Is(b.Init(context.Background()), ErrInvalidCredential))

	_, err := b.Generate(context.Background(), Request{Prompt: "oi"})
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestClassifyGeminiError(t *testing.T) {
	cases := []struct {
		msg  string
		kind error
	}{
		{"Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT", ErrInvalidCredential},
		{"Error 403, Status: PERMISSION_DENIED", ErrInvalidCredential},
		{"Error 429, Message: You exceeded your current quota, Status: RESOURCE_EXHAUSTED", ErrQuotaExhausted},
		{"Error 429, Message: Too many requests, Status: RESOURCE_EXHAUSTED", ErrRateLimited},
		{"Error 500, Status: INTERNAL", ErrRemoteUnavailable},
	}
	for _, tc := range cases {
		err := classifyGeminiError("gemini", errors.New(tc.msg))
		assert.True(t, errors.Is(err, tc.kind), "%q classified as %v", tc.msg, err)
	}
}
