package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"Olá, eu sou a Luna"}`))
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{
		Name:     "ollama",
		Endpoint: srv.URL,
		Model:    "llama2",
		Shape:    ShapeGenerate,
		APIKey:   "secret",
		Headers:  map[string]string{"X-Extra": "yes"},
		Client:   srv.Client(),
	})
	require.NoError(t, err)

	text, err := b.Generate(context.Background(), Request{System: "sys", Prompt: "oi"})
	require.NoError(t, err)
	assert.Equal(t, "Olá, eu sou a Luna", text)
	assert.Equal(t, "llama2", got["model"])
	assert.Equal(t, "oi", got["prompt"])
	assert.Equal(t, false, got["stream"])
}

func TestHTTPBackendStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
		sticky bool
	}{
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key"}}`, ErrInvalidCredential, true},
		{"quota code", 429, `{"error":{"message":"slow down","code":"insufficient_quota"}}`, ErrQuotaExhausted, true},
		{"quota message", 429, `{"error":{"message":"You exceeded your current quota"}}`, ErrQuotaExhausted, true},
		{"rate limit", 429, `{"error":{"message":"Rate limit reached","code":"rate_limit_exceeded"}}`, ErrRateLimited, false},
		{"billing on other status", 403, `{"error":{"message":"Billing hard limit reached"}}`, ErrQuotaExhausted, true},
		{"server error", 503, `upstream down`, ErrRemoteUnavailable, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			b, err := NewHTTPBackend(HTTPConfig{Name: "x", Endpoint: srv.URL, Shape: ShapeChat, Client: srv.Client()})
			require.NoError(t, err)

			_, err = b.Generate(context.Background(), Request{Prompt: "oi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			assert.Equal(t, tc.sticky, IsSticky(err))

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.status, se.Status)
		})
	}
}

func TestHTTPBackendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{Name: "gone", Endpoint: url, Shape: ShapeText})
	require.NoError(t, err)
	_, err = b.Generate(context.Background(), Request{Prompt: "oi"})
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.False(t, IsSticky(err))
}

func TestNewHTTPBackendValidates(t *testing.T) {
	_, err := NewHTTPBackend(HTTPConfig{Name: "x", Shape: ShapeText})
	assert.Error(t, err)
	_, err = NewHTTPBackend(HTTPConfig{Name: "x", Endpoint: "http://localhost", Shape: "xml"})
	assert.Error(t, err)
}
