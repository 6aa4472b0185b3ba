package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/lovecleanup/internal/api"
	"github.com/ashureev/lovecleanup/internal/config"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/identity"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute},
		SSE: config.SSEConfig{
			MaxRequestBodySize: 1024,
			KeepAlive:          time.Hour,
			RetryDelay:         time.Second,
			ReplayBuffer:       10,
		},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h := NewHandler(newTestService(t, nil, nil), nil, testConfig())
	t.Cleanup(h.Close)
	return h
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	return req.WithContext(identity.WithIdentity(req.Context(), "u1", "tab"))
}

type sseEvent struct {
	id    string
	event string
	data  string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.event != "" || ev.data != "" {
				return ev
			}
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestHandleChatStreamsSSE(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()

	h.HandleChat(w, chatRequest(`{"message":"oi","context":{"userName":"Ana"}}`))

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(strings.NewReader(w.Body.String()))
	var chunks int
	var final domain.AIResponse
	for {
		ev := readEvent(t, reader)
		if ev.event == "chunk" {
			chunks++
			continue
		}
		if ev.event != "message" {
			t.Fatalf("unexpected event %q", ev.event)
		}
		if err := json.Unmarshal([]byte(ev.data), &final); err != nil {
			t.Fatalf("decode final message: %v", err)
		}
		break
	}
	if chunks != 5 {
		t.Fatalf("expected 5 chunk events, got %d", chunks)
	}
	if final.Text != testReply || final.Provider != "stub" {
		t.Fatalf("unexpected final response %+v", final)
	}
}

func TestHandleChatValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"blank message", `{"message":"   "}`, http.StatusBadRequest},
		{"too large", `{"message":"` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t)
			w := httptest.NewRecorder()
			h.HandleChat(w, chatRequest(tt.body))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleChatRequiresIdentity(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	h.HandleChat(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"oi"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	h := newTestHandler(t)
	for i := range 2 {
		w := httptest.NewRecorder()
		h.HandleChat(w, chatRequest(`{"message":"oi"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := httptest.NewRecorder()
	h.HandleChat(w, chatRequest(`{"message":"oi"}`))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestHandleResetAndStats(t *testing.T) {
	h := newTestHandler(t)
	h.HandleChat(httptest.NewRecorder(), chatRequest(`{"message":"oi"}`))

	statsReq := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/chat/stats", nil)
		req = req.WithContext(identity.WithIdentity(req.Context(), "u1", "tab"))
		w := httptest.NewRecorder()
		h.HandleStats(w, req)
		var got map[string]any
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		return got
	}

	if got := statsReq()["requestCount"]; got != float64(1) {
		t.Fatalf("expected requestCount 1, got %v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat/reset", nil)
	req = req.WithContext(identity.WithIdentity(req.Context(), "u1", "tab"))
	w := httptest.NewRecorder()
	h.HandleReset(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}

	stats := statsReq()
	if stats["requestCount"] != float64(0) || stats["conversationLength"] != float64(0) {
		t.Fatalf("expected cleared stats, got %v", stats)
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("expected first two requests to pass")
	}
	if rl.Allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("limit must be per key")
	}
}

func TestSSEMessageQueueReplay(t *testing.T) {
	q := NewSSEMessageQueue(2)
	for i := int64(1); i <= 3; i++ {
		q.Enqueue("u1", "tab", i, &Event{Type: EventCleanupProgress})
	}
	q.Enqueue("u2", "tab", 4, &Event{Type: EventCleanupDone})

	missed := q.GetMissedMessages("u1", "tab", 0)
	if len(missed) != 2 || missed[0].EventID != 2 {
		t.Fatalf("expected events 2 and 3 to survive, got %d", len(missed))
	}
	if got := q.GetMissedMessages("u1", "tab", 2); len(got) != 1 || got[0].EventID != 3 {
		t.Fatalf("expected only event 3 after id 2")
	}

	q.Prune("u1", "tab")
	if got := q.GetMissedMessages("u1", "tab", 0); len(got) != 0 {
		t.Fatal("expected pruned queue to be empty")
	}
	if got := q.GetMissedMessages("u2", "tab", 0); len(got) != 1 {
		t.Fatal("pruning one session must not touch another")
	}
}

func TestHandleStreamDeliversNotifications(t *testing.T) {
	h := NewHandler(newTestService(t, nil, nil), nil, testConfig())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleStream(w, r.WithContext(identity.WithIdentity(r.Context(), "u1", "tab")))
	}))
	defer srv.Close()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if ev := readEvent(t, reader); ev.event != "connected" {
		t.Fatalf("expected connected event, got %q", ev.event)
	}

	h.Notify("u1", "tab", string(EventCleanupProgress), api.ProgressPayload{
		ConfirmationID: "c1",
		Category:       domain.CategoryPhotos,
		Label:          domain.CategoryPhotos.Label(),
		Percent:        100,
	})

	ev := readEvent(t, reader)
	if ev.event != string(EventCleanupProgress) || ev.id == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	var got struct {
		Type    EventType           `json:"type"`
		Payload api.ProgressPayload `json:"payload"`
	}
	if err := json.Unmarshal([]byte(ev.data), &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got.Payload.Category != domain.CategoryPhotos || got.Payload.Percent != 100 {
		t.Fatalf("unexpected payload %+v", got.Payload)
	}
}
