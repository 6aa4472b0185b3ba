package realtime

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/lovecleanup/internal/agent"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/identity"
	"github.com/ashureev/lovecleanup/internal/provider"
	"github.com/ashureev/lovecleanup/internal/store"
)

const (
	readLimit       = 64 << 10
	writeTimeout    = 10 * time.Second
	maxPendingTurns = 4
)

// Chatter runs chat turns for a user tab.
type Chatter interface {
	Chat(ctx context.Context, req agent.ChatRequest) iter.Seq2[*agent.ChatChunk, error]
	Interrupt(userID, sessionID string) bool
	Reset(ctx context.Context, userID, sessionID string) error
	Stats(ctx context.Context, userID, sessionID string) provider.Stats
}

// Limiter gates new chat turns per user.
type Limiter interface {
	AllowChat(userID string) bool
}

// WebSocketHandler serves /ws/chat.
type WebSocketHandler struct {
	chat          Chatter
	limiter       Limiter
	repo          store.Repository
	sm            *SessionManager
	log           agent.ConversationLogger
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. limiter, repo and
// log may be nil.
func NewWebSocketHandler(chat Chatter, limiter Limiter, repo store.Repository, sm *SessionManager, log agent.ConversationLogger, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		chat:          chat,
		limiter:       limiter,
		repo:          repo,
		sm:            sm,
		log:           log,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// inbound is a client frame.
type inbound struct {
	Type    string             `json:"type"`
	Content string             `json:"content,omitempty"`
	Context domain.ChatContext `json:"context"`
}

// outbound is a server frame.
type outbound struct {
	Type     string             `json:"type"`
	Text     string             `json:"text,omitempty"`
	Response *domain.AIResponse `json:"response,omitempty"`
	Message  *domain.Message    `json:"message,omitempty"`
	Stats    *provider.Stats    `json:"stats,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(readLimit)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// One worker runs turns in arrival order so history order matches the
	// order the user sent messages in.
	queue := make(chan agent.ChatRequest, maxPendingTurns)
	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		for req := range queue {
			if ctx.Err() != nil {
				continue
			}
			h.runTurn(ctx, ws, req)
		}
	}()

	h.readLoop(ctx, ws, userID, sessionID, queue)
	cancel()
	close(queue)
	worker.Wait()
	slog.Info("Chat socket ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string, queue chan<- agent.ChatRequest) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(ctx, ws, outbound{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			if strings.TrimSpace(msg.Content) == "" {
				h.send(ctx, ws, outbound{Type: "error", Error: "message is required"})
				continue
			}
			if h.limiter != nil && !h.limiter.AllowChat(userID) {
				h.send(ctx, ws, outbound{Type: "error", Error: "rate limit exceeded"})
				continue
			}
			h.logUserMessage(userID, sessionID, msg.Content)
			req := agent.ChatRequest{Message: msg.Content, Context: msg.Context, UserID: userID, SessionID: sessionID}
			// A newer message interrupts the reply still streaming. The
			// interrupt happens before queueing so it can never hit req.
			h.chat.Interrupt(userID, sessionID)
			select {
			case queue <- req:
			default:
				h.send(ctx, ws, outbound{Type: "error", Error: "too many pending messages"})
			}
		case "reset":
			if err := h.chat.Reset(ctx, userID, sessionID); err != nil {
				slog.Error("Failed to reset chat session", "error", err, "user_id", userID)
				h.send(ctx, ws, outbound{Type: "error", Error: "failed to reset conversation"})
				continue
			}
			h.send(ctx, ws, outbound{Type: "reset"})
		case "stats":
			stats := h.chat.Stats(ctx, userID, sessionID)
			h.send(ctx, ws, outbound{Type: "stats", Stats: &stats})
		case "ping":
			h.send(ctx, ws, outbound{Type: "pong"})
		default:
			h.send(ctx, ws, outbound{Type: "error", Error: "unknown message type"})
		}

		h.touch(userID)
	}
}

func (h *WebSocketHandler) runTurn(ctx context.Context, ws *websocket.Conn, req agent.ChatRequest) {
	var last string
	for chunk, err := range h.chat.Chat(ctx, req) {
		if err != nil {
			if ctx.Err() == nil {
				h.send(ctx, ws, outbound{Type: "interrupted", Text: last})
			}
			return
		}
		last = chunk.Text
		var frame outbound
		switch chunk.Kind {
		case agent.ChunkFinal:
			frame = outbound{Type: "done", Text: chunk.Text, Response: chunk.Response}
			if chunk.Response != nil {
				msg := chunk.Response.AsMessage()
				frame.Message = &msg
			}
		default:
			frame = outbound{Type: "chunk", Text: chunk.Text}
		}
		if err := h.send(ctx, ws, frame); err != nil {
			return
		}
	}
	h.logAssistantMessage(req.UserID, req.SessionID, last)
}

func (h *WebSocketHandler) send(ctx context.Context, ws *websocket.Conn, v outbound) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}

// touch updates last seen asynchronously with timeout.
func (h *WebSocketHandler) touch(userID string) {
	if h.repo == nil {
		return
	}
	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.UpdateLastSeen(updateCtx, userID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "error", err)
		}
	}()
}

func (h *WebSocketHandler) logUserMessage(userID, sessionID, content string) {
	if h.log == nil {
		return
	}
	h.log.Log(agent.ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_ws",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: content,
	})
}

func (h *WebSocketHandler) logAssistantMessage(userID, sessionID, content string) {
	if h.log == nil {
		return
	}
	h.log.Log(agent.ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_ws",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: content,
	})
}
