package agent

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/ashureev/lovecleanup/internal/api"
	"github.com/ashureev/lovecleanup/internal/config"
	"github.com/ashureev/lovecleanup/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KiB).
const defaultMaxRequestBodySize = 64 << 10

// SSEConnection represents a single SSE client connection.
type SSEConnection struct {
	ID          int64
	UserID      string
	SessionID   string
	EventID     int64
	ConnectedAt time.Time
	LastEventID int64
	Writer      http.ResponseWriter
	Flusher     http.Flusher
	Done        chan struct{}
	mu          sync.Mutex
}

// SSEMessageQueue buffers events for disconnected clients, sharded per session.
// Each session gets its own bounded list so one user's burst cannot evict
// events belonging to another user.
type SSEMessageQueue struct {
	mu      sync.RWMutex
	queues  map[string]*list.List
	maxSize int
}

// QueuedMessage represents an event in the queue.
type QueuedMessage struct {
	EventID   int64
	UserID    string
	SessionID string
	Event     *Event
	Timestamp time.Time
}

// NewSSEMessageQueue creates a new per-session message queue.
func NewSSEMessageQueue(maxSize int) *SSEMessageQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &SSEMessageQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

// Enqueue adds an event to the per-session queue.
func (q *SSEMessageQueue) Enqueue(userID, sessionID string, eventID int64, ev *Event) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[key]
	if !ok {
		l = list.New()
		q.queues[key] = l
	}
	l.PushBack(&QueuedMessage{
		EventID:   eventID,
		UserID:    userID,
		SessionID: sessionID,
		Event:     ev,
		Timestamp: time.Now(),
	})
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

// GetMissedMessages retrieves events after a specific event ID for a session.
func (q *SSEMessageQueue) GetMissedMessages(userID, sessionID string, afterEventID int64) []*QueuedMessage {
	key := sseSessionKey(userID, sessionID)
	q.mu.RLock()
	defer q.mu.RUnlock()

	l, ok := q.queues[key]
	if !ok {
		return nil
	}
	var missed []*QueuedMessage
	for e := l.Front(); e != nil; e = e.Next() {
		msg := e.Value.(*QueuedMessage)
		if msg.EventID > afterEventID {
			missed = append(missed, msg)
		}
	}
	return missed
}

// Prune removes the queue for a session.
func (q *SSEMessageQueue) Prune(userID, sessionID string) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, key)
}

func sseSessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// RateLimiter is a per-user token bucket.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	every    rate.Limit
	burst    int
	window   time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows limit requests per window per key and starts the
// background eviction goroutine. Call Close to stop it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.every, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = time.Now()
	r.mu.Unlock()
	return e.limiter.Allow()
}

// evictLoop drops limiters idle for longer than a window. An idle limiter
// has refilled completely, so forgetting it changes nothing.
func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for key, e := range r.limiters {
				if now.Sub(e.lastSeen) > r.window {
					delete(r.limiters, key)
				}
			}
			r.mu.Unlock()
		}
	}
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Handler handles chat HTTP requests and the per-session event stream.
type Handler struct {
	agent          *Service
	rateLimiter    *RateLimiter
	broadcastChan  chan *Event
	sseConnections map[string]map[int64]*SSEConnection
	messageQueue   *SSEMessageQueue
	connectionsMu  sync.RWMutex
	eventCounter   int64
	connectionID   int64
	counterMu      sync.Mutex
	done           chan struct{}
	closeOnce      sync.Once
	log            ConversationLogger
	cfg            *config.Config
}

// NewHandler creates a chat handler and starts its broadcaster goroutine.
// cfg may be nil, in which case defaults apply.
func NewHandler(svc *Service, conversationLogger ConversationLogger, cfg *config.Config) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}

	rateLimitRequests := 20
	rateLimitWindow := time.Minute
	replay := 100
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		replay = cfg.SSE.ReplayBuffer
	}

	h := &Handler{
		agent:          svc,
		rateLimiter:    NewRateLimiter(rateLimitRequests, rateLimitWindow),
		broadcastChan:  make(chan *Event, 256),
		sseConnections: make(map[string]map[int64]*SSEConnection),
		messageQueue:   NewSSEMessageQueue(replay),
		done:           make(chan struct{}),
		log:            conversationLogger,
		cfg:            cfg,
	}
	go h.broadcastLoop()
	return h
}

// RegisterRoutes registers chat routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Post("/reset", h.HandleReset)
		r.Get("/stats", h.HandleStats)
		r.Get("/history", h.HandleHistory)
		r.Get("/providers", h.HandleProviders)
		r.Post("/providers/{name}/reset", h.HandleResetProvider)
		r.Post("/test", h.HandleSelfTest)
	})
	r.Get("/api/events", h.HandleStream)
}

// HandleChat handles POST /api/chat. The reply is streamed as SSE: "chunk"
// events carry growing prefixes, one "message" event carries the final
// response.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.AllowChat(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	maxBodySize := int64(defaultMaxRequestBodySize)
	if h.cfg != nil {
		maxBodySize = h.cfg.SSE.MaxRequestBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	req.UserID = userID
	req.SessionID = sessionID
	reqID := chiMiddleware.GetReqID(r.Context())

	slog.Info("Chat request",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(req.Message),
	)
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: req.Message,
		Content:    cleanForReadability(req.Message),
		Meta: map[string]any{
			"request_id": reqID,
			"mood":       req.Context.UserMood,
			"stage":      req.Context.Stage,
		},
	})

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	summary := turnSummary{channel: "chat_http", requestID: reqID}
	for chunk, err := range h.agent.Chat(r.Context(), req) {
		if err != nil {
			summary.partial = true
			summary.streamErr = err.Error()
			slog.Warn("Chat stream ended early", "user_id", userID, "session_id", sessionID, "error", err)
			if writeErr := writeSSE(w, "error", mustJSON(map[string]string{"error": err.Error()})); writeErr != nil {
				slog.Warn("failed to write SSE error event", "error", writeErr)
			}
			flusher.Flush()
			break
		}

		var event string
		var payload any
		switch chunk.Kind {
		case ChunkFinal:
			summary.final = chunk.Response
			event, payload = "message", chunk.Response
		default:
			summary.chunks++
			event, payload = "chunk", map[string]string{"text": chunk.Text}
		}
		summary.text = chunk.Text

		if err := writeSSE(w, event, mustJSON(payload)); err != nil {
			slog.Warn("failed to write SSE event", "event", event, "error", err)
			summary.partial = true
			summary.streamErr = err.Error()
			break
		}
		flusher.Flush()
	}
	h.logAssistantMessage(userID, sessionID, summary)
}

// turnSummary collects what was delivered for the conversation log.
type turnSummary struct {
	channel   string
	requestID string
	text      string
	chunks    int
	partial   bool
	streamErr string
	final     any
}

func (h *Handler) logAssistantMessage(userID, sessionID string, s turnSummary) {
	meta := map[string]any{
		"stream_chunks": s.chunks,
		"partial":       s.partial,
		"stream_error":  s.streamErr,
		"request_id":    s.requestID,
	}
	if s.final != nil {
		meta["response"] = s.final
	}
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    s.channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: s.text,
		Content:    cleanForReadability(s.text),
		Meta:       meta,
	})
}

// HandleReset handles POST /api/chat/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.agent.Reset(r.Context(), userID, sessionID); err != nil {
		slog.Error("Failed to reset chat session", "error", err, "user_id", userID, "session_id", sessionID)
		api.Error(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}
	h.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "chat_http",
		Direction: "outbound",
		EventType: "chat_reset",
	})
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleStats handles GET /api/chat/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	api.JSON(w, http.StatusOK, h.agent.Stats(r.Context(), userID, identity.SessionIDFromContext(r.Context())))
}

// HandleHistory handles GET /api/chat/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	api.JSON(w, http.StatusOK, h.agent.History(r.Context(), userID, identity.SessionIDFromContext(r.Context())))
}

// HandleProviders handles GET /api/chat/providers.
func (h *Handler) HandleProviders(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{"backends": h.agent.Backends()})
}

// HandleResetProvider handles POST /api/chat/providers/{name}/reset.
func (h *Handler) HandleResetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.agent.ResetBackend(name) {
		api.Error(w, http.StatusNotFound, "unknown provider")
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset", "provider": name})
}

// HandleSelfTest handles POST /api/chat/test.
func (h *Handler) HandleSelfTest(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.agent.SelfTest(r.Context()))
}

// Notify queues an event for the user's tab. It never blocks; events are
// dropped once the handler is closed or the queue is full.
func (h *Handler) Notify(userID, sessionID, kind string, payload any) {
	ev := &Event{
		Type:      EventType(kind),
		UserID:    userID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case <-h.done:
	case h.broadcastChan <- ev:
	default:
		slog.Warn("[BROADCAST] Queue full, dropping event", "user_id", userID, "type", kind)
	}
}

// AllowChat reports whether userID may start another chat turn. The SSE
// and websocket chat paths share this budget.
func (h *Handler) AllowChat(userID string) bool {
	return h.rateLimiter.Allow(userID)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.rateLimiter.Close()
		if h.agent != nil {
			h.agent.Close()
		}
		if h.log != nil {
			if err := h.log.Close(); err != nil {
				slog.Warn("failed to close conversation logger", "error", err)
			}
		}
	})
}

// GetService returns the underlying chat service.
func (h *Handler) GetService() *Service {
	return h.agent
}

// broadcastLoop distributes events to connected clients.
func (h *Handler) broadcastLoop() {
	slog.Debug("[BROADCAST] Broadcast loop started")
	for {
		select {
		case <-h.done:
			slog.Debug("[BROADCAST] Broadcast loop shutting down")
			return
		case ev := <-h.broadcastChan:
			if ev == nil {
				continue
			}

			h.counterMu.Lock()
			h.eventCounter++
			eventID := h.eventCounter
			h.counterMu.Unlock()

			h.messageQueue.Enqueue(ev.UserID, ev.SessionID, eventID, ev)

			sessionKey := sseSessionKey(ev.UserID, ev.SessionID)
			h.connectionsMu.RLock()
			userConns := h.sseConnections[sessionKey]
			conns := make([]*SSEConnection, 0, len(userConns))
			for _, c := range userConns {
				conns = append(conns, c)
			}
			h.connectionsMu.RUnlock()

			for _, conn := range conns {
				h.sendToConnection(conn, eventID, ev)
			}
		}
	}
}

// sendToConnection sends an event to a specific connection.
func (h *Handler) sendToConnection(conn *SSEConnection, eventID int64, ev *Event) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.Done:
		return
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("[SEND] Failed to marshal SSE event", "error", err, "conn_id", conn.ID)
		return
	}
	if err := writeSSEWithID(conn.Writer, eventID, string(ev.Type), string(data)); err != nil {
		slog.Error("[SEND] Failed to write to SSE connection",
			"error", err,
			"conn_id", conn.ID,
			"user_id", conn.UserID,
		)
		return
	}
	conn.Flusher.Flush()
	conn.EventID = eventID
}

// HandleStream handles GET /api/events, the server-initiated event stream
// for cleanup progress. Reconnecting clients send Last-Event-ID to replay
// what they missed.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	streamKey := sseSessionKey(userID, sessionID)

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	retryDelay := 5 * time.Second
	if h.cfg != nil && h.cfg.SSE.RetryDelay > 0 {
		retryDelay = h.cfg.SSE.RetryDelay
	}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", retryDelay.Milliseconds()); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	h.counterMu.Lock()
	h.connectionID++
	connID := h.connectionID
	h.counterMu.Unlock()

	conn := &SSEConnection{
		ID:          connID,
		UserID:      userID,
		SessionID:   sessionID,
		ConnectedAt: time.Now(),
		LastEventID: lastEventID,
		Writer:      w,
		Flusher:     flusher,
		Done:        make(chan struct{}),
	}

	h.connectionsMu.Lock()
	if _, exists := h.sseConnections[streamKey]; !exists {
		h.sseConnections[streamKey] = make(map[int64]*SSEConnection)
	}
	h.sseConnections[streamKey][connID] = conn
	h.connectionsMu.Unlock()

	defer func() {
		conn.mu.Lock()
		close(conn.Done)
		conn.mu.Unlock()

		h.connectionsMu.Lock()
		if userConns, exists := h.sseConnections[streamKey]; exists {
			delete(userConns, connID)
			if len(userConns) == 0 {
				delete(h.sseConnections, streamKey)
			}
		}
		h.connectionsMu.Unlock()
		slog.Info("SSE connection closed", "user_id", userID, "session_id", sessionID, "conn_id", connID)
	}()

	if lastEventID > 0 {
		for _, msg := range h.messageQueue.GetMissedMessages(userID, sessionID, lastEventID) {
			h.sendToConnection(conn, msg.EventID, msg.Event)
		}
	}

	conn.mu.Lock()
	err := writeSSE(w, "connected", mustJSON(map[string]any{"status": "connected", "session_id": sessionID}))
	if err == nil {
		flusher.Flush()
	}
	conn.mu.Unlock()
	if err != nil {
		slog.Warn("failed to write SSE connected event", "error", err, "user_id", userID)
		return
	}

	keepaliveInterval := 15 * time.Second
	if h.cfg != nil && h.cfg.SSE.KeepAlive > 0 {
		keepaliveInterval = h.cfg.SSE.KeepAlive
	}
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-keepalive.C:
			conn.mu.Lock()
			err := writeSSE(w, "ping", `{"status":"alive"}`)
			if err == nil {
				flusher.Flush()
			}
			conn.mu.Unlock()
			if err != nil {
				slog.Warn("failed to write SSE keepalive ping", "error", err, "user_id", userID)
				return
			}
		}
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to serialize response"}`
	}
	return string(data)
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
