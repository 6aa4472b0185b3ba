package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/lovecleanup/internal/classifier"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/responder"
	"github.com/ashureev/lovecleanup/internal/session"
)

const (
	// DefaultAttemptTimeout bounds a single backend call.
	DefaultAttemptTimeout = 45 * time.Second

	sessionLimitText = "Atingimos o limite de conversas para proteger a cota. Que tal reiniciar nossa conversa? 😊"
	// FallbackProvider names replies produced by the local responder.
	FallbackProvider = "local"
	// SelfTestMessage is sent by SelfTest.
	SelfTestMessage = "Olá, você está funcionando?"
)

var sessionLimitReplies = []string{"Reiniciar conversa", "Entendi", "Continuar em modo demo"}

// Descriptor places a backend in the chain. Lower priority is tried first.
type Descriptor struct {
	Backend  Backend
	Priority int
}

type entry struct {
	backend  Backend
	priority int

	mu        sync.Mutex
	readiness Readiness
	initErr   error
	sticky    error
}

func (e *entry) state() (Readiness, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readiness, e.sticky
}

// Options tune a Chain.
type Options struct {
	AttemptTimeout time.Duration
	Fallback       *responder.Generator
	Logger         *slog.Logger
}

// Chain tries backends in priority order and falls back to the local
// responder. It never returns an error to the caller.
type Chain struct {
	entries        []*entry
	attemptTimeout time.Duration
	fallback       *responder.Generator
	logger         *slog.Logger
}

// NewChain orders descriptors by priority. Backends that need no setup are
// ready immediately; the rest wait for Init.
func NewChain(descriptors []Descriptor, opts Options) *Chain {
	c := &Chain{
		attemptTimeout: opts.AttemptTimeout,
		fallback:       opts.Fallback,
		logger:         opts.Logger,
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = DefaultAttemptTimeout
	}
	if c.fallback == nil {
		c.fallback = responder.New(nil)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for _, d := range descriptors {
		if d.Backend == nil {
			continue
		}
		e := &entry{backend: d.Backend, priority: d.Priority}
		if _, ok := d.Backend.(Initializer); !ok {
			e.readiness = Ready
		}
		c.entries = append(c.entries, e)
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].priority < c.entries[j].priority
	})
	return c
}

// Init runs every backend initializer concurrently. A failing backend is
// marked Failed and skipped; Init itself only fails when ctx ends.
func (c *Chain) Init(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range c.entries {
		iz, ok := e.backend.(Initializer)
		if !ok {
			continue
		}
		g.Go(func() error {
			err := iz.Init(gctx)
			e.mu.Lock()
			if err != nil {
				e.readiness = Failed
				e.initErr = err
			} else {
				e.readiness = Ready
				e.initErr = nil
			}
			e.mu.Unlock()
			if err != nil {
				c.logger.Warn("Backend unavailable", "backend", e.backend.Name(), "error", err)
			} else {
				c.logger.Info("Backend ready", "backend", e.backend.Name())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close releases backends that hold resources.
func (c *Chain) Close() error {
	var errs []error
	for _, e := range c.entries {
		if closer, ok := e.backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", e.backend.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Respond runs one chat turn against sess.
func (c *Chain) Respond(ctx context.Context, sess *session.Session, message string, cc domain.ChatContext) domain.AIResponse {
	cls := classifier.Classify(message)

	if sess.RequestsRemaining() <= 0 || !sess.TryConsume() {
		c.logger.Info("Session request limit reached", "limit", sess.Limit())
		kind := classifier.DetectResponseType(message)
		return domain.AIResponse{
			ID:           uuid.NewString(),
			Text:         sessionLimitText,
			Type:         kind,
			QuickReplies: slices.Clone(sessionLimitReplies),
			Timestamp:    time.Now(),
			Error:        domain.ErrorTagSessionLimit,
			Provider:     FallbackProvider,
			Mood:         cls.Mood,
			Intent:       cls.Intent,
		}
	}

	historyLen := sess.Len()
	sess.Append(domain.RoleUser, message)
	req := buildRequest(message, cc, sess.Window(), sess)

	resp := domain.AIResponse{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Mood:      cls.Mood,
		Intent:    cls.Intent,
	}

	var stickySeen error
	for _, e := range c.entries {
		readiness, sticky := e.state()
		if readiness != Ready {
			continue
		}
		if sticky != nil {
			stickySeen = firstErr(stickySeen, sticky)
			continue
		}

		text, err := c.attempt(ctx, e, req)
		if err != nil {
			if IsSticky(err) {
				e.mu.Lock()
				e.sticky = err
				e.mu.Unlock()
				stickySeen = firstErr(stickySeen, err)
				c.logger.Warn("Backend disabled", "backend", e.backend.Name(), "error", err)
			} else {
				c.logger.Debug("Backend attempt failed", "backend", e.backend.Name(), "error", err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		kind := classifier.DetectResponseType(message)
		resp.Text = text
		resp.Type = kind
		resp.QuickReplies = responder.QuickReplies(kind)
		resp.Provider = e.backend.Name()
		sess.Append(domain.RoleAssistant, text)
		return resp
	}

	out := c.fallback.Generate(responder.Input{
		Text:       message,
		Mood:       cls.Mood,
		Intent:     cls.Intent,
		HistoryLen: historyLen,
		Context:    cc,
	})
	resp.Text = out.Text
	resp.Type = out.Type
	resp.QuickReplies = out.QuickReplies
	resp.Provider = FallbackProvider
	resp.Error = stickyTag(stickySeen)
	sess.Append(domain.RoleAssistant, out.Text)
	return resp
}

// attempt calls one backend under its own timeout. A panic counts as a
// failed attempt.
func (c *Chain) attempt(ctx context.Context, e *entry, req Request) (text string, err error) {
	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrRemoteUnavailable, e.backend.Name(), r)
		}
	}()

	text, err = e.backend.Generate(actx, req)
	if err != nil {
		return "", err
	}
	text = CleanResponse(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned empty text", ErrMalformedResponse, e.backend.Name())
	}
	return text, nil
}

func firstErr(cur, next error) error {
	if cur != nil {
		return cur
	}
	return next
}

func stickyTag(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExhausted):
		return domain.ErrorTagQuotaExceeded
	case errors.Is(err, ErrInvalidCredential):
		return domain.ErrorTagInvalidKey
	default:
		return ""
	}
}

// ResetBackend clears the sticky state of the named backend.
func (c *Chain) ResetBackend(name string) bool {
	for _, e := range c.entries {
		if e.backend.Name() != name {
			continue
		}
		e.mu.Lock()
		had := e.sticky != nil
		e.sticky = nil
		e.mu.Unlock()
		if had {
			c.logger.Info("Backend re-enabled", "backend", name)
		}
		return true
	}
	return false
}

// BackendStatus describes one backend for stats output.
type BackendStatus struct {
	Name      string    `json:"name"`
	Priority  int       `json:"priority"`
	Readiness Readiness `json:"readiness"`
	Sticky    string    `json:"sticky,omitempty"`
	InitError string    `json:"init_error,omitempty"`
}

// Stats is a snapshot of a session and the chain.
type Stats struct {
	RequestCount       int             `json:"requestCount"`
	RequestsRemaining  int             `json:"requestsRemaining"`
	ConversationLength int             `json:"conversationLength"`
	ThreadHandle       string          `json:"threadHandle,omitempty"`
	Backends           []BackendStatus `json:"backends"`
}

// Backends reports the state of every backend.
func (c *Chain) Backends() []BackendStatus {
	out := make([]BackendStatus, 0, len(c.entries))
	for _, e := range c.entries {
		e.mu.Lock()
		st := BackendStatus{
			Name:      e.backend.Name(),
			Priority:  e.priority,
			Readiness: e.readiness,
		}
		if e.sticky != nil {
			st.Sticky = stickyTag(e.sticky)
		}
		if e.initErr != nil {
			st.InitError = e.initErr.Error()
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Stats combines the session counters with backend state.
func (c *Chain) Stats(sess *session.Session) Stats {
	return Stats{
		RequestCount:       sess.RequestCount(),
		RequestsRemaining:  sess.RequestsRemaining(),
		ConversationLength: sess.Len(),
		ThreadHandle:       sess.ThreadHandle(),
		Backends:           c.Backends(),
	}
}

// SelfTest sends a greeting through a throwaway session.
func (c *Chain) SelfTest(ctx context.Context) domain.AIResponse {
	return c.Respond(ctx, session.New(1, 2), SelfTestMessage, domain.ChatContext{})
}
