package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/lovecleanup/internal/classifier"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/provider"
	"github.com/ashureev/lovecleanup/internal/session"
	"github.com/ashureev/lovecleanup/internal/store"
	"github.com/ashureev/lovecleanup/internal/stream"
)

// Service runs chat turns: it owns the live sessions, asks the provider
// chain for a reply and reveals it word by word.
type Service struct {
	chain    *provider.Chain
	sessions *session.Registry
	streamer *stream.Streamer
	inflight *stream.Inflight
	repo     store.Repository
	logger   *slog.Logger
}

// NewService wires a chat service. repo may be nil, in which case sessions
// live only in memory.
func NewService(chain *provider.Chain, sessions *session.Registry, streamer *stream.Streamer, repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chain:    chain,
		sessions: sessions,
		streamer: streamer,
		inflight: stream.NewInflight(),
		repo:     repo,
		logger:   logger,
	}
}

func keyFor(userID, sessionID string) session.Key {
	return session.Key{UserID: userID, SessionID: sessionID}
}

// Chat processes a user message and returns response chunks: a run of
// ChunkPartial prefixes followed by one ChunkFinal. A newer turn on the
// same session cancels the delivery of this one.
func (s *Service) Chat(ctx context.Context, req ChatRequest) iter.Seq2[*ChatChunk, error] {
	return func(yield func(*ChatChunk, error) bool) {
		key := keyFor(req.UserID, req.SessionID)
		ctx, done := s.inflight.Begin(ctx, key.String())
		defer done()

		sess := s.session(ctx, key)
		release, err := sess.Acquire(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer release()

		resp := s.chain.Respond(ctx, sess, strings.TrimSpace(req.Message), req.Context)
		s.persist(ctx, key, sess)

		deliverCtx, stop := context.WithCancel(ctx)
		defer stop()
		stopped := false
		_, err = s.streamer.Deliver(deliverCtx, resp.Text, func(partial string) {
			if stopped {
				return
			}
			if !yield(&ChatChunk{Kind: ChunkPartial, Text: partial}, nil) {
				stopped = true
				stop()
			}
		})
		if stopped {
			return
		}
		if err != nil {
			s.logger.Info("Reply delivery interrupted", "user_id", req.UserID, "session_id", req.SessionID, "error", err)
			yield(nil, err)
			return
		}
		yield(&ChatChunk{Kind: ChunkFinal, Text: resp.Text, Response: &resp}, nil)
	}
}

// session returns the live session for key, restoring a persisted one the
// first time it is seen in this process.
func (s *Service) session(ctx context.Context, key session.Key) *session.Session {
	sess, created := s.sessions.Get(key)
	if created && s.repo != nil {
		s.restore(ctx, key, sess)
	}
	return sess
}

func (s *Service) restore(ctx context.Context, key session.Key, sess *session.Session) {
	rec, err := s.repo.GetChatSession(ctx, key.UserID, key.SessionID)
	if err != nil {
		s.logger.Warn("failed to load chat session", "user_id", key.UserID, "session_id", key.SessionID, "error", err)
		return
	}
	if rec == nil {
		return
	}
	var history []domain.StoredMessage
	if rec.MessagesJSON != "" {
		if err := json.Unmarshal([]byte(rec.MessagesJSON), &history); err != nil {
			s.logger.Warn("discarding unreadable chat history", "user_id", key.UserID, "session_id", key.SessionID, "error", err)
			history = nil
		}
	}
	sess.Restore(session.Snapshot{
		History:      history,
		RequestCount: rec.RequestCount,
		ThreadHandle: rec.ThreadHandle,
		CreatedAt:    rec.CreatedAt,
	})
	s.logger.Info("Chat session restored", "user_id", key.UserID, "session_id", key.SessionID, "messages", len(history))
}

func (s *Service) persist(ctx context.Context, key session.Key, sess *session.Session) {
	if s.repo == nil {
		return
	}
	snap := sess.Snapshot()
	data, err := json.Marshal(snap.History)
	if err != nil {
		s.logger.Warn("failed to encode chat history", "error", err)
		return
	}
	rec := &domain.ChatSessionRecord{
		UserID:       key.UserID,
		SessionID:    key.SessionID,
		RequestCount: snap.RequestCount,
		ThreadHandle: snap.ThreadHandle,
		MessagesJSON: string(data),
		CreatedAt:    snap.CreatedAt,
		UpdatedAt:    time.Now(),
	}
	// A superseded turn still records its reply.
	if err := s.repo.UpsertChatSession(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to save chat session", "user_id", key.UserID, "session_id", key.SessionID, "error", err)
	}
}

// Reset clears the conversation for a tab and stops any reply in flight.
// It waits for the interrupted turn to finish so that turn cannot write
// its reply back into the cleared history or the store.
func (s *Service) Reset(ctx context.Context, userID, sessionID string) error {
	key := keyFor(userID, sessionID)
	s.inflight.Cancel(key.String())
	if sess, ok := s.sessions.Lookup(key); ok {
		release, err := sess.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("wait for turn: %w", err)
		}
		defer release()
		sess.Reset()
	}
	if s.repo != nil {
		if err := s.repo.DeleteChatSession(ctx, userID, sessionID); err != nil {
			return err
		}
	}
	s.logger.Info("Chat session reset", "user_id", userID, "session_id", sessionID)
	return nil
}

// Interrupt stops the reply currently streaming for a tab, if any.
func (s *Service) Interrupt(userID, sessionID string) bool {
	return s.inflight.Cancel(keyFor(userID, sessionID).String())
}

// History returns the retained conversation for a tab.
func (s *Service) History(ctx context.Context, userID, sessionID string) HistoryResponse {
	msgs := s.session(ctx, keyFor(userID, sessionID)).Window()
	return HistoryResponse{
		SessionID: sessionID,
		Stage:     string(classifier.StageForHistory(len(msgs))),
		Messages:  msgs,
	}
}

// Stats returns session counters and backend state for a tab.
func (s *Service) Stats(ctx context.Context, userID, sessionID string) provider.Stats {
	return s.chain.Stats(s.session(ctx, keyFor(userID, sessionID)))
}

// Backends reports the provider chain state.
func (s *Service) Backends() []provider.BackendStatus {
	return s.chain.Backends()
}

// ResetBackend re-enables a backend after a sticky failure.
func (s *Service) ResetBackend(name string) bool {
	return s.chain.ResetBackend(name)
}

// SelfTest sends a canned greeting through the chain.
func (s *Service) SelfTest(ctx context.Context) domain.AIResponse {
	return s.chain.SelfTest(ctx)
}

// ActiveDeliveries returns the number of replies currently streaming.
func (s *Service) ActiveDeliveries() int {
	return s.inflight.Active()
}

// Close releases resources.
func (s *Service) Close() {
	if s.chain != nil {
		if err := s.chain.Close(); err != nil {
			s.logger.Warn("failed to close provider chain", "error", err)
		}
	}
}
