package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/lovecleanup/internal/cleanup"
	"github.com/ashureev/lovecleanup/internal/confirm"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/identity"
	"github.com/ashureev/lovecleanup/internal/store"
)

const (
	maxActionBodySize = 16 << 10
	commitTimeout     = 2 * time.Minute
	defaultRunsLimit  = 20
	maxRunsLimit      = 100
)

// Event kinds sent through the Notifier.
const (
	NotifyCleanupProgress = "cleanup_progress"
	NotifyCleanupDone     = "cleanup_done"
	NotifyConfirmation    = "confirmation"
)

// ProgressPayload is sent with NotifyCleanupProgress.
type ProgressPayload struct {
	ConfirmationID string          `json:"confirmation_id"`
	Category       domain.Category `json:"category"`
	Label          string          `json:"label"`
	Percent        int             `json:"percent"`
}

// Notifier pushes server-initiated events to a user's tab.
type Notifier interface {
	Notify(userID, sessionID, kind string, payload any)
}

// CleanupHandler serves the scan, confirmation and commit endpoints.
type CleanupHandler struct {
	repo          store.Repository
	scanner       *cleanup.Scanner
	executor      *cleanup.Executor
	confirmations *confirm.Registry
	notifier      Notifier
}

// NewCleanupHandler creates a cleanup handler. notifier may be nil.
func NewCleanupHandler(repo store.Repository, scanner *cleanup.Scanner, executor *cleanup.Executor, confirmations *confirm.Registry, notifier Notifier) *CleanupHandler {
	return &CleanupHandler{
		repo:          repo,
		scanner:       scanner,
		executor:      executor,
		confirmations: confirmations,
		notifier:      notifier,
	}
}

// RegisterRoutes registers cleanup routes.
func (h *CleanupHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cleanup", func(r chi.Router) {
		r.Post("/scan", h.Scan)
		r.Get("/runs", h.ListRuns)
		r.Route("/confirmations", func(r chi.Router) {
			r.Post("/", h.CreateConfirmation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConfirmation)
				r.Post("/understood", h.SetUnderstood)
				r.Post("/phrase", h.SetPhrase)
				r.Post("/advance", h.Advance)
				r.Post("/back", h.Back)
				r.Post("/cancel", h.Cancel)
				r.Post("/commit", h.Commit)
			})
		})
	})
}

// Scan handles POST /api/cleanup/scan.
func (h *CleanupHandler) Scan(w http.ResponseWriter, r *http.Request) {
	targets, err := h.scanner.Scan(r.Context())
	if err != nil {
		Error(w, http.StatusServiceUnavailable, "scan interrupted")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"targets": targets, "total_items": sumTargets(targets)})
}

type createConfirmationRequest struct {
	Targets []domain.CleanupTarget `json:"targets"`
}

// CreateConfirmation handles POST /api/cleanup/confirmations. Without
// targets in the body a fresh scan provides them.
func (h *CleanupHandler) CreateConfirmation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createConfirmationRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	targets := req.Targets
	if len(targets) == 0 {
		scanned, err := h.scanner.Scan(r.Context())
		if err != nil {
			Error(w, http.StatusServiceUnavailable, "scan interrupted")
			return
		}
		targets = scanned
	}
	targets, err := normalizeTargets(targets)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.confirmations.Create(userID, targets)
	slog.Info("Confirmation created", "user_id", userID, "confirmation_id", s.ID(), "total_items", s.TotalItems())
	JSON(w, http.StatusCreated, s.View())
}

// GetConfirmation handles GET /api/cleanup/confirmations/{id}.
func (h *CleanupHandler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.View())
}

// SetUnderstood handles POST .../understood with {"understood": bool}.
func (h *CleanupHandler) SetUnderstood(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Understood bool `json:"understood"`
	}
	if !decodeOptionalBody(w, r, &body) {
		return
	}
	h.respondAction(w, r, s, s.SetUnderstood(body.Understood))
}

// SetPhrase handles POST .../phrase with {"text": string}.
func (h *CleanupHandler) SetPhrase(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if !decodeOptionalBody(w, r, &body) {
		return
	}
	h.respondAction(w, r, s, s.SetTypedConfirmation(body.Text))
}

// Advance handles POST .../advance.
func (h *CleanupHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAction(w, r, s, s.Advance())
}

// Back handles POST .../back.
func (h *CleanupHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAction(w, r, s, s.Back())
}

// Cancel handles POST .../cancel. A cancelled confirmation is dropped from
// the registry, so later actions on it answer 404.
func (h *CleanupHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	accepted := s.Cancel()
	if accepted {
		h.confirmations.Discard(s.ID())
	}
	h.respondAction(w, r, s, accepted)
}

// Commit handles POST .../commit. It runs the cleanup, streams progress to
// the tab's event stream and records the run. The cleanup keeps running if
// the client disconnects.
func (h *CleanupHandler) Commit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), commitTimeout)
	defer cancel()

	labels := make(map[domain.Category]string)
	for _, t := range s.View().Targets {
		labels[t.Category] = t.Label
	}
	exec := confirm.ExecutorFunc(func(ctx context.Context, categories []domain.Category) []domain.CleanupResult {
		return h.executor.Run(ctx, categories, func(c domain.Category, percent int) {
			h.notify(userID, sessionID, NotifyCleanupProgress, ProgressPayload{
				ConfirmationID: s.ID(),
				Category:       c,
				Label:          labels[c],
				Percent:        percent,
			})
		})
	})

	results, committed := s.Commit(ctx, exec)
	if !committed {
		JSON(w, http.StatusConflict, map[string]any{"ok": false, "confirmation": s.View()})
		return
	}

	run := &domain.CleanupRun{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConfirmationID: s.ID(),
		Results:        results,
		CreatedAt:      time.Now(),
	}
	if err := h.repo.SaveCleanupRun(ctx, run); err != nil {
		slog.Error("Failed to record cleanup run", "error", err, "user_id", userID, "confirmation_id", s.ID())
	}
	slog.Info("Cleanup committed",
		"user_id", userID,
		"confirmation_id", s.ID(),
		"items_processed", run.TotalProcessed(),
	)
	h.notify(userID, sessionID, NotifyCleanupDone, run)
	h.confirmations.Discard(s.ID())

	JSON(w, http.StatusOK, map[string]any{"ok": true, "run": run, "confirmation": s.View()})
}

// ListRuns handles GET /api/cleanup/runs?limit=n.
func (h *CleanupHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.repo.ListCleanupRuns(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to list cleanup runs", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.CleanupRun{}
	}
	JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// PruneConfirmations drops confirmations older than maxAge.
func (h *CleanupHandler) PruneConfirmations(maxAge time.Duration, now time.Time) {
	if n := h.confirmations.Prune(maxAge, now); n > 0 {
		slog.Info("Pruned stale confirmations", "count", n)
	}
}

func (h *CleanupHandler) lookup(w http.ResponseWriter, r *http.Request) (*confirm.Session, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	s, err := h.confirmations.Get(userID, chi.URLParam(r, "id"))
	if errors.Is(err, confirm.ErrNotFound) {
		Error(w, http.StatusNotFound, "confirmation not found")
		return nil, false
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return s, true
}

// respondAction reports a state machine action. Rejected actions leave the
// session untouched and answer 409 with the current view.
func (h *CleanupHandler) respondAction(w http.ResponseWriter, r *http.Request, s *confirm.Session, accepted bool) {
	view := s.View()
	if !accepted {
		JSON(w, http.StatusConflict, map[string]any{"ok": false, "confirmation": view})
		return
	}
	h.notify(identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()), NotifyConfirmation, view)
	JSON(w, http.StatusOK, map[string]any{"ok": true, "confirmation": view})
}

func (h *CleanupHandler) notify(userID, sessionID, kind string, payload any) {
	if h.notifier != nil {
		h.notifier.Notify(userID, sessionID, kind, payload)
	}
}

// decodeOptionalBody decodes a JSON body when one is present. It writes the
// error response and returns false on malformed input.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxActionBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

var errUnknownCategory = errors.New("unknown cleanup category")

// normalizeTargets rejects unknown or repeated categories and negative
// counts and fills in missing labels.
func normalizeTargets(targets []domain.CleanupTarget) ([]domain.CleanupTarget, error) {
	known := make(map[domain.Category]bool, len(domain.Categories))
	for _, c := range domain.Categories {
		known[c] = true
	}
	seen := make(map[domain.Category]bool, len(targets))
	out := make([]domain.CleanupTarget, 0, len(targets))
	for _, t := range targets {
		if !known[t.Category] {
			return nil, errUnknownCategory
		}
		if seen[t.Category] {
			return nil, fmt.Errorf("duplicate cleanup category %q", t.Category)
		}
		seen[t.Category] = true
		if t.Count < 0 {
			return nil, errors.New("target count must be >= 0")
		}
		if t.Label == "" {
			t.Label = t.Category.Label()
		}
		out = append(out, t)
	}
	return out, nil
}

func sumTargets(targets []domain.CleanupTarget) int {
	total := 0
	for _, t := range targets {
		total += t.Count
	}
	return total
}
