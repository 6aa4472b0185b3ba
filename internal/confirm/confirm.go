// Package confirm implements the three-stage gate in front of a bulk delete.
//
// A Session walks RiskDisclosure -> TypedConfirmation -> FinalCommit. Only
// FinalCommit can commit, and the only way into FinalCommit is through the
// TypedConfirmation gate. Actions that are not allowed in the current state
// are no-ops that report false.
package confirm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Phrase must be typed, after upper-casing, to pass the confirmation gate.
const Phrase = "DELETAR TUDO"

// Stage is a step of the wizard.
type Stage int

const (
	RiskDisclosure Stage = iota
	TypedConfirmation
	FinalCommit
)

const stageCount = 3

var stageTitles = [stageCount]string{
	"Compreensão dos Riscos",
	"Confirmação Final",
	"Última Chance",
}

// Title returns the heading shown for the stage.
func (s Stage) Title() string {
	if s < 0 || int(s) >= stageCount {
		return ""
	}
	return stageTitles[s]
}

func (s Stage) String() string {
	switch s {
	case RiskDisclosure:
		return "risk_disclosure"
	case TypedConfirmation:
		return "typed_confirmation"
	case FinalCommit:
		return "final_commit"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome is the lifecycle state of a Session.
type Outcome string

const (
	Pending   Outcome = "pending"
	Cancelled Outcome = "cancelled"
	Committed Outcome = "committed"
)

// Executor performs the irreversible cleanup.
type Executor interface {
	Execute(ctx context.Context, categories []domain.Category) []domain.CleanupResult
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, categories []domain.Category) []domain.CleanupResult

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, categories []domain.Category) []domain.CleanupResult {
	return f(ctx, categories)
}

// Session is one proposed destructive action.
type Session struct {
	mu         sync.Mutex
	id         string
	stage      Stage
	understood bool
	typed      string
	targets    []domain.CleanupTarget
	outcome    Outcome
	results    []domain.CleanupResult
	createdAt  time.Time
}

// New creates a session at RiskDisclosure for the given targets.
func New(targets []domain.CleanupTarget) *Session {
	return &Session{
		id:        uuid.NewString(),
		stage:     RiskDisclosure,
		targets:   slices.Clone(targets),
		outcome:   Pending,
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Outcome returns the lifecycle state.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// SetUnderstood records the risk acknowledgement checkbox.
// It is accepted only while the session waits at TypedConfirmation.
func (s *Session) SetUnderstood(checked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != Pending || s.stage != TypedConfirmation {
		return false
	}
	s.understood = checked
	return true
}

// SetTypedConfirmation records the typed phrase, upper-cased.
// It is accepted only while the session waits at TypedConfirmation.
func (s *Session) SetTypedConfirmation(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != Pending || s.stage != TypedConfirmation {
		return false
	}
	s.typed = strings.ToUpper(text)
	return true
}

// CanAdvance reports whether Advance would move forward.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAdvanceLocked()
}

func (s *Session) canAdvanceLocked() bool {
	if s.outcome != Pending {
		return false
	}
	switch s.stage {
	case RiskDisclosure:
		return true
	case TypedConfirmation:
		return s.understood && s.typed == Phrase
	default:
		return false
	}
}

// Advance moves to the next stage when its gate holds.
func (s *Session) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canAdvanceLocked() {
		return false
	}
	s.stage++
	return true
}

// Back returns to the previous stage. Entered data is kept.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != Pending || s.stage == RiskDisclosure {
		return false
	}
	s.stage--
	return true
}

// Cancel abandons the session from any pending stage.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != Pending {
		return false
	}
	s.outcome = Cancelled
	return true
}

// Commit runs exec over the target categories. It only acts at FinalCommit
// and marks the session Committed before exec is called, so exec runs at
// most once per session.
func (s *Session) Commit(ctx context.Context, exec Executor) ([]domain.CleanupResult, bool) {
	s.mu.Lock()
	if s.outcome != Pending || s.stage != FinalCommit || exec == nil {
		s.mu.Unlock()
		return nil, false
	}
	s.outcome = Committed
	categories := make([]domain.Category, 0, len(s.targets))
	for _, t := range s.targets {
		categories = append(categories, t.Category)
	}
	s.mu.Unlock()

	results := exec.Execute(ctx, categories)

	s.mu.Lock()
	s.results = slices.Clone(results)
	s.mu.Unlock()
	return results, true
}

// TotalItems sums the target counts.
func (s *Session) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

func (s *Session) totalLocked() int {
	total := 0
	for _, t := range s.targets {
		total += t.Count
	}
	return total
}

// View is a read-only rendering of a session.
type View struct {
	ID                string                 `json:"id"`
	Stage             int                    `json:"stage"`
	StageName         string                 `json:"stage_name"`
	Title             string                 `json:"title"`
	Step              string                 `json:"step"`
	Understood        bool                   `json:"understood"`
	TypedConfirmation string                 `json:"typed_confirmation"`
	CanProceed        bool                   `json:"can_proceed"`
	Targets           []domain.CleanupTarget `json:"targets"`
	TotalItems        int                    `json:"total_items"`
	Outcome           Outcome                `json:"outcome"`
	Results           []domain.CleanupResult `json:"results,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:                s.id,
		Stage:             int(s.stage),
		StageName:         s.stage.String(),
		Title:             s.stage.Title(),
		Step:              fmt.Sprintf("%d de %d", int(s.stage)+1, stageCount),
		Understood:        s.understood,
		TypedConfirmation: s.typed,
		CanProceed:        s.canAdvanceLocked() || (s.outcome == Pending && s.stage == FinalCommit),
		Targets:           slices.Clone(s.targets),
		TotalItems:        s.totalLocked(),
		Outcome:           s.outcome,
		Results:           slices.Clone(s.results),
		CreatedAt:         s.createdAt,
	}
}
