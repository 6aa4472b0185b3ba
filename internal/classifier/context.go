package classifier

import (
	"strings"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Signals is a bit set of secondary emotional cues.
type Signals uint8

const (
	HighIntensity Signals = 1 << iota
	TimeFocused
	RelationshipFocused
)

// Has reports whether every bit of flag is set.
func (s Signals) Has(flag Signals) bool {
	return s&flag == flag
}

func (s Signals) String() string {
	var parts []string
	if s.Has(HighIntensity) {
		parts = append(parts, "high_intensity")
	}
	if s.Has(TimeFocused) {
		parts = append(parts, "time_focused")
	}
	if s.Has(RelationshipFocused) {
		parts = append(parts, "relationship_focused")
	}
	return strings.Join(parts, " ")
}

// AnalyzeEmotionalContext detects intensity, time and relationship cues.
func AnalyzeEmotionalContext(text string) Signals {
	lower := strings.ToLower(text)
	var s Signals
	if containsAny(lower, intensityWords) {
		s |= HighIntensity
	}
	if containsAny(lower, timeWords) {
		s |= TimeFocused
	}
	if containsAny(lower, relationshipWords) {
		s |= RelationshipFocused
	}
	return s
}

// StageForHistory maps history length to a conversation stage.
func StageForHistory(n int) domain.ConversationStage {
	switch {
	case n <= 0:
		return domain.StageInitial
	case n < 5:
		return domain.StageEarly
	case n < 15:
		return domain.StageDeveloping
	default:
		return domain.StageEstablished
	}
}
