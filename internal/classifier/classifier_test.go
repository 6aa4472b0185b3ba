package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/lovecleanup/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		text   string
		mood   domain.Mood
		intent domain.Intent
	}{
		{"sad emotional", "estou muito triste", domain.MoodSad, domain.IntentEmotional},
		{"anxious", "estou ansioso", domain.MoodAnxious, domain.IntentEmotional},
		{"angry", "que raiva", domain.MoodAngry, domain.IntentEmotional},
		{"hopeful general", "tenho esperança", domain.MoodHopeful, domain.IntentGeneral},
		{"confused", "não sei o que fazer", domain.MoodConfused, domain.IntentGeneral},
		{"neutral", "hoje", domain.MoodNeutral, domain.IntentGeneral},
		{"greeting upper case", "Bom dia", domain.MoodNeutral, domain.IntentGreeting},
		{"greeting wins over mood", "Oi, tudo bem?", domain.MoodHopeful, domain.IntentGreeting},
		{"gratitude", "obrigada pela ajuda", domain.MoodNeutral, domain.IntentGratitude},
		{"technical", "como funciona o app?", domain.MoodConfused, domain.IntentTechnical},
		{"motivational", "preciso de motivação", domain.MoodNeutral, domain.IntentMotivational},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tc.text)
			assert.Equal(t, tc.mood, got.Mood)
			assert.Equal(t, tc.intent, got.Intent)
		})
	}
}

func TestClassifyKeepsSubstringSemantics(t *testing.T) {
	t.Parallel()

	// "mal" is embedded in "normal"; the match is expected.
	got := Classify("isso é normal")
	assert.Equal(t, domain.MoodSad, got.Mood)
	assert.Equal(t, domain.IntentEmotional, got.Intent)

	// "ex" is embedded in "texto".
	assert.True(t, AnalyzeEmotionalContext("li um texto").Has(RelationshipFocused))
}

func TestHasIntentKeywordIgnoresPriority(t *testing.T) {
	t.Parallel()

	// Classify stops at greeting because "oi" hides inside "foi".
	text := "foi difícil conseguir sair"
	assert.Equal(t, domain.IntentGreeting, Classify(text).Intent)
	assert.True(t, HasIntentKeyword(text, domain.IntentMotivational))
	assert.False(t, HasIntentKeyword(text, domain.IntentTechnical))
	assert.True(t, HasIntentKeyword("COMO FUNCIONA?", domain.IntentTechnical))
	assert.False(t, HasIntentKeyword("qualquer coisa", domain.Intent("unknown")))
}

func TestClassifyIsPure(t *testing.T) {
	t.Parallel()

	inputs := []string{"estou muito triste", "oi", "", "como funciona?", "ÓDIO"}
	for _, in := range inputs {
		first := Classify(in)
		for range 5 {
			require.Equal(t, first, Classify(in))
		}
	}
}

func TestDetectResponseType(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.ResponseType{
		"estou muito triste":       domain.ResponseEmotional,
		"como funciona o scanner?": domain.ResponseTechnical,
		"meu progresso":            domain.ResponseMotivational,
		"oi":                       domain.ResponseGreeting,
		"blah":                     domain.ResponseGeneral,
	}
	for text, want := range cases {
		assert.Equal(t, want, DetectResponseType(text), text)
	}
}

func TestAnalyzeEmotionalContext(t *testing.T) {
	t.Parallel()

	s := AnalyzeEmotionalContext("estou muito triste hoje")
	assert.True(t, s.Has(HighIntensity))
	assert.True(t, s.Has(TimeFocused))
	assert.False(t, s.Has(RelationshipFocused))
	assert.Equal(t, "high_intensity time_focused", s.String())

	assert.Equal(t, Signals(0), AnalyzeEmotionalContext("abc"))
}

func TestStageForHistory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.StageInitial, StageForHistory(0))
	assert.Equal(t, domain.StageEarly, StageForHistory(4))
	assert.Equal(t, domain.StageDeveloping, StageForHistory(5))
	assert.Equal(t, domain.StageDeveloping, StageForHistory(14))
	assert.Equal(t, domain.StageEstablished, StageForHistory(15))
}
