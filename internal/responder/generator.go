// Package responder builds Luna's rule-based replies when no remote
// backend answers.
package responder

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/lovecleanup/internal/classifier"
	"github.com/ashureev/lovecleanup/internal/domain"
)

// Input is everything the generator looks at for one reply.
type Input struct {
	Text       string
	Mood       domain.Mood
	Intent     domain.Intent
	HistoryLen int
	Context    domain.ChatContext
}

// Output is a generated reply.
type Output struct {
	Text         string
	Type         domain.ResponseType
	QuickReplies []string
}

// Generator selects templated replies. Variant choice uses an injected
// random source so tests can replay selections.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a generator drawing from rng. A nil rng is seeded from the clock.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17))
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a generator with a deterministic sequence.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Generate produces a reply for in. The response type and quick replies
// come from the user's text, not from the selected template.
func (g *Generator) Generate(in Input) Output {
	g.mu.Lock()
	text := g.compose(in)
	g.mu.Unlock()

	kind := classifier.DetectResponseType(in.Text)
	return Output{
		Text:         text,
		Type:         kind,
		QuickReplies: QuickReplies(kind),
	}
}

func (g *Generator) compose(in Input) string {
	lower := strings.ToLower(in.Text)
	signals := classifier.AnalyzeEmotionalContext(in.Text)

	switch in.Mood {
	case domain.MoodSad:
		return g.selectBest(g.sadPool(signals), signals)
	case domain.MoodAnxious:
		return g.selectBest(g.anxiousPool(), signals)
	case domain.MoodAngry:
		return g.selectBest(angryPool, signals)
	case domain.MoodHopeful:
		return g.selectBest(hopefulPool, signals)
	}

	// Topic keywords outrank greetings: "oi" also matches inside "foi" and
	// "noite".
	switch {
	case in.Intent == domain.IntentTechnical || classifier.HasIntentKeyword(lower, domain.IntentTechnical):
		return technicalAnswer(lower)
	case in.Intent == domain.IntentMotivational || classifier.HasIntentKeyword(lower, domain.IntentMotivational):
		return g.pick(motivationalPool)
	case classifier.ContainsAny(lower, futureKeywords):
		return futureResponse
	case classifier.ContainsAny(lower, lonelinessKeywords):
		return connectionResponse
	case classifier.ContainsAny(lower, nostalgiaKeywords):
		return nostalgiaResponse
	case in.Intent == domain.IntentGreeting:
		return greetings[classifier.StageForHistory(in.HistoryLen)]
	case in.Intent == domain.IntentGratitude:
		return g.pick(gratitudePool)
	}

	if in.Mood == domain.MoodConfused {
		return g.pick(confusedPool)
	}
	return g.pick(contextualPool)
}

// selectBest biases toward the most empathetic variant for intense
// messages and the process-oriented one for time-focused messages.
func (g *Generator) selectBest(pool []string, s classifier.Signals) string {
	switch {
	case s.Has(classifier.HighIntensity):
		return pool[0]
	case s.Has(classifier.TimeFocused) && len(pool) > 1:
		return pool[1]
	default:
		return g.pick(pool)
	}
}

// pick must be called with g.mu held.
func (g *Generator) pick(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

func technicalAnswer(lower string) string {
	switch {
	case strings.Contains(lower, "como funciona") || strings.Contains(lower, "app"):
		return technicalHowItWorks
	case strings.Contains(lower, "scanner") || strings.Contains(lower, "fotos"):
		return technicalScanner
	default:
		return technicalGeneric
	}
}
