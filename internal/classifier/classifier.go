// Package classifier maps free text to mood, intent and response-type tags.
//
// Matching is plain substring containment on the lower-cased text, so a
// keyword embedded in a longer word still matches ("mal" hits "normal",
// "ex" hits "texto"). Callers depend on this behavior; do not switch to
// word-boundary matching without updating every keyword table.
package classifier

import (
	"strings"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Result is the outcome of Classify.
type Result struct {
	Mood   domain.Mood   `json:"mood"`
	Intent domain.Intent `json:"intent"`
}

// Classify returns the mood and intent of text. It is a pure function.
func Classify(text string) Result {
	lower := strings.ToLower(text)
	return Result{
		Mood:   moodOf(lower),
		Intent: intentOf(lower),
	}
}

// DetectMood returns only the mood tag.
func DetectMood(text string) domain.Mood {
	return moodOf(strings.ToLower(text))
}

// DetectIntent returns only the intent tag.
func DetectIntent(text string) domain.Intent {
	return intentOf(strings.ToLower(text))
}

// DetectResponseType picks the quick-reply family for a user message.
// It uses its own keyword tables, independent of the mood and intent scans.
func DetectResponseType(text string) domain.ResponseType {
	lower := strings.ToLower(text)
	for _, rule := range responseRules {
		if containsAny(lower, rule.keywords) {
			return rule.kind
		}
	}
	return domain.ResponseGeneral
}

func moodOf(lower string) domain.Mood {
	for _, rule := range moodRules {
		if containsAny(lower, rule.keywords) {
			return rule.mood
		}
	}
	return domain.MoodNeutral
}

func intentOf(lower string) domain.Intent {
	for _, rule := range intentRules {
		if containsAny(lower, rule.keywords) {
			return rule.intent
		}
	}
	return domain.IntentGeneral
}

// HasIntentKeyword reports whether text contains any keyword from the
// table of intent, regardless of the priority order Classify applies.
func HasIntentKeyword(text string, intent domain.Intent) bool {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		if rule.intent == intent {
			return containsAny(lower, rule.keywords)
		}
	}
	return false
}

// ContainsAny reports whether text, lower-cased, contains any keyword.
func ContainsAny(text string, keywords []string) bool {
	return containsAny(strings.ToLower(text), keywords)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
