package domain

import (
	"time"
)

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mood is the emotional tag derived from user text.
type Mood string

const (
	MoodNeutral  Mood = "neutral"
	MoodSad      Mood = "sad"
	MoodAnxious  Mood = "anxious"
	MoodAngry    Mood = "angry"
	MoodHopeful  Mood = "hopeful"
	MoodConfused Mood = "confused"
)

// Intent is the conversational intent derived from user text.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentGratitude    Intent = "gratitude"
	IntentEmotional    Intent = "emotional"
	IntentTechnical    Intent = "technical"
	IntentMotivational Intent = "motivational"
	IntentGeneral      Intent = "general"
)

// ResponseType drives the quick-reply table shown under a reply.
type ResponseType string

const (
	ResponseEmotional    ResponseType = "emotional"
	ResponseTechnical    ResponseType = "technical"
	ResponseMotivational ResponseType = "motivational"
	ResponseGeneral      ResponseType = "general"
	ResponseGreeting     ResponseType = "greeting"
	ResponseFallback     ResponseType = "fallback"
)

// ConversationStage reflects how long a conversation has been going.
type ConversationStage string

const (
	StageInitial     ConversationStage = "initial"
	StageEarly       ConversationStage = "early"
	StageDeveloping  ConversationStage = "developing"
	StageEstablished ConversationStage = "established"
)

// JourneyStage is where the user is in the cleanup journey.
type JourneyStage string

const (
	JourneyOnboarding    JourneyStage = "onboarding"
	JourneyActiveCleanup JourneyStage = "active_cleanup"
	JourneyPostCleanup   JourneyStage = "post_cleanup"
)

// AppState is the screen the user was on when sending a message.
type AppState string

const (
	AppScanningPhotos   AppState = "scanning_photos"
	AppDeletingMessages AppState = "deleting_messages"
	AppSocialCleanup    AppState = "social_cleanup"
	AppProgressView     AppState = "progress_view"
	AppDashboard        AppState = "dashboard"
)

// Error tags carried by AIResponse.Error.
const (
	ErrorTagSessionLimit  = "session_limit"
	ErrorTagQuotaExceeded = "quota_exceeded"
	ErrorTagInvalidKey    = "invalid_key"
)

// ChatContext is a caller-supplied snapshot used when building replies.
// It is never mutated by the chat engine.
type ChatContext struct {
	Stage      JourneyStage `json:"stage,omitempty"`
	UserMood   Mood         `json:"userMood,omitempty"`
	LastAction string       `json:"lastAction,omitempty"`
	DaysActive int          `json:"daysActive,omitempty"`
	UserName   string       `json:"userName,omitempty"`
	AppState   AppState     `json:"appState,omitempty"`
}

// StoredMessage is a serialized history entry.
type StoredMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message is a finalized chat bubble.
type Message struct {
	ID           string       `json:"id"`
	Sender       Role         `json:"sender"`
	Text         string       `json:"text"`
	CreatedAt    time.Time    `json:"createdAt"`
	ResponseType ResponseType `json:"responseType,omitempty"`
	QuickReplies []string     `json:"quickReplies,omitempty"`
	Streaming    bool         `json:"streaming"`
}

// AIResponse is the result of one chat turn.
type AIResponse struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Type         ResponseType `json:"type"`
	QuickReplies []string     `json:"quickReplies"`
	Timestamp    time.Time    `json:"timestamp"`
	Error        string       `json:"error,omitempty"`
	Provider     string       `json:"provider"`
	Mood         Mood         `json:"mood"`
	Intent       Intent       `json:"intent"`
}

// AsMessage converts a response into an assistant chat bubble.
func (r *AIResponse) AsMessage() Message {
	return Message{
		ID:           r.ID,
		Sender:       RoleAssistant,
		Text:         r.Text,
		CreatedAt:    r.Timestamp,
		ResponseType: r.Type,
		QuickReplies: r.QuickReplies,
	}
}
