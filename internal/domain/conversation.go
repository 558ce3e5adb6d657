package domain

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Turn is one message of a conversation.
type Turn struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent,omitempty"`
	Entities  []Entity  `json:"entities,omitempty"`
}

type ReferenceType string

const (
	ReferenceProperty   ReferenceType = "property"
	ReferencePreference ReferenceType = "preference"
	ReferenceQuestion   ReferenceType = "question"
)

// ReferenceTypeFor maps an entity type to the coarser reference type kept in
// conversation memory.
func ReferenceTypeFor(t EntityType) ReferenceType {
	switch t {
	case EntityApartmentID, EntityUnitType, EntityProjectName:
		return ReferenceProperty
	case EntityBudgetRange, EntityTimeline, EntityLocation:
		return ReferencePreference
	default:
		return ReferenceQuestion
	}
}

// ContextualReference is a fact mentioned earlier in the conversation.
type ContextualReference struct {
	Type      ReferenceType `json:"type"`
	Value     string        `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
}

// Interruption records an off-topic message received while a flow was active.
type Interruption struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Step      string    `json:"step"`
}

// FlowState is the active multi-step flow of a session.
type FlowState struct {
	FlowType      string            `json:"flowType"`
	CurrentStep   string            `json:"currentStep"`
	NextStep      string            `json:"nextStep,omitempty"`
	CollectedData map[string]string `json:"collectedData"`
	Context       map[string]string `json:"context,omitempty"`
	Interruption  *Interruption     `json:"interruption,omitempty"`
}

// ConversationContext is the short-term memory of one session.
type ConversationContext struct {
	SessionID      string                `json:"sessionId"`
	Messages       []Turn                `json:"messages"`
	CurrentTopic   Intent                `json:"currentTopic,omitempty"`
	LastUserIntent Intent                `json:"lastUserIntent,omitempty"`
	References     []ContextualReference `json:"contextualReferences"`
	Flow           *FlowState            `json:"multiStepFlow,omitempty"`
}
