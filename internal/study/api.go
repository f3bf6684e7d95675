package study

import "context"

// SessionAPI is the remote session store. Implementations are bound to a
// single participant identity.
type SessionAPI interface {
	// StartSession returns the participant's session, creating it on first
	// entry to the interaction phase.
	StartSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdatePhase(ctx context.Context, id string, phase Phase) (*Session, error)
	CompleteSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionTime(ctx context.Context, id string, update TimeUpdate) error
	LogEvent(ctx context.Context, id string, event LogEvent) error
}

// ConversationAPI is the assistant backend for the conversational modality.
type ConversationAPI interface {
	StartConversation(ctx context.Context, sessionID string) error
	EndConversation(ctx context.Context, sessionID string) error
	SendExchange(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error)
	GetCostLimits(ctx context.Context) (CostLimits, error)
}

// ProfileAPI reads and updates the participant's completion flags.
type ProfileAPI interface {
	GetProfile(ctx context.Context) (*Participant, error)
	// MarkInteractionComplete sets the interaction flag directly,
	// independent of any phase update.
	MarkInteractionComplete(ctx context.Context) error
	RecordConsent(ctx context.Context) error
	CompleteAssessment(ctx context.Context, kind AssessmentKind) error
}

// ProfileContext is the app-wide participant state, passed explicitly to
// the components that need it.
type ProfileContext interface {
	// Participant returns the last known participant state.
	Participant() Participant
	// Refresh re-reads the participant from the remote store and persists
	// the result locally.
	Refresh(ctx context.Context) (Participant, error)
}
