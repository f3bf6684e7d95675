package store

import (
	"context"
	"time"

	"github.com/abhisek/studyctl/internal/study"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	// SessionID restricts LLM event queries to one study session.
	SessionID string
}

// ParticipantRepo persists participants and their completion flags.
type ParticipantRepo interface {
	Create(ctx context.Context, p study.Participant) error
	// Get returns study.ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*study.Participant, error)
	UpdateFlags(ctx context.Context, id string, flags study.CompletionFlags) error
	List(ctx context.Context) ([]study.Participant, error)
}

// SessionRepo persists study sessions. Sessions are never deleted.
type SessionRepo interface {
	Create(ctx context.Context, s study.Session) error
	// Get and GetByParticipant return study.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*study.Session, error)
	GetByParticipant(ctx context.Context, participantID string) (*study.Session, error)
	UpdatePhase(ctx context.Context, id string, phase study.Phase) error
	// UpdateTime stores the pause flag and raises the recorded duration;
	// a smaller duration than the stored one is ignored.
	UpdateTime(ctx context.Context, id string, seconds int, paused bool) error
	Complete(ctx context.Context, id string, at time.Time) error
}

// Conversation is the lifetime of an assistant conversation in a session.
type Conversation struct {
	SessionID     string
	ParticipantID string
	StartedAt     time.Time
	EndedAt       *time.Time
}

// Active reports whether the conversation has not been ended.
func (c Conversation) Active() bool { return c.EndedAt == nil }

// ConversationRepo tracks conversation start and end.
type ConversationRepo interface {
	// Start records the conversation; starting an existing one is a no-op.
	Start(ctx context.Context, sessionID, participantID string, at time.Time) error
	// End marks the conversation ended; ending twice keeps the first time.
	End(ctx context.Context, sessionID string, at time.Time) error
	// Get returns study.ErrNotFound if the conversation was never started.
	Get(ctx context.Context, sessionID string) (*Conversation, error)
}

// SessionLogData is one telemetry event from a session.
type SessionLogData struct {
	SessionID     string
	ParticipantID string
	LogType       string
	EventData     map[string]any
}

// SessionLogRecord is a stored telemetry event.
type SessionLogRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	SessionLogData
}

// ExchangeData is one completed conversational exchange.
type ExchangeData struct {
	SessionID     string
	ParticipantID string
	Turn          int
	Message       string
	Reply         string
	Model         string
	InputTokens   int
	OutputTokens  int
	Cost          float64
	LatencyMs     int64
}

// ExchangeRecord is a stored exchange.
type ExchangeRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	ExchangeData
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
	// SessionID is empty for requests made outside a study session.
	SessionID string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates LLM usage for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates LLM usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// LLMSessionUsage aggregates LLM usage for one study session. Failed
// counts attempts that did not produce a reply, retries included.
type LLMSessionUsage struct {
	SessionID    string
	Calls        int
	Failed       int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to the event tables.
type EventRepo interface {
	AppendSessionLog(ctx context.Context, data SessionLogData) error
	SessionLogs(ctx context.Context, sessionID string, opts QueryOpts) ([]SessionLogRecord, error)

	AppendExchange(ctx context.Context, data ExchangeData) error
	Exchanges(ctx context.Context, sessionID string) ([]ExchangeRecord, error)
	// SpendSince sums exchange cost for a participant from since onward.
	SpendSince(ctx context.Context, participantID string, since time.Time) (float64, error)

	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)
	// GetLLMEvent returns nil, nil when the id does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
	// LLMUsageBySession returns the limit sessions with the most calls.
	LLMUsageBySession(ctx context.Context, limit int) ([]LLMSessionUsage, error)
}
