package server

import "github.com/abhisek/studyctl/internal/study"

// APIVersion is the semantic version of the HTTP API. Clients refuse to
// talk to a server with a different major version.
const APIVersion = "v1.2.0"

// ParticipantHeader carries the caller's participant id.
const ParticipantHeader = "X-Participant-ID"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeMissingIdentity  = "MISSING_PARTICIPANT"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeSessionCompleted = "SESSION_COMPLETED"
	CodeCostLimit        = "COST_LIMIT"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`

	// Limits is set on COST_LIMIT responses.
	Limits *study.CostLimits `json:"limits,omitempty"`
}

// RegisterRequest is the body of POST /api/participants. An empty modality
// is assigned by the server.
type RegisterRequest struct {
	Modality string `json:"modality" binding:"omitempty,oneof=READING CONVERSATIONAL"`
}

// PhaseRequest is the body of PUT /api/sessions/:id/phase.
type PhaseRequest struct {
	Phase string `json:"phase" binding:"required,oneof=CONSENT PRE_ASSESSMENT INTERACTION POST_ASSESSMENT COMPLETED"`
}

// TimeRequest is the body of PUT /api/sessions/:id/time.
type TimeRequest struct {
	TimeSpent *int `json:"time_spent" binding:"required,min=0"`
	IsPaused  bool `json:"is_paused"`
}

// LogEventRequest is the body of POST /api/sessions/:id/events.
type LogEventRequest struct {
	LogType   string         `json:"log_type" binding:"required,max=64"`
	EventData map[string]any `json:"event_data"`
}

// ExchangeRequest is the body of POST /api/sessions/:id/exchanges.
type ExchangeRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
	Turn    int    `json:"turn" binding:"min=0"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	APIVersion string `json:"api_version"`
	Build      string `json:"build,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
