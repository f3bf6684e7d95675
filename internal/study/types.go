// Package study holds the domain model of the learning study and the
// narrow interfaces through which the session core talks to the backend.
package study

import (
	"fmt"
	"time"
)

// Modality is the learning condition a participant is assigned to.
type Modality string

const (
	ModalityReading        Modality = "READING"
	ModalityConversational Modality = "CONVERSATIONAL"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityReading || m == ModalityConversational
}

// ParseModality parses a modality name, case-sensitive as on the wire.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown modality %q", s)
	}
	return m, nil
}

// CompletionFlags records which study steps a participant has finished.
// Flags only move false→true and only in order.
type CompletionFlags struct {
	Consent        bool `json:"consent" yaml:"consent"`
	PreAssessment  bool `json:"pre_assessment" yaml:"pre_assessment"`
	Interaction    bool `json:"interaction" yaml:"interaction"`
	PostAssessment bool `json:"post_assessment" yaml:"post_assessment"`
}

// Count returns the number of true flags.
func (f CompletionFlags) Count() int {
	n := 0
	for _, b := range []bool{f.Consent, f.PreAssessment, f.Interaction, f.PostAssessment} {
		if b {
			n++
		}
	}
	return n
}

// CompletionPercentage is the share of finished steps, a multiple of 25.
func (f CompletionFlags) CompletionPercentage() int {
	return f.Count() * 100 / 4
}

// Ordered reports whether no flag is set while an earlier one is still false.
func (f CompletionFlags) Ordered() bool {
	seq := []bool{f.Consent, f.PreAssessment, f.Interaction, f.PostAssessment}
	seenFalse := false
	for _, b := range seq {
		if b && seenFalse {
			return false
		}
		if !b {
			seenFalse = true
		}
	}
	return true
}

// Set marks the flag owned by phase p. Setting an already true flag is a
// no-op; setting a flag whose predecessors are still false is rejected.
func (f CompletionFlags) Set(p Phase) (CompletionFlags, error) {
	out := f
	switch p {
	case PhaseConsent:
		out.Consent = true
	case PhasePreAssessment:
		out.PreAssessment = true
	case PhaseInteraction:
		out.Interaction = true
	case PhasePostAssessment:
		out.PostAssessment = true
	default:
		return f, fmt.Errorf("phase %s has no completion flag", p)
	}
	if !out.Ordered() {
		return f, &TransitionError{
			From:   InitialPhase(f),
			To:     p,
			Reason: "completion flags must be set in order",
		}
	}
	return out, nil
}

// Merge returns the union of both flag sets. Flags never revert, so a
// fresher remote copy can only add to what is known locally.
func (f CompletionFlags) Merge(o CompletionFlags) CompletionFlags {
	return CompletionFlags{
		Consent:        f.Consent || o.Consent,
		PreAssessment:  f.PreAssessment || o.PreAssessment,
		Interaction:    f.Interaction || o.Interaction,
		PostAssessment: f.PostAssessment || o.PostAssessment,
	}
}

// Participant is a study subject with a fixed modality.
type Participant struct {
	ID        string          `json:"id"`
	Modality  Modality        `json:"modality"`
	Flags     CompletionFlags `json:"flags"`
	CreatedAt time.Time       `json:"created_at"`
}

// CompletionPercentage is a convenience over Flags.
func (p Participant) CompletionPercentage() int {
	return p.Flags.CompletionPercentage()
}

// Session is one participant's study session, created on first entry to
// the interaction phase and never deleted.
type Session struct {
	ID                         string    `json:"session_id"`
	ParticipantID              string    `json:"participant_id"`
	CurrentPhase               Phase     `json:"current_phase"`
	IsCompleted                bool      `json:"is_completed"`
	StartedAt                  time.Time `json:"started_at"`
	InteractionDurationSeconds int       `json:"interaction_duration_seconds"`
	IsPaused                   bool      `json:"is_paused"`
}

// TimeUpdate is the periodic session time sync payload.
type TimeUpdate struct {
	TimeSpent int  `json:"time_spent"`
	IsPaused  bool `json:"is_paused"`
}

// Log types recorded during a session.
const (
	LogInteractionStarted   = "interaction_started"
	LogInteractionCompleted = "interaction_completed"
	LogPageView             = "page_view"
	LogScroll               = "scroll"
	LogTimerWarning         = "timer_warning"
	LogPause                = "pause"
	LogResume               = "resume"
	LogMessageBlocked       = "message_blocked"
)

// LogEvent is a structured telemetry record attached to a session.
type LogEvent struct {
	LogType   string         `json:"log_type"`
	EventData map[string]any `json:"event_data"`
}

// AssessmentKind selects the pre or post assessment.
type AssessmentKind string

const (
	AssessmentPre  AssessmentKind = "pre"
	AssessmentPost AssessmentKind = "post"
)

// Phase returns the study phase the assessment belongs to.
func (k AssessmentKind) Phase() (Phase, error) {
	switch k {
	case AssessmentPre:
		return PhasePreAssessment, nil
	case AssessmentPost:
		return PhasePostAssessment, nil
	default:
		return "", fmt.Errorf("unknown assessment %q", string(k))
	}
}

// ExchangeRequest asks the assistant for a reply within a session.
type ExchangeRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
}

// ExchangeResponse is the assistant's reply and the exchange's usage.
type ExchangeResponse struct {
	Reply        string  `json:"reply"`
	Turn         int     `json:"turn"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// TotalTokens is input plus output tokens.
func (r ExchangeResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// CostLimits is the cost ledger view for one participant.
type CostLimits struct {
	DailyCost           float64 `json:"daily_cost"`
	DailyRemaining      float64 `json:"daily_remaining"`
	WeeklyCost          float64 `json:"weekly_cost"`
	WeeklyRemaining     float64 `json:"weekly_remaining"`
	DailyLimitExceeded  bool    `json:"daily_limit_exceeded"`
	WeeklyLimitExceeded bool    `json:"weekly_limit_exceeded"`
}

// Exceeded reports whether either window is at or over its cap.
func (c CostLimits) Exceeded() bool {
	return c.DailyLimitExceeded || c.WeeklyLimitExceeded
}

// BlockReason describes why sending is disabled, or "" if it is not.
func (c CostLimits) BlockReason() string {
	switch {
	case c.DailyLimitExceeded && c.WeeklyLimitExceeded:
		return fmt.Sprintf("Daily and weekly spending limits reached ($%.2f today, $%.2f this week). The assistant is unavailable for the rest of this session.", c.DailyCost, c.WeeklyCost)
	case c.DailyLimitExceeded:
		return fmt.Sprintf("Daily spending limit reached ($%.2f today). The assistant is unavailable until the daily window resets.", c.DailyCost)
	case c.WeeklyLimitExceeded:
		return fmt.Sprintf("Weekly spending limit reached ($%.2f this week). The assistant is unavailable until the weekly window resets.", c.WeeklyCost)
	default:
		return ""
	}
}
