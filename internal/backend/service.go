// Package backend is the server side of the study: it owns participants,
// sessions, telemetry and the assistant conversation, and enforces the
// ordering and spending rules the client only mirrors.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abhisek/studyctl/internal/llm"
	"github.com/abhisek/studyctl/internal/metrics"
	"github.com/abhisek/studyctl/internal/store"
	"github.com/abhisek/studyctl/internal/study"
)

// Default spending caps in USD per participant.
const (
	DefaultDailyLimit  = 2.00
	DefaultWeeklyLimit = 5.00
)

// DefaultSystemPrompt frames the assistant for the conversational condition.
const DefaultSystemPrompt = `You are a patient study assistant helping a participant learn the assigned material.
Answer questions clearly and briefly, check understanding with short follow-up questions,
and never complete assessment questions on the participant's behalf.`

// Limits are the rolling spending caps for the conversational condition.
type Limits struct {
	Daily  float64
	Weekly float64
}

// Options configures a Service.
type Options struct {
	Store *store.Store
	// Provider answers conversational exchanges. Nil disables the
	// conversational endpoints with study.ErrUnavailable.
	Provider llm.Provider

	Limits       Limits
	SystemPrompt string
	MaxTokens    int
	// LLMTimeout bounds one exchange including provider retries.
	LLMTimeout time.Duration

	// ExchangeRate and ExchangeBurst throttle each participant's messages.
	ExchangeRate  rate.Limit
	ExchangeBurst int

	// Assign picks the modality for a new participant. Defaults to a fair
	// coin.
	Assign func() study.Modality
	// Now is the clock used for cost windows. Defaults to time.Now.
	Now func() time.Time

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service implements the study backend over a Store.
type Service struct {
	store    *store.Store
	provider llm.Provider
	opts     Options
	events   *eventValidator
	log      *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	// turns serializes exchanges per session so turn numbers stay dense.
	turns map[string]*sync.Mutex
}

// New creates a Service, filling unset options with defaults.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("backend: store is required")
	}
	if opts.Limits.Daily <= 0 {
		opts.Limits.Daily = DefaultDailyLimit
	}
	if opts.Limits.Weekly <= 0 {
		opts.Limits.Weekly = DefaultWeeklyLimit
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 60 * time.Second
	}
	if opts.ExchangeRate <= 0 {
		opts.ExchangeRate = rate.Every(2 * time.Second)
	}
	if opts.ExchangeBurst <= 0 {
		opts.ExchangeBurst = 3
	}
	if opts.Assign == nil {
		opts.Assign = randomModality
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ev, err := newEventValidator()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:    opts.Store,
		provider: opts.Provider,
		opts:     opts,
		events:   ev,
		log:      opts.Logger.With("component", "backend"),
		limiters: make(map[string]*rate.Limiter),
		turns:    make(map[string]*sync.Mutex),
	}, nil
}

func randomModality() study.Modality {
	if rand.IntN(2) == 0 {
		return study.ModalityReading
	}
	return study.ModalityConversational
}

// Register creates a participant. A nil modality is assigned at random.
func (s *Service) Register(ctx context.Context, modality *study.Modality) (*study.Participant, error) {
	m := s.opts.Assign()
	if modality != nil {
		if !modality.Valid() {
			return nil, fmt.Errorf("register: unknown modality %q: %w", *modality, study.ErrInvalidRequest)
		}
		m = *modality
	}

	p := study.Participant{
		ID:        uuid.NewString(),
		Modality:  m,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.store.ParticipantRepo().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s.opts.Metrics.Registered(string(m))
	s.log.Info("participant registered", "participant_id", p.ID, "modality", m)
	return &p, nil
}

// Participants lists every registered participant.
func (s *Service) Participants(ctx context.Context) ([]study.Participant, error) {
	return s.store.ParticipantRepo().List(ctx)
}

// ForParticipant returns the study APIs bound to one participant identity.
func (s *Service) ForParticipant(id string) *ParticipantAPI {
	return &ParticipantAPI{svc: s, id: id}
}

// ParticipantAPI implements study.SessionAPI, study.ConversationAPI and
// study.ProfileAPI for a single participant. Every call verifies that the
// sessions it touches belong to that participant.
type ParticipantAPI struct {
	svc *Service
	id  string
}

var (
	_ study.SessionAPI      = (*ParticipantAPI)(nil)
	_ study.ConversationAPI = (*ParticipantAPI)(nil)
	_ study.ProfileAPI      = (*ParticipantAPI)(nil)
)

// ID returns the bound participant id.
func (a *ParticipantAPI) ID() string { return a.id }

func (s *Service) limiter(participantID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[participantID]
	if !ok {
		l = rate.NewLimiter(s.opts.ExchangeRate, s.opts.ExchangeBurst)
		s.limiters[participantID] = l
	}
	return l
}

func (s *Service) turnLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.turns[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.turns[sessionID] = m
	}
	return m
}
