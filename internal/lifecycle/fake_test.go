package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/study"
)

// fakeBackend is an in-memory backend for one participant. It counts
// calls and can gate or fail individual operations.
type fakeBackend struct {
	mu       sync.Mutex
	p        study.Participant
	sess     *study.Session
	calls    map[string]int
	order    []string
	events   []study.LogEvent
	updates  []study.TimeUpdate
	failures map[string]error
	gates    map[string]chan struct{}
	entered  map[string]chan struct{}
	limits   study.CostLimits
}

func newFakeBackend(modality study.Modality, flags study.CompletionFlags) *fakeBackend {
	return &fakeBackend{
		p: study.Participant{
			ID:        "p-1",
			Modality:  modality,
			Flags:     flags,
			CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		calls:    map[string]int{},
		failures: map[string]error{},
		gates:    map[string]chan struct{}{},
		entered:  map[string]chan struct{}{},
	}
}

// gate blocks op until the returned release func is called. The entered
// channel is closed when the first call reaches the gate.
func (f *fakeBackend) gate(op string) (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	e := make(chan struct{})
	f.gates[op] = g
	f.entered[op] = e
	return e, func() { close(g) }
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeBackend) flags() study.CompletionFlags {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p.Flags
}

func (f *fakeBackend) logTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.LogType)
	}
	return out
}

func (f *fakeBackend) event(logType string) (study.LogEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.LogType == logType {
			return e, true
		}
	}
	return study.LogEvent{}, false
}

// enter records a call, waits at a gate if one is set and returns any
// configured failure.
func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	f.order = append(f.order, op)
	g := f.gates[op]
	if e := f.entered[op]; e != nil {
		close(e)
		delete(f.entered, op)
	}
	err := f.failures[op]
	f.mu.Unlock()

	if g != nil {
		<-g
	}
	return err
}

// ProfileAPI

func (f *fakeBackend) GetProfile(context.Context) (*study.Participant, error) {
	if err := f.enter("GetProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.p
	return &p, nil
}

func (f *fakeBackend) MarkInteractionComplete(context.Context) error {
	if err := f.enter("MarkInteractionComplete"); err != nil {
		return err
	}
	return f.setFlag(study.PhaseInteraction)
}

func (f *fakeBackend) RecordConsent(context.Context) error {
	if err := f.enter("RecordConsent"); err != nil {
		return err
	}
	return f.setFlag(study.PhaseConsent)
}

func (f *fakeBackend) CompleteAssessment(_ context.Context, kind study.AssessmentKind) error {
	if err := f.enter("CompleteAssessment"); err != nil {
		return err
	}
	p, err := kind.Phase()
	if err != nil {
		return err
	}
	return f.setFlag(p)
}

func (f *fakeBackend) setFlag(p study.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	flags, err := f.p.Flags.Set(p)
	if err != nil {
		return err
	}
	f.p.Flags = flags
	return nil
}

// SessionAPI

func (f *fakeBackend) StartSession(context.Context) (*study.Session, error) {
	if err := f.enter("StartSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		f.sess = &study.Session{
			ID:            "s-1",
			ParticipantID: f.p.ID,
			CurrentPhase:  study.PhasePreAssessment,
			StartedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}
	}
	s := *f.sess
	return &s, nil
}

func (f *fakeBackend) GetSession(_ context.Context, id string) (*study.Session, error) {
	if err := f.enter("GetSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.ID != id {
		return nil, study.ErrNotFound
	}
	s := *f.sess
	return &s, nil
}

func (f *fakeBackend) UpdatePhase(_ context.Context, id string, phase study.Phase) (*study.Session, error) {
	if err := f.enter("UpdatePhase"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.ID != id {
		return nil, study.ErrNotFound
	}
	if err := study.CheckTransition(f.sess.CurrentPhase, phase); err != nil && f.sess.CurrentPhase != phase {
		return nil, err
	}
	f.sess.CurrentPhase = phase
	if phase == study.PhasePostAssessment {
		f.p.Flags.Interaction = true
	}
	s := *f.sess
	return &s, nil
}

func (f *fakeBackend) CompleteSession(_ context.Context, id string) (*study.Session, error) {
	if err := f.enter("CompleteSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.ID != id {
		return nil, study.ErrNotFound
	}
	f.sess.CurrentPhase = study.PhaseCompleted
	f.sess.IsCompleted = true
	s := *f.sess
	return &s, nil
}

func (f *fakeBackend) UpdateSessionTime(_ context.Context, _ string, u study.TimeUpdate) error {
	if err := f.enter("UpdateSessionTime"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if u.TimeSpent > f.sess.InteractionDurationSeconds {
		f.sess.InteractionDurationSeconds = u.TimeSpent
	}
	f.sess.IsPaused = u.IsPaused
	return nil
}

func (f *fakeBackend) LogEvent(_ context.Context, _ string, e study.LogEvent) error {
	if err := f.enter("LogEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

// ConversationAPI

func (f *fakeBackend) StartConversation(context.Context, string) error {
	return f.enter("StartConversation")
}

func (f *fakeBackend) EndConversation(context.Context, string) error {
	return f.enter("EndConversation")
}

func (f *fakeBackend) SendExchange(_ context.Context, req study.ExchangeRequest) (*study.ExchangeResponse, error) {
	if err := f.enter("SendExchange"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limits.Exceeded() {
		return nil, &study.CostLimitError{Reason: f.limits.BlockReason(), Limits: f.limits}
	}
	f.limits.DailyCost += 0.5
	f.limits.WeeklyCost += 0.5
	if f.limits.DailyCost >= 1 {
		f.limits.DailyLimitExceeded = true
	}
	return &study.ExchangeResponse{Reply: "ok", Turn: req.Turn, InputTokens: 5, OutputTokens: 7, Cost: 0.5}, nil
}

func (f *fakeBackend) GetCostLimits(context.Context) (study.CostLimits, error) {
	if err := f.enter("GetCostLimits"); err != nil {
		return study.CostLimits{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits, nil
}

// fakeProfile is the injected profile context backed by the fake backend.
type fakeProfile struct {
	api *fakeBackend

	mu sync.Mutex
	p  study.Participant
}

func (p *fakeProfile) Participant() study.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.p
}

func (p *fakeProfile) Refresh(ctx context.Context) (study.Participant, error) {
	remote, err := p.api.GetProfile(ctx)
	if err != nil {
		return study.Participant{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.p = *remote
	return p.p, nil
}

var errNetwork = errors.New("connection refused")
