// Package lifecycle drives a participant through the study phases and owns
// the interaction-phase components: the deadline timer, the modality
// tracker and the session time syncer.
//
// Local phase is never trusted on its own. Every state-changing call is
// preceded by a fetch of the authoritative phase, and a mismatch is healed
// by adopting the remote value instead of acting on the stale one.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/deadline"
	"github.com/abhisek/studyctl/internal/sessionsync"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/tracking"
)

// Deps are the collaborators of a Controller.
type Deps struct {
	Profile       study.ProfileContext
	Profiles      study.ProfileAPI
	Sessions      study.SessionAPI
	Conversations study.ConversationAPI
	Scheduler     clock.Scheduler
	Logger        *slog.Logger
}

// Options tune the interaction phase.
type Options struct {
	// Duration is the recommended interaction length.
	Duration     time.Duration
	SyncInterval time.Duration
	// TotalUnits is the page count of the reading document.
	TotalUnits int

	// OnChange is called after any observable state change. It runs on
	// whichever goroutine caused the change and must not block.
	OnChange func()
	// OnSignal forwards deadline notifications.
	OnSignal func(deadline.Signal)
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Phase                study.Phase
	Modality             study.Modality
	CompletionPercentage int
	SessionID            string
	// Ready is true once the backend has acknowledged the interaction
	// phase; the interaction view must not render before.
	Ready       bool
	Paused      bool
	TimeUp      bool
	Timer       deadline.State
	Tracker     tracking.Summary
	CurrentUnit int
	BlockReason string
}

// Controller is the phase state machine for one participant.
type Controller struct {
	deps Deps
	opts Options
	log  *slog.Logger

	flight singleflight.Group

	mu          sync.Mutex
	participant study.Participant
	phase       study.Phase
	session     *study.Session
	bg          context.Context
	ready       bool
	paused      bool
	timeUp      bool
	timer       *deadline.Timer
	reading     *tracking.ReadingTracker
	convo       *tracking.ConversationTracker
	syncer      *sessionsync.Syncer
	torndown    bool
	// The backend conversation record exists. Send retries the start
	// until it does.
	conversationStarted bool

	// Leave-sequence steps that must not repeat on retry.
	completionLogged  bool
	conversationEnded bool
}

// New creates a controller. Call Load before anything else.
func New(deps Deps, opts Options) *Controller {
	if deps.Scheduler == nil {
		deps.Scheduler = clock.Real{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Duration <= 0 {
		opts.Duration = deadline.DefaultDuration
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = sessionsync.DefaultInterval
	}
	return &Controller{
		deps: deps,
		opts: opts,
		log:  log.With("component", "lifecycle"),
	}
}

// Load refreshes the participant and derives the current phase from the
// completion flags. A participant whose first unfinished step is the
// interaction is taken straight into it.
func (c *Controller) Load(ctx context.Context) (study.Phase, error) {
	p, err := c.deps.Profile.Refresh(ctx)
	if err != nil {
		return "", retryable("load participant", err)
	}
	phase := study.InitialPhase(p.Flags)

	c.mu.Lock()
	c.participant = p
	c.phase = phase
	c.mu.Unlock()

	c.log.Info("participant loaded",
		"participant_id", p.ID,
		"modality", p.Modality,
		"phase", phase,
		"completion", p.CompletionPercentage())
	c.changed()

	switch phase {
	case study.PhaseInteraction:
		if err := c.EnterInteraction(ctx); err != nil {
			return phase, err
		}
	case study.PhaseCompleted:
		// Finishes a close that failed after the last flag was set.
		if err := c.closeSession(ctx); err != nil {
			c.log.Warn("session close not confirmed", "error", err)
		}
	}
	return c.Phase(), nil
}

// Phase returns the local phase.
func (c *Controller) Phase() study.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Advance moves from expected to target, which must be the phase directly
// after expected. The authoritative phase is fetched first; if it differs
// from expected, the local phase is healed to it and nothing is committed.
// The returned phase is the local phase afterwards.
func (c *Controller) Advance(ctx context.Context, expected, target study.Phase) (study.Phase, error) {
	if err := study.CheckTransition(expected, target); err != nil {
		c.log.Warn("transition rejected", "from", expected, "to", target, "error", err)
		return c.Phase(), err
	}

	if expected == study.PhaseInteraction {
		// The leave sequence does its own re-fetch.
		err := c.Finish(ctx)
		return c.Phase(), err
	}

	auth, err := c.authoritativePhase(ctx)
	if err != nil {
		return c.Phase(), retryable("fetch phase", err)
	}
	if expected == study.PhasePostAssessment && auth == study.PhaseCompleted {
		// The post-assessment flag is set before the session is closed, so
		// a failed close leaves the flags ahead of the session.
		if err := c.closeSession(ctx); err != nil {
			return expected, err
		}
		if _, err := c.refreshProfile(ctx); err != nil {
			return expected, err
		}
		c.setPhase(target)
		return target, nil
	}
	if auth != expected {
		c.heal(expected, auth)
		if auth == study.PhaseInteraction {
			return auth, c.EnterInteraction(ctx)
		}
		return auth, nil
	}

	switch expected {
	case study.PhaseConsent:
		if err := c.deps.Profiles.RecordConsent(ctx); err != nil {
			return expected, retryable("record consent", err)
		}
	case study.PhasePreAssessment:
		if err := c.deps.Profiles.CompleteAssessment(ctx, study.AssessmentPre); err != nil {
			return expected, retryable("complete pre-assessment", err)
		}
	case study.PhasePostAssessment:
		if err := c.completeStudy(ctx); err != nil {
			return expected, err
		}
	}

	if _, err := c.refreshProfile(ctx); err != nil {
		return expected, err
	}
	c.setPhase(target)

	if target == study.PhaseInteraction {
		return target, c.EnterInteraction(ctx)
	}
	return target, nil
}

// Snapshot returns the state for presentation.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		Phase:                c.phase,
		Modality:             c.participant.Modality,
		CompletionPercentage: c.participant.CompletionPercentage(),
		Ready:                c.ready,
		Paused:               c.paused,
		TimeUp:               c.timeUp,
	}
	if c.session != nil {
		s.SessionID = c.session.ID
	}
	timer, reading, convo := c.timer, c.reading, c.convo
	c.mu.Unlock()

	if timer != nil {
		s.Timer = timer.State()
	}
	switch {
	case reading != nil:
		s.Tracker = reading.Summary()
		s.CurrentUnit = reading.Current()
	case convo != nil:
		s.Tracker = convo.Summary()
		if ok, reason := convo.CanSend(); !ok {
			s.BlockReason = reason
		}
	}
	return s
}

// completeStudy closes the post-assessment and the session.
func (c *Controller) completeStudy(ctx context.Context) error {
	if err := c.deps.Profiles.CompleteAssessment(ctx, study.AssessmentPost); err != nil {
		return retryable("complete post-assessment", err)
	}
	return c.closeSession(ctx)
}

// closeSession marks the session completed unless it already is. The
// backend treats a repeated close as a no-op.
func (c *Controller) closeSession(ctx context.Context) error {
	id, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	done := c.session != nil && c.session.IsCompleted
	c.mu.Unlock()
	if done {
		return nil
	}
	sess, err := c.deps.Sessions.CompleteSession(ctx, id)
	if err != nil {
		return retryable("complete session", err)
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return nil
}

// authoritativePhase combines the remote completion flags with the remote
// session phase, taking whichever is further along.
func (c *Controller) authoritativePhase(ctx context.Context) (study.Phase, error) {
	p, err := c.deps.Profiles.GetProfile(ctx)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	phase := study.InitialPhase(p.Flags)

	if id := c.sessionID(); id != "" {
		sess, err := c.deps.Sessions.GetSession(ctx, id)
		if err != nil {
			return "", fmt.Errorf("get session: %w", err)
		}
		remote := sess.CurrentPhase
		if sess.IsCompleted {
			remote = study.PhaseCompleted
		}
		if phase.Before(remote) {
			phase = remote
		}
	}
	return phase, nil
}

// ensureSession returns the known session id, looking the session up if
// this controller has not seen it yet.
func (c *Controller) ensureSession(ctx context.Context) (string, error) {
	if id := c.sessionID(); id != "" {
		return id, nil
	}
	sess, err := c.deps.Sessions.StartSession(ctx)
	if err != nil {
		return "", retryable("look up session", err)
	}
	c.mu.Lock()
	if c.session == nil {
		c.session = sess
	}
	c.mu.Unlock()
	return sess.ID, nil
}

func (c *Controller) refreshProfile(ctx context.Context) (study.Participant, error) {
	p, err := c.deps.Profile.Refresh(ctx)
	if err != nil {
		return study.Participant{}, retryable("refresh participant", err)
	}
	c.mu.Lock()
	c.participant = p
	c.mu.Unlock()
	return p, nil
}

func (c *Controller) heal(local, remote study.Phase) {
	c.log.Warn("phase out of sync, adopting remote phase", "local", local, "remote", remote)
	c.setPhase(remote)
}

func (c *Controller) setPhase(p study.Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}
