package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/studyctl/internal/deadline"
	"github.com/abhisek/studyctl/internal/sessionsync"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/tracking"
)

// unloadTimeout bounds the final sync push on unload.
const unloadTimeout = 2 * time.Second

// EnterInteraction obtains the participant's session and, if the backend
// does not already have it in the interaction phase, issues exactly one
// phase update and waits for it. Only after that are the timer, tracker
// and syncer started and the snapshot marked Ready.
func (c *Controller) EnterInteraction(ctx context.Context) error {
	_, err, _ := c.flight.Do("enter", func() (any, error) {
		return nil, c.enterInteraction(ctx)
	})
	return err
}

func (c *Controller) enterInteraction(ctx context.Context) error {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return nil
	}
	modality := c.participant.Modality
	c.mu.Unlock()

	sess, err := c.deps.Sessions.StartSession(ctx)
	if err != nil {
		return retryable("start session", err)
	}
	if sess.IsCompleted {
		return study.ErrSessionCompleted
	}

	if sess.CurrentPhase != study.PhaseInteraction {
		if study.PhaseInteraction.Before(sess.CurrentPhase) {
			c.mu.Lock()
			c.session = sess
			c.mu.Unlock()
			c.heal(study.PhaseInteraction, sess.CurrentPhase)
			return nil
		}
		updated, err := c.deps.Sessions.UpdatePhase(ctx, sess.ID, study.PhaseInteraction)
		if err != nil {
			return retryable("enter interaction", err)
		}
		sess = updated
	}

	c.startComponents(ctx, sess, modality)

	if modality == study.ModalityConversational {
		if err := c.deps.Conversations.StartConversation(ctx, sess.ID); err != nil {
			c.log.Warn("start conversation failed", "session_id", sess.ID, "error", err)
		} else {
			c.mu.Lock()
			c.conversationStarted = true
			c.mu.Unlock()
		}
		c.mu.Lock()
		convo := c.convo
		c.mu.Unlock()
		if _, err := convo.RefreshLedger(ctx); err != nil {
			c.log.Warn("initial ledger refresh failed", "error", err)
		}
	}

	c.logEvent(ctx, study.LogInteractionStarted, map[string]any{
		"modality":         string(modality),
		"resumed_seconds":  sess.InteractionDurationSeconds,
		"duration_seconds": int(c.opts.Duration / time.Second),
	})

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	c.log.Info("interaction started", "session_id", sess.ID, "resumed_seconds", sess.InteractionDurationSeconds)
	c.changed()
	return nil
}

func (c *Controller) startComponents(ctx context.Context, sess *study.Session, modality study.Modality) {
	sched := c.deps.Scheduler
	resumed := time.Duration(sess.InteractionDurationSeconds) * time.Second
	remaining := c.opts.Duration - resumed

	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = sess
	c.phase = study.PhaseInteraction
	c.bg = context.WithoutCancel(ctx)
	c.paused = sess.IsPaused
	c.torndown = false
	c.completionLogged = false
	c.conversationEnded = false
	c.conversationStarted = false

	c.timer = deadline.New(sched, remaining, deadline.Handlers{
		OnTick:   func(int) { c.changed() },
		OnSignal: c.onSignal,
	})
	// A session resumed at or past the limit never crosses zero, so the
	// time-up signal will not come.
	c.timeUp = c.timer.State().Expired
	c.syncer = sessionsync.New(sched, c.deps.Sessions, sess.ID, sessionsync.Options{
		Interval:       c.opts.SyncInterval,
		InitialSeconds: sess.InteractionDurationSeconds,
		Logger:         c.log,
	})

	var tr tracking.Tracker
	switch modality {
	case study.ModalityConversational:
		c.convo = tracking.NewConversationTracker(sched, c.deps.Conversations, tracking.ConversationOptions{
			SessionID:     sess.ID,
			Logger:        c.log,
			OnBlockChange: func(string) { c.changed() },
		})
		tr = c.convo
	default:
		c.reading = tracking.NewReadingTracker(sched, tracking.ReadingOptions{
			TotalUnits:     c.opts.TotalUnits,
			OnSummary:      func(int, int) { c.changed() },
			OnScrollCommit: c.onScrollCommit,
			OnUnitChange:   c.onUnitChange,
		})
		tr = c.reading
	}

	c.timer.SetPaused(c.paused)
	c.syncer.SetPaused(c.paused)
	tr.SetPaused(c.paused)

	c.timer.Start()
	c.syncer.Start(c.bg)
	tr.Start()
}

// stopComponents stops every interval owned by the interaction phase. It is
// safe to call more than once.
func (c *Controller) stopComponents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torndown {
		return
	}
	c.torndown = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.syncer != nil {
		c.syncer.Stop()
	}
	if c.reading != nil {
		c.reading.Stop()
	}
	if c.convo != nil {
		c.convo.Stop()
	}
}

// SetPaused applies a pause flag from any source. The value given always
// overrides what the components last believed.
func (c *Controller) SetPaused(ctx context.Context, paused bool) {
	c.mu.Lock()
	was := c.paused
	c.paused = paused
	timer, syncer, reading, convo, ready := c.timer, c.syncer, c.reading, c.convo, c.ready
	c.mu.Unlock()

	if timer != nil {
		timer.SetPaused(paused)
	}
	if syncer != nil {
		syncer.SetPaused(paused)
	}
	if reading != nil {
		reading.SetPaused(paused)
	}
	if convo != nil {
		convo.SetPaused(paused)
	}

	if ready && was != paused {
		logType := study.LogResume
		if paused {
			logType = study.LogPause
		}
		data := map[string]any{}
		if timer != nil {
			data["remaining_seconds"] = timer.State().RemainingSeconds
		}
		c.logEvent(ctx, logType, data)
	}
	c.changed()
}

// Pause stops the countdown and active time accounting.
func (c *Controller) Pause(ctx context.Context) { c.SetPaused(ctx, true) }

// Resume continues from the exact remaining time.
func (c *Controller) Resume(ctx context.Context) { c.SetPaused(ctx, false) }

// Navigate moves the reading view to unit.
func (c *Controller) Navigate(unit int) error {
	reading, err := c.readingTracker()
	if err != nil {
		return err
	}
	return reading.Navigate(unit)
}

// Scroll records a scroll depth sample for the current unit.
func (c *Controller) Scroll(depth int) error {
	reading, err := c.readingTracker()
	if err != nil {
		return err
	}
	reading.RecordScroll(depth)
	return nil
}

// Send sends a message to the assistant. A cost-limit refusal is logged
// as a blocked message and returned as *study.CostLimitError.
func (c *Controller) Send(ctx context.Context, message string) (*study.ExchangeResponse, error) {
	c.mu.Lock()
	ready, convo := c.ready, c.convo
	c.mu.Unlock()
	if !ready {
		return nil, ErrNotReady
	}
	if convo == nil {
		return nil, ErrWrongModality
	}
	if err := c.ensureConversation(ctx); err != nil {
		return nil, err
	}

	resp, err := convo.Send(ctx, message)
	if err != nil {
		var cle *study.CostLimitError
		if errors.As(err, &cle) {
			c.logEvent(ctx, study.LogMessageBlocked, map[string]any{
				"reason":                cle.Reason,
				"daily_cost":            cle.Limits.DailyCost,
				"weekly_cost":           cle.Limits.WeeklyCost,
				"daily_limit_exceeded":  cle.Limits.DailyLimitExceeded,
				"weekly_limit_exceeded": cle.Limits.WeeklyLimitExceeded,
			})
		}
		c.changed()
		return nil, err
	}
	c.changed()
	return resp, nil
}

// ensureConversation starts the backend conversation if entering the
// interaction could not.
func (c *Controller) ensureConversation(ctx context.Context) error {
	c.mu.Lock()
	started := c.conversationStarted
	id := ""
	if c.session != nil {
		id = c.session.ID
	}
	c.mu.Unlock()
	if started {
		return nil
	}
	if err := c.deps.Conversations.StartConversation(ctx, id); err != nil {
		return retryable("start conversation", err)
	}
	c.mu.Lock()
	c.conversationStarted = true
	c.mu.Unlock()
	c.log.Info("conversation started", "session_id", id)
	return nil
}

// Unload makes a final best-effort time push and stops all background
// work. Nothing is retried; up to one sync interval of active time may be
// lost.
func (c *Controller) Unload() {
	c.mu.Lock()
	syncer, ready := c.syncer, c.ready
	c.mu.Unlock()

	if ready && syncer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()
		if err := syncer.Flush(ctx); err != nil {
			c.log.Warn("final time sync failed", "error", err)
		}
	}
	c.stopComponents()
}

func (c *Controller) readingTracker() (*tracking.ReadingTracker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil, ErrNotReady
	}
	if c.reading == nil {
		return nil, ErrWrongModality
	}
	return c.reading, nil
}

func (c *Controller) onSignal(s deadline.Signal) {
	c.mu.Lock()
	if s == deadline.SignalTimeUp {
		c.timeUp = true
	}
	ctx := c.bg
	c.mu.Unlock()

	c.log.Info("deadline signal", "signal", s.String())
	c.logEvent(ctx, study.LogTimerWarning, map[string]any{"signal": s.String()})
	if c.opts.OnSignal != nil {
		c.opts.OnSignal(s)
	}
	c.changed()
}

func (c *Controller) onUnitChange(from, to int, first bool) {
	c.mu.Lock()
	ctx := c.bg
	c.mu.Unlock()
	c.logEvent(ctx, study.LogPageView, map[string]any{
		"from_unit":   from,
		"unit":        to,
		"first_visit": first,
		"total_units": c.opts.TotalUnits,
	})
	c.changed()
}

func (c *Controller) onScrollCommit(unit, depth int) {
	c.mu.Lock()
	ctx := c.bg
	c.mu.Unlock()
	c.logEvent(ctx, study.LogScroll, map[string]any{
		"unit":  unit,
		"depth": depth,
	})
}

// logEvent records telemetry. Failures never interrupt the participant.
func (c *Controller) logEvent(ctx context.Context, logType string, data map[string]any) {
	id := c.sessionID()
	if id == "" || ctx == nil {
		return
	}
	if err := c.deps.Sessions.LogEvent(ctx, id, study.LogEvent{LogType: logType, EventData: data}); err != nil {
		c.log.Warn("log event failed", "log_type", logType, "error", err)
	}
}
