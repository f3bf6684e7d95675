package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek/studyctl/internal/store"
	"github.com/abhisek/studyctl/internal/study"
)

// StartSession returns the participant's session, creating it on first
// call. A new session starts at PRE_ASSESSMENT so the client's single
// phase update moves it into the interaction.
func (a *ParticipantAPI) StartSession(ctx context.Context) (*study.Session, error) {
	var out *study.Session
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		p, err := r.Participants.Get(ctx, a.id)
		if err != nil {
			return err
		}
		if !p.Flags.PreAssessment {
			return &study.TransitionError{
				From:   study.InitialPhase(p.Flags),
				To:     study.PhaseInteraction,
				Reason: "pre-assessment not completed",
			}
		}

		existing, err := r.Sessions.GetByParticipant(ctx, a.id)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, study.ErrNotFound) {
			return err
		}

		sess := study.Session{
			ID:            uuid.NewString(),
			ParticipantID: a.id,
			CurrentPhase:  study.PhasePreAssessment,
			StartedAt:     a.svc.opts.Now().UTC(),
		}
		if err := r.Sessions.Create(ctx, sess); err != nil {
			return err
		}
		out = &sess
		a.svc.log.Info("session created", "participant_id", a.id, "session_id", sess.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return out, nil
}

// GetSession returns the session, including completed ones.
func (a *ParticipantAPI) GetSession(ctx context.Context, id string) (*study.Session, error) {
	return a.ownedSession(ctx, a.svc.store.SessionRepo(), id)
}

// UpdatePhase moves the session forward. Repeating the current phase is a
// no-op; moving to POST_ASSESSMENT also records the interaction flag.
func (a *ParticipantAPI) UpdatePhase(ctx context.Context, id string, phase study.Phase) (*study.Session, error) {
	if !phase.Valid() || phase == study.PhaseCompleted {
		return nil, fmt.Errorf("update phase to %q: %w", phase, study.ErrInvalidRequest)
	}

	var out *study.Session
	changed := false
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		sess, err := a.openSession(ctx, r.Sessions, id)
		if err != nil {
			return err
		}
		if sess.CurrentPhase == phase {
			out = sess
			return nil
		}
		if err := study.CheckTransition(sess.CurrentPhase, phase); err != nil {
			return err
		}

		if phase == study.PhasePostAssessment {
			if err := setFlag(ctx, r.Participants, a.id, study.PhaseInteraction); err != nil {
				return err
			}
		}
		if err := r.Sessions.UpdatePhase(ctx, id, phase); err != nil {
			return err
		}
		sess.CurrentPhase = phase
		out = sess
		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update phase: %w", err)
	}
	if changed {
		a.svc.opts.Metrics.Transitioned(string(phase))
		a.svc.log.Info("phase updated", "session_id", id, "phase", phase)
	}
	return out, nil
}

// CompleteSession closes the session once the post-assessment is recorded.
// Completing an already completed session returns it unchanged.
func (a *ParticipantAPI) CompleteSession(ctx context.Context, id string) (*study.Session, error) {
	var out *study.Session
	changed := false
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		sess, err := a.ownedSession(ctx, r.Sessions, id)
		if err != nil {
			return err
		}
		if sess.IsCompleted {
			out = sess
			return nil
		}
		p, err := r.Participants.Get(ctx, a.id)
		if err != nil {
			return err
		}
		if !p.Flags.PostAssessment {
			return &study.TransitionError{
				From:   sess.CurrentPhase,
				To:     study.PhaseCompleted,
				Reason: "post-assessment not completed",
			}
		}
		if err := r.Sessions.Complete(ctx, id, a.svc.opts.Now()); err != nil {
			return err
		}
		sess.IsCompleted = true
		sess.IsPaused = false
		sess.CurrentPhase = study.PhaseCompleted
		out = sess
		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if changed {
		a.svc.opts.Metrics.Completed()
		a.svc.log.Info("session completed", "session_id", id)
	}
	return out, nil
}

// UpdateSessionTime records elapsed interaction time and the pause flag.
// The stored duration never decreases.
func (a *ParticipantAPI) UpdateSessionTime(ctx context.Context, id string, update study.TimeUpdate) error {
	if update.TimeSpent < 0 {
		return fmt.Errorf("negative time spent %d: %w", update.TimeSpent, study.ErrInvalidRequest)
	}
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		if _, err := a.openSession(ctx, r.Sessions, id); err != nil {
			return err
		}
		return r.Sessions.UpdateTime(ctx, id, update.TimeSpent, update.IsPaused)
	})
	if err != nil {
		return fmt.Errorf("update session time: %w", err)
	}
	a.svc.opts.Metrics.TimeUpdated()
	return nil
}

// LogEvent validates and appends a telemetry event to the session log.
func (a *ParticipantAPI) LogEvent(ctx context.Context, id string, event study.LogEvent) error {
	if err := a.svc.events.Validate(event); err != nil {
		a.svc.opts.Metrics.EventLogged(event.LogType, false)
		return err
	}
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		if _, err := a.openSession(ctx, r.Sessions, id); err != nil {
			return err
		}
		return r.Events.AppendSessionLog(ctx, store.SessionLogData{
			SessionID:     id,
			ParticipantID: a.id,
			LogType:       event.LogType,
			EventData:     event.EventData,
		})
	})
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	a.svc.opts.Metrics.EventLogged(event.LogType, true)
	return nil
}

// ownedSession loads a session and checks that it belongs to this participant.
func (a *ParticipantAPI) ownedSession(ctx context.Context, repo store.SessionRepo, id string) (*study.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("empty session id: %w", study.ErrInvalidRequest)
	}
	sess, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ParticipantID != a.id {
		return nil, fmt.Errorf("session %s: %w", id, study.ErrForbidden)
	}
	return sess, nil
}

// openSession is ownedSession that also rejects completed sessions.
func (a *ParticipantAPI) openSession(ctx context.Context, repo store.SessionRepo, id string) (*study.Session, error) {
	sess, err := a.ownedSession(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted {
		return nil, fmt.Errorf("session %s: %w", id, study.ErrSessionCompleted)
	}
	return sess, nil
}
