package lifecycle

import (
	"context"

	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/tracking"
)

// Finish trigger values recorded in the completion event.
const (
	TriggerFinishEarly = "finish_early"
	TriggerTimeUp      = "time_up_acknowledged"
)

// Finish leaves the interaction phase at the participant's request.
// Concurrent calls share one execution; calls after the phase has been
// left are no-ops. On a *RetryableError the call can simply be repeated.
func (c *Controller) Finish(ctx context.Context) error {
	return c.finish(ctx, TriggerFinishEarly)
}

// AcknowledgeTimeUp leaves the interaction phase after the participant has
// acknowledged the advisory deadline. The deadline alone never does this.
func (c *Controller) AcknowledgeTimeUp(ctx context.Context) error {
	c.mu.Lock()
	timeUp := c.timeUp
	c.mu.Unlock()
	if !timeUp {
		return ErrDeadlineNotReached
	}
	return c.finish(ctx, TriggerTimeUp)
}

func (c *Controller) finish(ctx context.Context, trigger string) error {
	_, err, shared := c.flight.Do("finish", func() (any, error) {
		return nil, c.leaveInteraction(ctx, trigger)
	})
	if shared {
		c.log.Debug("finish coalesced with an in-flight call")
	}
	return err
}

// leaveInteraction runs the leave sequence strictly in order. Steps 1, 2
// and 5 are best-effort; the phase commit and the profile refresh must
// succeed, and the profile refresh only runs after the commit.
func (c *Controller) leaveInteraction(ctx context.Context, trigger string) error {
	c.mu.Lock()
	if c.phase != study.PhaseInteraction {
		c.mu.Unlock()
		return nil
	}
	modality := c.participant.Modality
	c.mu.Unlock()

	summary := c.closeTracking(ctx)

	// 1. Completion event with the final summary.
	c.mu.Lock()
	logged := c.completionLogged
	c.mu.Unlock()
	if !logged {
		data := summary.EventData()
		snap := c.Snapshot()
		data["trigger"] = trigger
		data["remaining_seconds"] = snap.Timer.RemainingSeconds
		data["time_up"] = snap.TimeUp
		if id := c.sessionID(); id != "" {
			if err := c.deps.Sessions.LogEvent(ctx, id, study.LogEvent{
				LogType:   study.LogInteractionCompleted,
				EventData: data,
			}); err != nil {
				c.log.Warn("completion event not recorded", "error", err)
			} else {
				c.mu.Lock()
				c.completionLogged = true
				c.mu.Unlock()
			}
		}
	}

	// 2. End the remote conversation.
	c.mu.Lock()
	ended := c.conversationEnded
	c.mu.Unlock()
	if modality == study.ModalityConversational && !ended {
		if id := c.sessionID(); id != "" {
			if err := c.deps.Conversations.EndConversation(ctx, id); err != nil {
				c.log.Warn("end conversation failed", "session_id", id, "error", err)
			} else {
				c.mu.Lock()
				c.conversationEnded = true
				c.mu.Unlock()
			}
		}
	}

	// 3. Authoritative phase.
	auth, err := c.authoritativePhase(ctx)
	if err != nil {
		return retryable("fetch phase", err)
	}

	// 4. The single correct transition for that phase.
	next := study.PhasePostAssessment
	switch {
	case auth == study.PhaseInteraction:
		id, err := c.ensureSession(ctx)
		if err != nil {
			return err
		}
		if _, err := c.deps.Sessions.UpdatePhase(ctx, id, study.PhasePostAssessment); err != nil {
			return retryable("leave interaction", err)
		}
	case auth.Before(study.PhaseInteraction):
		c.heal(study.PhaseInteraction, auth)
		return nil
	default:
		if auth != study.PhasePostAssessment {
			c.log.Warn("phase already past post-assessment", "remote", auth)
			next = auth
		}
	}

	// 5. Direct completion mark, independent of the phase update.
	if err := c.deps.Profiles.MarkInteractionComplete(ctx); err != nil {
		c.log.Warn("mark interaction complete failed", "error", err)
	}

	// 6. Completion flags, read after the commit.
	if _, err := c.refreshProfile(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.phase = next
	c.ready = false
	c.mu.Unlock()
	c.log.Info("interaction finished", "trigger", trigger, "phase", next)
	c.changed()
	return nil
}

// closeTracking stops the interaction components, pushes the final active
// time and returns the tracker summary.
func (c *Controller) closeTracking(ctx context.Context) tracking.Summary {
	c.mu.Lock()
	reading, convo, syncer, torndown := c.reading, c.convo, c.syncer, c.torndown
	c.mu.Unlock()

	var summary tracking.Summary
	switch {
	case reading != nil:
		if torndown {
			summary = reading.Summary()
		} else {
			summary = reading.Finish()
		}
	case convo != nil:
		summary = convo.Summary()
	default:
		summary = tracking.Summary{Modality: c.Snapshot().Modality}
	}

	if syncer != nil && !torndown {
		if err := syncer.Flush(ctx); err != nil {
			c.log.Warn("final time sync failed", "error", err)
		}
	}
	c.stopComponents()
	return summary
}
