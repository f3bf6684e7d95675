package backend

import (
	"context"
	"fmt"

	"github.com/abhisek/studyctl/internal/store"
	"github.com/abhisek/studyctl/internal/study"
)

func (a *ParticipantAPI) GetProfile(ctx context.Context) (*study.Participant, error) {
	p, err := a.svc.store.ParticipantRepo().Get(ctx, a.id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (a *ParticipantAPI) RecordConsent(ctx context.Context) error {
	return a.markFlag(ctx, study.PhaseConsent)
}

// MarkInteractionComplete sets the interaction flag directly. It succeeds
// whether or not a phase update already set it.
func (a *ParticipantAPI) MarkInteractionComplete(ctx context.Context) error {
	return a.markFlag(ctx, study.PhaseInteraction)
}

func (a *ParticipantAPI) CompleteAssessment(ctx context.Context, kind study.AssessmentKind) error {
	phase, err := kind.Phase()
	if err != nil {
		return fmt.Errorf("%v: %w", err, study.ErrInvalidRequest)
	}
	return a.markFlag(ctx, phase)
}

func (a *ParticipantAPI) markFlag(ctx context.Context, phase study.Phase) error {
	err := a.svc.store.InTx(ctx, func(r store.Repos) error {
		return setFlag(ctx, r.Participants, a.id, phase)
	})
	if err != nil {
		return fmt.Errorf("mark %s complete: %w", phase, err)
	}
	return nil
}

// setFlag sets the completion flag owned by phase, keeping flags in order.
func setFlag(ctx context.Context, repo store.ParticipantRepo, id string, phase study.Phase) error {
	p, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := p.Flags.Set(phase)
	if err != nil {
		return err
	}
	if next == p.Flags {
		return nil
	}
	return repo.UpdateFlags(ctx, id, next)
}
