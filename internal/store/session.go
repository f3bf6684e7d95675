package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/studyctl/internal/study"
)

var sessionFields = []string{
	"id", "participant_id", "current_phase", "is_completed", "is_paused",
	"interaction_duration_seconds", "started_at",
}

type sessionRepo struct {
	q querier
}

func (r *sessionRepo) Create(ctx context.Context, s study.Session) error {
	started := s.StartedAt.UTC()
	if s.StartedAt.IsZero() {
		started = time.Now().UTC()
	}
	query, args := builder.Insert(studySessionsTable.Name).
		Columns(append(sessionFields, "updated_at")...).
		Values(s.ID, s.ParticipantID, string(s.CurrentPhase), s.IsCompleted, s.IsPaused,
			s.InteractionDurationSeconds, started, started).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*study.Session, error) {
	return r.getBy(ctx, "id", id)
}

func (r *sessionRepo) GetByParticipant(ctx context.Context, participantID string) (*study.Session, error) {
	return r.getBy(ctx, "participant_id", participantID)
}

func (r *sessionRepo) getBy(ctx context.Context, column, value string) (*study.Session, error) {
	query, args := builder.Select(sessionFields...).
		From(builder.Table(studySessionsTable.Name)).
		Where(entsql.EQ(column, value)).
		Query()
	s, err := scanSession(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s=%s: %w", column, value, study.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) UpdatePhase(ctx context.Context, id string, phase study.Phase) error {
	query, args := builder.Update(studySessionsTable.Name).
		Set("current_phase", string(phase)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return requireRow(res, "session", id)
}

func (r *sessionRepo) UpdateTime(ctx context.Context, id string, seconds int, paused bool) error {
	query, args := builder.Update(studySessionsTable.Name).
		Set("is_paused", paused).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update pause flag: %w", err)
	}
	if err := requireRow(res, "session", id); err != nil {
		return err
	}

	// Duration only grows; an out-of-order or stale push is dropped.
	query, args = builder.Update(studySessionsTable.Name).
		Set("interaction_duration_seconds", seconds).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.LT("interaction_duration_seconds", seconds),
		)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, id string, at time.Time) error {
	query, args := builder.Update(studySessionsTable.Name).
		Set("is_completed", true).
		Set("is_paused", false).
		Set("current_phase", string(study.PhaseCompleted)).
		Set("completed_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return requireRow(res, "session", id)
}

func scanSession(row rowScanner) (*study.Session, error) {
	var (
		s     study.Session
		phase string
	)
	err := row.Scan(&s.ID, &s.ParticipantID, &phase, &s.IsCompleted, &s.IsPaused,
		&s.InteractionDurationSeconds, &s.StartedAt)
	if err != nil {
		return nil, err
	}
	s.CurrentPhase = study.Phase(phase)
	s.StartedAt = s.StartedAt.UTC()
	return &s, nil
}
