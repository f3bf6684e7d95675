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

type conversationRepo struct {
	q querier
}

func (r *conversationRepo) Start(ctx context.Context, sessionID, participantID string, at time.Time) error {
	query, args := builder.Insert(conversationsTable.Name).
		Columns("session_id", "participant_id", "started_at").
		Values(sessionID, participantID, at.UTC()).
		OnConflict(entsql.DoNothing()).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) End(ctx context.Context, sessionID string, at time.Time) error {
	query, args := builder.Update(conversationsTable.Name).
		Set("ended_at", at.UTC()).
		Where(entsql.And(
			entsql.EQ("session_id", sessionID),
			entsql.IsNull("ended_at"),
		)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Either already ended or never started; only the latter is an error.
		_, err := r.Get(ctx, sessionID)
		return err
	}
	return nil
}

func (r *conversationRepo) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	query, args := builder.Select("session_id", "participant_id", "started_at", "ended_at").
		From(builder.Table(conversationsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		Query()

	var (
		c     Conversation
		ended sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&c.SessionID, &c.ParticipantID, &c.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", sessionID, study.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.StartedAt = c.StartedAt.UTC()
	if ended.Valid {
		t := ended.Time.UTC()
		c.EndedAt = &t
	}
	return &c, nil
}
