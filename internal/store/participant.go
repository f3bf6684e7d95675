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

var participantFields = []string{
	"id", "modality", "consent", "pre_assessment", "interaction", "post_assessment", "created_at",
}

type participantRepo struct {
	q querier
}

func (r *participantRepo) Create(ctx context.Context, p study.Participant) error {
	if !p.Modality.Valid() {
		return fmt.Errorf("create participant: unknown modality %q", p.Modality)
	}
	created := p.CreatedAt.UTC()
	if p.CreatedAt.IsZero() {
		created = time.Now().UTC()
	}
	query, args := builder.Insert(participantsTable.Name).
		Columns(append(participantFields, "updated_at")...).
		Values(p.ID, string(p.Modality),
			p.Flags.Consent, p.Flags.PreAssessment, p.Flags.Interaction, p.Flags.PostAssessment,
			created, created).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (r *participantRepo) Get(ctx context.Context, id string) (*study.Participant, error) {
	query, args := builder.Select(participantFields...).
		From(builder.Table(participantsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()
	p, err := scanParticipant(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %s: %w", id, study.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (r *participantRepo) UpdateFlags(ctx context.Context, id string, flags study.CompletionFlags) error {
	query, args := builder.Update(participantsTable.Name).
		Set("consent", flags.Consent).
		Set("pre_assessment", flags.PreAssessment).
		Set("interaction", flags.Interaction).
		Set("post_assessment", flags.PostAssessment).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update flags: %w", err)
	}
	return requireRow(res, "participant", id)
}

func (r *participantRepo) List(ctx context.Context) ([]study.Participant, error) {
	query, args := builder.Select(participantFields...).
		From(builder.Table(participantsTable.Name)).
		OrderBy("created_at").
		Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []study.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*study.Participant, error) {
	var (
		p        study.Participant
		modality string
	)
	err := row.Scan(&p.ID, &modality,
		&p.Flags.Consent, &p.Flags.PreAssessment, &p.Flags.Interaction, &p.Flags.PostAssessment,
		&p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Modality = study.Modality(modality)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// requireRow turns a zero-row update into study.ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, study.ErrNotFound)
	}
	return nil
}
