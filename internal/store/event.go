package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo over the append-only event tables. Every
// append takes a number from the shared sequence counter on the same
// connection or transaction as the insert.
type eventRepo struct {
	q   querier
	seq *sequenceCounter
}

func (r *eventRepo) AppendSessionLog(ctx context.Context, data SessionLogData) error {
	if data.LogType == "" {
		return fmt.Errorf("append session log: empty log type")
	}
	payload := data.EventData
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	seqNum, err := r.seq.Next(ctx, r.q)
	if err != nil {
		return err
	}

	query, args := builder.Insert(sessionLogsTable.Name).
		Columns("sequence", "timestamp", "session_id", "participant_id", "log_type", "event_data").
		Values(seqNum, time.Now().UTC(), data.SessionID, data.ParticipantID, data.LogType, string(raw)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session log: %w", err)
	}
	return nil
}

// SessionLogs returns a session's logs in sequence order, oldest first.
func (r *eventRepo) SessionLogs(ctx context.Context, sessionID string, opts QueryOpts) ([]SessionLogRecord, error) {
	sel := builder.Select("id", "sequence", "timestamp", "session_id", "participant_id", "log_type", "event_data").
		From(builder.Table(sessionLogsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("sequence")
	applyQueryOpts(sel, opts)

	query, args := sel.Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer rows.Close()

	var records []SessionLogRecord
	for rows.Next() {
		var (
			rec SessionLogRecord
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp,
			&rec.SessionID, &rec.ParticipantID, &rec.LogType, &raw); err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.EventData); err != nil {
				return nil, fmt.Errorf("decode event data %d: %w", rec.ID, err)
			}
		}
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *eventRepo) AppendExchange(ctx context.Context, data ExchangeData) error {
	seqNum, err := r.seq.Next(ctx, r.q)
	if err != nil {
		return err
	}

	query, args := builder.Insert(exchangesTable.Name).
		Columns("sequence", "timestamp", "session_id", "participant_id", "turn",
			"message", "reply", "model", "input_tokens", "output_tokens", "cost", "latency_ms").
		Values(seqNum, time.Now().UTC(), data.SessionID, data.ParticipantID, data.Turn,
			data.Message, data.Reply, data.Model, data.InputTokens, data.OutputTokens, data.Cost, data.LatencyMs).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save exchange: %w", err)
	}
	return nil
}

// Exchanges returns a session's exchanges in turn order.
func (r *eventRepo) Exchanges(ctx context.Context, sessionID string) ([]ExchangeRecord, error) {
	query, args := builder.Select("id", "sequence", "timestamp", "session_id", "participant_id", "turn",
		"message", "reply", "model", "input_tokens", "output_tokens", "cost", "latency_ms").
		From(builder.Table(exchangesTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("sequence").
		Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var records []ExchangeRecord
	for rows.Next() {
		var rec ExchangeRecord
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.ParticipantID,
			&rec.Turn, &rec.Message, &rec.Reply, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &rec.Cost, &rec.LatencyMs); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *eventRepo) SpendSince(ctx context.Context, participantID string, since time.Time) (float64, error) {
	query, args := builder.Select("COALESCE(SUM(cost), 0)").
		From(builder.Table(exchangesTable.Name)).
		Where(entsql.And(
			entsql.EQ("participant_id", participantID),
			entsql.GTE("timestamp", since.UTC()),
		)).
		Query()

	var total float64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum spend: %w", err)
	}
	return total, nil
}

// applyQueryOpts adds the optional sequence, time and limit filters.
func applyQueryOpts(sel *entsql.Selector, opts QueryOpts) {
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("timestamp", opts.To.UTC()))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
}
