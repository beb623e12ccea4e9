package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rulegate/internal/ir"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ir.SessionRecord
	Evaluations int  `json:"evaluations"`
	Completed   bool `json:"completed"` // any evaluation reached the win state
}

// ReadSession returns one session record.
// Returns ErrNotFound (wrapped) if the session does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_set, rule_set_hash, engine_version, sticky, started_at
		FROM sessions
		WHERE id = ?
	`, id)

	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SessionRecord{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.SessionRecord{}, err
	}
	return rec, nil
}

// ListSessions returns every session, oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.rule_set, s.rule_set_hash, s.engine_version, s.sticky, s.started_at,
		       COUNT(e.seq), COALESCE(MAX(e.complete), 0)
		FROM sessions s
		LEFT JOIN evaluations e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		var (
			sum       SessionSummary
			sticky    int
			started   string
			completed int
		)
		if err := rows.Scan(&sum.ID, &sum.RuleSet, &sum.RuleSetHash, &sum.EngineVersion,
			&sticky, &started, &sum.Evaluations, &completed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Sticky = sticky != 0
		sum.Completed = completed != 0
		if sum.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// ReadEvaluations returns a session's evaluations ordered by seq.
//
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadEvaluations(ctx context.Context, sessionID string) ([]ir.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, text, text_hash, outcome, outcome_hash
		FROM evaluations
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	out := []ir.EvaluationRecord{}
	for rows.Next() {
		var (
			rec     ir.EvaluationRecord
			kind    string
			outcome string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &kind, &rec.Text, &rec.TextHash, &outcome, &rec.OutcomeHash); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		rec.Kind = ir.EvaluationKind(kind)
		if rec.Outcome, err = unmarshalOutcome(outcome); err != nil {
			return nil, fmt.Errorf("evaluation seq %d: %w", rec.Seq, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

// ReadExports returns a session's exports ordered by seq.
func (s *Store) ReadExports(ctx context.Context, sessionID string) ([]ir.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, text_hash, word_count, normalized
		FROM exports
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	out := []ir.ExportRecord{}
	for rows.Next() {
		var (
			rec        ir.ExportRecord
			normalized int
		)
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.TextHash, &rec.WordCount, &normalized); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		rec.Normalized = normalized != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}

func scanSession(row *sql.Row) (ir.SessionRecord, error) {
	var (
		rec     ir.SessionRecord
		sticky  int
		started string
	)
	if err := row.Scan(&rec.ID, &rec.RuleSet, &rec.RuleSetHash, &rec.EngineVersion, &sticky, &started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}
	rec.Sticky = sticky != 0
	t, err := parseTime(started)
	if err != nil {
		return rec, err
	}
	rec.StartedAt = t
	return rec, nil
}
