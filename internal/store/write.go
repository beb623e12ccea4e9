package store

import (
	"context"
	"fmt"

	"github.com/roach88/rulegate/internal/ir"
)

// BeginSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate ids are silently ignored.
func (s *Store) BeginSession(ctx context.Context, rec ir.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, rule_set, rule_set_hash, engine_version, sticky, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.RuleSet,
		rec.RuleSetHash,
		rec.EngineVersion,
		boolToInt(rec.Sticky),
		formatTime(rec.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// RecordEvaluation appends an evaluation to a session's journal.
// Duplicate (session_id, seq) pairs are silently ignored.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) RecordEvaluation(ctx context.Context, rec ir.EvaluationRecord) error {
	outcomeJSON, err := marshalOutcome(rec.Outcome)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations
		(session_id, seq, kind, text, text_hash, outcome, outcome_hash, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		rec.SessionID,
		rec.Seq,
		string(rec.Kind),
		rec.Text,
		rec.TextHash,
		outcomeJSON,
		rec.OutcomeHash,
		boolToInt(rec.Outcome.Complete),
	)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	return nil
}

// RecordExport appends an export to a session's journal.
// Duplicate (session_id, seq) pairs are silently ignored.
func (s *Store) RecordExport(ctx context.Context, rec ir.ExportRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports
		(session_id, seq, text_hash, word_count, normalized)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		rec.SessionID,
		rec.Seq,
		rec.TextHash,
		rec.WordCount,
		boolToInt(rec.Normalized),
	)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}
