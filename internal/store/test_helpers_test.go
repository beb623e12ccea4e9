package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/rulegate/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session record with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string, started time.Time) ir.SessionRecord {
	t.Helper()
	rec := ir.SessionRecord{
		ID:            id,
		RuleSet:       "future-education",
		RuleSetHash:   "test-hash",
		EngineVersion: "0.1.0",
		StartedAt:     started,
	}
	if err := s.BeginSession(context.Background(), rec); err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	return rec
}

// createTestEvaluation builds an evaluation record for text at seq.
func createTestEvaluation(sessionID string, seq int64, text string, active []int, complete bool) ir.EvaluationRecord {
	o := ir.Outcome{
		WordCount: len(active) * 3,
		Active:    active,
		Satisfied: []int{},
		Complete:  complete,
	}
	return ir.EvaluationRecord{
		SessionID:   sessionID,
		Seq:         seq,
		Kind:        ir.KindText,
		Text:        text,
		TextHash:    ir.TextHash(text),
		Outcome:     o,
		OutcomeHash: o.Hash(),
	}
}
