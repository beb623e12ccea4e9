package ir

import "time"

// EvaluationKind tags a journal entry.
type EvaluationKind string

const (
	KindText    EvaluationKind = "text"    // a text snapshot was evaluated
	KindRestart EvaluationKind = "restart" // the session was reset
)

// SessionRecord opens a journaled session.
type SessionRecord struct {
	ID            string    `json:"id"`
	RuleSet       string    `json:"rule_set"`
	RuleSetHash   string    `json:"rule_set_hash"`
	EngineVersion string    `json:"engine_version"`
	Sticky        bool      `json:"sticky"`
	StartedAt     time.Time `json:"started_at"`
}

// EvaluationRecord is one journaled step. Seq orders entries within a
// session; OutcomeHash commits to Outcome so replay can compare cheaply.
type EvaluationRecord struct {
	SessionID   string         `json:"session_id"`
	Seq         int64          `json:"seq"`
	Kind        EvaluationKind `json:"kind"`
	Text        string         `json:"text"`
	TextHash    string         `json:"text_hash"`
	Outcome     Outcome        `json:"outcome"`
	OutcomeHash string         `json:"outcome_hash"`
}

// Outcome is the observable engine state after a step.
type Outcome struct {
	WordCount int   `json:"word_count"`
	Active    []int `json:"active"`
	Satisfied []int `json:"satisfied"`
	Complete  bool  `json:"complete"`
}

// CanonicalMap converts the outcome to canonical-JSON-safe values.
func (o Outcome) CanonicalMap() map[string]any {
	active, satisfied := o.Active, o.Satisfied
	if active == nil {
		active = []int{}
	}
	if satisfied == nil {
		satisfied = []int{}
	}
	return map[string]any{
		"word_count": o.WordCount,
		"active":     active,
		"satisfied":  satisfied,
		"complete":   o.Complete,
	}
}

// Hash returns the domain-separated hash of the outcome.
func (o Outcome) Hash() string {
	h, _ := EvaluationHash(o.CanonicalMap()) // ints, bools and int slices always encode
	return h
}

// ExportRecord notes that the story was exported.
type ExportRecord struct {
	SessionID  string `json:"session_id"`
	Seq        int64  `json:"seq"`
	TextHash   string `json:"text_hash"`
	WordCount  int    `json:"word_count"`
	Normalized bool   `json:"normalized"`
}
