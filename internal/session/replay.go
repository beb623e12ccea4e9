package session

import (
	"fmt"

	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/ir"
)

// Replay and determinism
//
// A journal holds every text snapshot a session evaluated, in order, with a
// hash of the outcome the engine produced. Evaluation depends only on the
// rule set and the text (wall time feeds help bookkeeping, which is not part
// of the outcome), so feeding the same snapshots to a fresh engine must
// reproduce every outcome hash. Replay does exactly that and reports the
// first step that diverges.

// Divergence is a journaled step whose replayed outcome differs.
type Divergence struct {
	Seq      int64             `json:"seq"`
	Kind     ir.EvaluationKind `json:"kind"`
	Recorded ir.Outcome        `json:"recorded"`
	Replayed ir.Outcome        `json:"replayed"`
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	SessionID   string       `json:"session_id"`
	Steps       int          `json:"steps"`
	Divergences []Divergence `json:"divergences,omitempty"`
	Final       ir.Outcome   `json:"final"`
}

// Deterministic reports whether every step reproduced.
func (r ReplayReport) Deterministic() bool { return len(r.Divergences) == 0 }

// Replay re-evaluates records (ordered by Seq) on a fresh engine built
// from rs and compares outcomes. rs must hash to the rule set the session
// was recorded against.
func Replay(sess ir.SessionRecord, rs ir.RuleSet, records []ir.EvaluationRecord, opts ...engine.Option) (ReplayReport, error) {
	if sess.Sticky {
		opts = append(opts, engine.WithStickyCompletion())
	}
	eng, err := engine.New(rs, opts...)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("build engine: %w", err)
	}
	if sess.RuleSetHash != "" && eng.RuleSetHash() != sess.RuleSetHash {
		return ReplayReport{}, fmt.Errorf("rule set %q has hash %s, session %s was recorded against %s",
			rs.Name, eng.RuleSetHash(), sess.ID, sess.RuleSetHash)
	}

	report := ReplayReport{SessionID: sess.ID}
	var prev int64
	for _, rec := range records {
		if rec.Seq <= prev {
			return report, fmt.Errorf("journal out of order: seq %d after %d", rec.Seq, prev)
		}
		prev = rec.Seq

		text := rec.Text
		switch rec.Kind {
		case ir.KindText:
			eng.Evaluate(text)
		case ir.KindRestart:
			eng.Restart()
			text = ""
		default:
			return report, fmt.Errorf("seq %d: unknown journal kind %q", rec.Seq, rec.Kind)
		}
		report.Steps++

		got := Outcome(eng, text)
		if got.Hash() != rec.OutcomeHash {
			report.Divergences = append(report.Divergences, Divergence{
				Seq:      rec.Seq,
				Kind:     rec.Kind,
				Recorded: rec.Outcome,
				Replayed: got,
			})
		}
		report.Final = got
	}
	return report, nil
}
