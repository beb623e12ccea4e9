package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/ir"
)

func journaled(t *testing.T) *memJournal {
	t.Helper()
	j := &memJournal{}
	s, clock := newSession(t, WithJournal(j))
	ctx := context.Background()

	s.SetText(ctx, "one two")
	s.SetText(ctx, "one two three")
	clock.Advance(time.Minute) // help bookkeeping is not part of the outcome
	s.HelpTick()
	s.SetText(ctx, "one two three robot")
	s.Restart(ctx)
	s.SetText(ctx, "robot")
	return j
}

func TestReplay_Deterministic(t *testing.T) {
	j := journaled(t)

	report, err := Replay(j.sessions[0], twoStep(), j.evals)
	require.NoError(t, err)
	assert.True(t, report.Deterministic())
	assert.Equal(t, 5, report.Steps)
	assert.Equal(t, "s-1", report.SessionID)
	assert.Equal(t, []int{1}, report.Final.Active)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	j := journaled(t)
	j.evals[1].OutcomeHash = "tampered"

	report, err := Replay(j.sessions[0], twoStep(), j.evals)
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, int64(2), report.Divergences[0].Seq)
}

func TestReplay_RejectsDifferentRuleSet(t *testing.T) {
	j := journaled(t)
	rs := twoStep()
	rs.Rules[1].Description = "edited"

	_, err := Replay(j.sessions[0], rs, j.evals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorded against")
}

func TestReplay_RejectsOutOfOrder(t *testing.T) {
	j := journaled(t)
	j.evals[0], j.evals[1] = j.evals[1], j.evals[0]

	_, err := Replay(j.sessions[0], twoStep(), j.evals)
	require.Error(t, err)
}

func TestReplay_UnknownKind(t *testing.T) {
	j := journaled(t)
	j.evals[0].Kind = ir.EvaluationKind("bogus")

	_, err := Replay(j.sessions[0], twoStep(), j.evals)
	require.Error(t, err)
}
