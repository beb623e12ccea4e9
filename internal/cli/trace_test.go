package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/store"
)

func executeTrace(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeTrace(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceListsSessions(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "session-one")
	assert.Contains(t, out, "robot-story")
	assert.Contains(t, out, "2 step(s)")
	assert.Contains(t, out, "Complete")
}

func TestTraceListEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in journal.")
}

func TestTraceSessionTimeline(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath, "--session", "session-one")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Session: session-one")
	assert.Contains(t, out, "Rule set: robot-story (engine "+ir.EngineVersion+")")
	assert.Contains(t, out, "Status: Complete")
	assert.Contains(t, out, "[1] TEXT 3 words active=[1 2] satisfied=[1]\n")
	assert.Contains(t, out, "[2] TEXT 6 words active=[1 2 3] satisfied=[1 2 3] COMPLETE")
	assert.Contains(t, out, "[3] EXPORT 6 words")
	assert.Contains(t, out, "Evaluations:  2")
	assert.Contains(t, out, "Exports:      1")
	assert.NotContains(t, out, "Text:")
}

func TestTraceVerboseShowsText(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := executeTrace(t, &RootOptions{Format: "text", Verbose: true}, "--db", dbPath, "--session", "session-one")
	require.NoError(t, err)
	assert.Contains(t, out, `Text: "one two three\na robot walks"`)
}

func TestTraceSessionJSON(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := executeTrace(t, &RootOptions{Format: "json"}, "--db", dbPath, "--session", "session-one")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "session-one", resp.Data.Session.ID)
	require.Len(t, resp.Data.Timeline, 3)

	types := []string{}
	for _, ev := range resp.Data.Timeline {
		types = append(types, ev.Type)
		assert.Empty(t, ev.Text)
	}
	assert.Equal(t, []string{"text", "text", "export"}, types)
	assert.Equal(t, TraceStats{TotalEvents: 3, Evaluations: 2, Exports: 1, Completed: true}, resp.Data.Stats)
}

func TestTraceUnknownSession(t *testing.T) {
	dbPath := writeJournal(t)

	_, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuildTimelineOrdersBySeq(t *testing.T) {
	evals := []ir.EvaluationRecord{
		{Seq: 1, Kind: ir.KindText, Outcome: ir.Outcome{WordCount: 1}},
		{Seq: 3, Kind: ir.KindRestart},
	}
	exports := []ir.ExportRecord{{Seq: 2, WordCount: 1}}

	timeline := buildTimeline(evals, exports, false)
	require.Len(t, timeline, 3)
	assert.Equal(t, "text", timeline[0].Type)
	assert.Equal(t, "export", timeline[1].Type)
	assert.Equal(t, "restart", timeline[2].Type)

	stats := buildStats(timeline)
	assert.Equal(t, 1, stats.Restarts)
	assert.False(t, stats.Completed)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, "[]", formatIDs(nil))
	assert.Equal(t, "[1 2 3]", formatIDs([]int{1, 2, 3}))
}
