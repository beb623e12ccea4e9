package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/store"
	"github.com/roach88/rulegate/internal/testutil"
)

// robotRulesDir is the three-rule set shared with the harness tests:
// 3 words, then "robot", then 6 words.
func robotRulesDir() string {
	return filepath.Join("..", "harness", "testdata", "rules")
}

func newRobotSession(t *testing.T, st *store.Store, id string) *session.Session {
	t.Helper()
	rs, _, err := ResolveRuleSet("", robotRulesDir())
	require.NoError(t, err)
	eng, err := engine.New(rs)
	require.NoError(t, err)
	return session.New(context.Background(), eng,
		session.WithJournal(st),
		session.WithIDGenerator(testutil.NewFixedIDGenerator(id)),
		session.WithHelpInterval(0),
	)
}

// writeJournal records one won and exported robot-story session and
// returns the database path.
func writeJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "games.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)

	sess := newRobotSession(t, st, "session-one")
	sess.SetText(ctx, "one two three")
	sess.Append(ctx, "a robot walks")
	_, err = sess.Export(ctx, session.ExportOptions{})
	require.NoError(t, err)

	require.NoError(t, st.Close())
	return dbPath
}
