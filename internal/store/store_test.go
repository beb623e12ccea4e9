package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestOpenCreatesTables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{"sessions", "evaluations", "exports"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	s := createTestStore(t)

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	for _, index := range []string{"idx_evaluations_complete", "idx_sessions_started"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", index,
		).Scan(&name)
		assert.NoError(t, err, "index %s", index)
	}
}

func TestOpenUpgradesOldJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec("DROP INDEX idx_sessions_started")
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	var name string
	assert.NoError(t, s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_sessions_started'",
	).Scan(&name))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestCloseNilDB(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
