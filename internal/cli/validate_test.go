package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRules writes src as rules.cue in a new temp dir.
func writeRules(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(src), 0644))
	return dir
}

func executeValidate(t *testing.T, format string, dir string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidRules(t *testing.T) {
	out, err := executeValidate(t, "text", robotRulesDir())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Rule set robot-story valid (3 rules)")
}

func TestValidateValidRulesJSON(t *testing.T) {
	out, err := executeValidate(t, "json", robotRulesDir())
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "robot-story", resp.Data.RuleSet)
	assert.Equal(t, 3, resp.Data.Rules)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateSchemaViolation(t *testing.T) {
	// id must be positive
	dir := writeRules(t, `package rules

name: "bad"
rules: [{
	id:          0
	title:       "Start"
	description: "Write."
	validator: word_count: min: 1
}]
`)

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out, "✗ Validation failed")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := writeRules(t, `package rules

name: "broken"
rules: [
	{id: 1, title: "One", description: "First.", unlocks: [2, 9], validator: word_count: min: 1},
	{id: 2, title: "Two", description: "Second.", unlocks: [1], validator: word_count: min: 2},
	{id: 2, title: "Again", description: "Duplicate.", validator: word_count: min: 3},
]
`)

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E102") // duplicate id
	assert.Contains(t, out, "E105") // unknown successor 9
	assert.Contains(t, out, "E107") // 1 -> 2 -> 1
}

func TestValidateErrorsJSON(t *testing.T) {
	dir := writeRules(t, `package rules

name: "dup"
rules: [
	{id: 1, title: "One", description: "First.", validator: word_count: min: 1},
	{id: 1, title: "Again", description: "Duplicate.", validator: word_count: min: 2},
]
`)

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E102", resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
}

func TestValidateWarningsAreNotFatal(t *testing.T) {
	dir := writeRules(t, `package rules

name: "stray"
terminal: 2
rules: [
	{id: 1, title: "One", description: "First.", unlocks: [2], validator: word_count: min: 1},
	{id: 2, title: "Two", description: "Second.", validator: word_count: min: 2},
	{id: 3, title: "Stray", description: "Never unlocked.", validator: word_count: min: 3},
]
`)

	out, err := executeValidate(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Rule set stray valid (3 rules)")
	assert.Contains(t, out, "W101")
}

func TestValidateVerboseOutput(t *testing.T) {
	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf) // Verbose output goes to stderr
	cmd.SetArgs([]string{robotRulesDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderrBuf.String(), "Found 1 CUE file(s)")
	assert.NotContains(t, stdoutBuf.String(), "Found")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"name", "E111"},
		{"rules", "E101"},
		{"id", "E103"},
		{"title", "E104"},
		{"description", "E104"},
		{"validator", "E109"},
		{"cue", ErrCodeBuildFailed},
		{"unknown", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestResolveRuleSet(t *testing.T) {
	t.Run("catalog default", func(t *testing.T) {
		rs, findings, err := ResolveRuleSet("", "")
		require.NoError(t, err)
		assert.Equal(t, "future-education", rs.Name)
		assert.Empty(t, findings)
	})

	t.Run("unknown catalog name", func(t *testing.T) {
		_, _, err := ResolveRuleSet("no-such-set", "")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		code, _ := parseLoadError(err)
		assert.Equal(t, ErrCodeUnknownRuleSet, code)
	})

	t.Run("directory wins over catalog", func(t *testing.T) {
		rs, _, err := ResolveRuleSet("future-education", robotRulesDir())
		require.NoError(t, err)
		assert.Equal(t, "robot-story", rs.Name)
	})
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.cue", "a.cue", "nested/deep/c.cue", "notes.txt", "nested/readme.md"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("package rules\n"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.cue"), 0755))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.cue"),
		filepath.Join(dir, "nested", "deep", "c.cue"),
	}, files)
}
