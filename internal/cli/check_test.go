package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/view"
)

func executeCheck(t *testing.T, format string, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeStory(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestCheckCompleteStory(t *testing.T) {
	path := writeStory(t, "one two three\na robot walks")

	out, err := executeCheck(t, "text", "", path, "--rules", robotRulesDir(), "--require-complete")
	require.NoError(t, err)
	assert.Contains(t, out, "[complete] 6 words")
	assert.Contains(t, out, "[x] 3. Length: Reach 6 words.")
	assert.Contains(t, out, "Story complete!")
}

func TestCheckIncompleteStory(t *testing.T) {
	path := writeStory(t, "one two three")

	out, err := executeCheck(t, "text", "", path, "--rules", robotRulesDir())
	require.NoError(t, err)
	assert.Contains(t, out, "[progress] 3 words")
	assert.Contains(t, out, "[x] 1. Start")
	assert.Contains(t, out, "[ ] 2. Robot: Mention a robot.")
	assert.NotContains(t, out, "3. Length")
}

func TestCheckRequireComplete(t *testing.T) {
	path := writeStory(t, "one two three")

	_, err := executeCheck(t, "text", "", path, "--rules", robotRulesDir(), "--require-complete")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 rule(s) pending")
}

func TestCheckStdinJSON(t *testing.T) {
	out, err := executeCheck(t, "json", "a robot", "-", "--rules", robotRulesDir())
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "-", resp.Data.File)
	assert.Equal(t, "robot-story", resp.Data.RuleSet)
	assert.Equal(t, 2, resp.Data.View.WordCount)
	assert.Equal(t, view.BorderProgress, resp.Data.View.Border)
	require.Len(t, resp.Data.View.Rules, 1)
	assert.False(t, resp.Data.View.Rules[0].Satisfied)
}

func TestCheckEmptyStoryIsNeutral(t *testing.T) {
	out, err := executeCheck(t, "text", "", "-", "--rules", robotRulesDir())
	require.NoError(t, err)
	assert.Contains(t, out, "[neutral] 0 words")
}

func TestCheckDefaultCatalog(t *testing.T) {
	out, err := executeCheck(t, "text", "In the future every school is run by", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Getting Started")
}

func TestCheckMissingFile(t *testing.T) {
	out, err := executeCheck(t, "json", "", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCheckInvalidRules(t *testing.T) {
	path := writeStory(t, "anything")

	_, err := executeCheck(t, "text", "", path, "--rules", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
