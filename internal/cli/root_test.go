package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/watch"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rulegate", cmd.Use)
	assert.Contains(t, cmd.Long, "writing-prompt game")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"rules", "validate", "check", "play", "watch", "replay", "trace", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command   string
		flag      string
		shorthand string
		defValue  string
	}{
		{"rules", "output", "o", ""},
		{"rules", "list", "", "false"},
		{"rules", "catalog", "", ""},
		{"check", "require-complete", "", "false"},
		{"check", "sticky", "", "false"},
		{"play", "journal", "", ""},
		{"play", "export-file", "", ""},
		{"play", "help-interval", "", "0s"},
		{"watch", "debounce", "", watch.DefaultDebounce.String()},
		{"watch", "exit-on-complete", "", "false"},
		{"replay", "db", "", ""},
		{"replay", "session", "", ""},
		{"trace", "db", "", ""},
		{"trace", "session", "", ""},
		{"test", "update", "", "false"},
		{"test", "golden", "", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)

			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s", tt.flag)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.defValue, f.DefValue)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"xml", true},
		{"TEXT", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cmd := NewRootCommand()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs([]string{"--format", tt.format, "rules", "--list"})

			err := cmd.Execute()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid format")
		})
	}
}
