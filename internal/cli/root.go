package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/config"
)

// RootOptions carries the persistent flags and what the root command
// loads before any subcommand runs.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is loaded from the environment by the root command.
	// Subcommands built on their own (tests) fall back to config.Default().
	Config *config.Config

	logger *slog.Logger
}

// ValidFormats lists the values --format accepts.
var ValidFormats = []string{"text", "json"}

// Settings returns the loaded configuration or the defaults.
func (o *RootOptions) Settings() config.Config {
	if o.Config != nil {
		return *o.Config
	}
	return config.Default()
}

// Logger returns the logger installed by the root command, or one that
// discards everything.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRootCommand creates the root command for the rulegate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rulegate",
		Short: "rulegate - a writing game of unlocking rules",
		Long: `A writing-prompt game. The story is checked against an ordered set of
rules; satisfying a rule reveals the next ones, and satisfying the final
rule wins the game.

Rule sets come from the built-in catalog or from a directory of CUE files.
Settings are read from RULEGATE_* environment variables (and an optional
.env file); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.Config = &cfg

			level, _ := cfg.Level()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			opts.logger = slog.New(handler)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		NewRulesCommand(opts),
		NewValidateCommand(opts),
		NewCheckCommand(opts),
		NewPlayCommand(opts),
		NewWatchCommand(opts),
		NewReplayCommand(opts),
		NewTraceCommand(opts),
		NewTestCommand(opts),
	)

	return cmd
}
