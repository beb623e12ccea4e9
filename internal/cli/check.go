package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/view"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	flags           gameFlags
	RequireComplete bool
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	File    string    `json:"file"`
	RuleSet string    `json:"rule_set"`
	View    view.View `json:"view"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <story-file>",
		Short: "Evaluate a story once and show the rules",
		Long: `Evaluate a story file against the rule set and print the visible rules.

Use "-" to read the story from standard input.

Exit codes:
  0 - Story evaluated (and won, with --require-complete)
  1 - Story is not complete and --require-complete was given
  2 - Command error (file not found, invalid rule set, etc.)

Examples:
  rulegate check story.txt
  rulegate check story.txt --require-complete
  rulegate check - --format json < story.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	addEngineFlags(cmd, &opts.flags)
	cmd.Flags().BoolVar(&opts.RequireComplete, "require-complete", false, "exit 1 unless the story is won")

	return cmd
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	text, err := readStory(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read story", err)
	}

	cfg := opts.flags.resolve(cmd, opts.Settings())
	logger := opts.Logger()
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		code, message := parseLoadError(err)
		_ = formatter.Error(code, message, nil)
		return err
	}

	sess := session.New(context.Background(), eng, session.WithLogger(logger), session.WithHelpInterval(0))
	u := sess.SetText(context.Background(), text)
	v := view.Project(u.State)
	formatter.VerboseLog("Evaluated %s against %s", path, u.State.RuleSet)

	if opts.Format == "json" {
		if err := formatter.Success(CheckResult{File: path, RuleSet: u.State.RuleSet, View: v}); err != nil {
			return err
		}
	} else if err := view.RenderText(formatter.Writer, v); err != nil {
		return err
	}

	if opts.RequireComplete && !v.Complete {
		return NewExitError(ExitFailure, fmt.Sprintf("story is not complete: %d rule(s) pending", pending(v)))
	}
	return nil
}

func readStory(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func pending(v view.View) int {
	n := 0
	for _, r := range v.Rules {
		if !r.Satisfied {
			n++
		}
	}
	return n
}
