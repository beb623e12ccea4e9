package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/catalog"
	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
	RulesDir  string // optional - rule set for sessions not in the catalog
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string               `json:"session_id"`
	RuleSet       string               `json:"rule_set"`
	Steps         int                  `json:"steps"`
	Complete      bool                 `json:"complete"`
	Deterministic bool                 `json:"deterministic"`
	Divergences   []session.Divergence `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Replay a session journal to verify determinism.

Every recorded text snapshot is evaluated again on a fresh engine built
from the same rule set, and the outcome of each step is compared with the
recorded outcome hash.

The rule set is looked up in the catalog by the name the session recorded,
or loaded from --rules. Its hash must match the one recorded.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown rule set, etc.)

Examples:
  rulegate replay --db ./games.db
  rulegate replay --db ./games.db --session 0192f7c4-...
  rulegate replay --db ./games.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")
	cmd.Flags().StringVar(&opts.RulesDir, "rules", "", "directory of CUE rule-set files to replay against")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessions []ir.SessionRecord
	if opts.SessionID != "" {
		rec, err := st.ReadSession(ctx, opts.SessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []ir.SessionRecord{rec}
	} else {
		summaries, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range summaries {
			sessions = append(sessions, s.SessionRecord)
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(formatter, ReplayResult{
				Sessions:         []ReplaySessionResult{},
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	for _, sess := range sessions {
		sessResult, err := replaySession(ctx, st, sess, opts.RulesDir)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", sess.ID), err)
		}
		result.Sessions = append(result.Sessions, sessResult)
		if !sessResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result, opts.Verbose)
}

// openJournal opens an existing journal. store.Open would create a new
// empty database for a mistyped path.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// replaySession re-evaluates one session's journal.
func replaySession(ctx context.Context, st *store.Store, sess ir.SessionRecord, rulesDir string) (ReplaySessionResult, error) {
	var (
		rs  ir.RuleSet
		err error
	)
	if rulesDir != "" {
		rs, _, err = ResolveRuleSet("", rulesDir)
	} else {
		rs, err = catalog.Load(sess.RuleSet)
	}
	if err != nil {
		return ReplaySessionResult{}, err
	}

	records, err := st.ReadEvaluations(ctx, sess.ID)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	report, err := session.Replay(sess, rs, records)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	return ReplaySessionResult{
		SessionID:     sess.ID,
		RuleSet:       sess.RuleSet,
		Steps:         report.Steps,
		Complete:      report.Final.Complete,
		Deterministic: report.Deterministic(),
		Divergences:   report.Divergences,
	}, nil
}

var errNotDeterministic = errors.New("determinism verification failed")

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: errNotDeterministic.Error(),
		}
	}

	if err := formatter.JSON(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return WrapExitError(ExitFailure, "replay", errNotDeterministic)
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult, verbose bool) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, sess := range result.Sessions {
		status := "✓"
		if !sess.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s (%s)\n", status, sess.SessionID, sess.RuleSet)
		fmt.Fprintf(w, "  Steps: %d, complete: %v\n", sess.Steps, sess.Complete)

		for _, d := range sess.Divergences {
			fmt.Fprintf(w, "  Divergence at seq %d (%s)\n", d.Seq, d.Kind)
			if verbose {
				fmt.Fprintf(w, "    recorded: active=%v satisfied=%v complete=%v\n", d.Recorded.Active, d.Recorded.Satisfied, d.Recorded.Complete)
				fmt.Fprintf(w, "    replayed: active=%v satisfied=%v complete=%v\n", d.Replayed.Active, d.Replayed.Satisfied, d.Replayed.Complete)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return WrapExitError(ExitFailure, "replay", errNotDeterministic)
}
