package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - lists sessions when empty
}

// TraceEvent represents a single entry in the session timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"` // "text", "restart" or "export"
	WordCount int    `json:"word_count"`
	TextHash  string `json:"text_hash"`
	Active    []int  `json:"active,omitempty"`
	Satisfied []int  `json:"satisfied,omitempty"`
	Complete  bool   `json:"complete"`
	Text      string `json:"text,omitempty"` // verbose only
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  ir.SessionRecord `json:"session"`
	Timeline []TraceEvent     `json:"timeline"`
	Stats    TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Evaluations int  `json:"evaluations"`
	Restarts    int  `json:"restarts"`
	Exports     int  `json:"exports"`
	Completed   bool `json:"completed"` // any step reached the win state
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the timeline of a journaled session",
		Long: `Show what happened in a journaled session.

Without --session, lists the sessions in the journal. With --session,
prints the session's timeline: every evaluated snapshot with the rules it
left active and satisfied, restarts and exports, in order.

Examples:
  rulegate trace --db ./games.db
  rulegate trace --db ./games.db --session 0192f7c4-...
  rulegate trace --db ./games.db --session 0192f7c4-... --verbose --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to trace")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.SessionID == "" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if opts.Format == "json" {
			return formatter.Success(sessions)
		}
		return outputSessionList(formatter.Writer, sessions)
	}

	sess, err := st.ReadSession(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	evals, err := st.ReadEvaluations(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read evaluations", err)
	}
	exports, err := st.ReadExports(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read exports", err)
	}

	result := TraceResult{
		Session:  sess,
		Timeline: buildTimeline(evals, exports, opts.Verbose),
	}
	result.Stats = buildStats(result.Timeline)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// buildTimeline merges evaluations and exports into one seq-ordered list.
// Both share the session's journal sequence.
func buildTimeline(evals []ir.EvaluationRecord, exports []ir.ExportRecord, withText bool) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(evals)+len(exports))
	for _, e := range evals {
		ev := TraceEvent{
			Seq:       e.Seq,
			Type:      string(e.Kind),
			WordCount: e.Outcome.WordCount,
			TextHash:  e.TextHash,
			Active:    e.Outcome.Active,
			Satisfied: e.Outcome.Satisfied,
			Complete:  e.Outcome.Complete,
		}
		if withText {
			ev.Text = e.Text
		}
		timeline = append(timeline, ev)
	}
	for _, x := range exports {
		timeline = append(timeline, TraceEvent{
			Seq:       x.Seq,
			Type:      "export",
			WordCount: x.WordCount,
			TextHash:  x.TextHash,
		})
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].Seq < timeline[j].Seq })
	return timeline
}

func buildStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline)}
	for _, ev := range timeline {
		switch ev.Type {
		case string(ir.KindText):
			stats.Evaluations++
			stats.Completed = stats.Completed || ev.Complete
		case string(ir.KindRestart):
			stats.Restarts++
		case "export":
			stats.Exports++
		}
	}
	return stats
}

func outputSessionList(w io.Writer, sessions []store.SessionSummary) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %s  %s  %d step(s)  %s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"),
			truncateID(s.ID),
			s.RuleSet,
			s.Evaluations,
			completeStatus(s.Completed))
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session.ID)
	fmt.Fprintf(w, "Rule set: %s (engine %s)\n", result.Session.RuleSet, result.Session.EngineVersion)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.Completed))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Evaluations:  %d\n", result.Stats.Evaluations)
	fmt.Fprintf(w, "  Restarts:     %d\n", result.Stats.Restarts)
	fmt.Fprintf(w, "  Exports:      %d\n", result.Stats.Exports)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	switch ev.Type {
	case string(ir.KindRestart):
		fmt.Fprintf(w, "  [%d] RESTART\n", ev.Seq)
	case "export":
		fmt.Fprintf(w, "  [%d] EXPORT %d words %s\n", ev.Seq, ev.WordCount, truncateID(ev.TextHash))
	default:
		won := ""
		if ev.Complete {
			won = " COMPLETE"
		}
		fmt.Fprintf(w, "  [%d] TEXT %d words active=%s satisfied=%s%s\n",
			ev.Seq, ev.WordCount, formatIDs(ev.Active), formatIDs(ev.Satisfied), won)
		if verbose {
			fmt.Fprintf(w, "       Text: %q\n", ev.Text)
		}
	}
}

// formatIDs renders rule ids as [1 2 3].
func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// completeStatus returns a human-readable completion status.
func completeStatus(isComplete bool) string {
	if isComplete {
		return "Complete"
	}
	return "Incomplete"
}
