package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	flags            gameFlags
	Debounce         time.Duration
	ExportOnComplete bool
	ExitOnComplete   bool

	// SessionOptions are appended to the session's options (for testing).
	SessionOptions []session.Option
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newWatchCommand(&WatchOptions{RootOptions: rootOpts})
}

func newWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <story-file>",
		Short: "Play the game on a file edited in any editor",
		Long: `Watch a story file and evaluate it every time it is saved.

The whole file is the story. Rule changes are printed as they happen.
Deleting the file empties the story.

Examples:
  rulegate watch story.txt
  rulegate watch story.txt --export-on-complete
  rulegate watch story.txt --exit-on-complete --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	addSessionFlags(cmd, &opts.flags)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "wait this long after a write before reading")
	cmd.Flags().BoolVar(&opts.ExportOnComplete, "export-on-complete", false, "write the export file whenever the story is won")
	cmd.Flags().BoolVar(&opts.ExitOnComplete, "exit-on-complete", false, "stop watching once the story is won")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	cfg := opts.flags.resolve(cmd, opts.Settings())
	logger := opts.Logger()

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	fw, err := watch.New(path, opts.Debounce, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file watcher", err)
	}
	defer func() {
		if err := fw.Stop(); err != nil {
			logger.Error("error stopping watcher", "error", err)
		}
	}()

	var g *game
	onComplete := func(u session.Update) {
		if u.Result == nil || !u.Result.CompletionChanged() || !u.Result.Complete {
			return
		}
		if opts.ExportOnComplete {
			g.session.Enqueue(g.exportOptions(session.Event{Type: session.EventExport}))
		}
		if opts.ExitOnComplete {
			g.session.Stop()
		}
	}
	sessionOpts := append([]session.Option{session.WithObserver(onComplete)}, opts.SessionOptions...)

	g, err = newGame(ctx, cfg, opts.Format, cmd.OutOrStdout(), logger, sessionOpts...)
	if err != nil {
		return err
	}
	defer g.close()

	if err := fw.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch story file", err)
	}
	if opts.Format != "json" {
		fmt.Fprintf(g.out, "Watching %s (session %s). Save the file to check your story.\n", fw.Path(), g.session.ID())
	}

	go func() {
		defer g.session.Stop()
		for snap := range fw.Events() {
			if snap.Removed {
				logger.Info("story file removed", "path", snap.Path)
			}
			if !g.session.Enqueue(session.Event{Type: session.EventText, Text: snap.Text}) {
				return
			}
		}
	}()

	return g.runLoop(ctx)
}
