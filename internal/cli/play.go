package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/session"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	flags gameFlags

	// SessionOptions are appended to the session's options (for testing).
	SessionOptions []session.Option
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlayCommand(&PlayOptions{RootOptions: rootOpts})
}

func newPlayCommand(opts *PlayOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the writing game on the terminal",
		Long: `Play the writing game interactively.

Every line typed is appended to the story, and the rules it unlocks or
satisfies are printed as they change. Lines starting with "/" are
commands:

  /rules          show the visible rules
  /help <id>      show help for a rule
  /hide <id>      hide help for a rule
  /export [raw] [force]
                  write the story to the export file
  /restart        start over
  /quit           leave the game

Examples:
  rulegate play
  rulegate play --catalog future-education-extended
  rulegate play --rules ./my-rules --journal ./games.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	addSessionFlags(cmd, &opts.flags)

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	cfg := opts.flags.resolve(cmd, opts.Settings())
	logger := opts.Logger()

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	g, err := newGame(ctx, cfg, opts.Format, cmd.OutOrStdout(), logger, opts.SessionOptions...)
	if err != nil {
		return err
	}
	defer g.close()

	if opts.Format != "json" {
		fmt.Fprintf(g.out, "Session %s. Type your story; /rules lists the rules, /quit leaves.\n", g.session.ID())
	}
	g.session.Enqueue(session.Event{Type: session.EventState})

	go readCommands(ctx, bufio.NewScanner(cmd.InOrStdin()), g)

	return g.runLoop(ctx)
}

// readCommands turns input lines into session events. It stops the
// session on /quit or end of input.
func readCommands(ctx context.Context, scanner *bufio.Scanner, g *game) {
	defer g.session.Stop()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit":
			return
		case "/rules":
			g.session.Enqueue(session.Event{Type: session.EventState})
			continue
		}

		ev, err := session.ParseCommand(line)
		if err != nil {
			g.reportInputError(err)
			continue
		}
		if !g.session.Enqueue(g.exportOptions(ev)) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		g.logger.Error("read input failed", "error", err)
	}
}

// signalContext derives a context cancelled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
