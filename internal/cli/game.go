package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/config"
	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/store"
	"github.com/roach88/rulegate/internal/view"
)

// gameFlags are the flags shared by commands that build an engine.
// Unset flags leave the environment configuration in place.
type gameFlags struct {
	catalog       string
	rulesDir      string
	sticky        bool
	struggleAfter time.Duration
	helpInterval  time.Duration
	journal       string
	exportFile    string
	raw           bool
}

func addRuleSetFlags(cmd *cobra.Command, f *gameFlags) {
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "built-in rule set name (default from RULEGATE_CATALOG)")
	cmd.Flags().StringVar(&f.rulesDir, "rules", "", "directory of CUE rule-set files (overrides --catalog)")
}

func addEngineFlags(cmd *cobra.Command, f *gameFlags) {
	addRuleSetFlags(cmd, f)
	cmd.Flags().BoolVar(&f.sticky, "sticky", false, "keep the game won once won")
	cmd.Flags().DurationVar(&f.struggleAfter, "struggle-after", 0, "offer help after a rule stays unsatisfied this long")
}

func addSessionFlags(cmd *cobra.Command, f *gameFlags) {
	addEngineFlags(cmd, f)
	cmd.Flags().DurationVar(&f.helpInterval, "help-interval", 0, "how often to check for struggling rules (0 disables)")
	cmd.Flags().StringVar(&f.journal, "journal", "", "record the session to this SQLite database")
	cmd.Flags().StringVar(&f.exportFile, "export-file", "", "where /export writes the story")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "export the story verbatim instead of normalizing whitespace")
}

// resolve overlays the flags the user set on cfg.
func (f *gameFlags) resolve(cmd *cobra.Command, cfg config.Config) config.Config {
	changed := cmd.Flags().Changed
	if changed("catalog") {
		cfg.Catalog = f.catalog
		cfg.RulesDir = ""
	}
	if changed("rules") {
		cfg.RulesDir = f.rulesDir
	}
	if changed("sticky") {
		cfg.Sticky = f.sticky
	}
	if changed("struggle-after") && f.struggleAfter > 0 {
		cfg.StruggleAfter = f.struggleAfter
	}
	if changed("help-interval") {
		cfg.HelpInterval = f.helpInterval
	}
	if changed("journal") {
		cfg.Journal = f.journal
	}
	if changed("export-file") {
		cfg.ExportFile = f.exportFile
	}
	if changed("raw") {
		cfg.RawExport = f.raw
	}
	return cfg
}

// buildEngine resolves the configured rule set and constructs an engine.
func buildEngine(cfg config.Config, logger *slog.Logger, extra ...engine.Option) (*engine.Engine, error) {
	rs, findings, err := ResolveRuleSet(cfg.Catalog, cfg.RulesDir)
	if err != nil {
		return nil, err
	}
	for _, w := range findings {
		logger.Warn("rule set warning", "code", w.Code, "field", w.Field, "message", w.Message)
	}

	opts := []engine.Option{
		engine.WithStruggleAfter(cfg.StruggleAfter),
		engine.WithLogger(logger),
	}
	if cfg.Sticky {
		opts = append(opts, engine.WithStickyCompletion())
	}
	opts = append(opts, extra...)

	eng, err := engine.New(rs, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	logger.Debug("engine ready", "rule_set", rs.Name, "rules", len(rs.Rules), "hash", eng.RuleSetHash())
	return eng, nil
}

// syncWriter serializes writes from the input goroutine and the session loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// game is an interactive session wired to an output stream, an optional
// journal and the export file. play and watch share it.
type game struct {
	cfg     config.Config
	format  string
	out     *syncWriter
	logger  *slog.Logger
	session *session.Session
	journal *store.Store
}

// gameEvent is one line of JSON output during play.
type gameEvent struct {
	Event   string         `json:"event"`
	Changes []view.Change  `json:"changes,omitempty"`
	View    *view.View     `json:"view,omitempty"`
	Export  *exportSummary `json:"export,omitempty"`
	Error   *CLIError      `json:"error,omitempty"`
}

type exportSummary struct {
	File      string `json:"file"`
	WordCount int    `json:"word_count"`
	TextHash  string `json:"text_hash"`
}

func newGame(ctx context.Context, cfg config.Config, format string, out io.Writer, logger *slog.Logger, opts ...session.Option) (*game, error) {
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	g := &game{
		cfg:    cfg,
		format: format,
		out:    &syncWriter{w: out},
		logger: logger,
	}

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithHelpInterval(cfg.HelpInterval),
		session.WithObserver(g.observe),
	}
	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		g.journal = st
		sessionOpts = append(sessionOpts, session.WithJournal(st))
	}
	sessionOpts = append(sessionOpts, opts...)

	g.session = session.New(ctx, eng, sessionOpts...)
	return g, nil
}

func (g *game) close() {
	if g.journal == nil {
		return
	}
	if err := g.journal.Close(); err != nil {
		g.logger.Error("error closing journal", "error", err)
	}
}

// observe runs on the session loop goroutine.
func (g *game) observe(u session.Update) {
	if u.Event == session.EventState {
		g.printRules(u.State)
		return
	}

	var exp *exportSummary
	if u.Export != nil {
		summary, err := g.writeExport(*u.Export)
		if err != nil {
			u.Err = err
		} else {
			exp = &summary
		}
	}

	changes := view.UpdateChanges(u)
	v := view.Project(u.State)

	if g.format == "json" {
		ev := gameEvent{Event: u.Event.String(), Changes: changes, View: &v, Export: exp}
		if u.Err != nil {
			ev.Error = &CLIError{Code: updateErrorCode(u.Err), Message: u.Err.Error()}
		}
		if err := json.NewEncoder(g.out).Encode(ev); err != nil {
			g.logger.Error("write event failed", "error", err)
		}
		return
	}

	if u.Err != nil {
		if errors.Is(u.Err, session.ErrNotComplete) {
			fmt.Fprintln(g.out, "Keep writing: the story is not complete yet.")
		} else {
			fmt.Fprintf(g.out, "error: %v\n", u.Err)
		}
	}
	if err := view.RenderChanges(g.out, changes); err != nil {
		g.logger.Error("render failed", "error", err)
	}
	switch u.Event {
	case session.EventText, session.EventAppend:
		fmt.Fprintf(g.out, "[%s] %s\n", v.Border, v.WordLabel)
	}
	if exp != nil {
		fmt.Fprintf(g.out, "Story exported to %s (%s)\n", exp.File, view.WordLabel(exp.WordCount))
	}
}

// printRules renders the full rule list.
func (g *game) printRules(st session.State) {
	v := view.Project(st)
	if g.format == "json" {
		if err := json.NewEncoder(g.out).Encode(gameEvent{Event: "rules", View: &v}); err != nil {
			g.logger.Error("write event failed", "error", err)
		}
		return
	}
	if err := view.RenderText(g.out, v); err != nil {
		g.logger.Error("render failed", "error", err)
	}
}

// reportInputError prints a command the player mistyped.
func (g *game) reportInputError(err error) {
	if g.format == "json" {
		ev := gameEvent{Event: "input", Error: &CLIError{Code: ErrCodeGeneric, Message: err.Error()}}
		_ = json.NewEncoder(g.out).Encode(ev)
		return
	}
	fmt.Fprintf(g.out, "error: %v\n", err)
}

func (g *game) writeExport(exp session.Export) (exportSummary, error) {
	if err := os.WriteFile(g.cfg.ExportFile, []byte(exp.Text), 0644); err != nil {
		return exportSummary{}, fmt.Errorf("%s: write %s: %w", ErrCodeWriteFailed, g.cfg.ExportFile, err)
	}
	g.logger.Info("export written", "file", g.cfg.ExportFile, "words", exp.WordCount)
	return exportSummary{File: g.cfg.ExportFile, WordCount: exp.WordCount, TextHash: exp.TextHash}, nil
}

// exportOptions applies the configured export mode to a parsed /export.
func (g *game) exportOptions(ev session.Event) session.Event {
	if ev.Type == session.EventExport && g.cfg.RawExport {
		ev.Export.Raw = true
	}
	return ev
}

func updateErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotComplete):
		return ErrCodeNotComplete
	case engine.IsUnknownRule(err):
		return ErrCodeUnknownRule
	default:
		return ErrCodeGeneric
	}
}

// runLoop runs the session until the input side stops it or a signal
// arrives.
func (g *game) runLoop(ctx context.Context) error {
	err := g.session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "session error", err)
	}
	return nil
}
