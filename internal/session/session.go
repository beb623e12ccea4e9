package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/validator"
)

// DefaultHelpInterval is how often Run checks for struggling players.
const DefaultHelpInterval = 5 * time.Second

// ErrNotComplete is returned by Export before the story is won.
var ErrNotComplete = errors.New("story is not complete yet")

// Journal receives an append-only record of a session.
// Implemented by store.Store.
type Journal interface {
	BeginSession(ctx context.Context, rec ir.SessionRecord) error
	RecordEvaluation(ctx context.Context, rec ir.EvaluationRecord) error
	RecordExport(ctx context.Context, rec ir.ExportRecord) error
}

// ExportOptions controls the export payload.
type ExportOptions struct {
	Raw   bool // keep the text verbatim instead of normalizing whitespace
	Force bool // export even if the story is not complete
}

// Export is the story payload handed to the file writer.
type Export struct {
	Text       string `json:"text"`
	Normalized bool   `json:"normalized"`
	WordCount  int    `json:"word_count"`
	TextHash   string `json:"text_hash"`
	Complete   bool   `json:"complete"`
}

// State is a snapshot of a session.
type State struct {
	ID          string        `json:"id"`
	RuleSet     string        `json:"rule_set"`
	CurrentText string        `json:"current_text"`
	WordCount   int           `json:"word_count"`
	Complete    bool          `json:"complete"`
	Terminal    int           `json:"terminal"`
	Rules       []engine.Rule `json:"rules"` // every rule, id order
}

// Update is what a processed event produced.
type Update struct {
	Event  EventType      `json:"event"`
	Result *engine.Result `json:"result,omitempty"` // text and append events
	Helped []int          `json:"helped,omitempty"` // help ticks that offered help
	Export *Export        `json:"export,omitempty"`
	Err    error          `json:"-"`
	State  State          `json:"state"`
}

// Observer is notified from the Run goroutine after every event.
type Observer func(Update)

// Session is one play-through: an engine, the current text and the event
// loop that serializes every change to them.
//
// Thread-safety model:
//   - Enqueue(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - the direct methods (SetText, Restart, ...) must not be mixed with a
//     running Run loop; they are for synchronous callers such as the
//     harness and one-shot CLI commands
type Session struct {
	id           string
	engine       *engine.Engine
	text         string
	inbox        *inbox
	journal      Journal
	journalSeq   *engine.Sequence
	observers    []Observer
	logger       *slog.Logger
	helpInterval time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator sets the id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.id = g.Generate()
	}
}

// WithJournal records every evaluation, restart and export to j.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithObserver registers an observer for Run.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithHelpInterval sets how often Run enqueues a help tick. Zero disables
// the ticker. Default: 5s (DefaultHelpInterval).
func WithHelpInterval(d time.Duration) Option {
	return func(s *Session) {
		s.helpInterval = d
	}
}

// New starts a session on eng. The engine is restarted so every session
// begins from the initial rule.
func New(ctx context.Context, eng *engine.Engine, opts ...Option) *Session {
	s := &Session{
		engine:       eng,
		inbox:        newInbox(),
		journalSeq:   engine.NewSequence(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		helpInterval: DefaultHelpInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = UUIDv7Generator{}.Generate()
	}
	s.logger = s.logger.With("session", s.id)

	eng.Restart()

	if s.journal != nil {
		rec := ir.SessionRecord{
			ID:            s.id,
			RuleSet:       eng.RuleSet().Name,
			RuleSetHash:   eng.RuleSetHash(),
			EngineVersion: ir.EngineVersion,
			Sticky:        eng.Sticky(),
			StartedAt:     time.Now().UTC(),
		}
		if err := s.journal.BeginSession(ctx, rec); err != nil {
			// Log and continue: a broken journal never stops the game.
			s.logger.Error("journal begin failed", "error", err)
		}
	}
	s.logger.Info("session started", "rule_set", eng.RuleSet().Name)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Engine returns the session's engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Text returns the current story.
func (s *Session) Text() string { return s.text }

// State returns a snapshot of the session.
func (s *Session) State() State {
	return State{
		ID:          s.id,
		RuleSet:     s.engine.RuleSet().Name,
		CurrentText: s.text,
		WordCount:   validator.WordCount(s.text),
		Complete:    s.engine.Complete(),
		Terminal:    s.engine.Terminal(),
		Rules:       s.engine.Rules(),
	}
}

// SetText replaces the story and evaluates it.
func (s *Session) SetText(ctx context.Context, text string) Update {
	s.text = text
	res := s.engine.Evaluate(text)
	s.record(ctx, ir.KindText, text)
	return Update{Event: EventText, Result: &res, State: s.State()}
}

// Append adds line to the end of the story, on its own line, and
// evaluates the result.
func (s *Session) Append(ctx context.Context, line string) Update {
	text := line
	if s.text != "" {
		text = s.text + "\n" + line
	}
	u := s.SetText(ctx, text)
	u.Event = EventAppend
	return u
}

// Restart clears the story and resets the engine. Idempotent.
func (s *Session) Restart(ctx context.Context) Update {
	s.text = ""
	s.engine.Restart()
	s.record(ctx, ir.KindRestart, "")
	s.logger.Info("session restarted")
	return Update{Event: EventRestart, State: s.State()}
}

// HelpTick runs one pass of the struggle monitor.
func (s *Session) HelpTick() Update {
	helped := s.engine.CheckStruggle()
	return Update{Event: EventHelpTick, Helped: helped, State: s.State()}
}

// ShowHelp opens help for a rule on request.
func (s *Session) ShowHelp(id int) Update {
	err := s.engine.ShowHelp(id)
	return Update{Event: EventShowHelp, Err: err, State: s.State()}
}

// HideHelp closes help for a rule.
func (s *Session) HideHelp(id int) Update {
	err := s.engine.HideHelp(id)
	return Update{Event: EventHideHelp, Err: err, State: s.State()}
}

// Export returns the story payload. Before the story is complete it fails
// with ErrNotComplete unless opts.Force is set.
func (s *Session) Export(ctx context.Context, opts ExportOptions) (Export, error) {
	if !s.engine.Complete() && !opts.Force {
		return Export{}, ErrNotComplete
	}
	text := s.text
	if !opts.Raw {
		text = validator.Normalize(text)
	}
	exp := Export{
		Text:       text,
		Normalized: !opts.Raw,
		WordCount:  validator.WordCount(text),
		TextHash:   ir.TextHash(text),
		Complete:   s.engine.Complete(),
	}
	if s.journal != nil {
		rec := ir.ExportRecord{
			SessionID:  s.id,
			Seq:        s.journalSeq.Next(),
			TextHash:   exp.TextHash,
			WordCount:  exp.WordCount,
			Normalized: exp.Normalized,
		}
		if err := s.journal.RecordExport(ctx, rec); err != nil {
			s.logger.Error("journal export failed", "seq", rec.Seq, "error", err)
		}
	}
	s.logger.Info("story exported", "words", exp.WordCount, "normalized", exp.Normalized)
	return exp, nil
}

// Outcome summarizes the engine's observable state.
func Outcome(e *engine.Engine, text string) ir.Outcome {
	var o ir.Outcome
	o.WordCount = validator.WordCount(text)
	for _, r := range e.Active() {
		o.Active = append(o.Active, r.ID)
		if r.Satisfied {
			o.Satisfied = append(o.Satisfied, r.ID)
		}
	}
	o.Complete = e.Complete()
	return o
}

func (s *Session) record(ctx context.Context, kind ir.EvaluationKind, text string) {
	if s.journal == nil {
		return
	}
	outcome := Outcome(s.engine, text)
	rec := ir.EvaluationRecord{
		SessionID:   s.id,
		Seq:         s.journalSeq.Next(),
		Kind:        kind,
		Text:        text,
		TextHash:    ir.TextHash(text),
		Outcome:     outcome,
		OutcomeHash: outcome.Hash(),
	}
	if err := s.journal.RecordEvaluation(ctx, rec); err != nil {
		s.logger.Error("journal write failed", "seq", rec.Seq, "kind", kind, "error", err)
	}
}

// Enqueue submits an event for processing by the Run loop. It never
// blocks and reports false once the session has been stopped.
func (s *Session) Enqueue(ev Event) bool {
	return s.inbox.put(ev)
}

// Stop rejects further events. Run drains what is already queued, then
// returns.
func (s *Session) Stop() {
	s.inbox.shutdown()
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop() is called and the queue drains.
//
// CRITICAL: Must be called from exactly ONE goroutine. Every engine call
// happens here, so the help monitor can never race an evaluation.
//
// ERROR HANDLING: a failing event is logged and reported to observers in
// Update.Err; processing continues.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session loop starting")

	if s.helpInterval > 0 {
		go s.tickHelp(ctx)
	}

	for {
		event, ok, done := s.inbox.take()
		switch {
		case done:
			s.logger.Info("session loop stopping: stopped and drained")
			return nil
		case ok:
			u := s.process(ctx, event)
			if u.Err != nil {
				s.logger.Warn("event failed", "event", event.Type, "rule", event.RuleID, "error", u.Err)
			}
			s.notify(u)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session loop stopping: context cancelled")
			s.inbox.shutdown()
			return ctx.Err()
		case <-s.inbox.ready():
		}
	}
}

// tickHelp enqueues a help tick every interval until ctx ends or the
// session stops.
func (s *Session) tickHelp(ctx context.Context) {
	ticker := time.NewTicker(s.helpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.inbox.put(Event{Type: EventHelpTick}) {
				return
			}
		}
	}
}

// process routes an event to its handler.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (s *Session) process(ctx context.Context, ev Event) Update {
	switch ev.Type {
	case EventText:
		return s.SetText(ctx, ev.Text)
	case EventAppend:
		return s.Append(ctx, ev.Text)
	case EventRestart:
		return s.Restart(ctx)
	case EventHelpTick:
		return s.HelpTick()
	case EventShowHelp:
		return s.ShowHelp(ev.RuleID)
	case EventHideHelp:
		return s.HideHelp(ev.RuleID)
	case EventExport:
		exp, err := s.Export(ctx, ev.Export)
		u := Update{Event: EventExport, Err: err, State: s.State()}
		if err == nil {
			u.Export = &exp
		}
		return u
	case EventState:
		return Update{Event: EventState, State: s.State()}
	default:
		return Update{Event: ev.Type, Err: fmt.Errorf("unknown event type: %d", ev.Type), State: s.State()}
	}
}

func (s *Session) notify(u Update) {
	for _, o := range s.observers {
		o(u)
	}
}

// ParseCommand interprets a line typed during interactive play. Lines that
// start with "/" are commands; anything else is story text to append.
func ParseCommand(line string) (Event, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Event{Type: EventAppend, Text: line}, nil
	}
	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "/restart":
		return Event{Type: EventRestart}, nil
	case "/export":
		ev := Event{Type: EventExport}
		for _, f := range fields[1:] {
			switch f {
			case "raw":
				ev.Export.Raw = true
			case "force":
				ev.Export.Force = true
			default:
				return Event{}, fmt.Errorf("unknown /export option %q", f)
			}
		}
		return ev, nil
	case "/help", "/hide":
		if len(fields) != 2 {
			return Event{}, fmt.Errorf("usage: %s <rule-id>", fields[0])
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Event{}, fmt.Errorf("invalid rule id %q", fields[1])
		}
		if fields[0] == "/hide" {
			return Event{Type: EventHideHelp, RuleID: id}, nil
		}
		return Event{Type: EventShowHelp, RuleID: id}, nil
	default:
		return Event{}, fmt.Errorf("unknown command %q", fields[0])
	}
}
