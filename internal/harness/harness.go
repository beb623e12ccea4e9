package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/roach88/rulegate/internal/catalog"
	"github.com/roach88/rulegate/internal/compiler"
	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/session"
	"github.com/roach88/rulegate/internal/store"
	"github.com/roach88/rulegate/internal/testutil"
	"github.com/roach88/rulegate/internal/view"
)

// Harness is the test execution engine.
// It runs scenarios with a fake clock and a fixed session id.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	session *session.Session
	clock   *testutil.FakeClock
	ruleSet ir.RuleSet
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Load the rule set (catalog or file) and build the engine
// 2. Start a journaled session
// 3. Execute steps, checking each expect clause
// 4. Evaluate trace assertions
// 5. Replay the journal and require identical outcomes
//
// Returns an error only when the scenario cannot be set up; step and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	rs, err := loadRuleSet(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewFakeClock()
	opts := []engine.Option{engine.WithClock(clock)}
	if scenario.StruggleAfter > 0 {
		opts = append(opts, engine.WithStruggleAfter(scenario.StruggleAfter))
	}
	if scenario.HelpDuration > 0 {
		opts = append(opts, engine.WithHelpDuration(scenario.HelpDuration))
	}
	if scenario.Sticky {
		opts = append(opts, engine.WithStickyCompletion())
	}
	eng, err := engine.New(rs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	sess := session.New(ctx, eng,
		session.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.SessionID)),
		session.WithJournal(st),
		session.WithLogger(logger),
	)

	h := &Harness{
		store:   st,
		engine:  eng,
		session: sess,
		clock:   clock,
		ruleSet: rs,
		logger:  logger,
	}

	result := NewResult()
	result.Final = h.snapshot(0, "start", "")
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	if err := h.verifyReplay(ctx); err != nil {
		result.AddError(err.Error())
	}

	return result, nil
}

func loadRuleSet(s *Scenario) (ir.RuleSet, error) {
	if s.RuleSet != "" {
		rs, err := catalog.Load(s.RuleSet)
		if err != nil {
			return ir.RuleSet{}, fmt.Errorf("failed to load rule set: %w", err)
		}
		return rs, nil
	}

	src, err := os.ReadFile(s.Rules)
	if err != nil {
		return ir.RuleSet{}, fmt.Errorf("failed to read rules: %w", err)
	}
	rs, err := compiler.CompileBytes(s.Rules, src)
	if err != nil {
		return ir.RuleSet{}, fmt.Errorf("failed to compile rules: %w", err)
	}
	return *rs, nil
}

// executeStep performs one action, records it in the trace and checks
// the step's expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	action, err := step.Action()
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		return
	}

	var (
		input     string
		activated []int
		helped    []int
		exported  string
		stepErr   error
	)
	switch action {
	case ActionText:
		input = *step.Text
		u := h.session.SetText(ctx, input)
		activated = u.Result.Activated
	case ActionAppend:
		input = *step.Append
		u := h.session.Append(ctx, input)
		activated = u.Result.Activated
	case ActionRestart:
		h.session.Restart(ctx)
	case ActionAdvance:
		input = step.Advance.String()
		h.clock.Advance(step.Advance)
	case ActionHelpTick:
		helped = h.session.HelpTick().Helped
	case ActionShowHelp:
		input = strconv.Itoa(step.ShowHelp)
		stepErr = h.session.ShowHelp(step.ShowHelp).Err
	case ActionHideHelp:
		input = strconv.Itoa(step.HideHelp)
		stepErr = h.session.HideHelp(step.HideHelp).Err
	case ActionExport:
		exp, err := h.session.Export(ctx, session.ExportOptions{Raw: step.Export.Raw, Force: step.Export.Force})
		exported, stepErr = exp.Text, err
	}

	ev := h.snapshot(i+1, action, input)
	ev.Activated = activated
	ev.Helped = helped
	ev.Export = exported
	ev.Error = errorCode(stepErr)
	result.AddTrace(ev)

	h.logger.Info("step completed",
		"step", i,
		"action", action,
		"seq", ev.Seq,
		"active", ev.Active,
		"complete", ev.Complete,
	)

	for _, msg := range checkExpect(ev, step.Expect) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, action, msg))
	}
}

// snapshot captures the session state as a trace event.
func (h *Harness) snapshot(step int, action, input string) TraceEvent {
	outcome := session.Outcome(h.engine, h.session.Text())
	st := h.session.State()

	helpOpen := []int{}
	for _, r := range st.Rules {
		if r.HelpOpen {
			helpOpen = append(helpOpen, r.ID)
		}
	}

	return TraceEvent{
		Step:      step,
		Action:    action,
		Input:     input,
		Seq:       h.engine.Seq(),
		WordCount: outcome.WordCount,
		Active:    nonNilInts(outcome.Active),
		Satisfied: nonNilInts(outcome.Satisfied),
		HelpOpen:  helpOpen,
		Complete:  outcome.Complete,
		Border:    string(view.Project(st).Border),
	}
}

// verifyReplay re-runs the journal on a fresh engine. A scenario whose
// journal does not replay to the same outcomes fails.
func (h *Harness) verifyReplay(ctx context.Context) error {
	rec, err := h.store.ReadSession(ctx, h.session.ID())
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	evals, err := h.store.ReadEvaluations(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	report, err := session.Replay(rec, h.ruleSet, evals)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !report.Deterministic() {
		d := report.Divergences[0]
		return fmt.Errorf("replay diverged at seq %d: recorded %v, replayed %v", d.Seq, d.Recorded, d.Replayed)
	}
	return nil
}

// checkExpect compares a trace event against an expect clause.
func checkExpect(ev TraceEvent, e *Expect) []string {
	if e == nil {
		if ev.Error != "" {
			return []string{fmt.Sprintf("unexpected error %s", ev.Error)}
		}
		return nil
	}

	var errs []string
	ids := func(field string, got []int, want *[]int) {
		if want != nil && !slices.Equal(nonNilInts(got), nonNilInts(*want)) {
			errs = append(errs, fmt.Sprintf("%s = %v, want %v", field, nonNilInts(got), *want))
		}
	}
	ids("active", ev.Active, e.Active)
	ids("satisfied", ev.Satisfied, e.Satisfied)
	ids("activated", ev.Activated, e.Activated)
	ids("helped", ev.Helped, e.Helped)
	ids("help_open", ev.HelpOpen, e.HelpOpen)

	if e.Complete != nil && ev.Complete != *e.Complete {
		errs = append(errs, fmt.Sprintf("complete = %t, want %t", ev.Complete, *e.Complete))
	}
	if e.WordCount != nil && ev.WordCount != *e.WordCount {
		errs = append(errs, fmt.Sprintf("word_count = %d, want %d", ev.WordCount, *e.WordCount))
	}
	if e.Border != "" && ev.Border != e.Border {
		errs = append(errs, fmt.Sprintf("border = %s, want %s", ev.Border, e.Border))
	}
	if e.Export != nil && ev.Export != *e.Export {
		errs = append(errs, fmt.Sprintf("export = %q, want %q", ev.Export, *e.Export))
	}
	if ev.Error != e.Error {
		switch {
		case e.Error == "":
			errs = append(errs, fmt.Sprintf("unexpected error %s", ev.Error))
		case ev.Error == "":
			errs = append(errs, fmt.Sprintf("expected error %s, got none", e.Error))
		default:
			errs = append(errs, fmt.Sprintf("error = %s, want %s", ev.Error, e.Error))
		}
	}
	return errs
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrNotComplete):
		return ErrorNotComplete
	case engine.IsUnknownRule(err):
		return ErrorUnknownRule
	default:
		return err.Error()
	}
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
