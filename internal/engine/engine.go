package engine

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/rulegate/internal/compiler"
	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/validator"
)

const (
	// DefaultStruggleAfter is how long a rule may stay active and
	// unsatisfied before help is offered.
	DefaultStruggleAfter = 20 * time.Second

	// DefaultHelpDuration is how long automatically offered help stays open.
	DefaultHelpDuration = 8 * time.Second
)

// Rule is a snapshot of one rule: its immutable definition plus its
// current status.
type Rule struct {
	ID          int                 `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Help        string              `json:"help,omitempty"`
	Validator   validator.Validator `json:"-"`

	Active    bool `json:"active"`
	Satisfied bool `json:"satisfied"`

	// Help bookkeeping. Reset whenever the rule (re)activates.
	ActiveSince time.Time `json:"active_since"`
	HelpShown   bool      `json:"help_shown"`
	HelpOpen    bool      `json:"help_open"`
	HelpUntil   time.Time `json:"help_until"` // zero while open on request
	Struggling  bool      `json:"struggling"`
}

// Result describes one evaluation.
type Result struct {
	Seq         int64  `json:"seq"`
	WordCount   int    `json:"word_count"`
	Rules       []Rule `json:"rules"`       // every active rule after the call, id order
	Activated   []int  `json:"activated"`   // newly active this call
	Satisfied   []int  `json:"satisfied"`   // flipped to satisfied this call
	Unsatisfied []int  `json:"unsatisfied"` // flipped to unsatisfied this call
	Complete    bool   `json:"complete"`
	WasComplete bool   `json:"was_complete"`
}

// CompletionChanged reports whether the win state flipped during the call.
func (r Result) CompletionChanged() bool {
	return r.Complete != r.WasComplete
}

// Engine is the rule progression engine for one rule set.
//
// Thread-safety: Engine is NOT safe for concurrent use.
//
// INVARIANTS:
//   - rules slice order (ascending id) NEVER changes after construction
//   - for every active rule, Satisfied equals its validator on the last
//     evaluated text
//   - the initial rule is active except before the first Restart
type Engine struct {
	ruleSet  ir.RuleSet
	hash     string
	rules    []Rule // ascending id
	index    map[int]int
	succ     ir.Progression
	terminal int

	seq           *Sequence
	clock         Clock
	logger        *slog.Logger
	struggleAfter time.Duration
	helpDuration  time.Duration
	sticky        bool
	complete      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock used for help bookkeeping.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSequence sets the logical counter. Used by replay to continue a
// journaled session's numbering.
func WithSequence(s *Sequence) Option {
	return func(e *Engine) {
		e.seq = s
	}
}

// WithStruggleAfter sets the struggle threshold.
// Default: 20s (DefaultStruggleAfter).
func WithStruggleAfter(d time.Duration) Option {
	return func(e *Engine) {
		e.struggleAfter = d
	}
}

// WithHelpDuration sets how long automatically offered help stays open.
// Default: 8s (DefaultHelpDuration).
func WithHelpDuration(d time.Duration) Option {
	return func(e *Engine) {
		e.helpDuration = d
	}
}

// WithStickyCompletion makes the win state monotone: once complete, the
// engine stays complete until Restart even if the text later regresses.
func WithStickyCompletion() Option {
	return func(e *Engine) {
		e.sticky = true
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New validates rs, builds its validators and returns an engine in the
// restarted state. Any problem with rs is a *ConfigError.
func New(rs ir.RuleSet, opts ...Option) (*Engine, error) {
	if findings := compiler.Errors(compiler.ValidateRuleSet(&rs)); len(findings) > 0 {
		return nil, &ConfigError{
			Code:     ErrCodeInvalidRuleSet,
			Message:  fmt.Sprintf("rule set %q failed validation", rs.Name),
			Findings: findings,
		}
	}

	sorted := rs.Sorted()
	hash, err := ir.RuleSetHash(sorted)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeInvalidRuleSet, Message: err.Error()}
	}

	e := &Engine{
		ruleSet:       sorted,
		hash:          hash,
		rules:         make([]Rule, len(sorted.Rules)),
		index:         make(map[int]int, len(sorted.Rules)),
		succ:          sorted.Progression(),
		terminal:      sorted.TerminalID(),
		seq:           NewSequence(),
		clock:         SystemClock{},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		struggleAfter: DefaultStruggleAfter,
		helpDuration:  DefaultHelpDuration,
	}

	for i, spec := range sorted.Rules {
		v, err := validator.Build(spec.Validator)
		if err != nil {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidValidator,
				Message: err.Error(),
				RuleID:  spec.ID,
			}
		}
		e.rules[i] = Rule{
			ID:          spec.ID,
			Title:       spec.Title,
			Description: spec.Description,
			Help:        spec.Help,
			Validator:   v,
		}
		e.index[spec.ID] = i
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.struggleAfter <= 0 {
		return nil, &ConfigError{
			Code:    ErrCodeInvalidOption,
			Message: fmt.Sprintf("struggle threshold must be positive, got %s", e.struggleAfter),
		}
	}
	if e.helpDuration < 0 {
		return nil, &ConfigError{
			Code:    ErrCodeInvalidOption,
			Message: fmt.Sprintf("help duration must be >= 0, got %s", e.helpDuration),
		}
	}

	e.Restart()
	return e, nil
}

// Restart resets every rule: only the initial (lowest id) rule is active,
// nothing is satisfied, help bookkeeping is cleared. Idempotent.
func (e *Engine) Restart() {
	now := e.clock.Now()
	for i := range e.rules {
		r := &e.rules[i]
		r.Active = i == 0
		r.Satisfied = false
		r.ActiveSince = time.Time{}
		resetHelp(r)
		if r.Active {
			r.ActiveSince = now
		}
	}
	e.complete = false
	e.logger.Debug("engine restarted", "rule_set", e.ruleSet.Name, "initial", e.rules[0].ID)
}

func resetHelp(r *Rule) {
	r.HelpShown = false
	r.HelpOpen = false
	r.HelpUntil = time.Time{}
	r.Struggling = false
}

// Evaluate validates text against every active rule and advances the
// progression. It never fails; a validator that panics counts as
// unsatisfied.
func (e *Engine) Evaluate(text string) Result {
	res := Result{
		Seq:         e.seq.Next(),
		WordCount:   validator.WordCount(text),
		WasComplete: e.complete,
	}

	before := make([]bool, len(e.rules))
	for i, r := range e.rules {
		before[i] = r.Satisfied
	}

	// Run to a fixpoint: rules unlocked in a pass are validated in the next.
	validated := make([]bool, len(e.rules))
	for {
		progressed := false
		for i := range e.rules {
			r := &e.rules[i]
			if !r.Active || validated[i] {
				continue
			}
			validated[i] = true

			ok := validator.Check(r.Validator, text)
			if ok == r.Satisfied {
				continue
			}
			r.Satisfied = ok
			if !ok {
				e.logger.Debug("rule unsatisfied", "rule", r.ID, "seq", res.Seq)
				continue
			}
			e.logger.Debug("rule satisfied", "rule", r.ID, "seq", res.Seq)
			for _, next := range e.succ.Successors(r.ID) {
				if e.activate(next) {
					res.Activated = append(res.Activated, next)
					progressed = true
				}
			}
		}
		if !progressed {
			break
		}
	}
	slices.Sort(res.Activated)

	for i, r := range e.rules {
		switch {
		case r.Satisfied && !before[i]:
			res.Satisfied = append(res.Satisfied, r.ID)
		case !r.Satisfied && before[i]:
			res.Unsatisfied = append(res.Unsatisfied, r.ID)
		}
	}

	complete := e.liveComplete()
	if e.sticky {
		complete = complete || e.complete
	}
	if complete != e.complete {
		e.logger.Info("completion changed", "rule_set", e.ruleSet.Name, "complete", complete, "seq", res.Seq)
	}
	e.complete = complete
	res.Complete = complete
	res.Rules = e.Active()
	return res
}

// activate marks id active if it is not already. Returns true on change.
func (e *Engine) activate(id int) bool {
	i, ok := e.index[id]
	if !ok {
		return false // unreachable: successors are validated in New
	}
	r := &e.rules[i]
	if r.Active {
		return false
	}
	r.Active = true
	r.Satisfied = false
	r.ActiveSince = e.clock.Now()
	resetHelp(r)
	e.logger.Debug("rule activated", "rule", id)
	return true
}

// liveComplete: at least one active rule, all active satisfied, terminal
// satisfied.
func (e *Engine) liveComplete() bool {
	active := 0
	for _, r := range e.rules {
		if !r.Active {
			continue
		}
		active++
		if !r.Satisfied {
			return false
		}
	}
	return active > 0 && e.rules[e.index[e.terminal]].Satisfied
}

// CheckStruggle is one pass of the help monitor. Every active, unsatisfied
// rule that has waited longer than the struggle threshold without help is
// marked struggling and gets help opened; their ids are returned. Expired
// automatic help is closed. Active and Satisfied are never touched.
func (e *Engine) CheckStruggle() []int {
	now := e.clock.Now()
	var shown []int
	for i := range e.rules {
		r := &e.rules[i]
		if r.HelpOpen && !r.HelpUntil.IsZero() && !now.Before(r.HelpUntil) {
			r.HelpOpen = false
			r.HelpUntil = time.Time{}
		}
		if !r.Active || r.Satisfied || r.HelpShown {
			continue
		}
		if now.Sub(r.ActiveSince) <= e.struggleAfter {
			continue
		}
		r.Struggling = true
		r.HelpShown = true
		r.HelpOpen = true
		r.HelpUntil = now.Add(e.helpDuration)
		shown = append(shown, r.ID)
		e.logger.Info("offering help", "rule", r.ID, "waited", now.Sub(r.ActiveSince).Round(time.Second))
	}
	return shown
}

// ShowHelp opens help for id on request. It stays open until HideHelp.
func (e *Engine) ShowHelp(id int) error {
	i, ok := e.index[id]
	if !ok {
		return &UnknownRuleError{RuleID: id}
	}
	r := &e.rules[i]
	r.HelpShown = true
	r.HelpOpen = true
	r.HelpUntil = time.Time{}
	return nil
}

// HideHelp closes help for id.
func (e *Engine) HideHelp(id int) error {
	i, ok := e.index[id]
	if !ok {
		return &UnknownRuleError{RuleID: id}
	}
	e.rules[i].HelpOpen = false
	e.rules[i].HelpUntil = time.Time{}
	return nil
}

// Rules returns a snapshot of every rule in id order.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Active returns a snapshot of the active rules in id order.
func (e *Engine) Active() []Rule {
	var out []Rule
	for _, r := range e.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// Rule returns a snapshot of one rule.
func (e *Engine) Rule(id int) (Rule, bool) {
	i, ok := e.index[id]
	if !ok {
		return Rule{}, false
	}
	return e.rules[i], true
}

// Complete reports the current win state.
func (e *Engine) Complete() bool { return e.complete }

// Sticky reports whether the engine was built with WithStickyCompletion.
func (e *Engine) Sticky() bool { return e.sticky }

// Terminal returns the id of the rule whose satisfaction is required to win.
func (e *Engine) Terminal() int { return e.terminal }

// RuleSet returns the compiled rule set (rules sorted by id).
func (e *Engine) RuleSet() ir.RuleSet { return e.ruleSet }

// RuleSetHash returns the content hash of the rule set.
func (e *Engine) RuleSetHash() string { return e.hash }

// Seq returns the sequence number of the last evaluation.
func (e *Engine) Seq() int64 { return e.seq.Current() }
