package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a play-through test.
// A scenario feeds text snapshots and timer events to a session and
// asserts on the resulting progression.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RuleSet names a built-in catalog rule set.
	// Exactly one of RuleSet and Rules must be set.
	RuleSet string `yaml:"rule_set,omitempty"`

	// Rules is the path to a CUE rule-set file.
	// Relative paths are resolved against the scenario file location.
	Rules string `yaml:"rules,omitempty"`

	// Sticky keeps the game won once won.
	Sticky bool `yaml:"sticky,omitempty"`

	// StruggleAfter and HelpDuration override the engine defaults when set.
	StruggleAfter time.Duration `yaml:"struggle_after,omitempty"`
	HelpDuration  time.Duration `yaml:"help_duration,omitempty"`

	// SessionID is an optional fixed session id.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Steps are executed in order, one action each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the whole trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action against the session. Exactly one action field is set.
type Step struct {
	// Text replaces the story with a full snapshot.
	Text *string `yaml:"text,omitempty"`

	// Append adds a line to the story, as interactive play does.
	Append *string `yaml:"append,omitempty"`

	// Restart resets the session.
	Restart bool `yaml:"restart,omitempty"`

	// Advance moves the fake clock forward.
	Advance time.Duration `yaml:"advance,omitempty"`

	// HelpTick runs one pass of the struggle monitor.
	HelpTick bool `yaml:"help_tick,omitempty"`

	// ShowHelp and HideHelp toggle help for a rule id.
	ShowHelp int `yaml:"show_help,omitempty"`
	HideHelp int `yaml:"hide_help,omitempty"`

	// Export requests the story payload.
	Export *ExportStep `yaml:"export,omitempty"`

	// Expect specifies the expected state after the step.
	// If nil, nothing is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ExportStep mirrors session.ExportOptions.
type ExportStep struct {
	Raw   bool `yaml:"raw,omitempty"`
	Force bool `yaml:"force,omitempty"`
}

// Step action names, as they appear in traces.
const (
	ActionText     = "text"
	ActionAppend   = "append"
	ActionRestart  = "restart"
	ActionAdvance  = "advance"
	ActionHelpTick = "help_tick"
	ActionShowHelp = "show_help"
	ActionHideHelp = "hide_help"
	ActionExport   = "export"
)

// Action returns the name of the step's action, or an error unless
// exactly one action is set.
func (s Step) Action() (string, error) {
	var set []string
	if s.Text != nil {
		set = append(set, ActionText)
	}
	if s.Append != nil {
		set = append(set, ActionAppend)
	}
	if s.Restart {
		set = append(set, ActionRestart)
	}
	if s.Advance != 0 {
		set = append(set, ActionAdvance)
	}
	if s.HelpTick {
		set = append(set, ActionHelpTick)
	}
	if s.ShowHelp != 0 {
		set = append(set, ActionShowHelp)
	}
	if s.HideHelp != 0 {
		set = append(set, ActionHideHelp)
	}
	if s.Export != nil {
		set = append(set, ActionExport)
	}
	switch len(set) {
	case 0:
		return "", fmt.Errorf("no action")
	case 1:
		return set[0], nil
	default:
		return "", fmt.Errorf("multiple actions %v", set)
	}
}

// Expect lists the state expected after a step. Nil fields are not checked.
type Expect struct {
	Active    *[]int  `yaml:"active,omitempty"`
	Satisfied *[]int  `yaml:"satisfied,omitempty"`
	Activated *[]int  `yaml:"activated,omitempty"`
	Helped    *[]int  `yaml:"helped,omitempty"`
	HelpOpen  *[]int  `yaml:"help_open,omitempty"`
	Complete  *bool   `yaml:"complete,omitempty"`
	WordCount *int    `yaml:"word_count,omitempty"`
	Border    string  `yaml:"border,omitempty"`
	Export    *string `yaml:"export,omitempty"`

	// Error is the expected error code: "not_complete" or "unknown_rule".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace as a whole.
type Assertion struct {
	// Type specifies the assertion type:
	// - "unlock_order": rules were unlocked in the given order
	// - "help_offered": the monitor offered help for Rule exactly Count times
	// - "final_state": the last step left the given state
	Type string `yaml:"type"`

	// Rules is the expected unlock order (used by unlock_order).
	// Rules unlocked in the same step may appear in either order.
	Rules []int `yaml:"rules,omitempty"`

	// Rule and Count are used by help_offered.
	Rule  int `yaml:"rule,omitempty"`
	Count int `yaml:"count,omitempty"`

	// Complete and Active are used by final_state.
	Complete *bool  `yaml:"complete,omitempty"`
	Active   *[]int `yaml:"active,omitempty"`
}

// Assertion type constants.
const (
	AssertUnlockOrder = "unlock_order"
	AssertHelpOffered = "help_offered"
	AssertFinalState  = "final_state"
)

// Error codes used in traces and Expect.Error.
const (
	ErrorNotComplete = "not_complete"
	ErrorUnknownRule = "unknown_rule"
)

// LoadScenario reads and parses a scenario YAML file.
// A relative Rules path is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the rules path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the rules path BEFORE validation
	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.RuleSet == "" && s.Rules == "":
		return fmt.Errorf("one of rule_set or rules is required")
	case s.RuleSet != "" && s.Rules != "":
		return fmt.Errorf("rule_set and rules are mutually exclusive")
	}

	if s.Rules != "" {
		if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
			return fmt.Errorf("rules file not found: %s", s.Rules)
		}
	}

	if s.StruggleAfter < 0 {
		return fmt.Errorf("struggle_after must be positive")
	}
	if s.HelpDuration < 0 {
		return fmt.Errorf("help_duration must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		action, err := step.Action()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", i)
		}
		if step.ShowHelp < 0 || step.HideHelp < 0 {
			return fmt.Errorf("steps[%d]: rule id must be positive", i)
		}
		if e := step.Expect; e != nil {
			if e.Error != "" && e.Error != ErrorNotComplete && e.Error != ErrorUnknownRule {
				return fmt.Errorf("steps[%d].expect: unknown error code %q", i, e.Error)
			}
			if e.Export != nil && action != ActionExport {
				return fmt.Errorf("steps[%d].expect: export is only valid on export steps", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertUnlockOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for unlock_order", index)
		}
	case AssertHelpOffered:
		if a.Rule <= 0 {
			return fmt.Errorf("assertions[%d]: rule is required for help_offered", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for help_offered", index)
		}
	case AssertFinalState:
		if a.Complete == nil && a.Active == nil {
			return fmt.Errorf("assertions[%d]: complete or active is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
