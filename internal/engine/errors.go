package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rulegate/internal/compiler"
)

// ConfigError reports a rule set the engine refuses to run.
//
// Config errors are raised once, at construction. Once an Engine exists,
// none of its operations fail on rule-set grounds.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the offending rule, when there is one.
	RuleID int

	// Findings carries the validator output for ErrCodeInvalidRuleSet.
	Findings []compiler.ValidationError
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeInvalidRuleSet indicates the rule set failed validation.
	ErrCodeInvalidRuleSet ConfigErrorCode = "INVALID_RULE_SET"

	// ErrCodeInvalidValidator indicates a validator could not be built.
	ErrCodeInvalidValidator ConfigErrorCode = "INVALID_VALIDATOR"

	// ErrCodeInvalidOption indicates an engine option was out of range.
	ErrCodeInvalidOption ConfigErrorCode = "INVALID_OPTION"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.RuleID != 0 {
		fmt.Fprintf(&b, " (rule=%d)", e.RuleID)
	}
	for _, f := range e.Findings {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// IsConfigError returns true if err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// UnknownRuleError is returned by per-rule operations given an id that is
// not part of the rule set.
type UnknownRuleError struct {
	RuleID int
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule %d", e.RuleID)
}

// IsUnknownRule returns true if err is (or wraps) an UnknownRuleError.
func IsUnknownRule(err error) bool {
	var ue *UnknownRuleError
	return errors.As(err, &ue)
}
