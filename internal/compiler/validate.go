package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rulegate/internal/ir"
	"github.com/roach88/rulegate/internal/validator"
)

// Validation error codes (E100-E199)
const (
	ErrRuleSetEmpty        = "E101" // at least one rule required
	ErrDuplicateRuleID     = "E102" // two rules share an id
	ErrInvalidRuleID       = "E103" // id must be positive
	ErrMissingText         = "E104" // title or description empty
	ErrUnknownSuccessor    = "E105" // unlocks references a missing rule
	ErrSelfUnlock          = "E106" // rule unlocks itself
	ErrUnlockCycle         = "E107" // progression contains a cycle
	ErrUnknownTerminal     = "E108" // terminal references a missing rule
	ErrInvalidValidator    = "E109" // validator parameters rejected
	ErrTerminalUnreachable = "E110" // terminal not reachable from the initial rule
	ErrRuleSetNameEmpty    = "E111" // name is required

	// Warnings (W100-W199) do not block loading.
	WarnUnreachableRule = "W101" // rule can never activate
)

// ValidationError represents a semantic problem in a rule set.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsWarning reports whether the finding is advisory.
func (e ValidationError) IsWarning() bool {
	return strings.HasPrefix(e.Code, "W")
}

// Errors filters out warnings.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if !f.IsWarning() {
			out = append(out, f)
		}
	}
	return out
}

// ValidateRuleSet checks a compiled rule set.
// Returns all findings, errors and warnings (does not fail-fast).
func ValidateRuleSet(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(rs.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "rule set name is required",
			Code:    ErrRuleSetNameEmpty,
		})
	}

	if len(rs.Rules) == 0 {
		return append(errs, ValidationError{
			Field:   "rules",
			Message: "at least one rule is required",
			Code:    ErrRuleSetEmpty,
		})
	}

	ids := make(map[int]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		if r.ID <= 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("rule id must be positive, got %d", r.ID),
				Code:    ErrInvalidRuleID,
			})
		}
		if ids[r.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate rule id %d", r.ID),
				Code:    ErrDuplicateRuleID,
			})
		}
		ids[r.ID] = true

		if strings.TrimSpace(r.Title) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".title",
				Message: fmt.Sprintf("rule %d: title is required", r.ID),
				Code:    ErrMissingText,
			})
		}
		if strings.TrimSpace(r.Description) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".description",
				Message: fmt.Sprintf("rule %d: description is required", r.ID),
				Code:    ErrMissingText,
			})
		}

		if _, err := validator.Build(r.Validator); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".validator",
				Message: fmt.Sprintf("rule %d: %v", r.ID, err),
				Code:    ErrInvalidValidator,
			})
		}
	}

	for i, r := range rs.Rules {
		for j, succ := range r.Unlocks {
			field := fmt.Sprintf("rules[%d].unlocks[%d]", i, j)
			switch {
			case succ == r.ID:
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("rule %d unlocks itself", r.ID),
					Code:    ErrSelfUnlock,
				})
			case !ids[succ]:
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("rule %d unlocks unknown rule %d", r.ID, succ),
					Code:    ErrUnknownSuccessor,
				})
			}
		}
	}

	// Self-loops are already reported as E106.
	for _, c := range AnalyzeCycles(*rs) {
		if len(c.Path) == 2 && c.Path[0] == c.Path[1] {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "rules",
			Message: c.Message,
			Code:    ErrUnlockCycle,
		})
	}

	terminal := rs.TerminalID()
	if !ids[terminal] {
		errs = append(errs, ValidationError{
			Field:   "terminal",
			Message: fmt.Sprintf("terminal rule %d does not exist", terminal),
			Code:    ErrUnknownTerminal,
		})
		return errs
	}

	initial := rs.InitialID()
	seen := reachable(buildUnlockGraph(*rs), initial)
	if !seen[terminal] {
		errs = append(errs, ValidationError{
			Field:   "terminal",
			Message: fmt.Sprintf("terminal rule %d is not reachable from rule %d", terminal, initial),
			Code:    ErrTerminalUnreachable,
		})
	}
	for i, r := range rs.Rules {
		if r.ID == terminal || seen[r.ID] {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("rules[%d]", i),
			Message: fmt.Sprintf("rule %d is not reachable from rule %d and will never activate", r.ID, initial),
			Code:    WarnUnreachableRule,
		})
	}

	return errs
}
