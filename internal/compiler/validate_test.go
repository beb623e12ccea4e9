package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rulegate/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateRuleSet_Valid(t *testing.T) {
	rs := chain(map[int][]int{1: {2}, 2: {3}, 3: nil})
	assert.Empty(t, ValidateRuleSet(&rs))
}

func TestValidateRuleSet_Empty(t *testing.T) {
	rs := ir.RuleSet{Name: "empty"}
	assert.Equal(t, []string{ErrRuleSetEmpty}, codes(ValidateRuleSet(&rs)))
}

func TestValidateRuleSet_MissingName(t *testing.T) {
	rs := chain(map[int][]int{1: nil})
	rs.Name = "  "
	assert.Equal(t, []string{ErrRuleSetNameEmpty}, codes(ValidateRuleSet(&rs)))
}

func TestValidateRuleSet_DuplicateID(t *testing.T) {
	rs := chain(map[int][]int{1: {2}, 2: nil})
	rs.Rules = append(rs.Rules, rs.Rules[1])
	assert.Contains(t, codes(ValidateRuleSet(&rs)), ErrDuplicateRuleID)
}

func TestValidateRuleSet_InvalidID(t *testing.T) {
	rs := chain(map[int][]int{1: {2}, 2: nil})
	rs.Rules[0].ID = -1
	assert.Contains(t, codes(ValidateRuleSet(&rs)), ErrInvalidRuleID)
}

func TestValidateRuleSet_MissingText(t *testing.T) {
	rs := chain(map[int][]int{1: nil})
	rs.Rules[0].Title = ""
	rs.Rules[0].Description = "\t"
	assert.Equal(t, []string{ErrMissingText, ErrMissingText}, codes(ValidateRuleSet(&rs)))
}

func TestValidateRuleSet_Successors(t *testing.T) {
	tests := []struct {
		name  string
		edges map[int][]int
		want  string
	}{
		{"unknown successor", map[int][]int{1: {9}, 2: nil}, ErrUnknownSuccessor},
		{"self unlock", map[int][]int{1: {1, 2}, 2: nil}, ErrSelfUnlock},
		{"cycle", map[int][]int{1: {2}, 2: {3}, 3: {2}}, ErrUnlockCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := chain(tt.edges)
			assert.Contains(t, codes(ValidateRuleSet(&rs)), tt.want)
		})
	}
}

func TestValidateRuleSet_SelfUnlockNotDoubleReported(t *testing.T) {
	rs := chain(map[int][]int{1: {1, 2}, 2: nil})
	assert.Equal(t, []string{ErrSelfUnlock}, codes(ValidateRuleSet(&rs)))
}

func TestValidateRuleSet_Terminal(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		rs := chain(map[int][]int{1: {2}, 2: nil})
		rs.Terminal = 7
		assert.Equal(t, []string{ErrUnknownTerminal}, codes(ValidateRuleSet(&rs)))
	})

	t.Run("unreachable", func(t *testing.T) {
		rs := chain(map[int][]int{1: {2}, 2: nil, 3: nil})
		errs := ValidateRuleSet(&rs)
		assert.Equal(t, []string{ErrTerminalUnreachable}, codes(errs))
	})
}

func TestValidateRuleSet_UnreachableRuleIsWarning(t *testing.T) {
	rs := chain(map[int][]int{1: {3}, 2: nil, 3: nil})

	findings := ValidateRuleSet(&rs)
	assert.Equal(t, []string{WarnUnreachableRule}, codes(findings))
	assert.True(t, findings[0].IsWarning())
	assert.Empty(t, Errors(findings))
}

func TestValidateRuleSet_InvalidValidator(t *testing.T) {
	rs := chain(map[int][]int{1: nil})
	rs.Rules[0].Validator = ir.ValidatorSpec{
		Kind:     ir.KindKeywords,
		Keywords: &ir.KeywordSpec{Terms: []string{""}},
	}
	errs := ValidateRuleSet(&rs)
	assert.Equal(t, []string{ErrInvalidValidator}, codes(errs))
	assert.Contains(t, errs[0].Message, "rule 1")
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "terminal", Message: "missing", Code: ErrUnknownTerminal}
	assert.Equal(t, "[E108] terminal: missing", e.Error())

	e.Line = 4
	assert.Equal(t, "[E108] line 4: terminal: missing", e.Error())
}
