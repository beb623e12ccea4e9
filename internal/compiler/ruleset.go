package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rulegate/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// validatorKeys lists the CUE field for each validator kind, in the order
// they are probed.
var validatorKeys = []ir.ValidatorKind{
	ir.KindWordCount,
	ir.KindKeywords,
	ir.KindProximity,
	ir.KindNumeric,
	ir.KindMarkers,
	ir.KindAnyOf,
	ir.KindAllOf,
}

// CompileBytes compiles a single CUE rule-set document.
// filename is used for error positions only.
func CompileBytes(filename string, src []byte) (*ir.RuleSet, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRuleSet(v)
}

// CompileRuleSet parses a CUE value into a RuleSet.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is first unified with the embedded #RuleSet schema, so
// structural mistakes (unknown fields, wrong types, negative thresholds)
// are reported with CUE positions before any semantic checks run.
func CompileRuleSet(v cue.Value) (*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	checked := schema.LookupPath(cue.ParsePath("#RuleSet")).Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	rs := &ir.RuleSet{}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	rs.Name = name

	if tv := v.LookupPath(cue.ParsePath("terminal")); tv.Exists() {
		n, err := tv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rs.Terminal = int(n)
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		rule, err := compileRule(iter.Value())
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}
	if len(rs.Rules) == 0 {
		return nil, &CompileError{
			Field:   "rules",
			Message: "at least one rule is required",
			Pos:     rulesVal.Pos(),
		}
	}

	sorted := rs.Sorted()
	return &sorted, nil
}

func compileRule(v cue.Value) (ir.RuleSpec, error) {
	var rule ir.RuleSpec

	id, err := v.LookupPath(cue.ParsePath("id")).Int64()
	if err != nil {
		return rule, formatCUEError(err)
	}
	rule.ID = int(id)

	if rule.Title, err = requiredString(v, "title"); err != nil {
		return rule, err
	}
	if rule.Description, err = requiredString(v, "description"); err != nil {
		return rule, err
	}
	if hv := v.LookupPath(cue.ParsePath("help")); hv.Exists() {
		if rule.Help, err = hv.String(); err != nil {
			return rule, formatCUEError(err)
		}
	}

	if uv := v.LookupPath(cue.ParsePath("unlocks")); uv.Exists() {
		if err := uv.Decode(&rule.Unlocks); err != nil {
			return rule, formatCUEError(err)
		}
	}

	vv := v.LookupPath(cue.ParsePath("validator"))
	if !vv.Exists() {
		return rule, &CompileError{
			Field:   "validator",
			Message: fmt.Sprintf("rule %d: validator is required", rule.ID),
			Pos:     v.Pos(),
		}
	}
	rule.Validator, err = compileValidator(vv)
	if err != nil {
		return rule, err
	}

	return rule, nil
}

// compileValidator reads the single variant key set on a validator struct.
func compileValidator(v cue.Value) (ir.ValidatorSpec, error) {
	var spec ir.ValidatorSpec
	var found []ir.ValidatorKind
	for _, kind := range validatorKeys {
		if v.LookupPath(cue.ParsePath(string(kind))).Exists() {
			found = append(found, kind)
		}
	}
	if len(found) != 1 {
		return spec, &CompileError{
			Field:   "validator",
			Message: fmt.Sprintf("exactly one validator kind must be set, found %d %v", len(found), found),
			Pos:     v.Pos(),
		}
	}

	spec.Kind = found[0]
	payload := v.LookupPath(cue.ParsePath(string(spec.Kind)))

	var err error
	switch spec.Kind {
	case ir.KindWordCount:
		spec.WordCount = &ir.WordCountSpec{}
		err = payload.Decode(spec.WordCount)
	case ir.KindKeywords:
		spec.Keywords = &ir.KeywordSpec{}
		err = payload.Decode(spec.Keywords)
	case ir.KindProximity:
		spec.Proximity = &ir.ProximitySpec{}
		err = payload.Decode(spec.Proximity)
	case ir.KindNumeric:
		spec.Numeric = &ir.NumericSpec{}
		err = payload.Decode(spec.Numeric)
	case ir.KindMarkers:
		spec.Markers = &ir.MarkerSpec{}
		err = payload.Decode(spec.Markers)
	case ir.KindAnyOf, ir.KindAllOf:
		iter, listErr := payload.List()
		if listErr != nil {
			return spec, formatCUEError(listErr)
		}
		for iter.Next() {
			child, childErr := compileValidator(iter.Value())
			if childErr != nil {
				return spec, childErr
			}
			spec.Children = append(spec.Children, child)
		}
	}
	if err != nil {
		return spec, formatCUEError(err)
	}
	return spec, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
