package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRuleSet    = "rulegate/ruleset/v1"
	DomainText       = "rulegate/text/v1"
	DomainEvaluation = "rulegate/evaluation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleSetHash identifies a rule set by content. Two rule sets with the same
// rules, validators and progression hash identically regardless of the
// order rules were declared in.
func RuleSetHash(rs RuleSet) (string, error) {
	canonical, err := MarshalCanonical(rs.Sorted().CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}

// TextHash identifies a text snapshot. The text is NFC normalized by the
// canonical encoder, so visually identical snapshots share a hash.
func TextHash(text string) string {
	canonical, _ := MarshalCanonical(text) // strings never fail
	return hashWithDomain(DomainText, canonical)
}

// EvaluationHash identifies the observable outcome of one evaluation.
// Replay compares these to prove determinism.
func EvaluationHash(outcome map[string]any) (string, error) {
	canonical, err := MarshalCanonical(outcome)
	if err != nil {
		return "", fmt.Errorf("EvaluationHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvaluation, canonical), nil
}

// CanonicalMap converts the rule set to canonical-JSON-safe values.
func (rs RuleSet) CanonicalMap() map[string]any {
	rules := make([]any, len(rs.Rules))
	for i, r := range rs.Rules {
		rules[i] = r.CanonicalMap()
	}
	return map[string]any{
		"name":     rs.Name,
		"rules":    rules,
		"terminal": rs.TerminalID(),
	}
}

// CanonicalMap converts the rule to canonical-JSON-safe values.
// Display text is included so edits to descriptions change the hash.
func (r RuleSpec) CanonicalMap() map[string]any {
	m := map[string]any{
		"id":          r.ID,
		"title":       r.Title,
		"description": r.Description,
		"help":        r.Help,
		"validator":   r.Validator.CanonicalMap(),
	}
	unlocks := r.Unlocks
	if unlocks == nil {
		unlocks = []int{}
	}
	m["unlocks"] = unlocks
	return m
}

// CanonicalMap converts the validator spec to canonical-JSON-safe values.
func (v ValidatorSpec) CanonicalMap() map[string]any {
	m := map[string]any{"kind": string(v.Kind)}
	if w := v.WordCount; w != nil {
		m["word_count"] = map[string]any{"min": w.Min, "multiple_of": w.MultipleOf}
	}
	if k := v.Keywords; k != nil {
		m["keywords"] = map[string]any{"terms": nonNil(k.Terms), "match": string(k.Match)}
	}
	if p := v.Proximity; p != nil {
		m["proximity"] = map[string]any{"a": nonNil(p.A), "b": nonNil(p.B), "max_distance": p.MaxDistance}
	}
	if n := v.Numeric; n != nil {
		ranges := make([]any, len(n.Ranges))
		for i, r := range n.Ranges {
			ranges[i] = map[string]any{"min": r.Min, "max": r.Max}
		}
		m["numeric"] = map[string]any{"digits": n.Digits, "ranges": ranges}
	}
	if mk := v.Markers; mk != nil {
		m["markers"] = map[string]any{
			"phrases":        nonNil(mk.Phrases),
			"min_paragraphs": mk.MinParagraphs,
			"min_words":      mk.MinWords,
		}
	}
	if len(v.Children) > 0 {
		children := make([]any, len(v.Children))
		for i, c := range v.Children {
			children[i] = c.CanonicalMap()
		}
		m["children"] = children
	}
	return m
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
