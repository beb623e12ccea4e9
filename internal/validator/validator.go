package validator

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/rulegate/internal/ir"
)

// Validator decides whether a text snapshot satisfies a rule.
type Validator interface {
	Validate(text string) bool
	Kind() ir.ValidatorKind
}

// BuildError reports an unusable validator spec.
type BuildError struct {
	Kind    ir.ValidatorKind
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("validator %s: %s", e.Kind, e.Message)
}

func buildErr(kind ir.ValidatorKind, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Build turns a spec into a Validator. All parameter checking happens here
// so that Validate itself cannot fail.
func Build(spec ir.ValidatorSpec) (Validator, error) {
	switch spec.Kind {
	case ir.KindWordCount:
		if spec.WordCount == nil {
			return nil, buildErr(spec.Kind, "missing word_count parameters")
		}
		return NewWordCountAtLeast(spec.WordCount.Min, spec.WordCount.MultipleOf)

	case ir.KindKeywords:
		if spec.Keywords == nil {
			return nil, buildErr(spec.Kind, "missing keywords parameters")
		}
		return NewKeywordAnyOf(spec.Keywords.Terms, spec.Keywords.Match)

	case ir.KindProximity:
		if spec.Proximity == nil {
			return nil, buildErr(spec.Kind, "missing proximity parameters")
		}
		return NewProximityPair(spec.Proximity.A, spec.Proximity.B, spec.Proximity.MaxDistance)

	case ir.KindNumeric:
		if spec.Numeric == nil {
			return nil, buildErr(spec.Kind, "missing numeric parameters")
		}
		return NewNumericRange(spec.Numeric.Digits, spec.Numeric.Ranges)

	case ir.KindMarkers:
		if spec.Markers == nil {
			return nil, buildErr(spec.Kind, "missing markers parameters")
		}
		return NewStructuralMarkers(spec.Markers.Phrases, spec.Markers.MinParagraphs, spec.Markers.MinWords)

	case ir.KindAnyOf, ir.KindAllOf:
		if len(spec.Children) == 0 {
			return nil, buildErr(spec.Kind, "at least one child validator is required")
		}
		children := make([]Validator, 0, len(spec.Children))
		for i, c := range spec.Children {
			v, err := Build(c)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", spec.Kind, i, err)
			}
			children = append(children, v)
		}
		if spec.Kind == ir.KindAnyOf {
			return AnyOf(children), nil
		}
		return AllOf(children), nil

	default:
		return nil, buildErr(spec.Kind, "unknown validator kind %q", spec.Kind)
	}
}

// Check runs v against text and converts a panic into false. This is the
// boundary the engine calls through; well-formed validators never panic.
func Check(v Validator, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("validator panicked", "kind", v.Kind(), "panic", r)
			ok = false
		}
	}()
	return v.Validate(text)
}

// WordCountAtLeast is satisfied by at least Min words, and by a count that
// is an exact multiple of MultipleOf when MultipleOf is set.
type WordCountAtLeast struct {
	Min        int
	MultipleOf int
}

// NewWordCountAtLeast validates the thresholds.
func NewWordCountAtLeast(minWords, multipleOf int) (*WordCountAtLeast, error) {
	if minWords < 0 {
		return nil, buildErr(ir.KindWordCount, "min must be >= 0, got %d", minWords)
	}
	if multipleOf < 0 {
		return nil, buildErr(ir.KindWordCount, "multiple_of must be >= 0, got %d", multipleOf)
	}
	return &WordCountAtLeast{Min: minWords, MultipleOf: multipleOf}, nil
}

func (v *WordCountAtLeast) Kind() ir.ValidatorKind { return ir.KindWordCount }

func (v *WordCountAtLeast) Validate(text string) bool {
	n := WordCount(text)
	if n < v.Min {
		return false
	}
	return v.MultipleOf == 0 || n%v.MultipleOf == 0
}

// KeywordAnyOf is satisfied when any term appears in the text.
type KeywordAnyOf struct {
	terms []string // folded
	match ir.MatchMode
}

// NewKeywordAnyOf folds the terms once. An empty mode means substring.
func NewKeywordAnyOf(terms []string, match ir.MatchMode) (*KeywordAnyOf, error) {
	if match == "" {
		match = ir.MatchSubstring
	}
	switch match {
	case ir.MatchSubstring, ir.MatchPrefix, ir.MatchWord:
	default:
		return nil, buildErr(ir.KindKeywords, "unknown match mode %q", match)
	}
	if err := checkTerms(ir.KindKeywords, "terms", terms); err != nil {
		return nil, err
	}
	return &KeywordAnyOf{terms: foldAll(terms), match: match}, nil
}

func (v *KeywordAnyOf) Kind() ir.ValidatorKind { return ir.KindKeywords }

func (v *KeywordAnyOf) Validate(text string) bool {
	folded := fold(text)
	for _, term := range v.terms {
		if v.match == ir.MatchSubstring {
			if strings.Contains(folded, term) {
				return true
			}
			continue
		}
		for _, i := range occurrences(folded, term) {
			if !boundedBefore(folded, i) {
				continue
			}
			if v.match == ir.MatchPrefix || boundedAfter(folded, i+len(term)) {
				return true
			}
		}
	}
	return false
}

// Terms returns the folded terms.
func (v *KeywordAnyOf) Terms() []string { return v.terms }

// ProximityPair is satisfied when an occurrence of an A term and an
// occurrence of a B term start within MaxDistance characters.
type ProximityPair struct {
	a, b        []string // folded
	maxDistance int
}

// NewProximityPair folds both term lists. A zero distance means the default.
func NewProximityPair(a, b []string, maxDistance int) (*ProximityPair, error) {
	if err := checkTerms(ir.KindProximity, "a", a); err != nil {
		return nil, err
	}
	if err := checkTerms(ir.KindProximity, "b", b); err != nil {
		return nil, err
	}
	if maxDistance < 0 {
		return nil, buildErr(ir.KindProximity, "max_distance must be >= 0, got %d", maxDistance)
	}
	if maxDistance == 0 {
		maxDistance = ir.DefaultMaxDistance
	}
	return &ProximityPair{a: foldAll(a), b: foldAll(b), maxDistance: maxDistance}, nil
}

func (v *ProximityPair) Kind() ir.ValidatorKind { return ir.KindProximity }

// MaxDistance returns the effective window.
func (v *ProximityPair) MaxDistance() int { return v.maxDistance }

func (v *ProximityPair) Validate(text string) bool {
	folded := fold(text)
	matchesA := positions(folded, v.a)
	if len(matchesA) == 0 {
		return false
	}
	matchesB := positions(folded, v.b)
	if len(matchesB) == 0 {
		return false
	}

	ri := newRuneIndex(folded)
	for _, i := range matchesA {
		pa := ri.at(i)
		for _, j := range matchesB {
			d := pa - ri.at(j)
			if d < 0 {
				d = -d
			}
			if d <= v.maxDistance {
				return true
			}
		}
	}
	return false
}

func positions(text string, terms []string) []int {
	var out []int
	for _, t := range terms {
		out = append(out, occurrences(text, t)...)
	}
	return out
}

// NumericRange is satisfied by a bare, word-bounded number of exactly
// Digits digits that falls inside one of the inclusive ranges.
type NumericRange struct {
	pattern *regexp.Regexp
	ranges  []ir.IntRange
}

// NewNumericRange validates digits and ranges.
func NewNumericRange(digits int, ranges []ir.IntRange) (*NumericRange, error) {
	if digits <= 0 || digits > 18 {
		return nil, buildErr(ir.KindNumeric, "digits must be between 1 and 18, got %d", digits)
	}
	if len(ranges) == 0 {
		return nil, buildErr(ir.KindNumeric, "at least one range is required")
	}
	for i, r := range ranges {
		if r.Min > r.Max {
			return nil, buildErr(ir.KindNumeric, "range[%d]: min %d > max %d", i, r.Min, r.Max)
		}
	}
	return &NumericRange{
		pattern: regexp.MustCompile(fmt.Sprintf(`\b[0-9]{%d}\b`, digits)),
		ranges:  ranges,
	}, nil
}

func (v *NumericRange) Kind() ir.ValidatorKind { return ir.KindNumeric }

func (v *NumericRange) Validate(text string) bool {
	for _, tok := range v.pattern.FindAllString(text, -1) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		for _, r := range v.ranges {
			if n >= r.Min && n <= r.Max {
				return true
			}
		}
	}
	return false
}

// StructuralMarkers checks narrative shape: required phrases, paragraph
// count and length. Unset parts are skipped.
type StructuralMarkers struct {
	phrases       []string // folded
	minParagraphs int
	minWords      int
}

// NewStructuralMarkers requires at least one configured check.
func NewStructuralMarkers(phrases []string, minParagraphs, minWords int) (*StructuralMarkers, error) {
	if len(phrases) == 0 && minParagraphs == 0 && minWords == 0 {
		return nil, buildErr(ir.KindMarkers, "at least one of phrases, min_paragraphs, min_words is required")
	}
	if minParagraphs < 0 || minWords < 0 {
		return nil, buildErr(ir.KindMarkers, "thresholds must be >= 0")
	}
	for i, p := range phrases {
		if strings.TrimSpace(p) == "" {
			return nil, buildErr(ir.KindMarkers, "phrases[%d] is empty", i)
		}
	}
	return &StructuralMarkers{phrases: foldAll(phrases), minParagraphs: minParagraphs, minWords: minWords}, nil
}

func (v *StructuralMarkers) Kind() ir.ValidatorKind { return ir.KindMarkers }

func (v *StructuralMarkers) Validate(text string) bool {
	if v.minWords > 0 && WordCount(text) < v.minWords {
		return false
	}
	if v.minParagraphs > 0 && Paragraphs(text) < v.minParagraphs {
		return false
	}
	if len(v.phrases) > 0 {
		folded := fold(text)
		for _, p := range v.phrases {
			if !strings.Contains(folded, p) {
				return false
			}
		}
	}
	return true
}

// AnyOf is satisfied when any child is.
type AnyOf []Validator

func (v AnyOf) Kind() ir.ValidatorKind { return ir.KindAnyOf }

func (v AnyOf) Validate(text string) bool {
	for _, c := range v {
		if c.Validate(text) {
			return true
		}
	}
	return false
}

// AllOf is satisfied when every child is.
type AllOf []Validator

func (v AllOf) Kind() ir.ValidatorKind { return ir.KindAllOf }

func (v AllOf) Validate(text string) bool {
	for _, c := range v {
		if !c.Validate(text) {
			return false
		}
	}
	return len(v) > 0
}

func checkTerms(kind ir.ValidatorKind, field string, terms []string) error {
	if len(terms) == 0 {
		return buildErr(kind, "%s: at least one term is required", field)
	}
	for i, t := range terms {
		if strings.TrimSpace(t) == "" {
			return buildErr(kind, "%s[%d] is empty", field, i)
		}
	}
	return nil
}
