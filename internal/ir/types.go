package ir

import (
	"slices"
)

// RuleSet is a compiled, ordered set of rule definitions.
type RuleSet struct {
	Name     string     `json:"name"`
	Rules    []RuleSpec `json:"rules"`              // Sorted by ID after compilation
	Terminal int        `json:"terminal,omitempty"` // 0 means highest rule id
}

// RuleSpec is the immutable definition of a single rule.
type RuleSpec struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Help        string        `json:"help,omitempty"`
	Validator   ValidatorSpec `json:"validator"`
	Unlocks     []int         `json:"unlocks,omitempty"` // Successor ids, in declaration order
}

// ValidatorKind tags the variant held by a ValidatorSpec.
type ValidatorKind string

const (
	KindWordCount ValidatorKind = "word_count"
	KindKeywords  ValidatorKind = "keywords"
	KindProximity ValidatorKind = "proximity"
	KindNumeric   ValidatorKind = "numeric"
	KindMarkers   ValidatorKind = "markers"
	KindAnyOf     ValidatorKind = "any_of"
	KindAllOf     ValidatorKind = "all_of"
)

// ValidKinds lists the validator kinds the compiler accepts.
var ValidKinds = map[ValidatorKind]bool{
	KindWordCount: true,
	KindKeywords:  true,
	KindProximity: true,
	KindNumeric:   true,
	KindMarkers:   true,
	KindAnyOf:     true,
	KindAllOf:     true,
}

// ValidatorSpec is a tagged variant. Exactly one payload matching Kind is set;
// composite kinds use Children.
type ValidatorSpec struct {
	Kind      ValidatorKind   `json:"kind"`
	WordCount *WordCountSpec  `json:"word_count,omitempty"`
	Keywords  *KeywordSpec    `json:"keywords,omitempty"`
	Proximity *ProximitySpec  `json:"proximity,omitempty"`
	Numeric   *NumericSpec    `json:"numeric,omitempty"`
	Markers   *MarkerSpec     `json:"markers,omitempty"`
	Children  []ValidatorSpec `json:"children,omitempty"`
}

// WordCountSpec requires at least Min words, and a count divisible by
// MultipleOf when MultipleOf > 0.
type WordCountSpec struct {
	Min        int `json:"min"`
	MultipleOf int `json:"multiple_of,omitempty"`
}

// MatchMode selects how keyword terms are located in text.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring" // anywhere; stems match longer words
	MatchPrefix    MatchMode = "prefix"    // term starts at a word boundary
	MatchWord      MatchMode = "word"      // term is bounded on both sides
)

// KeywordSpec is satisfied when any term is present.
type KeywordSpec struct {
	Terms []string  `json:"terms"`
	Match MatchMode `json:"match,omitempty"`
}

// DefaultMaxDistance is the proximity window used when none is given.
const DefaultMaxDistance = 50

// ProximitySpec is satisfied when an occurrence of an A term and an
// occurrence of a B term start within MaxDistance characters.
type ProximitySpec struct {
	A           []string `json:"a"`
	B           []string `json:"b"`
	MaxDistance int      `json:"max_distance,omitempty"`
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// NumericSpec matches bare word-bounded numbers of Digits digits inside Ranges.
type NumericSpec struct {
	Digits int        `json:"digits"`
	Ranges []IntRange `json:"ranges"`
}

// MarkerSpec checks narrative structure. Zero-valued fields are not checked.
type MarkerSpec struct {
	Phrases       []string `json:"phrases,omitempty"`
	MinParagraphs int      `json:"min_paragraphs,omitempty"`
	MinWords      int      `json:"min_words,omitempty"`
}

// Progression maps a rule id to the ordered ids it unlocks.
type Progression map[int][]int

// Successors returns the ids unlocked by id (nil when terminal).
func (p Progression) Successors(id int) []int {
	return p[id]
}

// Progression builds the adjacency map from each rule's Unlocks.
// Duplicate successors are dropped, first occurrence wins.
func (rs RuleSet) Progression() Progression {
	p := make(Progression, len(rs.Rules))
	for _, r := range rs.Rules {
		if len(r.Unlocks) == 0 {
			continue
		}
		seen := make(map[int]bool, len(r.Unlocks))
		succ := make([]int, 0, len(r.Unlocks))
		for _, id := range r.Unlocks {
			if seen[id] {
				continue
			}
			seen[id] = true
			succ = append(succ, id)
		}
		p[r.ID] = succ
	}
	return p
}

// Sorted returns a copy of the rule set with rules ordered by id.
func (rs RuleSet) Sorted() RuleSet {
	out := rs
	out.Rules = slices.Clone(rs.Rules)
	slices.SortStableFunc(out.Rules, func(a, b RuleSpec) int { return a.ID - b.ID })
	return out
}

// InitialID returns the lowest rule id, or 0 for an empty set.
func (rs RuleSet) InitialID() int {
	if len(rs.Rules) == 0 {
		return 0
	}
	lowest := rs.Rules[0].ID
	for _, r := range rs.Rules[1:] {
		lowest = min(lowest, r.ID)
	}
	return lowest
}

// TerminalID returns the explicit terminal id, or the highest rule id.
func (rs RuleSet) TerminalID() int {
	if rs.Terminal != 0 {
		return rs.Terminal
	}
	highest := 0
	for i, r := range rs.Rules {
		if i == 0 || r.ID > highest {
			highest = r.ID
		}
	}
	return highest
}

// Lookup finds a rule by id.
func (rs RuleSet) Lookup(id int) (RuleSpec, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return RuleSpec{}, false
}
