package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/ir"
)

const twoRuleSource = `
name: "demo"
rules: [
	{
		id:          2
		title:       "Subject"
		description: "Mention school"
		validator: keywords: {terms: ["school"], match: "word"}
	},
	{
		id:          1
		title:       "Start"
		description: "Write ten words"
		help:        "Just keep typing."
		validator: word_count: min: 10
		unlocks: [2]
	},
]
`

func TestCompileBytes_SortsRulesByID(t *testing.T) {
	rs, err := CompileBytes("demo.cue", []byte(twoRuleSource))
	require.NoError(t, err)

	assert.Equal(t, "demo", rs.Name)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, 1, rs.Rules[0].ID)
	assert.Equal(t, 2, rs.Rules[1].ID)
	assert.Equal(t, "Just keep typing.", rs.Rules[0].Help)
	assert.Equal(t, []int{2}, rs.Rules[0].Unlocks)
	assert.Equal(t, 2, rs.TerminalID())
}

func TestCompileBytes_DecodesValidatorKinds(t *testing.T) {
	src := `
name: "kinds"
terminal: 3
rules: [
	{id: 1, title: "a", description: "a", unlocks: [2, 3]
		validator: word_count: {min: 5, multiple_of: 5}},
	{id: 2, title: "b", description: "b"
		validator: proximity: {a: ["tutor"], b: ["robot"], max_distance: 20}},
	{id: 3, title: "c", description: "c"
		validator: any_of: [
			{numeric: {digits: 4, ranges: [{min: 2030, max: 9999}]}},
			{markers: {min_paragraphs: 2}},
		]},
]
`
	rs, err := CompileBytes("kinds.cue", []byte(src))
	require.NoError(t, err)
	require.Len(t, rs.Rules, 3)

	wc := rs.Rules[0].Validator
	assert.Equal(t, ir.KindWordCount, wc.Kind)
	assert.Equal(t, &ir.WordCountSpec{Min: 5, MultipleOf: 5}, wc.WordCount)

	prox := rs.Rules[1].Validator
	assert.Equal(t, ir.KindProximity, prox.Kind)
	assert.Equal(t, []string{"tutor"}, prox.Proximity.A)
	assert.Equal(t, 20, prox.Proximity.MaxDistance)

	comp := rs.Rules[2].Validator
	assert.Equal(t, ir.KindAnyOf, comp.Kind)
	require.Len(t, comp.Children, 2)
	assert.Equal(t, ir.KindNumeric, comp.Children[0].Kind)
	assert.Equal(t, []ir.IntRange{{Min: 2030, Max: 9999}}, comp.Children[0].Numeric.Ranges)
	assert.Equal(t, ir.KindMarkers, comp.Children[1].Kind)
	assert.Equal(t, 2, comp.Children[1].Markers.MinParagraphs)
	assert.Equal(t, 3, rs.Terminal)
}

func TestCompileBytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "syntax error",
			src:  `name: "x" rules: [`,
		},
		{
			name: "unknown field",
			src: `name: "x", rules: [{id: 1, title: "t", description: "d",
				colour: "red", validator: word_count: min: 1}]`,
		},
		{
			name: "negative word count",
			src:  `name: "x", rules: [{id: 1, title: "t", description: "d", validator: word_count: min: -1}]`,
		},
		{
			name: "unknown match mode",
			src: `name: "x", rules: [{id: 1, title: "t", description: "d",
				validator: keywords: {terms: ["a"], match: "fuzzy"}}]`,
		},
		{
			name: "two validator kinds",
			src: `name: "x", rules: [{id: 1, title: "t", description: "d",
				validator: {word_count: min: 1, keywords: terms: ["a"]}}]`,
		},
		{
			name: "no validator kind",
			src:  `name: "x", rules: [{id: 1, title: "t", description: "d", validator: {}}]`,
		},
		{
			name: "no rules",
			src:  `name: "x", rules: []`,
		},
		{
			name: "missing description",
			src:  `name: "x", rules: [{id: 1, title: "t", validator: word_count: min: 1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileBytes("bad.cue", []byte(tt.src))
			require.Error(t, err)
		})
	}
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "rules", Message: "at least one rule is required"}
	assert.Equal(t, "rules: at least one rule is required", err.Error())
}

func TestCompileBytes_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileBytes("broken.cue", []byte("name: \"x\"\nrules: [\n"))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "broken.cue")
}
