package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"spaces only", "     ", 0},
		{"mixed whitespace only", " \n\t\r\n ", 0},
		{"single word", "hello", 1},
		{"runs of whitespace", "one   two\t\tthree\n\nfour", 4},
		{"leading and trailing", "  one two  ", 2},
		{"ten words", "one two three four five six seven eight nine ten", 10},
		{"punctuation attached", "Hello, world! It's 2157.", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordCount(tt.text))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize(" \n\t "))
	assert.Equal(t, "one two three", Normalize("  one\n\ntwo \t three  "))
	assert.Equal(t, "café", Normalize("café"))
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, 0, Paragraphs(""))
	assert.Equal(t, 0, Paragraphs("\n\n\n"))
	assert.Equal(t, 1, Paragraphs("one line\nanother line"))
	assert.Equal(t, 2, Paragraphs("first\n\nsecond"))
	assert.Equal(t, 2, Paragraphs("first\n   \nsecond"))
	assert.Equal(t, 2, Paragraphs("first\r\n\r\nsecond"))
	assert.Equal(t, 3, Paragraphs("a\n\n\n\nb\n\nc\n\n"))
}

func TestOccurrencesOverlapping(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, occurrences("aaaa", "aa"))
	assert.Equal(t, []int{4, 12}, occurrences("the teacher teacher", "teacher"))
	assert.Nil(t, occurrences("nothing here", "teacher"))
	assert.Nil(t, occurrences("anything", ""))
}

func TestRuneIndex(t *testing.T) {
	text := "héllo wörld"
	ri := newRuneIndex(text)
	i := strings.Index(text, "wörld")
	assert.Equal(t, 6, ri.at(i))
	assert.Equal(t, 11, ri.at(len(text)))
}
