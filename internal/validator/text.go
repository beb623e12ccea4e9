package validator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// WordCount splits text on runs of whitespace and counts the non-empty
// tokens. Empty and whitespace-only text count as zero.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Normalize prepares text for export: NFC, whitespace runs collapsed to a
// single space, ends trimmed.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Paragraphs counts blank-line-separated blocks that contain any
// non-whitespace text.
func Paragraphs(text string) int {
	n := 0
	for _, block := range blankLine.Split(text, -1) {
		if strings.TrimSpace(block) != "" {
			n++
		}
	}
	return n
}

// fold applies Unicode case folding. A Caser is stateful, so one is
// created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, fold(t))
	}
	return out
}

// occurrences returns the byte offset of every occurrence of term in text,
// scanning forward one byte past each match so overlaps are found.
func occurrences(text, term string) []int {
	if term == "" {
		return nil
	}
	var out []int
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], term)
		if i < 0 {
			break
		}
		out = append(out, from+i)
		from += i + 1
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// boundedBefore reports whether a word boundary precedes byte offset i.
func boundedBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

// boundedAfter reports whether a word boundary follows byte offset end.
func boundedAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

// runeIndex converts byte offsets into character offsets.
type runeIndex []int

func newRuneIndex(text string) runeIndex {
	idx := make(runeIndex, len(text)+1)
	n := 0
	for i := range text {
		idx[i] = n
		n++
	}
	idx[len(text)] = n
	return idx
}

func (ri runeIndex) at(byteOffset int) int {
	return ri[byteOffset]
}
