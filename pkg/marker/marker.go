package marker

import (
	"strings"
)

// Pair is a start/end marker pair delimiting an envelope in free text.
// Matching is case-insensitive, mirroring how models actually emit the
// markers in the wild.
type Pair struct {
	Start string
	End   string
}

// Reasoning is the inline chain-of-thought annotation pair.
var Reasoning = Pair{Start: "<think>", End: "</think>"}

// QueryPair returns the helper-query envelope pair for a label
// ("HELPER" or an alias such as "INSTRUMENT").
func QueryPair(label string) Pair {
	return Pair{
		Start: "[" + label + " QUERY]",
		End:   "[/" + label + " QUERY]",
	}
}

// ResultPair returns the helper-result envelope pair for a label.
func ResultPair(label string) Pair {
	return Pair{
		Start: "[" + label + " RESULT]",
		End:   "[/" + label + " RESULT]",
	}
}

// Wrap encloses body in the pair's markers.
func (p Pair) Wrap(body string) string {
	return p.Start + body + p.End
}

// Extract returns the body of the first complete envelope found in text.
// The body is whitespace-trimmed. ok is false when no complete envelope
// is present.
func Extract(p Pair, text string) (body string, ok bool) {
	i := indexFold(text, p.Start)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(p.Start):]
	j := indexFold(rest, p.End)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// Contains reports whether text contains the pair's start marker.
func Contains(p Pair, text string) bool {
	return indexFold(text, p.Start) >= 0
}

// Strip removes every complete start..end span from text. An unterminated
// span (start marker with no closing marker) is removed to the end of the
// text. Stripping already-stripped text changes nothing.
func Strip(p Pair, text string) string {
	f := NewFilter(p)
	return f.Feed(text) + f.Close()
}

// indexFold returns the index of the first case-insensitive occurrence of
// mark in s, or -1. Marker literals are ASCII, so the fold is ASCII-only
// and every index refers to s itself; a Unicode fold could change byte
// lengths and desynchronize the index from the original text.
func indexFold(s, mark string) int {
	if len(mark) == 0 {
		return 0
	}
	for i := 0; i+len(mark) <= len(s); i++ {
		if equalFoldASCII(s[i:i+len(mark)], mark) {
			return i
		}
	}
	return -1
}

// partialPrefixLen returns the length of the longest suffix of s that is a
// case-insensitive prefix of mark (but not all of mark). This is the tail a
// streaming filter must hold back: it may become the marker once more bytes
// arrive.
func partialPrefixLen(s, mark string) int {
	max := len(mark) - 1
	if len(s) < max {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		if equalFoldASCII(s[len(s)-l:], mark[:l]) {
			return l
		}
	}
	return 0
}

// equalFoldASCII reports whether a and b are equal ignoring ASCII case.
// Non-ASCII bytes must match exactly.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
