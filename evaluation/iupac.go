package evaluation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const DefaultIUPACThreshold = 0.85

// NormalizeIUPAC canonicalizes an IUPAC name for fuzzy comparison. It drops
// all whitespace, lowercases, and undoes the usual OCR confusions of "l" for
// "1" and "o" for "0" when they stand in a locant position. The second
// result is false for an empty name.
func NormalizeIUPAC(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	s := stripSpace(strings.ToLower(name))
	s = replaceLocant(s, 'l', '1')
	s = replaceLocant(s, 'o', '0')
	s = strings.ReplaceAll(s, "yljacetamide", "yl)acetamide")
	return s, true
}

// replaceLocant swaps from for to wherever it is preceded by the start of
// the string, ',', '-' or '(' and followed by ',', a digit, '-' or ')'.
func replaceLocant(s string, from, to rune) string {
	runes := []rune(s)
	out := make([]rune, len(runes))
	copy(out, runes)
	for i, r := range runes {
		if r != from || i+1 >= len(runes) {
			continue
		}
		if i > 0 && !strings.ContainsRune(",-(", runes[i-1]) {
			continue
		}
		next := runes[i+1]
		if next == ',' || next == '-' || next == ')' || unicode.IsDigit(next) {
			out[i] = to
		}
	}
	return string(out)
}

// Similarity is one minus the edit distance over the longer length, in
// runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// SimilarEnough reports whether two IUPAC names match after normalization.
// Two empty names match; an empty name never matches a non-empty one.
func SimilarEnough(a, b string, threshold float64) bool {
	na, okA := NormalizeIUPAC(a)
	nb, okB := NormalizeIUPAC(b)
	if !okA || !okB {
		return okA == okB
	}
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	return Similarity(na, nb) >= threshold
}
