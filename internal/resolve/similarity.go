package resolve

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ppiankov/tntracker/internal/normalize"
)

// Ratio returns the Levenshtein similarity of a and b on a 0-100 scale.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * float64(longest-d) / float64(longest)
}

// TokenSortRatio compares a and b after sorting their words, so that
// "Kumar A" and "A Kumar" score 100.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// Similarity scores two normalized names. It is the better of the plain
// token-sort ratio and the ratio over transliteration skeletons.
func Similarity(a, b string) float64 {
	if a == b {
		return 100
	}
	return max(TokenSortRatio(a, b), TokenSortRatio(normalize.Skeleton(a), normalize.Skeleton(b)))
}
