package reconcile

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold normalizes a name for comparison: compatibility decomposition,
// combining marks removed, case folded, punctuation dropped and runs of
// whitespace collapsed.
func Fold(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, name)
	if err != nil {
		decomposed = name
	}
	folded := folder.String(decomposed)
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			space = true
		}
	}
	return b.String()
}

// Similarity scores how alike two names are, from 0 (nothing in common) to
// 1 (equal after folding).
func Similarity(a, b string) float64 {
	fa, fb := Fold(a), Fold(b)
	if fa == "" && fb == "" {
		return 1
	}
	return levenshtein.Similarity(fa, fb, nil)
}
