// Package normalize turns free-text source values into comparable forms.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/tntracker/internal/model"
)

var (
	parenRe      = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	reservedRe   = regexp.MustCompile(`(?i)\(\s*(SC|ST)\s*\)`)
)

var honorifics = map[string]bool{
	"dr": true, "thiru": true, "thirumathi": true, "tmt": true, "selvi": true,
	"shri": true, "sri": true, "smt": true, "mr": true, "mrs": true, "ms": true,
	"adv": true, "prof": true, "er": true, "capt": true, "col": true, "kumari": true,
}

// IsTamil reports whether s contains any Tamil script.
func IsTamil(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Tamil, r) {
			return true
		}
	}
	return false
}

// foldDiacritics strips combining marks from Latin text. Tamil vowel signs
// are combining marks too, so Tamil text is only composed.
func foldDiacritics(s string) string {
	if IsTamil(s) {
		return norm.NFC.String(s)
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return norm.NFC.String(s)
	}
	return out
}

// Name returns the matching key for a person or place name: folded case and
// diacritics, no honorifics, no parentheticals, punctuation as spaces.
func Name(s string) string {
	s = parenRe.ReplaceAllString(s, " ")
	s = foldDiacritics(s)
	s = cases.Fold().String(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc) {
			return r
		}
		return ' '
	}, s)

	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if honorifics[f] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Display trims a name for display, collapsing whitespace but keeping case
// and punctuation as written.
func Display(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(norm.NFC.String(s), " "))
}

// Constituency splits a constituency label into its display name and
// reservation category. "Gummidipoondi (SC)" yields ("Gummidipoondi", "SC").
// Labels without a marker are GEN.
func Constituency(s string) (name, reservation string) {
	reservation = "GEN"
	if m := reservedRe.FindStringSubmatch(s); m != nil {
		reservation = strings.ToUpper(m[1])
		s = reservedRe.ReplaceAllString(s, " ")
	}
	return Display(s), reservation
}

// Reservation returns the SC or ST marker of a constituency label. Labels
// without a marker yield an absent field rather than GEN.
func Reservation(s string) model.Field[string] {
	if m := reservedRe.FindStringSubmatch(s); m != nil {
		return model.Some(strings.ToUpper(m[1]))
	}
	return model.Field[string]{}
}

// Header normalizes a CSV header: lower case, runs of non-alphanumerics
// become a single underscore, trimmed.
func Header(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Party normalizes a party name or abbreviation for lookup.
func Party(s string) string {
	return Name(strings.ReplaceAll(s, ".", ""))
}

var skeletonRules = strings.NewReplacer(
	"th", "t", "dh", "d", "sh", "s", "ck", "k",
	"ee", "i", "oo", "u", "aa", "a",
)

// Skeleton reduces a normalized name to a transliteration-tolerant form so
// that spellings like "Senthil" and "Sentil" compare equal.
func Skeleton(normalized string) string {
	s := skeletonRules.Replace(normalized)
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev && r != ' ' {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Slug builds a stable lowercase identifier from text.
func Slug(s string) string {
	return strings.ReplaceAll(Header(foldDiacritics(s)), "_", "-")
}
