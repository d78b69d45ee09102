package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery produces the query-result cache key: trimmed, inner
// whitespace collapsed, lower-cased. Diacritics are preserved because they
// change meaning for the generator.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// newFoldTransformer removes combining marks after canonical decomposition.
// transform.Chain keeps state, so one is built per call.
func newFoldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeName is the comparison key for place and entity names: casefolded,
// diacritics stripped ("Huế" == "hue", "Đà Lạt" == "da lat"), whitespace
// collapsed.
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(newFoldTransformer(), s)
	if err != nil {
		folded = s
	}
	// đ/Đ is a distinct letter, not a composed d + mark.
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
