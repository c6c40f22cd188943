package categorize

import (
	"strings"
	"unicode"
)

// Normalize lowercases, strips punctuation, collapses whitespace, and
// singularizes known plural suffixes, returning the resulting tokens.
// "Organic Strawberries!" becomes ["organic", "strawberry"].
func Normalize(name string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, singularize(f))
	}
	return tokens
}

// singularize strips the common English plural suffixes. It is a heuristic
// vocabulary normalizer, not a stemmer: both keywords and item names pass
// through it, so the two sides only need to agree, not be correct English.
func singularize(w string) string {
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches") ||
		strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "xes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
