// Package catalog implements C1, the durable normalized mirror of the
// provider's service catalog: text search, suggestion ranking, and
// category-genericity detection.
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// synonyms maps a common colloquial term to the catalog vocabulary it
// should search as, applied after accent/whitespace normalization.
var synonyms = map[string]string{
	"progressiva": "escova progressiva",
	"luzes":       "mechas luzes",
	"pe e mao":    "mao e pe",
	"unha":        "manicure",
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var collapseReplacer = strings.NewReplacer("/", " ", "-", " ", "_", " ", "•", " ")

// Normalize applies the catalog's fixed normalization pipeline: lowercase,
// strip accents, replace separator punctuation with spaces, collapse
// repeated whitespace, then apply the synonym map. It is idempotent:
// Normalize(Normalize(s)) == Normalize(s) for all s.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	noAccents, _, err := transform.String(stripAccents, lower)
	if err != nil {
		noAccents = lower
	}
	collapsedPunct := collapseReplacer.Replace(noAccents)
	fields := strings.Fields(collapsedPunct)
	joined := strings.Join(fields, " ")
	if mapped, ok := synonyms[joined]; ok {
		return mapped
	}
	return joined
}
