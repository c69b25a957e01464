package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugTransformer strips diacritics so city names survive as plain
// ASCII file-name stems.
var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug lowercases a city name and folds it to a file-name-safe stem.
func Slug(name string) string {
	folded, _, err := transform.String(slugTransformer, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// outputName builds "<city>_<season>_<year>_<kind>.<ext>".
func outputName(city, season string, year int, kind, ext string) string {
	return fmt.Sprintf("%s_%s_%d_%s.%s", Slug(city), strings.ToLower(season), year, kind, ext)
}
