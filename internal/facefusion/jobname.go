package facefusion

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeJobPart makes one job name component safe for the tool's job files.
// Characters outside [A-Za-z0-9._-] become '_'.
func SanitizeJobPart(s string) string {
	s = removeDiacritics(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// JobName joins a prefix and file name parts into a job name: Prefix_part1_part2.
func JobName(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(SanitizeJobPart(prefix))
	for _, p := range parts {
		b.WriteByte('_')
		b.WriteString(SanitizeJobPart(p))
	}
	return b.String()
}
