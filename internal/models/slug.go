package models

import "strings"

const slugMaxLen = 50

// Slugify lowercases s, keeps ASCII letters and digits, and joins
// words with hyphens. Input is truncated to 50 bytes first, matching
// how question slugs are derived from titles.
func Slugify(s string) string {
	if len(s) > slugMaxLen {
		s = s[:slugMaxLen]
	}

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
