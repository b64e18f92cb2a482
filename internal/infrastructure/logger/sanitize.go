package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxValueLength caps a single sanitized value. Provider error bodies and
// transcript excerpts can be arbitrarily long.
const MaxValueLength = 512

const truncatedSuffix = "...(truncated)"

// SanitizeForLog escapes control characters so user-supplied titles,
// filenames and provider messages cannot forge log lines or drive the
// terminal. Printable Unicode is kept. Values longer than MaxValueLength
// bytes are cut on a rune boundary.
func SanitizeForLog(s string) string {
	truncated := false
	if len(s) > MaxValueLength {
		cut := MaxValueLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
		truncated = true
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 32 || r == 127 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	if truncated {
		b.WriteString(truncatedSuffix)
	}
	return b.String()
}
