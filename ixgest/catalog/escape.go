package catalog

import "strings"

// Escape makes s safe inside a single-quoted SQL literal on one line.
//
// It is lossy on purpose: the artifacts are split into statements by a
// line-oriented loader, so backslashes, non-ASCII and control characters are
// not representable. Quotes are doubled, backslash/newline/CR/tab become a
// space, other control characters and non-ASCII runes are dropped, then
// whitespace runs collapse to one space and the ends are trimmed.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false

	for _, r := range s {
		switch {
		case r == '\\' || r == '\n' || r == '\r' || r == '\t' || r == ' ':
			pendingSpace = true
			continue
		case r < 0x20 || r == 0x7f || r > 0x7e:
			continue
		}

		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false

		if r == '\'' {
			b.WriteString("''")
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Quote returns Escape(s) in single quotes; empty input yields ''.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// QuotedOrNull is NULL for blank input, otherwise the quoted escaped text.
// Input that is not blank stays a string even if escaping empties it.
func QuotedOrNull(s string) string {
	if strings.TrimSpace(s) == "" {
		return "NULL"
	}
	return Quote(s)
}
