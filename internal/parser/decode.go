package parser

import (
	"strings"
	"unicode/utf8"
)

// markdownSuffixes are stripped from inline link destinations so that
// "[x](Note.md)" and "[[Note]]" name the same file part.
var markdownSuffixes = []string{".md", ".markdown"}

// DecodeDestination normalises the destination of an inline Markdown link:
// it is percent-decoded, an empty destination becomes "()" and a trailing
// Markdown extension is removed.
func DecodeDestination(raw string) string {
	dest := PercentDecode(raw)
	if dest == "" {
		return "()"
	}
	for _, suffix := range markdownSuffixes {
		if strings.HasSuffix(dest, suffix) {
			return strings.TrimSuffix(dest, suffix)
		}
	}
	return dest
}

// PercentDecode decodes every well-formed %XX escape and leaves malformed
// ones as they are. Decoded bytes that are not valid UTF-8 become U+FFFD.
func PercentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	if utf8.Valid(buf) {
		return string(buf)
	}
	var b strings.Builder
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		b.WriteRune(r) // invalid bytes decode as utf8.RuneError
		buf = buf[size:]
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	}
	return c - 'A' + 10
}
