package helpers

import (
	"strings"
	"unicode/utf8"
)

// SanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode
// replacement character and strips NULL bytes. Message bodies arrive from
// arbitrary mail clients and are not guaranteed to be valid UTF-8 even
// after charset decoding.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, '\x00') {
		return s
	}
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	return strings.ReplaceAll(s, "\x00", "")
}

// TruncateString shortens s to at most max bytes without splitting a rune.
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
