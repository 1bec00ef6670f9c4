package dispatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Prefix is the canonical command prefix; "/" is accepted as an alternative.
const Prefix = "!"

// Parse splits a raw command message into a lowercased token and its
// arguments. It reports false when the text has no prefix or the token
// directly after the prefix is empty.
func Parse(text string) (token string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || (text[0] != '!' && text[0] != '/') {
		return "", nil, false
	}
	rest := text[1:]
	r, _ := utf8.DecodeRuneInString(rest)
	if rest == "" || unicode.IsSpace(r) {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	return strings.ToLower(fields[0]), fields[1:], true
}
