package utils

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLogStringLength defines the maximum length for user-provided strings in logs
const MaxLogStringLength = 200

// printable drops anything that is not a letter, number, punctuation, symbol or space
var printable = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)

// SanitizeLogString sanitizes a user-controlled string for safe logging.
// It replaces control characters and limits string length so a caller cannot
// forge log lines through room titles or ids.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	// Truncate long strings on a rune boundary
	if utf8.RuneCountInString(input) > MaxLogStringLength {
		input = string([]rune(input)[:MaxLogStringLength]) + "... (truncated)"
	}

	// Pre-process CRLF to avoid double spaces
	input = strings.ReplaceAll(input, "\r\n", "\n")

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	return printable.ReplaceAllString(sanitized, "")
}

// SafeAttr returns a slog attribute with a sanitized user-controlled value
func SafeAttr(key, value string) slog.Attr {
	return slog.String(key, SanitizeLogString(value))
}
