// Package strutil holds small string helpers shared by config parsing, stats
// keys and log formatting.
package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and converts to upper case.
// Use for wire tokens and other values where case is not significant.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and converts to lower case.
// Config mode selectors (feedback.mode, sampler.kind, ui.mode) use it.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Clip shortens s to at most n bytes for log lines, marking the cut with
// "...". It never splits a multi-byte rune.
func Clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
