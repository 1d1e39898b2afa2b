package morse

import (
	"strings"
	"unicode"
)

const (
	charSeparator = "/"
	wordSeparator = " "
)

// EncodeText renders free text as a Morse message: characters joined by '/',
// words joined by a single space. Characters outside the table are skipped.
func EncodeText(text string) string {
	words := strings.Fields(text)
	encoded := make([]string, 0, len(words))
	for _, word := range words {
		codes := make([]string, 0, len(word))
		for _, r := range word {
			if seq, ok := Encode(r); ok {
				codes = append(codes, seq.String())
			}
		}
		if len(codes) > 0 {
			encoded = append(encoded, strings.Join(codes, charSeparator))
		}
	}
	return strings.Join(encoded, wordSeparator)
}

// DecodeText translates a Morse message produced by EncodeText (or typed by a
// peer). Repeated separators collapse; unknown groups decode to Unknown.
func DecodeText(code string) string {
	words := strings.Fields(code)
	decoded := make([]string, 0, len(words))
	for _, word := range words {
		var b strings.Builder
		for _, group := range strings.Split(word, charSeparator) {
			if group == "" {
				continue
			}
			seq, err := ParseSequence(group)
			if err != nil {
				b.WriteRune(Unknown)
				continue
			}
			b.WriteRune(Resolve(seq))
		}
		if b.Len() > 0 {
			decoded = append(decoded, b.String())
		}
	}
	return strings.Join(decoded, wordSeparator)
}

// Encodable reports whether every non-space rune of text has a table entry.
func Encodable(text string) bool {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if _, ok := Encode(r); !ok {
			return false
		}
	}
	return true
}
