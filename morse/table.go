package morse

import (
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Unknown is the sentinel returned for sequences with no table entry.
const Unknown = '?'

type entry struct {
	code string
	char rune
}

// The codebook is kept in three groups; order matters only for Suggest tie-breaks.
var (
	letterCodes = []string{
		".-", "-...", "-.-.", "-..", ".", "..-.", "--.", "....", "..",
		".---", "-.-", ".-..", "--", "-.", "---", ".--.", "--.-", ".-.",
		"...", "-", "..-", "...-", ".--", "-..-", "-.--", "--..",
	}
	digitCodes = []string{
		"-----", ".----", "..---", "...--", "....-",
		".....", "-....", "--...", "---..", "----.",
	}
	punctuation = []entry{
		{code: ".-.-.-", char: '.'},
		{code: "--..--", char: ','},
		{code: "..--..", char: '?'},
		{code: "-....-", char: '-'},
		{code: "-..-.", char: '/'},
	}
)

var (
	entries  []entry
	byCode   map[string]rune
	byRune   map[rune]string
	maxDepth int
)

func init() {
	entries = make([]entry, 0, len(letterCodes)+len(digitCodes)+len(punctuation))
	for i, code := range letterCodes {
		entries = append(entries, entry{code: code, char: rune('A' + i)})
	}
	for i, code := range digitCodes {
		entries = append(entries, entry{code: code, char: rune('0' + i)})
	}
	entries = append(entries, punctuation...)

	byCode = make(map[string]rune, len(entries))
	byRune = make(map[rune]string, len(entries))
	for _, e := range entries {
		byCode[e.code] = e.char
		byRune[e.char] = e.code
		if len(e.code) > maxDepth {
			maxDepth = len(e.code)
		}
	}
}

// Lookup resolves an exact sequence and reports whether it matched a table entry.
func Lookup(seq Sequence) (rune, bool) {
	if len(seq) == 0 || len(seq) > maxDepth {
		return Unknown, false
	}
	r, ok := byCode[seq.String()]
	if !ok {
		return Unknown, false
	}
	return r, true
}

// Resolve translates a completed sequence. It is total: anything that is not
// an exact table entry (including the empty sequence) yields Unknown.
func Resolve(seq Sequence) rune {
	r, _ := Lookup(seq)
	return r
}

// Encode returns the sequence for a character. Letters are matched case-insensitively.
func Encode(r rune) (Sequence, bool) {
	code, ok := byRune[unicode.ToUpper(r)]
	if !ok {
		return nil, false
	}
	return MustParseSequence(code), true
}

// Characters lists every character in the table in codebook order.
func Characters() []rune {
	out := make([]rune, len(entries))
	for i, e := range entries {
		out[i] = e.char
	}
	return out
}

// MaxLength is the longest sequence present in the table.
func MaxLength() int {
	return maxDepth
}

// Purpose: Find the table character whose code is closest to seq.
// Key aspects: Plain Levenshtein on the dot/dash rendering; first entry wins ties.
// Upstream: accumulator diagnostics when a sequence resolves to Unknown.
// Downstream: levenshtein.ComputeDistance.
func Suggest(seq Sequence) (rune, int) {
	if len(seq) == 0 {
		return Unknown, -1
	}
	code := seq.String()
	best := Unknown
	bestDist := -1
	for _, e := range entries {
		d := levenshtein.ComputeDistance(code, e.code)
		if bestDist < 0 || d < bestDist {
			best = e.char
			bestDist = d
		}
	}
	return best, bestDist
}
