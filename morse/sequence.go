// Package morse holds the Morse codebook used by the keyer: symbol and sequence
// types, the fixed letter/digit/punctuation table, and whole-message helpers for
// the peer tooling.
package morse

import (
	"errors"
	"fmt"
	"strings"
)

// Symbol is a single Morse element.
type Symbol uint8

const (
	Dot Symbol = iota + 1
	Dash
)

// ErrInvalidSymbol is returned when sequence text contains anything other than '.' or '-'.
var ErrInvalidSymbol = errors.New("invalid morse symbol")

// Rune renders the symbol in the two-character wire alphabet.
func (s Symbol) Rune() rune {
	switch s {
	case Dot:
		return '.'
	case Dash:
		return '-'
	default:
		return '?'
	}
}

func (s Symbol) String() string {
	switch s {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	default:
		return "unknown"
	}
}

// Sequence is an ordered run of symbols for one not-yet-resolved character.
type Sequence []Symbol

// String renders the sequence as dots and dashes ("" for an empty sequence).
func (seq Sequence) String() string {
	if len(seq) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(seq))
	for _, s := range seq {
		b.WriteRune(s.Rune())
	}
	return b.String()
}

// Clone returns a copy that does not share the backing array.
func (seq Sequence) Clone() Sequence {
	if len(seq) == 0 {
		return nil
	}
	out := make(Sequence, len(seq))
	copy(out, seq)
	return out
}

// ParseSequence converts dot/dash text into a Sequence. Surrounding whitespace
// is ignored; any other rune yields ErrInvalidSymbol.
func ParseSequence(text string) (Sequence, error) {
	text = strings.TrimSpace(text)
	seq := make(Sequence, 0, len(text))
	for i, r := range text {
		switch r {
		case '.':
			seq = append(seq, Dot)
		case '-':
			seq = append(seq, Dash)
		default:
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidSymbol, r, i)
		}
	}
	return seq, nil
}

// MustParseSequence is ParseSequence for literals known to be valid.
func MustParseSequence(text string) Sequence {
	seq, err := ParseSequence(text)
	if err != nil {
		panic(err)
	}
	return seq
}
