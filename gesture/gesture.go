// Package gesture defines the single event vocabulary shared by local joystick
// classification, the operator console, and remote commands.
package gesture

import "morsepad/morse"

// Gesture is a discrete input event. The zero value is None and is never emitted.
type Gesture uint8

const (
	None Gesture = iota
	Dot
	Dash
	Space
	Validate
	Clear
)

// All lists the emitted gestures in wire order.
var All = []Gesture{Dot, Dash, Space, Validate, Clear}

// Token is the wire spelling used by the remote channel and the console.
func (g Gesture) Token() string {
	switch g {
	case Dot:
		return "DOT"
	case Dash:
		return "DASH"
	case Space:
		return "SPACE"
	case Validate:
		return "VALIDATE"
	case Clear:
		return "CLEAR"
	default:
		return ""
	}
}

func (g Gesture) String() string {
	if tok := g.Token(); tok != "" {
		return tok
	}
	return "NONE"
}

// FromToken maps an exact wire token back to its gesture.
func FromToken(token string) (Gesture, bool) {
	for _, g := range All {
		if g.Token() == token {
			return g, true
		}
	}
	return None, false
}

// Symbol reports the Morse symbol carried by Dot and Dash.
func (g Gesture) Symbol() (morse.Symbol, bool) {
	switch g {
	case Dot:
		return morse.Dot, true
	case Dash:
		return morse.Dash, true
	default:
		return 0, false
	}
}

// Source tags where a gesture entered the keyer.
type Source uint8

const (
	Local Source = iota
	Remote
	Console
)

func (s Source) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	case Console:
		return "console"
	default:
		return "unknown"
	}
}
