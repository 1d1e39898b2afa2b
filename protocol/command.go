// Package protocol is the text boundary between the keyer and the remote peer.
// Inbound payloads are parsed once into a closed Command variant; outbound
// notifications are encoded from a closed Notification variant.
package protocol

import (
	"strings"

	"morsepad/gesture"
)

const translationPrefix = "TRANSLATION:"

// CommandKind discriminates Command.
type CommandKind uint8

const (
	// CommandGesture carries a gesture to feed into the keyer.
	CommandGesture CommandKind = iota + 1
	// CommandTranslation carries peer-translated text to acknowledge.
	CommandTranslation
)

// Command is a parsed inbound message.
type Command struct {
	Kind    CommandKind
	Gesture gesture.Gesture
	Text    string
}

// GestureCommand wraps a gesture as a Command (used by the console path).
func GestureCommand(g gesture.Gesture) Command {
	return Command{Kind: CommandGesture, Gesture: g}
}

// ParseCommand converts a raw payload into a Command. Only a trailing line
// ending is stripped; tokens match exactly and a translation payload is kept
// byte for byte. Anything unrecognized reports ok=false and callers drop it
// without touching keyer state.
func ParseCommand(raw string) (Command, bool) {
	msg := strings.TrimRight(raw, "\r\n")
	if msg == "" {
		return Command{}, false
	}
	if g, ok := gesture.FromToken(msg); ok {
		return Command{Kind: CommandGesture, Gesture: g}, true
	}
	if strings.HasPrefix(msg, translationPrefix) {
		return Command{Kind: CommandTranslation, Text: msg[len(translationPrefix):]}, true
	}
	return Command{}, false
}

// Encode renders the command in the inbound wire grammar.
func (c Command) Encode() string {
	switch c.Kind {
	case CommandGesture:
		return c.Gesture.Token()
	case CommandTranslation:
		return translationPrefix + c.Text
	default:
		return ""
	}
}
