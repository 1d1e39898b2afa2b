package protocol

import (
	"strings"
	"unicode/utf8"
)

// Kind discriminates Notification.
type Kind uint8

const (
	SequenceUpdated Kind = iota + 1
	CharacterResolved
	WordSpace
	Cleared
	TranslationReceived
	DeviceReady
)

const (
	tagMorse       = "MORSE:"
	tagChar        = "CHAR:"
	tagSpace       = "SPACE"
	tagCleared     = "CLEARED"
	tagTranslation = "TRANSLATION_RECEIVED:"
	tagReady       = "DEVICE_READY"
)

// Notification is an outbound message produced by the keyer.
type Notification struct {
	Kind     Kind
	Sequence string // SequenceUpdated: full in-progress sequence
	Char     rune   // CharacterResolved
	Text     string // TranslationReceived
}

func (k Kind) String() string {
	switch k {
	case SequenceUpdated:
		return "sequence"
	case CharacterResolved:
		return "char"
	case WordSpace:
		return "space"
	case Cleared:
		return "cleared"
	case TranslationReceived:
		return "translation"
	case DeviceReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Status reports whether the notification belongs on the status topic rather
// than the device data topic.
func (n Notification) Status() bool {
	return n.Kind == DeviceReady
}

// Encode renders the notification payload.
func (n Notification) Encode() string {
	switch n.Kind {
	case SequenceUpdated:
		return tagMorse + n.Sequence
	case CharacterResolved:
		return tagChar + string(n.Char)
	case WordSpace:
		return tagSpace
	case Cleared:
		return tagCleared
	case TranslationReceived:
		return tagTranslation + n.Text
	case DeviceReady:
		return tagReady
	default:
		return ""
	}
}

func (n Notification) String() string {
	return n.Encode()
}

// ParseNotification decodes a device payload; used by peer tooling.
func ParseNotification(raw string) (Notification, bool) {
	msg := strings.TrimRight(raw, "\r\n")
	switch {
	case msg == tagSpace:
		return Notification{Kind: WordSpace}, true
	case msg == tagCleared:
		return Notification{Kind: Cleared}, true
	case msg == tagReady:
		return Notification{Kind: DeviceReady}, true
	case strings.HasPrefix(msg, tagMorse):
		return Notification{Kind: SequenceUpdated, Sequence: msg[len(tagMorse):]}, true
	case strings.HasPrefix(msg, tagTranslation):
		return Notification{Kind: TranslationReceived, Text: msg[len(tagTranslation):]}, true
	case strings.HasPrefix(msg, tagChar):
		body := msg[len(tagChar):]
		r, size := utf8.DecodeRuneInString(body)
		if size == 0 || size != len(body) {
			return Notification{}, false
		}
		return Notification{Kind: CharacterResolved, Char: r}, true
	default:
		return Notification{}, false
	}
}
