// Package accumulator is the keyer state machine: it collects dots and dashes
// into one pending character, resolves it on validate/space/idle timeout, and
// describes every outcome as notifications plus feedback cues. It performs no
// I/O; the scheduler forwards the results.
package accumulator

import (
	"log"
	"time"

	"morsepad/feedback"
	"morsepad/gesture"
	"morsepad/morse"
	"morsepad/protocol"
)

// State is Idle (empty sequence) or Accumulating.
type State uint8

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// Result collects what one transition produced, in emission order.
type Result struct {
	Notifications []protocol.Notification
	Cues          []feedback.Cue
	// Resolved is set when the transition resolved a character.
	Resolved *Resolution
}

// Resolution describes one resolved character.
type Resolution struct {
	Sequence morse.Sequence
	Char     rune
	Matched  bool
	Auto     bool // triggered by the idle timeout
}

// Empty reports whether the transition was a no-op.
func (r Result) Empty() bool {
	return len(r.Notifications) == 0 && len(r.Cues) == 0
}

func (r *Result) notify(n protocol.Notification) {
	r.Notifications = append(r.Notifications, n)
}

func (r *Result) cue(c feedback.Cue) {
	r.Cues = append(r.Cues, c)
}

// Accumulator owns the in-progress sequence. Not safe for concurrent use.
type Accumulator struct {
	idleTimeout  time.Duration
	seq          morse.Sequence
	lastActivity time.Time
}

// New builds an idle accumulator with the given auto-resolve timeout.
func New(idleTimeout time.Duration) *Accumulator {
	return &Accumulator{
		idleTimeout: idleTimeout,
		seq:         make(morse.Sequence, 0, morse.MaxLength()),
	}
}

// State reports Idle or Accumulating.
func (a *Accumulator) State() State {
	if len(a.seq) == 0 {
		return Idle
	}
	return Accumulating
}

// Sequence returns a copy of the pending sequence.
func (a *Accumulator) Sequence() morse.Sequence {
	return a.seq.Clone()
}

// LastActivity is the timestamp of the last gesture that touched the sequence.
func (a *Accumulator) LastActivity() time.Time {
	return a.lastActivity
}

// Purpose: Apply one gesture to the state machine.
// Key aspects: Space while accumulating resolves exactly like Validate;
// Validate while idle is a no-op; Clear never consults the table.
// Upstream: device.Runner for local, console, and remote gestures.
// Downstream: appendSymbol, resolve.
func (a *Accumulator) Apply(g gesture.Gesture, now time.Time) Result {
	var res Result
	switch g {
	case gesture.Dot, gesture.Dash:
		sym, _ := g.Symbol()
		a.appendSymbol(sym, now, &res)
	case gesture.Space:
		if a.State() == Idle {
			res.notify(protocol.Notification{Kind: protocol.WordSpace})
		} else {
			a.resolve(false, &res)
		}
		a.lastActivity = now
	case gesture.Validate:
		if a.State() == Accumulating {
			a.resolve(false, &res)
		}
	case gesture.Clear:
		a.reset()
		res.notify(protocol.Notification{Kind: protocol.Cleared})
	}
	return res
}

// CheckTimeout auto-resolves a sequence left idle for longer than the timeout.
// It must be polled more often than the timeout itself.
func (a *Accumulator) CheckTimeout(now time.Time) Result {
	var res Result
	if a.State() == Accumulating && now.Sub(a.lastActivity) > a.idleTimeout {
		a.resolve(true, &res)
	}
	return res
}

// Acknowledge echoes peer-translated text back to the peer. The pending
// sequence is untouched.
func (a *Accumulator) Acknowledge(text string) protocol.Notification {
	return protocol.Notification{Kind: protocol.TranslationReceived, Text: text}
}

// Ready is the status notification the bridge publishes once connected.
func (a *Accumulator) Ready() protocol.Notification {
	return protocol.Notification{Kind: protocol.DeviceReady}
}

func (a *Accumulator) appendSymbol(sym morse.Symbol, now time.Time, res *Result) {
	a.seq = append(a.seq, sym)
	a.lastActivity = now
	res.notify(protocol.Notification{Kind: protocol.SequenceUpdated, Sequence: a.seq.String()})
	if sym == morse.Dot {
		res.cue(feedback.Short)
	} else {
		res.cue(feedback.Long)
	}
}

func (a *Accumulator) resolve(auto bool, res *Result) {
	seq := a.seq.Clone()
	char, matched := morse.Lookup(seq)
	if !matched {
		if near, dist := morse.Suggest(seq); dist > 0 {
			log.Printf("Keyer: %q has no table entry (closest %q at distance %d)", seq.String(), near, dist)
		}
	}
	res.notify(protocol.Notification{Kind: protocol.CharacterResolved, Char: char})
	if matched {
		res.cue(feedback.Double)
	}
	res.Resolved = &Resolution{Sequence: seq, Char: char, Matched: matched, Auto: auto}
	a.reset()
}

// reset empties the sequence in place, keeping the buffer.
func (a *Accumulator) reset() {
	a.seq = a.seq[:0]
}
