// Package feedback turns keyer cues into audible/visual confirmation. The keyer
// only names a cue; players here own the timing and the device I/O.
package feedback

import (
	"log"
	"time"
)

// Cue identifies a confirmation pattern requested by the keyer.
type Cue uint8

const (
	Short  Cue = iota + 1 // dot appended
	Long                  // dash appended
	Double                // character resolved from a table entry
)

func (c Cue) String() string {
	switch c {
	case Short:
		return "short"
	case Long:
		return "long"
	case Double:
		return "double"
	default:
		return "unknown"
	}
}

// Step is one tone burst followed by an optional pause.
type Step struct {
	Tone  time.Duration
	Pause time.Duration
}

// Plan returns the tone timing for a cue. Timings follow the original keyer:
// 100ms for a dot, 300ms for a dash, 200/100/200ms for a resolved character.
func (c Cue) Plan() []Step {
	switch c {
	case Short:
		return []Step{{Tone: 100 * time.Millisecond}}
	case Long:
		return []Step{{Tone: 300 * time.Millisecond}}
	case Double:
		return []Step{
			{Tone: 200 * time.Millisecond, Pause: 100 * time.Millisecond},
			{Tone: 200 * time.Millisecond},
		}
	default:
		return nil
	}
}

// Blinks is the LED blink count paired with the cue.
func (c Cue) Blinks() int {
	switch c {
	case Short:
		return 1
	case Long:
		return 3
	case Double:
		return 2
	default:
		return 0
	}
}

// Duration is the total blocking time of the plan.
func (c Cue) Duration() time.Duration {
	var total time.Duration
	for _, st := range c.Plan() {
		total += st.Tone + st.Pause
	}
	return total
}

// Player renders cues. Play may block for the cue duration; callers treat
// that as intentional pacing.
type Player interface {
	Play(Cue)
	Close() error
}

// NopPlayer discards cues.
type NopPlayer struct{}

func (NopPlayer) Play(Cue)     {}
func (NopPlayer) Close() error { return nil }

// LogPlayer writes one log line per cue without blocking.
type LogPlayer struct{}

func (LogPlayer) Play(c Cue) {
	log.Printf("Feedback: %s cue (%d blink(s), %s)", c, c.Blinks(), c.Duration())
}

func (LogPlayer) Close() error { return nil }

// Driver switches a tone/LED output on or off.
type Driver interface {
	SetTone(on bool)
	Close() error
}

// PacedPlayer walks a cue plan against a Driver, sleeping between edges.
type PacedPlayer struct {
	driver Driver
	sleep  func(time.Duration)
}

// NewPacedPlayer wires a driver; a nil sleep defaults to time.Sleep.
func NewPacedPlayer(driver Driver, sleep func(time.Duration)) *PacedPlayer {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &PacedPlayer{driver: driver, sleep: sleep}
}

func (p *PacedPlayer) Play(c Cue) {
	if p == nil || p.driver == nil {
		return
	}
	for _, st := range c.Plan() {
		p.driver.SetTone(true)
		p.sleep(st.Tone)
		p.driver.SetTone(false)
		if st.Pause > 0 {
			p.sleep(st.Pause)
		}
	}
}

func (p *PacedPlayer) Close() error {
	if p == nil || p.driver == nil {
		return nil
	}
	return p.driver.Close()
}
