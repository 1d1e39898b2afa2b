package bridge

import (
	"log"
	"time"

	"morsepad/gesture"
	"morsepad/internal/ratelimit"
	"morsepad/protocol"
	"morsepad/stats"
	"morsepad/strutil"
)

// DefaultQueueSize bounds commands waiting for the next scheduler tick.
const DefaultQueueSize = 64

// Inbound is a parsed command tagged with where it came from.
type Inbound struct {
	Source  gesture.Source
	Command protocol.Command
}

// Queue hands commands from producer goroutines (MQTT callbacks, the stdin
// console) to the scheduler. Producers never block: a full queue drops the
// command and counts it.
type Queue struct {
	ch      chan Inbound
	tracker *stats.Tracker
	ignored ratelimit.Counter
	dropped ratelimit.Counter
}

// NewQueue builds a queue with the given capacity. tracker may be nil.
func NewQueue(capacity int, tracker *stats.Tracker) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{
		ch:      make(chan Inbound, capacity),
		tracker: tracker,
		ignored: ratelimit.NewCounter(10 * time.Second),
		dropped: ratelimit.NewCounter(10 * time.Second),
	}
}

// OfferRaw parses a wire payload and enqueues it. Unrecognized payloads are
// ignored without side effects beyond counting.
func (q *Queue) OfferRaw(src gesture.Source, raw string) bool {
	cmd, ok := protocol.ParseCommand(raw)
	if !ok {
		if q.tracker != nil {
			q.tracker.IncrementIgnoredCommands()
		}
		if total, ok := q.ignored.Inc(); ok {
			log.Printf("Bridge: ignoring unrecognized %s command %q (%d total)", src, strutil.Clip(raw, 40), total)
		}
		return false
	}
	return q.Offer(src, cmd)
}

// Offer enqueues a parsed command without blocking.
func (q *Queue) Offer(src gesture.Source, cmd protocol.Command) bool {
	select {
	case q.ch <- Inbound{Source: src, Command: cmd}:
		return true
	default:
		if q.tracker != nil {
			q.tracker.IncrementDroppedCommands()
		}
		if total, ok := q.dropped.Inc(); ok {
			log.Printf("Bridge: command queue full, dropping %s %s (%d total)", src, cmd.Encode(), total)
		}
		return false
	}
}

// Drain returns every command queued at the time of the call, oldest first.
// Commands arriving during the drain wait for the next call.
func (q *Queue) Drain() []Inbound {
	n := len(q.ch)
	if n == 0 {
		return nil
	}
	out := make([]Inbound, 0, n)
	for i := 0; i < n; i++ {
		select {
		case in := <-q.ch:
			out = append(out, in)
		default:
			return out
		}
	}
	return out
}

// Len reports queued commands.
func (q *Queue) Len() int { return len(q.ch) }

// Ignored and Dropped report counts since startup.
func (q *Queue) Ignored() uint64 { return q.ignored.Total() }
func (q *Queue) Dropped() uint64 { return q.dropped.Total() }
