// Package buffer provides a lock-free ring of recent keyer events. The
// scheduler appends from its tick while the dashboard and console read
// snapshots from other goroutines; each slot is an atomic pointer so readers
// see a complete entry or the previous one, never a partial write.
package buffer

import (
	"strings"
	"sync/atomic"
	"time"

	"morsepad/gesture"
	"morsepad/protocol"
)

// Entry records one outbound notification together with where its triggering
// gesture came from.
type Entry struct {
	ID           uint64
	At           time.Time
	Source       gesture.Source
	Notification protocol.Notification
}

// Transcript is a fixed-capacity circular buffer of entries.
type Transcript struct {
	slots    []atomic.Pointer[Entry]
	capacity int
	total    atomic.Uint64 // entries added, may exceed capacity
}

// NewTranscript allocates a transcript holding up to capacity entries. A
// non-positive capacity falls back to 256.
func NewTranscript(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = 256
	}
	return &Transcript{
		slots:    make([]atomic.Pointer[Entry], capacity),
		capacity: capacity,
	}
}

// Add stores a copy of e, assigning the next monotonic ID.
func (t *Transcript) Add(e Entry) uint64 {
	id := t.total.Add(1)
	e.ID = id
	idx := (id - 1) % uint64(t.capacity)
	t.slots[idx].Store(&e)
	return id
}

// Recent returns up to n entries, newest first.
func (t *Transcript) Recent(n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	total := t.total.Load()
	available := int(total)
	if available > t.capacity {
		available = t.capacity
	}
	if n > available {
		n = available
	}

	result := make([]Entry, 0, n)
	minIndex := total - uint64(available)
	for idx := total; idx > minIndex && len(result) < n; {
		idx--
		slot := idx % uint64(t.capacity)
		// ID check skips slots overwritten after wraparound
		if e := t.slots[slot].Load(); e != nil && e.ID == idx+1 {
			result = append(result, *e)
		}
	}
	return result
}

// Count returns the total number of entries ever added.
func (t *Transcript) Count() int {
	return int(t.total.Load())
}

// Capacity reports how many entries the ring retains.
func (t *Transcript) Capacity() int {
	return t.capacity
}

// Text rebuilds the decoded text visible in the retained window: resolved
// characters in order, word spaces as ' ', and nothing for the rest. A clear
// only discards the in-progress sequence, so it does not erase text.
func (t *Transcript) Text() string {
	recent := t.Recent(t.capacity)
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		n := recent[i].Notification
		switch n.Kind {
		case protocol.CharacterResolved:
			b.WriteRune(n.Char)
		case protocol.WordSpace:
			b.WriteByte(' ')
		}
	}
	return b.String()
}
