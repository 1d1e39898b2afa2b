// Package ratelimit throttles repetitive log lines on hot paths (bad serial
// lines, ignored remote tokens, full command queues) while still counting
// every occurrence.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Counter counts events and allows at most one log line per interval.
// It is safe for concurrent use.
type Counter struct {
	interval time.Duration
	now      func() time.Time
	lastLog  atomic.Int64
	total    atomic.Uint64
}

// NewCounter builds a Counter. A zero or negative interval logs every event.
func NewCounter(interval time.Duration) Counter {
	return Counter{interval: interval}
}

// Inc records one event and reports the running total plus whether the
// caller may log now.
func (c *Counter) Inc() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	total := c.total.Add(1)
	if c.interval <= 0 {
		return total, true
	}
	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC().UnixNano()
	last := c.lastLog.Load()
	if last != 0 && now-last < c.interval.Nanoseconds() {
		return total, false
	}
	return total, c.lastLog.CompareAndSwap(last, now)
}

// Total returns the number of recorded events.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}
