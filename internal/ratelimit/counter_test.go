package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottlesWithinInterval(t *testing.T) {
	clock := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := NewCounter(time.Second)
	c.now = func() time.Time { return clock }

	if total, ok := c.Inc(); !ok || total != 1 {
		t.Fatalf("first Inc() = %d,%v, want 1,true", total, ok)
	}
	clock = clock.Add(500 * time.Millisecond)
	if total, ok := c.Inc(); ok || total != 2 {
		t.Fatalf("second Inc() = %d,%v, want 2,false", total, ok)
	}
	clock = clock.Add(600 * time.Millisecond)
	if total, ok := c.Inc(); !ok || total != 3 {
		t.Fatalf("third Inc() = %d,%v, want 3,true", total, ok)
	}
	if c.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", c.Total())
	}
}

func TestCounterZeroIntervalAlwaysLogs(t *testing.T) {
	c := NewCounter(0)
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(); !ok {
			t.Fatalf("Inc() #%d suppressed with zero interval", i)
		}
	}
}

func TestCounterNilSafe(t *testing.T) {
	var c *Counter
	if total, ok := c.Inc(); total != 0 || ok {
		t.Fatalf("nil Inc() = %d,%v", total, ok)
	}
}
