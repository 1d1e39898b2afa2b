// Package stats tracks keyer counters (gestures by source and kind, resolved
// characters, dropped commands, published notifications) for the dashboard
// and the periodic console summary.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"morsepad/strutil"

	"github.com/dustin/go-humanize"
)

// Tracker is safe for concurrent use: the scheduler increments counters while
// the bridge and dashboard goroutines read them.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so increments never fight over a mutex
	gestureCounts sync.Map // "source|GESTURE" -> *atomic.Uint64
	charCounts    sync.Map // resolved char -> *atomic.Uint64
	start         atomic.Int64

	resolved        atomic.Uint64
	unknown         atomic.Uint64
	autoResolved    atomic.Uint64
	translations    atomic.Uint64
	ignoredCommands atomic.Uint64
	droppedCommands atomic.Uint64
	published       atomic.Uint64
	publishFailures atomic.Uint64
}

// NewTracker creates a tracker whose uptime starts now.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementGesture counts one gesture accepted from source ("local", "remote", "console").
func (t *Tracker) IncrementGesture(source, gesture string) {
	source = strutil.NormalizeLower(source)
	gesture = strutil.NormalizeUpper(gesture)
	if source == "" || gesture == "" {
		return
	}
	incrementCounter(&t.gestureCounts, source+"|"+gesture)
}

// RecordResolution counts a resolved character.
func (t *Tracker) RecordResolution(char rune, matched, auto bool) {
	t.resolved.Add(1)
	if !matched {
		t.unknown.Add(1)
	}
	if auto {
		t.autoResolved.Add(1)
	}
	incrementCounter(&t.charCounts, string(char))
}

func (t *Tracker) IncrementTranslations()    { t.translations.Add(1) }
func (t *Tracker) IncrementIgnoredCommands() { t.ignoredCommands.Add(1) }
func (t *Tracker) IncrementDroppedCommands() { t.droppedCommands.Add(1) }
func (t *Tracker) IncrementPublished()       { t.published.Add(1) }
func (t *Tracker) IncrementPublishFailures() { t.publishFailures.Add(1) }

func (t *Tracker) Resolved() uint64        { return t.resolved.Load() }
func (t *Tracker) Unknown() uint64         { return t.unknown.Load() }
func (t *Tracker) AutoResolved() uint64    { return t.autoResolved.Load() }
func (t *Tracker) Translations() uint64    { return t.translations.Load() }
func (t *Tracker) IgnoredCommands() uint64 { return t.ignoredCommands.Load() }
func (t *Tracker) DroppedCommands() uint64 { return t.droppedCommands.Load() }
func (t *Tracker) Published() uint64       { return t.published.Load() }
func (t *Tracker) PublishFailures() uint64 { return t.publishFailures.Load() }

// GestureCounts returns a copy keyed "source|GESTURE".
func (t *Tracker) GestureCounts() map[string]uint64 {
	return snapshot(&t.gestureCounts)
}

// GestureTotal sums gestures across every source.
func (t *Tracker) GestureTotal() uint64 {
	var total uint64
	t.gestureCounts.Range(func(_, value any) bool {
		total += value.(*atomic.Uint64).Load()
		return true
	})
	return total
}

// CharCounts returns a copy of per-character resolution counts.
func (t *Tracker) CharCounts() map[string]uint64 {
	return snapshot(&t.charCounts)
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(time.Unix(0, t.start.Load()))
}

// Reset zeroes every counter and restarts the uptime clock.
func (t *Tracker) Reset() {
	for _, m := range []*sync.Map{&t.gestureCounts, &t.charCounts} {
		m.Range(func(key, _ any) bool {
			m.Delete(key)
			return true
		})
	}
	for _, c := range []*atomic.Uint64{
		&t.resolved, &t.unknown, &t.autoResolved, &t.translations, &t.ignoredCommands,
		&t.droppedCommands, &t.published, &t.publishFailures,
	} {
		c.Store(0)
	}
	t.start.Store(time.Now().UnixNano())
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	return []string{
		fmt.Sprintf("Uptime: %s | gestures %s | chars %s (unknown %s, auto %s)",
			formatUptime(t.Uptime()),
			humanize.Comma(int64(t.GestureTotal())),
			humanize.Comma(int64(t.Resolved())),
			humanize.Comma(int64(t.Unknown())),
			humanize.Comma(int64(t.AutoResolved()))),
		formatMapCounts("Gestures", &t.gestureCounts),
		fmt.Sprintf("Remote: translations %s | ignored %s | dropped %s | published %s (failed %s)",
			humanize.Comma(int64(t.Translations())),
			humanize.Comma(int64(t.IgnoredCommands())),
			humanize.Comma(int64(t.DroppedCommands())),
			humanize.Comma(int64(t.Published())),
			humanize.Comma(int64(t.PublishFailures()))),
	}
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return strings.TrimSuffix(humanize.RelTime(time.Now().Add(-d), time.Now(), "", ""), " ")
}

func formatMapCounts(label string, counts *sync.Map) string {
	values := snapshot(counts)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(keys) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", k, values[k])
	}
	return builder.String()
}

func snapshot(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
