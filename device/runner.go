// Package device runs the keyer scheduler: one goroutine that, every tick,
// samples the joystick, classifies, applies gestures, drains queued remote
// and console commands, checks the idle timeout and flushes the results to
// the publisher and the feedback player. All keyer state is owned here.
package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"morsepad/accumulator"
	"morsepad/bridge"
	"morsepad/buffer"
	"morsepad/feedback"
	"morsepad/gesture"
	"morsepad/input"
	"morsepad/internal/ratelimit"
	"morsepad/protocol"
	"morsepad/stats"
)

// DefaultTick matches the firmware loop delay.
const DefaultTick = 50 * time.Millisecond

// Config controls scheduler timing.
type Config struct {
	Tick time.Duration
	// DebugInterval logs raw joystick readings this often; zero disables.
	DebugInterval time.Duration
}

// Deps are the collaborators the runner drives. Sampler, Classifier,
// Accumulator and Queue are required; the rest default to quiet stand-ins.
type Deps struct {
	Sampler     input.Sampler
	Classifier  *input.Classifier
	Accumulator *accumulator.Accumulator
	Queue       *bridge.Queue
	Publisher   bridge.Publisher
	Player      feedback.Player
	Tracker     *stats.Tracker
	Transcript  *buffer.Transcript
}

// Snapshot is a read-only view of keyer state for other goroutines.
type Snapshot struct {
	State    accumulator.State
	Sequence string
	LastChar rune
	Ticks    uint64
	// Pending is how long the sequence has waited since its last gesture;
	// zero while idle.
	Pending time.Duration
}

// Runner is the single-threaded scheduler.
type Runner struct {
	cfg  Config
	deps Deps

	lastDebug   time.Time
	sampleErrs  ratelimit.Counter
	publishErrs ratelimit.Counter

	mu   sync.Mutex
	snap Snapshot
}

// NewRunner validates deps and fills defaults.
func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	switch {
	case deps.Sampler == nil:
		return nil, errors.New("runner: sampler is required")
	case deps.Classifier == nil:
		return nil, errors.New("runner: classifier is required")
	case deps.Accumulator == nil:
		return nil, errors.New("runner: accumulator is required")
	case deps.Queue == nil:
		return nil, errors.New("runner: command queue is required")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if idle := deps.Classifier.Config().IdleTimeout; idle > 0 && cfg.Tick >= idle {
		return nil, fmt.Errorf("runner: tick %s must be shorter than idle timeout %s", cfg.Tick, idle)
	}
	if deps.Publisher == nil {
		deps.Publisher = bridge.LogPublisher{}
	}
	if deps.Player == nil {
		deps.Player = feedback.NopPlayer{}
	}
	if deps.Tracker == nil {
		deps.Tracker = stats.NewTracker()
	}
	if deps.Transcript == nil {
		deps.Transcript = buffer.NewTranscript(0)
	}
	return &Runner{
		cfg:         cfg,
		deps:        deps,
		sampleErrs:  ratelimit.NewCounter(10 * time.Second),
		publishErrs: ratelimit.NewCounter(10 * time.Second),
	}, nil
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()
	log.Printf("Keyer: scheduler running every %s", r.cfg.Tick)
	for {
		select {
		case <-ctx.Done():
			log.Println("Keyer: scheduler stopped")
			return nil
		case now := <-ticker.C:
			r.Tick(now)
		}
	}
}

// Purpose: Execute one scheduler iteration.
// Key aspects: fixed order sample -> classify -> apply -> drain commands ->
// timeout -> flush, so a remote gesture and a local one in the same tick are
// applied local first.
// Upstream: Run, tests.
// Downstream: input.Classifier, accumulator.Accumulator, bridge.Queue, emit.
func (r *Runner) Tick(now time.Time) {
	if g, ok := r.sampleGesture(now); ok {
		r.applyGesture(gesture.Local, g, now)
	}

	for _, in := range r.deps.Queue.Drain() {
		switch in.Command.Kind {
		case protocol.CommandGesture:
			r.applyGesture(in.Source, in.Command.Gesture, now)
		case protocol.CommandTranslation:
			r.deps.Tracker.IncrementTranslations()
			log.Printf("Keyer: translation from peer: %q", in.Command.Text)
			r.emit(in.Source, now, accumulator.Result{
				Notifications: []protocol.Notification{r.deps.Accumulator.Acknowledge(in.Command.Text)},
			})
		}
	}

	r.emit(gesture.Local, now, r.deps.Accumulator.CheckTimeout(now))
	r.refreshSnapshot(now)
}

func (r *Runner) sampleGesture(now time.Time) (gesture.Gesture, bool) {
	s, err := r.deps.Sampler.Sample(now)
	if err != nil {
		if total, ok := r.sampleErrs.Inc(); ok {
			log.Printf("Keyer: sampler error (%d total): %v", total, err)
		}
		return gesture.None, false
	}
	if r.cfg.DebugInterval > 0 && now.Sub(r.lastDebug) >= r.cfg.DebugInterval {
		r.lastDebug = now
		log.Printf("Joystick raw: x=%d y=%d button=%s", s.X, s.Y, s.Button)
	}
	return r.deps.Classifier.Classify(s)
}

func (r *Runner) applyGesture(src gesture.Source, g gesture.Gesture, now time.Time) {
	r.deps.Tracker.IncrementGesture(src.String(), g.Token())
	r.emit(src, now, r.deps.Accumulator.Apply(g, now))
}

// emit publishes notifications in order, records them, then plays cues.
func (r *Runner) emit(src gesture.Source, now time.Time, res accumulator.Result) {
	if res.Empty() {
		return
	}
	if res.Resolved != nil {
		rv := res.Resolved
		r.deps.Tracker.RecordResolution(rv.Char, rv.Matched, rv.Auto)
		how := "validated"
		if rv.Auto {
			how = "timed out"
		}
		log.Printf("Keyer: %s -> %c (%s)", rv.Sequence, rv.Char, how)
		r.mu.Lock()
		r.snap.LastChar = rv.Char
		r.mu.Unlock()
	}
	for _, n := range res.Notifications {
		r.deps.Transcript.Add(buffer.Entry{At: now, Source: src, Notification: n})
		if err := r.deps.Publisher.Publish(n); err != nil {
			r.deps.Tracker.IncrementPublishFailures()
			if total, ok := r.publishErrs.Inc(); ok {
				log.Printf("Keyer: publish %s failed (%d total): %v", n.Encode(), total, err)
			}
			continue
		}
		r.deps.Tracker.IncrementPublished()
	}
	for _, c := range res.Cues {
		r.deps.Player.Play(c)
	}
}

func (r *Runner) refreshSnapshot(now time.Time) {
	acc := r.deps.Accumulator
	var pending time.Duration
	if acc.State() == accumulator.Accumulating {
		pending = now.Sub(acc.LastActivity())
	}
	r.mu.Lock()
	r.snap.State = acc.State()
	r.snap.Sequence = acc.Sequence().String()
	r.snap.Pending = pending
	r.snap.Ticks++
	r.mu.Unlock()
}

// Snapshot returns the state as of the last completed tick.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}
