package device

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"morsepad/accumulator"
	"morsepad/bridge"
	"morsepad/feedback"
	"morsepad/gesture"
	"morsepad/input"
	"morsepad/protocol"
	"morsepad/stats"
)

var t0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

type fakeSampler struct {
	samples []input.Sample
	err     error
}

func (f *fakeSampler) Sample(now time.Time) (input.Sample, error) {
	if f.err != nil {
		return input.Centered(now), f.err
	}
	if len(f.samples) == 0 {
		return input.Centered(now), nil
	}
	s := f.samples[0]
	f.samples = f.samples[1:]
	s.At = now
	return s, nil
}

func (f *fakeSampler) Close() error { return nil }

type recordingPublisher struct {
	sent []string
	err  error
}

func (p *recordingPublisher) Publish(n protocol.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n.Encode())
	return nil
}

type recordingPlayer struct {
	cues []feedback.Cue
}

func (p *recordingPlayer) Play(c feedback.Cue) { p.cues = append(p.cues, c) }
func (p *recordingPlayer) Close() error        { return nil }

type harness struct {
	runner  *Runner
	sampler *fakeSampler
	queue   *bridge.Queue
	pub     *recordingPublisher
	player  *recordingPlayer
	tracker *stats.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sampler: &fakeSampler{},
		pub:     &recordingPublisher{},
		player:  &recordingPlayer{},
		tracker: stats.NewTracker(),
	}
	h.queue = bridge.NewQueue(16, h.tracker)
	cfg := input.DefaultConfig()
	r, err := NewRunner(Config{}, Deps{
		Sampler:     h.sampler,
		Classifier:  input.NewClassifier(cfg),
		Accumulator: accumulator.New(cfg.IdleTimeout),
		Queue:       h.queue,
		Publisher:   h.pub,
		Player:      h.player,
		Tracker:     h.tracker,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	h.runner = r
	return h
}

func (h *harness) remote(raws ...string) {
	for _, raw := range raws {
		h.queue.OfferRaw(gesture.Remote, raw)
	}
}

func TestRemoteScenarioResolvesI(t *testing.T) {
	h := newHarness(t)
	h.remote("DOT", "DOT", "VALIDATE")
	h.runner.Tick(at(0))

	want := []string{"MORSE:.", "MORSE:..", "CHAR:I"}
	if !reflect.DeepEqual(h.pub.sent, want) {
		t.Fatalf("published %v, want %v", h.pub.sent, want)
	}
	wantCues := []feedback.Cue{feedback.Short, feedback.Short, feedback.Double}
	if !reflect.DeepEqual(h.player.cues, wantCues) {
		t.Fatalf("cues %v, want %v", h.player.cues, wantCues)
	}
	if snap := h.runner.Snapshot(); snap.State != accumulator.Idle || snap.LastChar != 'I' {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if got := h.tracker.GestureCounts()["remote|DOT"]; got != 2 {
		t.Fatalf("remote DOT count = %d, want 2", got)
	}
}

func TestTranslationDoesNotTouchSequence(t *testing.T) {
	h := newHarness(t)
	h.remote("DASH", "TRANSLATION:HELLO")
	h.runner.Tick(at(0))

	want := []string{"MORSE:-", "TRANSLATION_RECEIVED:HELLO"}
	if !reflect.DeepEqual(h.pub.sent, want) {
		t.Fatalf("published %v, want %v", h.pub.sent, want)
	}
	if snap := h.runner.Snapshot(); snap.Sequence != "-" {
		t.Fatalf("sequence = %q, want %q", snap.Sequence, "-")
	}
	if h.tracker.Translations() != 1 {
		t.Fatalf("Translations() = %d, want 1", h.tracker.Translations())
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.remote("DOT", "FOO")
	h.runner.Tick(at(0))

	if !reflect.DeepEqual(h.pub.sent, []string{"MORSE:."}) {
		t.Fatalf("published %v", h.pub.sent)
	}
	if snap := h.runner.Snapshot(); snap.Sequence != "." {
		t.Fatalf("sequence = %q, want %q", snap.Sequence, ".")
	}
	if h.tracker.IgnoredCommands() != 1 {
		t.Fatalf("IgnoredCommands() = %d, want 1", h.tracker.IgnoredCommands())
	}
}

func TestLocalGestureThenIdleTimeout(t *testing.T) {
	h := newHarness(t)
	h.sampler.samples = []input.Sample{
		{X: 500, Y: 2000, Button: input.High},  // dot
		{X: 2000, Y: 2000, Button: input.High}, // centered
	}
	h.runner.Tick(at(0))
	h.runner.Tick(at(50))
	h.runner.Tick(at(2000))
	if len(h.pub.sent) != 1 {
		t.Fatalf("resolved before timeout: %v", h.pub.sent)
	}
	if got := h.runner.Snapshot().Pending; got != 2000*time.Millisecond {
		t.Fatalf("Snapshot().Pending = %s, want 2s", got)
	}
	h.runner.Tick(at(2050))
	if got := h.runner.Snapshot().Pending; got != 0 {
		t.Fatalf("Snapshot().Pending after resolve = %s, want 0", got)
	}

	want := []string{"MORSE:.", "CHAR:E"}
	if !reflect.DeepEqual(h.pub.sent, want) {
		t.Fatalf("published %v, want %v", h.pub.sent, want)
	}
	if h.tracker.AutoResolved() != 1 {
		t.Fatalf("AutoResolved() = %d, want 1", h.tracker.AutoResolved())
	}
	if got := h.runner.deps.Transcript.Text(); got != "E" {
		t.Fatalf("Transcript.Text() = %q, want %q", got, "E")
	}
}

func TestLocalAppliedBeforeRemoteInSameTick(t *testing.T) {
	h := newHarness(t)
	h.sampler.samples = []input.Sample{{X: 3500, Y: 2000, Button: input.High}} // dash
	h.remote("DOT")
	h.runner.Tick(at(0))

	want := []string{"MORSE:-", "MORSE:-."}
	if !reflect.DeepEqual(h.pub.sent, want) {
		t.Fatalf("published %v, want %v", h.pub.sent, want)
	}
}

func TestButtonClears(t *testing.T) {
	h := newHarness(t)
	h.remote("DOT", "DASH")
	h.runner.Tick(at(0))
	h.sampler.samples = []input.Sample{{X: 2000, Y: 2000, Button: input.Low}}
	h.runner.Tick(at(50))

	if last := h.pub.sent[len(h.pub.sent)-1]; last != "CLEARED" {
		t.Fatalf("last published = %q, want CLEARED", last)
	}
	if snap := h.runner.Snapshot(); snap.State != accumulator.Idle {
		t.Fatalf("state = %v, want idle", snap.State)
	}
}

func TestPublishFailureIsCountedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.pub.err = bridge.ErrNotConnected
	h.remote("DOT")
	h.runner.Tick(at(0))

	if h.tracker.PublishFailures() != 1 || h.tracker.Published() != 0 {
		t.Fatalf("failures=%d published=%d", h.tracker.PublishFailures(), h.tracker.Published())
	}
	if snap := h.runner.Snapshot(); snap.Sequence != "." {
		t.Fatalf("sequence = %q, want %q", snap.Sequence, ".")
	}
}

func TestSamplerErrorSkipsClassification(t *testing.T) {
	h := newHarness(t)
	h.sampler.err = errors.New("port gone")
	h.runner.Tick(at(0))
	if len(h.pub.sent) != 0 {
		t.Fatalf("published %v on sampler error", h.pub.sent)
	}
}

func TestNewRunnerRejectsSlowTick(t *testing.T) {
	cfg := input.DefaultConfig()
	_, err := NewRunner(Config{Tick: cfg.IdleTimeout}, Deps{
		Sampler:     input.IdleSampler{},
		Classifier:  input.NewClassifier(cfg),
		Accumulator: accumulator.New(cfg.IdleTimeout),
		Queue:       bridge.NewQueue(1, nil),
	})
	if err == nil {
		t.Fatalf("NewRunner() accepted tick equal to idle timeout")
	}
	if _, err := NewRunner(Config{}, Deps{}); err == nil {
		t.Fatalf("NewRunner() accepted missing deps")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not stop after cancel")
	}
}
