package feedback

import (
	"math"
	"testing"
	"time"
)

type recordingDriver struct {
	edges  []bool
	closed bool
}

func (d *recordingDriver) SetTone(on bool) { d.edges = append(d.edges, on) }
func (d *recordingDriver) Close() error    { d.closed = true; return nil }

func TestCuePlans(t *testing.T) {
	cases := []struct {
		cue    Cue
		total  time.Duration
		blinks int
		steps  int
	}{
		{cue: Short, total: 100 * time.Millisecond, blinks: 1, steps: 1},
		{cue: Long, total: 300 * time.Millisecond, blinks: 3, steps: 1},
		{cue: Double, total: 500 * time.Millisecond, blinks: 2, steps: 2},
	}
	for _, tc := range cases {
		if got := tc.cue.Duration(); got != tc.total {
			t.Fatalf("%s.Duration() = %s, want %s", tc.cue, got, tc.total)
		}
		if got := tc.cue.Blinks(); got != tc.blinks {
			t.Fatalf("%s.Blinks() = %d, want %d", tc.cue, got, tc.blinks)
		}
		if got := len(tc.cue.Plan()); got != tc.steps {
			t.Fatalf("len(%s.Plan()) = %d, want %d", tc.cue, got, tc.steps)
		}
	}
	if Cue(0).Plan() != nil {
		t.Fatalf("zero cue should have no plan")
	}
}

func TestPacedPlayerWalksPlan(t *testing.T) {
	driver := &recordingDriver{}
	var slept []time.Duration
	p := NewPacedPlayer(driver, func(d time.Duration) { slept = append(slept, d) })

	p.Play(Double)

	wantEdges := []bool{true, false, true, false}
	if len(driver.edges) != len(wantEdges) {
		t.Fatalf("edges = %v, want %v", driver.edges, wantEdges)
	}
	for i := range wantEdges {
		if driver.edges[i] != wantEdges[i] {
			t.Fatalf("edges = %v, want %v", driver.edges, wantEdges)
		}
	}
	wantSleeps := []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	if len(slept) != len(wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", slept, wantSleeps)
	}
	for i := range wantSleeps {
		if slept[i] != wantSleeps[i] {
			t.Fatalf("sleeps = %v, want %v", slept, wantSleeps)
		}
	}
	if err := p.Close(); err != nil || !driver.closed {
		t.Fatalf("Close() = %v, closed=%v", err, driver.closed)
	}
}

func TestFillToneGate(t *testing.T) {
	buf := make([]float32, 10)
	step := 2 * math.Pi / 32
	next := fillTone(buf, 0, step, 0.5, false)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("gated-off sample %d = %v, want 0", i, v)
		}
	}
	if math.Abs(next-10*step) > 1e-9 {
		t.Fatalf("phase = %v, want %v (advance while gated off)", next, 10*step)
	}
	buf = make([]float32, 32)
	fillTone(buf, 0, step, 0.5, true)
	var peak float32
	for _, v := range buf {
		if v > peak {
			peak = v
		}
	}
	if peak < 0.49 || peak > 0.5001 {
		t.Fatalf("peak = %v, want ~0.5", peak)
	}
}
