// Package recorder captures live joystick samples into the script format the
// input.ScriptSampler replays, so a session on real hardware can be rerun on a
// bench without the stick attached. Consecutive identical readings are
// run-length encoded as "x,y,b *N".
package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"morsepad/input"
)

// Recorder wraps a Sampler and appends every reading it returns to a file.
type Recorder struct {
	inner input.Sampler

	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	last    input.Sample
	run     int
	written int
	err     error
}

// NewRecorder creates (or truncates) path and starts recording samples from
// inner.
func NewRecorder(inner input.Sampler, path string) (*Recorder, error) {
	if inner == nil {
		return nil, errors.New("recorder: sampler is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recorder: ensure dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create: %w", err)
	}
	r := &Recorder{inner: inner, file: f, w: bufio.NewWriter(f)}
	fmt.Fprintf(r.w, "# recorded %s\n", time.Now().UTC().Format(time.RFC3339))
	return r, nil
}

// Sample forwards to the wrapped sampler and records successful readings.
// Recording failures are remembered for Close and never affect sampling.
func (r *Recorder) Sample(now time.Time) (input.Sample, error) {
	s, err := r.inner.Sample(now)
	if err != nil {
		return s, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.w == nil {
		return s, nil
	}
	if r.run > 0 && sameReading(r.last, s) {
		r.run++
		return s, nil
	}
	r.flushRunLocked()
	r.last, r.run = s, 1
	return s, nil
}

// Lines reports how many script lines have been written so far.
func (r *Recorder) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close writes the pending run, closes the file and the wrapped sampler.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.flushRunLocked()
	var errs []error
	if r.err != nil {
		errs = append(errs, r.err)
	}
	if r.w != nil {
		if err := r.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: flush: %w", err))
		}
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: close: %w", err))
		}
		r.w, r.file = nil, nil
	}
	r.mu.Unlock()
	if err := r.inner.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Recorder) flushRunLocked() {
	if r.run == 0 || r.w == nil || r.err != nil {
		return
	}
	line := FormatLine(r.last, r.run)
	if _, err := r.w.WriteString(line + "\n"); err != nil {
		r.err = fmt.Errorf("recorder: write: %w", err)
		return
	}
	r.written++
	r.run = 0
}

// FormatLine renders one script line for a reading held for ticks samples.
func FormatLine(s input.Sample, ticks int) string {
	b := 0
	if s.Button == input.High {
		b = 1
	}
	if ticks <= 1 {
		return fmt.Sprintf("%d,%d,%d", s.X, s.Y, b)
	}
	return fmt.Sprintf("%d,%d,%d *%d", s.X, s.Y, b, ticks)
}

func sameReading(a, b input.Sample) bool {
	return a.X == b.X && a.Y == b.Y && a.Button == b.Button
}
