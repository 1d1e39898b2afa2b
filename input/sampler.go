package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrSampleFormat is wrapped when a text sample line cannot be parsed.
var ErrSampleFormat = errors.New("malformed sample")

// Sampler produces the current joystick reading. Sample must not block the
// scheduler for longer than a tick.
type Sampler interface {
	Sample(now time.Time) (Sample, error)
	Close() error
}

// Centered is the at-rest reading of the reference joystick.
func Centered(now time.Time) Sample {
	mid := (DefaultCenterMin + DefaultCenterMax) / 2
	return Sample{X: mid, Y: mid, Button: High, At: now}
}

// IdleSampler always reports a centered stick and a released button. It backs
// remote-only deployments with no joystick attached.
type IdleSampler struct{}

func (IdleSampler) Sample(now time.Time) (Sample, error) { return Centered(now), nil }
func (IdleSampler) Close() error                         { return nil }

// ParseSampleLine parses "x,y,button" where button is 1 (released) or 0 (pressed).
// Whitespace around fields is ignored.
func ParseSampleLine(line string) (x, y int, button Level, err error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return 0, 0, High, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrSampleFormat, len(fields), line)
	}
	x, err = parseAxis(fields[0])
	if err != nil {
		return 0, 0, High, err
	}
	y, err = parseAxis(fields[1])
	if err != nil {
		return 0, 0, High, err
	}
	switch strings.TrimSpace(fields[2]) {
	case "1", "H", "h":
		button = High
	case "0", "L", "l":
		button = Low
	default:
		return 0, 0, High, fmt.Errorf("%w: button %q", ErrSampleFormat, fields[2])
	}
	return x, y, button, nil
}

func parseAxis(field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("%w: axis %q: %v", ErrSampleFormat, field, err)
	}
	if v < 0 || v > AxisMax {
		return 0, fmt.Errorf("%w: axis %d outside 0..%d", ErrSampleFormat, v, AxisMax)
	}
	return v, nil
}

type scriptStep struct {
	x, y   int
	button Level
	ticks  int
}

// ScriptSampler replays a recorded sample script, one step per Sample call.
// Each line is "x,y,button" optionally followed by "*N" to hold it for N ticks;
// blank lines and '#' comments are skipped. After the script ends the stick
// reads centered.
type ScriptSampler struct {
	steps []scriptStep
	idx   int
	held  int
}

// NewScriptSampler parses a script from r.
func NewScriptSampler(r io.Reader) (*ScriptSampler, error) {
	sc := bufio.NewScanner(r)
	s := &ScriptSampler{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ticks := 1
		if i := strings.LastIndexByte(line, '*'); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(line[i+1:]))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("line %d: %w: repeat %q", lineNo, ErrSampleFormat, line[i+1:])
			}
			ticks = n
			line = line[:i]
		}
		x, y, btn, err := ParseSampleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		s.steps = append(s.steps, scriptStep{x: x, y: y, button: btn, ticks: ticks})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return s, nil
}

// OpenScriptSampler loads a script file.
func OpenScriptSampler(path string) (*ScriptSampler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample script: %w", err)
	}
	defer f.Close()
	return NewScriptSampler(f)
}

func (s *ScriptSampler) Sample(now time.Time) (Sample, error) {
	if s.Done() {
		return Centered(now), nil
	}
	st := s.steps[s.idx]
	s.held++
	if s.held >= st.ticks {
		s.idx++
		s.held = 0
	}
	return Sample{X: st.x, Y: st.y, Button: st.button, At: now}, nil
}

// Done reports whether every scripted step has been replayed.
func (s *ScriptSampler) Done() bool {
	return s.idx >= len(s.steps)
}

func (s *ScriptSampler) Close() error { return nil }
