// Package input turns raw joystick readings into gestures. The classifier is
// pure state + arithmetic; samplers wrap whatever produces the readings.
package input

import (
	"errors"
	"fmt"
	"time"

	"morsepad/gesture"
)

// Level is a digital pin reading. The joystick button is wired with a pull-up,
// so High means released and Low means pressed.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Sample is one poll of the joystick.
type Sample struct {
	X      int
	Y      int
	Button Level
	At     time.Time
}

// Defaults for a 12-bit ADC (0..4095) joystick module.
const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultIdleTimeout = 2000 * time.Millisecond
	DefaultLow         = 1000
	DefaultHigh        = 3000
	DefaultCenterMin   = 1500
	DefaultCenterMax   = 2500
	AxisMax            = 4095
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid input config")

// Config is the single parameter set shared by every joystick variant.
type Config struct {
	Debounce    time.Duration
	IdleTimeout time.Duration
	Low         int
	High        int
	CenterMin   int
	CenterMax   int
}

// DefaultConfig returns the thresholds used by the reference hardware.
func DefaultConfig() Config {
	return Config{
		Debounce:    DefaultDebounce,
		IdleTimeout: DefaultIdleTimeout,
		Low:         DefaultLow,
		High:        DefaultHigh,
		CenterMin:   DefaultCenterMin,
		CenterMax:   DefaultCenterMax,
	}
}

// Validate checks the ordering Low < CenterMin < CenterMax < High.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce %s is negative", ErrInvalidConfig, c.Debounce)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalidConfig)
	}
	if !(c.Low < c.CenterMin && c.CenterMin < c.CenterMax && c.CenterMax < c.High) {
		return fmt.Errorf("%w: thresholds must satisfy low(%d) < center_min(%d) < center_max(%d) < high(%d)",
			ErrInvalidConfig, c.Low, c.CenterMin, c.CenterMax, c.High)
	}
	return nil
}

// Classifier maps samples to gestures with debounce and edge detection.
// It is not safe for concurrent use; the scheduler owns it.
type Classifier struct {
	cfg Config

	lastGesture   time.Time
	lastButton    Level
	buttonRearmAt time.Time
}

// NewClassifier starts with the button released and no gesture history.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, lastButton: High}
}

// Config returns the active parameter set.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Purpose: Classify one sample into at most one gesture.
// Key aspects: Axis gestures are gated by the debounce interval; the button is
// edge-triggered (high->low) with its own re-arm delay and its edge state updates
// even when an axis gesture wins the call.
// Upstream: device.Runner tick.
// Downstream: axisGesture, buttonEdge.
func (c *Classifier) Classify(s Sample) (gesture.Gesture, bool) {
	var axis gesture.Gesture
	if c.lastGesture.IsZero() || s.At.Sub(c.lastGesture) >= c.cfg.Debounce {
		axis = c.axisGesture(s.X, s.Y)
	}
	pressed := c.buttonEdge(s.Button, s.At)

	switch {
	case axis != gesture.None:
		c.lastGesture = s.At
		return axis, true
	case pressed:
		c.lastGesture = s.At
		return gesture.Clear, true
	default:
		return gesture.None, false
	}
}

func (c *Classifier) axisGesture(x, y int) gesture.Gesture {
	xCentered := c.centered(x)
	yCentered := c.centered(y)
	switch {
	case x < c.cfg.Low && yCentered:
		return gesture.Dot
	case x > c.cfg.High && yCentered:
		return gesture.Dash
	case y > c.cfg.High && xCentered:
		return gesture.Space
	case y < c.cfg.Low && xCentered:
		return gesture.Validate
	default:
		return gesture.None
	}
}

func (c *Classifier) centered(v int) bool {
	return v > c.cfg.CenterMin && v < c.cfg.CenterMax
}

// buttonEdge reports a press edge. While re-arming the pin is not sampled at
// all, so a bounce during that window cannot register.
func (c *Classifier) buttonEdge(level Level, now time.Time) bool {
	if !c.buttonRearmAt.IsZero() && now.Before(c.buttonRearmAt) {
		return false
	}
	edge := c.lastButton == High && level == Low
	c.lastButton = level
	if edge {
		c.buttonRearmAt = now.Add(c.cfg.Debounce)
	}
	return edge
}
