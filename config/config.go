// Package config loads the keyer configuration from a directory of YAML (and
// optionally TOML) fragments. Files are merged in lexical order so operators
// can keep site overrides in a later file (e.g. 90-site.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"morsepad/strutil"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPath overrides DefaultPath.
const (
	EnvPath     = "MORSEPAD_CONFIG_PATH"
	DefaultPath = "data/config"
)

// Config represents the complete keyer configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Input    InputConfig    `yaml:"input"`
	Morse    MorseConfig    `yaml:"morse"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Logging  LoggingConfig  `yaml:"logging"`
	UI       UIConfig       `yaml:"ui"`
	Stats    StatsConfig    `yaml:"stats"`

	// LoadedFrom is the directory the config was read from.
	LoadedFrom string `yaml:"-"`
}

// DeviceConfig identifies this keyer on the broker.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// MQTTConfig contains broker settings. Enabled defaults to true; set it to
// false to run offline with notifications logged only.
type MQTTConfig struct {
	Enabled          *bool  `yaml:"enabled"`
	Broker           string `yaml:"broker"`
	Port             int    `yaml:"port"`
	TopicPrefix      string `yaml:"topic_prefix"`
	ClientID         string `yaml:"client_id"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	QoS              int    `yaml:"qos"`
	KeepAliveSeconds int    `yaml:"keepalive_seconds"`
	QueueSize        int    `yaml:"queue_size"`
}

// IsEnabled reports whether the broker link should be started.
func (m MQTTConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// InputConfig holds joystick thresholds on the 0..4095 ADC range.
type InputConfig struct {
	DebounceMS      int `yaml:"debounce_ms"`
	Low             int `yaml:"low"`
	High            int `yaml:"high"`
	CenterMin       int `yaml:"center_min"`
	CenterMax       int `yaml:"center_max"`
	DebugIntervalMS int `yaml:"debug_interval_ms"`
}

// MorseConfig holds accumulator and scheduler timing.
type MorseConfig struct {
	IdleTimeoutMS int `yaml:"idle_timeout_ms"`
	TickMS        int `yaml:"tick_ms"`
}

// FeedbackConfig selects how cues are rendered: none, log or tone.
type FeedbackConfig struct {
	Mode       string  `yaml:"mode"`
	ToneHz     float64 `yaml:"tone_hz"`
	Volume     float64 `yaml:"volume"`
	SampleRate int     `yaml:"sample_rate"`
}

// SamplerConfig selects the joystick source: idle, serial or script. Record,
// when set, captures every reading to a replayable script file.
type SamplerConfig struct {
	Kind   string `yaml:"kind"`
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Script string `yaml:"script"`
	Record string `yaml:"record"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// UIConfig selects the local console: auto picks tview on a TTY.
type UIConfig struct {
	Mode        string `yaml:"mode"`
	RefreshMS   int    `yaml:"refresh_ms"`
	HistorySize int    `yaml:"history_size"`
}

// StatsConfig controls the periodic stats summary.
type StatsConfig struct {
	DisplayIntervalSeconds int `yaml:"display_interval_seconds"`
}

// Load reads every *.yaml, *.yml and *.toml file in dir, merges them in
// lexical order, applies defaults and validates the result. A single file
// path is rejected so deployments stay directory based.
func Load(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path %q is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".toml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no config files found in %s", dir)
	}

	merged := map[string]any{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := readFragment(path)
		if err != nil {
			return nil, err
		}
		mergeInto(merged, doc)
	}

	// Round-trip through YAML so both formats decode with one set of tags.
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse merged config: %w", err)
	}
	cfg.LoadedFrom = dir
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFragment(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	doc := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// mergeInto overlays src onto dst. Nested maps merge key by key; any other
// value in src replaces the one in dst.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Device.ID) == "" {
		c.Device.ID = "ESP32_MORSE_001"
	}
	if strings.TrimSpace(c.MQTT.Broker) == "" {
		c.MQTT.Broker = "broker.hivemq.com"
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = 1883
	}
	if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
		c.MQTT.TopicPrefix = "morse"
	}
	if c.MQTT.KeepAliveSeconds <= 0 {
		c.MQTT.KeepAliveSeconds = 60
	}
	if c.MQTT.QueueSize <= 0 {
		c.MQTT.QueueSize = 64
	}

	if c.Input.DebounceMS <= 0 {
		c.Input.DebounceMS = 300
	}
	if c.Input.Low == 0 && c.Input.High == 0 {
		c.Input.Low, c.Input.High = 1000, 3000
	}
	if c.Input.CenterMin == 0 && c.Input.CenterMax == 0 {
		c.Input.CenterMin, c.Input.CenterMax = 1500, 2500
	}
	if c.Input.DebugIntervalMS < 0 {
		c.Input.DebugIntervalMS = 0
	}

	if c.Morse.IdleTimeoutMS <= 0 {
		c.Morse.IdleTimeoutMS = 2000
	}
	if c.Morse.TickMS <= 0 {
		c.Morse.TickMS = 50
	}

	c.Feedback.Mode = strutil.NormalizeLower(c.Feedback.Mode)
	if c.Feedback.Mode == "" {
		c.Feedback.Mode = "log"
	}
	if c.Feedback.ToneHz <= 0 {
		c.Feedback.ToneHz = 700
	}
	if c.Feedback.Volume <= 0 {
		c.Feedback.Volume = 0.5
	}
	if c.Feedback.SampleRate <= 0 {
		c.Feedback.SampleRate = 44100
	}

	c.Sampler.Kind = strutil.NormalizeLower(c.Sampler.Kind)
	if c.Sampler.Kind == "" {
		c.Sampler.Kind = "idle"
	}
	if c.Sampler.Baud <= 0 {
		c.Sampler.Baud = 115200
	}

	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = "data/logs"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 7
	}

	c.UI.Mode = strutil.NormalizeLower(c.UI.Mode)
	if c.UI.Mode == "" {
		c.UI.Mode = "auto"
	}
	if c.UI.RefreshMS <= 0 {
		c.UI.RefreshMS = 250
	}
	if c.UI.HistorySize <= 0 {
		c.UI.HistorySize = 256
	}

	if c.Stats.DisplayIntervalSeconds <= 0 {
		c.Stats.DisplayIntervalSeconds = 30
	}
}

// Validate rejects settings the keyer cannot run with.
func (c *Config) Validate() error {
	in := c.Input
	if !(in.Low < in.CenterMin && in.CenterMin < in.CenterMax && in.CenterMax < in.High) {
		return fmt.Errorf("input thresholds must satisfy low(%d) < center_min(%d) < center_max(%d) < high(%d)",
			in.Low, in.CenterMin, in.CenterMax, in.High)
	}
	if in.Low < 0 || in.High > 4095 {
		return fmt.Errorf("input thresholds must lie within 0..4095 (low=%d high=%d)", in.Low, in.High)
	}
	if c.Morse.TickMS >= c.Morse.IdleTimeoutMS {
		return fmt.Errorf("morse.tick_ms (%d) must be shorter than morse.idle_timeout_ms (%d)",
			c.Morse.TickMS, c.Morse.IdleTimeoutMS)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
	}
	switch c.Feedback.Mode {
	case "none", "log", "tone":
	default:
		return fmt.Errorf("feedback.mode %q is not one of none, log, tone", c.Feedback.Mode)
	}
	if c.Feedback.Volume > 1 {
		return fmt.Errorf("feedback.volume must be <= 1 (got %.2f)", c.Feedback.Volume)
	}
	switch c.Sampler.Kind {
	case "idle":
	case "serial":
		if strings.TrimSpace(c.Sampler.Port) == "" {
			return fmt.Errorf("sampler.port is required for the serial sampler")
		}
	case "script":
		if strings.TrimSpace(c.Sampler.Script) == "" {
			return fmt.Errorf("sampler.script is required for the script sampler")
		}
	default:
		return fmt.Errorf("sampler.kind %q is not one of idle, serial, script", c.Sampler.Kind)
	}
	switch c.UI.Mode {
	case "auto", "headless", "tview":
	default:
		return fmt.Errorf("ui.mode %q is not one of auto, headless, tview", c.UI.Mode)
	}
	return nil
}

// Debounce returns input.debounce_ms as a duration.
func (in InputConfig) Debounce() time.Duration {
	return time.Duration(in.DebounceMS) * time.Millisecond
}

// DebugInterval returns input.debug_interval_ms as a duration (zero disables).
func (in InputConfig) DebugInterval() time.Duration {
	return time.Duration(in.DebugIntervalMS) * time.Millisecond
}

// IdleTimeout returns morse.idle_timeout_ms as a duration.
func (m MorseConfig) IdleTimeout() time.Duration {
	return time.Duration(m.IdleTimeoutMS) * time.Millisecond
}

// Tick returns morse.tick_ms as a duration.
func (m MorseConfig) Tick() time.Duration {
	return time.Duration(m.TickMS) * time.Millisecond
}

// Print displays the configuration.
func (c *Config) Print() {
	fmt.Printf("Device: %s (config %s)\n", c.Device.ID, c.LoadedFrom)
	if c.MQTT.IsEnabled() {
		fmt.Printf("MQTT: %s:%d (topics %s/%s/*)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.TopicPrefix, c.Device.ID)
	} else {
		fmt.Println("MQTT: disabled (offline)")
	}
	fmt.Printf("Input: low=%d high=%d center=%d..%d debounce=%dms\n",
		c.Input.Low, c.Input.High, c.Input.CenterMin, c.Input.CenterMax, c.Input.DebounceMS)
	fmt.Printf("Morse: idle timeout %dms, tick %dms\n", c.Morse.IdleTimeoutMS, c.Morse.TickMS)
	switch c.Sampler.Kind {
	case "serial":
		fmt.Printf("Sampler: serial %s @ %d baud\n", c.Sampler.Port, c.Sampler.Baud)
	case "script":
		fmt.Printf("Sampler: script %s\n", c.Sampler.Script)
	default:
		fmt.Println("Sampler: idle (console and remote input only)")
	}
	if c.Sampler.Record != "" {
		fmt.Printf("Recording samples to %s\n", c.Sampler.Record)
	}
	fmt.Printf("Feedback: %s\n", c.Feedback.Mode)
}
