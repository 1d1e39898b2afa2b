package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"morsepad/bridge"
	"morsepad/config"
	"morsepad/feedback"
	"morsepad/gesture"
	"morsepad/input"
	"morsepad/recorder"
)

func TestLoadConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("device:\n  id: BENCH\n"), 0o644); err != nil {
		t.Fatalf("write app.yaml: %v", err)
	}
	t.Setenv(config.EnvPath, dir)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Device.ID != "BENCH" {
		t.Fatalf("device.id = %q, want BENCH", cfg.Device.ID)
	}
}

func TestLoadConfigReportsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("morse:\n  tick_ms: 5000\n"), 0o644); err != nil {
		t.Fatalf("write app.yaml: %v", err)
	}
	t.Setenv(config.EnvPath, dir)
	if _, err := loadConfig(); err == nil || !strings.Contains(err.Error(), "tick_ms") {
		t.Fatalf("loadConfig() error = %v, want tick_ms validation error", err)
	}
}

func TestInputConfigMapping(t *testing.T) {
	cfg := config.Default()
	got := inputConfig(cfg)
	if got != input.DefaultConfig() {
		t.Fatalf("inputConfig(defaults) = %+v, want %+v", got, input.DefaultConfig())
	}
}

func TestOpenSamplerAndPlayer(t *testing.T) {
	s, err := openSampler(config.SamplerConfig{Kind: "idle"})
	if err != nil {
		t.Fatalf("openSampler(idle) error = %v", err)
	}
	if _, ok := s.(input.IdleSampler); !ok {
		t.Fatalf("openSampler(idle) = %T", s)
	}
	if _, err := openSampler(config.SamplerConfig{Kind: "script", Script: filepath.Join(t.TempDir(), "missing.txt")}); err == nil {
		t.Fatalf("openSampler(missing script) succeeded")
	}
	if _, ok := openPlayer(config.FeedbackConfig{Mode: "none"}).(feedback.NopPlayer); !ok {
		t.Fatalf("openPlayer(none) is not a NopPlayer")
	}
	if _, ok := openPlayer(config.FeedbackConfig{Mode: "log"}).(feedback.LogPlayer); !ok {
		t.Fatalf("openPlayer(log) is not a LogPlayer")
	}
}

func TestReadConsoleEchoesReplies(t *testing.T) {
	var seen []string
	handle := func(line string) string {
		seen = append(seen, line)
		if line == "STATUS" {
			return "State: idle\n"
		}
		return ""
	}
	var out bytes.Buffer
	readConsole(context.Background(), strings.NewReader("DOT\nSTATUS\n"), handle, &out)
	if len(seen) != 2 || out.String() != "State: idle\n" {
		t.Fatalf("seen=%v out=%q", seen, out.String())
	}
}

func TestBridgeStatusLineDisabled(t *testing.T) {
	if got := bridgeStatusLine(nil, nil); got != "MQTT: disabled" {
		t.Fatalf("bridgeStatusLine(nil, nil) = %q", got)
	}
	q := bridge.NewQueue(1, nil)
	q.OfferRaw(gesture.Remote, "DOT")
	q.OfferRaw(gesture.Remote, "DASH")
	q.OfferRaw(gesture.Remote, "FOO")
	want := "MQTT: disabled | inbound 1 queued, 1 ignored, 1 dropped"
	if got := bridgeStatusLine(nil, q); got != want {
		t.Fatalf("bridgeStatusLine(nil, q) = %q, want %q", got, want)
	}
}

func TestDisplayStatsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		displayStats(ctx, time.Hour, nil, nil, nil, nil, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("displayStats did not stop")
	}
}

func TestOpenSamplerWithRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	s, err := openSampler(config.SamplerConfig{Kind: "idle", Record: path})
	if err != nil {
		t.Fatalf("openSampler(record) error = %v", err)
	}
	if _, ok := s.(*recorder.Recorder); !ok {
		t.Fatalf("openSampler(record) = %T, want *recorder.Recorder", s)
	}
	_, _ = s.Sample(time.Now())
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "2000,2000,1") {
		t.Fatalf("capture = %q (err %v)", data, err)
	}
}
