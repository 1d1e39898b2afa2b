package main

import (
	"strings"
	"testing"
	"time"

	"morsepad/accumulator"
	"morsepad/buffer"
	"morsepad/device"
	"morsepad/gesture"
	"morsepad/protocol"
)

func TestFormatKeyerPane(t *testing.T) {
	idle := formatKeyerPane(device.Snapshot{State: accumulator.Idle}, "SOS")
	if !strings.Contains(idle, "(empty)") || !strings.Contains(idle, "(idle)") {
		t.Fatalf("formatKeyerPane(idle) = %q, want empty sequence and idle state", idle)
	}
	if !strings.Contains(idle, "Text:     SOS") {
		t.Fatalf("formatKeyerPane(idle) = %q, want decoded text line", idle)
	}

	busy := formatKeyerPane(device.Snapshot{State: accumulator.Accumulating, Sequence: ".-"}, "")
	if !strings.Contains(busy, ".-") || !strings.Contains(busy, "(accumulating)") {
		t.Fatalf("formatKeyerPane(busy) = %q, want sequence and accumulating state", busy)
	}
}

func TestFormatEventPaneOldestFirst(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := []buffer.Entry{
		{ID: 2, At: at.Add(time.Second), Source: gesture.Remote, Notification: protocol.Notification{Kind: protocol.CharacterResolved, Char: 'E'}},
		{ID: 1, At: at, Source: gesture.Local, Notification: protocol.Notification{Kind: protocol.SequenceUpdated, Sequence: "."}},
	}
	got := formatEventPane(recent)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("formatEventPane() lines = %d, want 2 (%q)", len(lines), got)
	}
	if !strings.Contains(lines[0], "local") || !strings.Contains(lines[0], "MORSE:.") {
		t.Fatalf("formatEventPane() first = %q, want the local MORSE entry", lines[0])
	}
	if !strings.Contains(lines[1], "remote") || !strings.Contains(lines[1], "CHAR:E") {
		t.Fatalf("formatEventPane() second = %q, want the remote CHAR entry", lines[1])
	}
	if formatEventPane(nil) != "" {
		t.Fatalf("formatEventPane(nil) = %q, want empty", formatEventPane(nil))
	}
}
