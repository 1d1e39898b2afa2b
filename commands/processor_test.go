package commands

import (
	"strings"
	"testing"
	"time"

	"morsepad/accumulator"
	"morsepad/buffer"
	"morsepad/device"
	"morsepad/gesture"
	"morsepad/protocol"
	"morsepad/stats"
)

type recordingSink struct {
	cmds []protocol.Command
	full bool
}

func (s *recordingSink) Offer(src gesture.Source, cmd protocol.Command) bool {
	if s.full {
		return false
	}
	if src != gesture.Console {
		panic("console commands must be tagged console")
	}
	s.cmds = append(s.cmds, cmd)
	return true
}

type fixedStatus struct{ snap device.Snapshot }

func (f fixedStatus) Snapshot() device.Snapshot { return f.snap }

func TestGestureCommandsAreQueued(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, nil, nil, nil)
	for _, line := range []string{"dot", ".", " DASH ", "-", "space", "validate", "CLEAR"} {
		if got := p.ProcessCommand(line); got != "" {
			t.Fatalf("ProcessCommand(%q) = %q, want empty reply", line, got)
		}
	}
	want := []gesture.Gesture{gesture.Dot, gesture.Dot, gesture.Dash, gesture.Dash, gesture.Space, gesture.Validate, gesture.Clear}
	if len(sink.cmds) != len(want) {
		t.Fatalf("queued %d commands, want %d", len(sink.cmds), len(want))
	}
	for i, g := range want {
		if sink.cmds[i].Kind != protocol.CommandGesture || sink.cmds[i].Gesture != g {
			t.Fatalf("cmd[%d] = %+v, want %s", i, sink.cmds[i], g)
		}
	}
}

func TestGestureDroppedWhenQueueFull(t *testing.T) {
	p := NewProcessor(&recordingSink{full: true}, nil, nil, nil)
	if got := p.ProcessCommand("DOT"); !strings.Contains(got, "dropped") {
		t.Fatalf("ProcessCommand(DOT) = %q, want drop notice", got)
	}
}

func TestStatusAndHistory(t *testing.T) {
	tr := buffer.NewTranscript(16)
	at := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	tr.Add(buffer.Entry{At: at, Source: gesture.Remote, Notification: protocol.Notification{Kind: protocol.SequenceUpdated, Sequence: "."}})
	tr.Add(buffer.Entry{At: at.Add(time.Second), Source: gesture.Local, Notification: protocol.Notification{Kind: protocol.CharacterResolved, Char: 'E'}})

	status := fixedStatus{snap: device.Snapshot{State: accumulator.Accumulating, Sequence: "-.", LastChar: 'E', Pending: 1234 * time.Millisecond}}
	p := NewProcessor(&recordingSink{}, status, tr, stats.NewTracker())

	got := p.ProcessCommand("status")
	if !strings.Contains(got, "State: accumulating | sequence -. | last E | pending 1.2s") || !strings.Contains(got, "Text: E") {
		t.Fatalf("STATUS = %q", got)
	}

	hist := p.ProcessCommand("HISTORY 5")
	lines := strings.Split(strings.TrimSpace(hist), "\n")
	if len(lines) != 3 {
		t.Fatalf("HISTORY lines = %d, want 3: %q", len(lines), hist)
	}
	if lines[0] != "Last 2 of 2 events (keeping 16)" {
		t.Fatalf("HISTORY header = %q", lines[0])
	}
	if lines[1] != "09:00:00  remote  MORSE:." || lines[2] != "09:00:01  local   CHAR:E" {
		t.Fatalf("HISTORY = %q", lines)
	}
	if got := p.ProcessCommand("HISTORY 0"); got != "Invalid count. Use 1-100.\n" {
		t.Fatalf("HISTORY 0 = %q", got)
	}
}

func TestStatsReset(t *testing.T) {
	tracker := stats.NewTracker()
	tracker.IncrementGesture("local", "DOT")
	tracker.RecordResolution('E', true, false)
	p := NewProcessor(&recordingSink{}, nil, nil, tracker)

	if got := p.ProcessCommand("stats reset"); got != "Counters reset.\n" {
		t.Fatalf("STATS RESET = %q, want %q", got, "Counters reset.\n")
	}
	if tracker.GestureTotal() != 0 || tracker.Resolved() != 0 {
		t.Fatalf("STATS RESET left gestures=%d resolved=%d", tracker.GestureTotal(), tracker.Resolved())
	}
	if got := p.ProcessCommand("STATS CLEAR"); got != "Usage: STATS [CHARS|GESTURES|RESET]\n" {
		t.Fatalf("STATS CLEAR = %q, want usage", got)
	}
}

func TestStatsBreakdowns(t *testing.T) {
	tracker := stats.NewTracker()
	p := NewProcessor(&recordingSink{}, nil, nil, tracker)
	if got := p.ProcessCommand("STATS CHARS"); got != "Characters: none\n" {
		t.Fatalf("STATS CHARS (empty) = %q", got)
	}

	tracker.RecordResolution('E', true, false)
	tracker.RecordResolution('E', true, true)
	tracker.RecordResolution('T', true, false)
	tracker.IncrementGesture("remote", "DOT")
	want := "Characters:\n  E              2\n  T              1\n"
	if got := p.ProcessCommand("stats chars"); got != want {
		t.Fatalf("STATS CHARS = %q, want %q", got, want)
	}
	if got := p.ProcessCommand("STATS GESTURES"); !strings.Contains(got, "remote|DOT") {
		t.Fatalf("STATS GESTURES = %q, want remote|DOT", got)
	}
}

func TestMiscCommands(t *testing.T) {
	p := NewProcessor(&recordingSink{}, nil, nil, nil)
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"bye", "BYE"},
		{"decode .../---/...", "SOS\n"},
		{"STATUS", "Status unavailable.\n"},
		{"HISTORY", "History unavailable.\n"},
		{"FOO", "Unknown command: FOO\nType HELP for available commands.\n"},
	}
	for _, tc := range cases {
		if got := p.ProcessCommand(tc.in); got != tc.want {
			t.Fatalf("ProcessCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if help := p.ProcessCommand("help"); !strings.Contains(help, "VALIDATE") {
		t.Fatalf("HELP missing gesture list: %q", help)
	}
}
