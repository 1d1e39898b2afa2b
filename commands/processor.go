// Package commands implements the operator console: gesture tokens typed on
// stdin (or the dashboard input line) enter the same serialized queue as
// remote commands, plus views of keyer state and a counter reset.
package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"morsepad/buffer"
	"morsepad/device"
	"morsepad/gesture"
	"morsepad/morse"
	"morsepad/protocol"
	"morsepad/stats"
)

// gestureSink is the command queue the scheduler drains.
type gestureSink interface {
	Offer(src gesture.Source, cmd protocol.Command) bool
}

// statusReader exposes the scheduler snapshot.
type statusReader interface {
	Snapshot() device.Snapshot
}

// Processor handles console command parsing and replies.
type Processor struct {
	sink       gestureSink
	status     statusReader
	transcript *buffer.Transcript
	tracker    *stats.Tracker
}

// NewProcessor wires the console to the queue and read-only state. status,
// transcript and tracker may be nil; the matching commands then report that
// the view is unavailable.
func NewProcessor(sink gestureSink, status statusReader, transcript *buffer.Transcript, tracker *stats.Tracker) *Processor {
	return &Processor{
		sink:       sink,
		status:     status,
		transcript: transcript,
		tracker:    tracker,
	}
}

// ProcessCommand parses a single console line and returns the reply text. A
// reply of "BYE" signals the caller to shut down.
func (p *Processor) ProcessCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ""
	}
	parts := strings.Fields(strings.ToUpper(cmd))
	command := parts[0]

	switch command {
	case ".":
		return p.queueGesture(gesture.Dot)
	case "-":
		return p.queueGesture(gesture.Dash)
	case "HELP", "H", "?":
		return p.handleHelp()
	case "STATUS":
		return p.handleStatus()
	case "STATS":
		return p.handleStats(parts[1:])
	case "HISTORY", "HIST":
		return p.handleHistory(parts[1:])
	case "DECODE":
		if len(parts) < 2 {
			return "Usage: DECODE <code>\n"
		}
		return morse.DecodeText(strings.Join(strings.Fields(cmd)[1:], " ")) + "\n"
	case "BYE", "QUIT", "EXIT":
		return "BYE"
	}
	if g, ok := gesture.FromToken(command); ok {
		return p.queueGesture(g)
	}
	return fmt.Sprintf("Unknown command: %s\nType HELP for available commands.\n", command)
}

func (p *Processor) queueGesture(g gesture.Gesture) string {
	if p.sink == nil || !p.sink.Offer(gesture.Console, protocol.GestureCommand(g)) {
		return fmt.Sprintf("%s dropped (queue full)\n", g)
	}
	return ""
}

func (p *Processor) handleHelp() string {
	return `Available commands:
DOT | .              - Key a dot
DASH | -             - Key a dash
SPACE                - Word space (or resolve the pending character)
VALIDATE             - Resolve the pending character
CLEAR                - Discard the pending character
STATUS               - Show keyer state
STATS [CHARS|GESTURES|RESET] - Show, break down or zero counters
HISTORY [count]      - Show the last N events (default: 10)
DECODE <code>        - Decode "/"-separated Morse text locally
HELP                 - Show this help
BYE                  - Quit
`
}

func (p *Processor) handleStatus() string {
	if p.status == nil {
		return "Status unavailable.\n"
	}
	snap := p.status.Snapshot()
	seq := snap.Sequence
	if seq == "" {
		seq = "(empty)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s | sequence %s", snap.State, seq)
	if snap.LastChar != 0 {
		fmt.Fprintf(&b, " | last %c", snap.LastChar)
	}
	if snap.Pending > 0 {
		fmt.Fprintf(&b, " | pending %s", snap.Pending.Round(100*time.Millisecond))
	}
	if p.transcript != nil {
		if text := p.transcript.Text(); text != "" {
			fmt.Fprintf(&b, "\nText: %s", text)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (p *Processor) handleStats(args []string) string {
	if p.tracker == nil {
		return "Stats unavailable.\n"
	}
	if len(args) > 0 {
		switch args[0] {
		case "RESET":
			p.tracker.Reset()
			return "Counters reset.\n"
		case "CHARS":
			return formatCounts("Characters", p.tracker.CharCounts())
		case "GESTURES":
			return formatCounts("Gestures", p.tracker.GestureCounts())
		default:
			return "Usage: STATS [CHARS|GESTURES|RESET]\n"
		}
	}
	return strings.Join(p.tracker.SnapshotLines(), "\n") + "\n"
}

func (p *Processor) handleHistory(args []string) string {
	count := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 100 {
			return "Invalid count. Use 1-100.\n"
		}
		count = n
	}
	if p.transcript == nil {
		return "History unavailable.\n"
	}
	if p.transcript.Count() == 0 {
		return "No events yet.\n"
	}
	entries := p.transcript.Recent(count)
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d of %d events (keeping %d)\n", len(entries), p.transcript.Count(), p.transcript.Capacity())
	// Oldest first so the latest event is last.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&b, "%s  %-7s %s\n", e.At.UTC().Format("15:04:05"), e.Source, e.Notification.Encode())
	}
	return b.String()
}

// formatCounts lists counts highest first, ties by key.
func formatCounts(title string, counts map[string]uint64) string {
	if len(counts) == 0 {
		return title + ": none\n"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-14s %d\n", k, counts[k])
	}
	return b.String()
}
