package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"morsepad/buffer"
	"morsepad/device"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// uiSurface is what main needs from an interactive console.
type uiSurface interface {
	WaitReady()
	Stop()
	SetStats(lines []string)
	SetKeyer(snap device.Snapshot, text string, recent []buffer.Entry)
	SystemWriter() *paneWriter
}

// dashboard renders the keyer state when stdout is a terminal: the pending
// sequence and decoded text, stats, recent notifications, the system log and
// a command line feeding the console processor.
type dashboard struct {
	app        *tview.Application
	keyerView  *tview.TextView
	statsView  *tview.TextView
	eventView  *tview.TextView
	systemView *tview.TextView
	input      *tview.InputField
	closed     atomic.Bool
	ready      chan struct{}
	lastKeyer  atomic.Value // string
}

const eventPaneLines = 8

// newDashboard starts the tview application. onCommand receives each line
// typed into the command field and returns the reply to show in the system
// pane; a reply of "BYE" is passed through for the caller to act on.
func newDashboard(onCommand func(string) string) *dashboard {
	makePane := func(title string) *tview.TextView {
		tv := tview.NewTextView().
			SetDynamicColors(true).
			SetWrap(false)
		tv.SetBorder(true)
		if title != "" {
			tv.SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
		}
		return tv
	}

	keyer := makePane("Keyer")
	keyer.SetTextColor(tcell.ColorGreen)
	stats := makePane("Stats")
	stats.SetTextColor(tcell.ColorYellow)
	events := makePane("Events")
	system := makePane("System")
	system.SetTextColor(tcell.ColorYellow)
	system.SetMaxLines(200)

	input := tview.NewInputField().
		SetLabel("> ").
		SetFieldBackgroundColor(tcell.ColorDefault)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(keyer, 5, 0, false).
		AddItem(stats, 5, 0, false).
		AddItem(events, eventPaneLines+2, 0, false).
		AddItem(system, 0, 1, false).
		AddItem(input, 1, 0, true)

	app := tview.NewApplication().SetRoot(layout, true).EnableMouse(false)
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	d := &dashboard{
		app:        app,
		keyerView:  keyer,
		statsView:  stats,
		eventView:  events,
		systemView: system,
		input:      input,
		ready:      ready,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || onCommand == nil {
			return
		}
		line := input.GetText()
		input.SetText("")
		// Replies are written from a goroutine; QueueUpdateDraw must not be
		// called from the event loop itself.
		go func() {
			reply := strings.TrimRight(onCommand(line), "\n")
			if reply != "" && reply != "BYE" {
				fmt.Fprintln(d.SystemWriter(), reply)
			}
		}()
	})

	go func() {
		if err := app.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		}
	}()
	return d
}

func (d *dashboard) Stop() {
	if d == nil || d.app == nil || d.closed.Swap(true) {
		return
	}
	d.app.Stop()
}

func (d *dashboard) WaitReady() {
	if d == nil || d.ready == nil {
		return
	}
	<-d.ready
}

func (d *dashboard) SetStats(lines []string) {
	if d == nil || d.closed.Load() {
		return
	}
	text := strings.Join(lines, "\n")
	d.app.QueueUpdateDraw(func() {
		d.statsView.SetText(text)
	})
}

// SetKeyer redraws the keyer and event panes. Unchanged content is skipped so
// the refresh loop does not force redraws while the operator is idle.
func (d *dashboard) SetKeyer(snap device.Snapshot, text string, recent []buffer.Entry) {
	if d == nil || d.closed.Load() {
		return
	}
	keyerText := formatKeyerPane(snap, text)
	eventText := formatEventPane(recent)
	combined := keyerText + "\x00" + eventText
	if prev, _ := d.lastKeyer.Load().(string); prev == combined {
		return
	}
	d.lastKeyer.Store(combined)
	d.app.QueueUpdateDraw(func() {
		d.keyerView.SetText(keyerText)
		d.eventView.SetText(eventText)
	})
}

func formatKeyerPane(snap device.Snapshot, text string) string {
	seq := snap.Sequence
	if seq == "" {
		seq = "[gray](empty)[-]"
	} else {
		seq = "[::b]" + tview.Escape(seq) + "[::-]"
	}
	return fmt.Sprintf("Sequence: %s   (%s)\nText:     %s", seq, snap.State, tview.Escape(text))
}

// formatEventPane lists entries oldest first; recent is newest first.
func formatEventPane(recent []buffer.Entry) string {
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		fmt.Fprintf(&b, "%s %-7s %s", e.At.Local().Format("15:04:05"), e.Source, tview.Escape(e.Notification.Encode()))
		if i > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (d *dashboard) SystemWriter() *paneWriter {
	if d == nil {
		return nil
	}
	return &paneWriter{view: d.systemView, app: d.app}
}

// paneWriter appends raw text to a TextView through the UI goroutine.
type paneWriter struct {
	view *tview.TextView
	app  *tview.Application
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.view == nil {
		return len(p), nil
	}
	text := tview.Escape(string(p))
	if w.app == nil {
		fmt.Fprint(w.view, text)
		return len(p), nil
	}
	w.app.QueueUpdateDraw(func() {
		fmt.Fprint(w.view, text)
		w.view.ScrollToEnd()
	})
	return len(p), nil
}
