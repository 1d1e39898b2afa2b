package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"morsepad/config"
)

const (
	logTimestampLayout = "2006/01/02 15:04:05"
	logFileDateLayout  = "02-Jan-2006"
	maxPartialLine     = 16 * 1024
)

// lineSink receives complete log lines.
type lineSink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

// writerSink forwards lines to a console or dashboard pane.
type writerSink struct {
	w     io.Writer
	stamp bool
}

func (s *writerSink) WriteLine(line string, now time.Time) {
	if s == nil || s.w == nil {
		return
	}
	if s.stamp {
		line = now.UTC().Format(logTimestampLayout) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

func (s *writerSink) Close() error { return nil }

// dayRollFunc runs after the daily file switches to a new date.
type dayRollFunc func(prevPath, newPath string)

// dailyLog appends to <dir>/<DD-Mon-YYYY>.log and prunes files older than the
// retention window whenever the date changes.
type dailyLog struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	date          string
	path          string
	file          *os.File
	lastErrorAt   time.Time
	onRoll        dayRollFunc
}

// Purpose: Create the log directory and prune stale files.
// Key aspects: Cleanup errors are reported to stderr but never fatal.
// Upstream: setupLogging.
// Downstream: os.MkdirAll, cleanupOldLogs.
func newDailyLog(dir string, retentionDays int) (*dailyLog, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	if err := cleanupOldLogs(dir, time.Now().UTC(), retentionDays); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: cleanup failed for %s: %v\n", dir, err)
	}
	return &dailyLog{dir: dir, retentionDays: retentionDays}, nil
}

// Purpose: Append one timestamped line, switching files on a date change.
// Key aspects: The roll callback runs after the lock is released so it may
// log through the same fanout.
// Upstream: logTee.Write.
// Downstream: roll, os.File.WriteString.
func (l *dailyLog) WriteLine(line string, now time.Time) {
	if l == nil {
		return
	}
	now = now.UTC()
	date := now.Format(logFileDateLayout)

	var rolled dayRollFunc
	var prevPath, newPath string

	l.mu.Lock()
	if l.file == nil || l.date != date {
		prevPath = l.path
		if l.roll(date, now) && prevPath != "" {
			rolled, newPath = l.onRoll, l.path
		}
	}
	if l.file != nil {
		if _, err := l.file.WriteString(now.Format(logTimestampLayout) + " " + line + "\n"); err != nil {
			l.reportLocked(now, fmt.Errorf("write failed: %w", err))
		}
	}
	l.mu.Unlock()

	if rolled != nil {
		rolled(prevPath, newPath)
	}
}

// roll closes the current file and opens the one for date.
func (l *dailyLog) roll(date string, now time.Time) bool {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		l.reportLocked(now, fmt.Errorf("failed to create log directory %q: %w", l.dir, err))
		return false
	}
	path := filepath.Join(l.dir, logFileNameForDate(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.reportLocked(now, fmt.Errorf("open failed for %s: %w", path, err))
		return false
	}
	l.file, l.date, l.path = f, date, path
	if err := cleanupOldLogs(l.dir, now, l.retentionDays); err != nil {
		l.reportLocked(now, fmt.Errorf("cleanup failed: %w", err))
	}
	return true
}

// reportLocked writes file errors to stderr at most once a minute.
func (l *dailyLog) reportLocked(now time.Time, err error) {
	if !l.lastErrorAt.IsZero() && now.Sub(l.lastErrorAt) < time.Minute {
		return
	}
	l.lastErrorAt = now
	fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
}

func (l *dailyLog) OnRoll(fn dayRollFunc) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.onRoll = fn
	l.mu.Unlock()
}

func (l *dailyLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.date, l.path = nil, "", ""
	return err
}

// logTee is the io.Writer installed with log.SetOutput. It splits writes into
// lines and hands each one to the console sink and the file sink.
type logTee struct {
	mu      sync.Mutex
	pending []byte
	console lineSink
	file    lineSink
}

// Purpose: Wire logging from config without blocking startup.
// Key aspects: Returns a usable tee even when the file sink fails.
// Upstream: main startup.
// Downstream: newDailyLog.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logTee, error) {
	tee := &logTee{console: &writerSink{w: console, stamp: true}}
	if !cfg.Enabled {
		return tee, nil
	}
	daily, err := newDailyLog(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return tee, err
	}
	tee.setFile(daily)
	return tee, nil
}

// SetConsole swaps the console sink, e.g. to the dashboard system pane.
func (t *logTee) SetConsole(w io.Writer, stamp bool) {
	if t == nil {
		return
	}
	var sink lineSink
	if w != nil {
		sink = &writerSink{w: w, stamp: stamp}
	}
	t.mu.Lock()
	t.console = sink
	t.mu.Unlock()
}

func (t *logTee) setFile(sink lineSink) {
	t.mu.Lock()
	t.file = sink
	t.mu.Unlock()
}

// OnDayRoll registers fn with the file sink; no-op without file logging.
func (t *logTee) OnDayRoll(fn dayRollFunc) {
	if t == nil {
		return
	}
	t.mu.Lock()
	sink := t.file
	t.mu.Unlock()
	if daily, ok := sink.(*dailyLog); ok {
		daily.OnRoll(fn)
	}
}

func (t *logTee) Write(p []byte) (int, error) {
	if t == nil {
		return len(p), nil
	}
	t.mu.Lock()
	t.pending = append(t.pending, p...)
	var lines []string
	for {
		idx := bytes.IndexByte(t.pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(t.pending[:idx], "\r")))
		t.pending = t.pending[idx+1:]
	}
	if len(t.pending) > maxPartialLine {
		lines = append(lines, string(t.pending))
		t.pending = nil
	}
	if len(t.pending) == 0 {
		t.pending = nil
	}
	console, file := t.console, t.file
	t.mu.Unlock()

	now := time.Now().UTC()
	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

// WriteFileOnly records lines in the log file without echoing them to the
// console; the periodic stats summary uses it while the dashboard shows stats.
func (t *logTee) WriteFileOnly(lines []string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	file := t.file
	t.mu.Unlock()
	if file == nil {
		return
	}
	now := time.Now().UTC()
	for _, line := range lines {
		file.WriteLine(line, now)
	}
}

func (t *logTee) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	console, file := t.console, t.file
	t.mu.Unlock()
	if console != nil {
		_ = console.Close()
	}
	if file != nil {
		return file.Close()
	}
	return nil
}

func logFileNameForDate(now time.Time) string {
	return now.UTC().Format(logFileDateLayout) + ".log"
}

func parseLogFileDate(name string) (time.Time, bool) {
	if filepath.Ext(name) != ".log" {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(logFileDateLayout, strings.TrimSuffix(name, ".log"), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// cleanupOldLogs keeps the newest retentionDays dated files, today included.
func cleanupOldLogs(dir string, now time.Time, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseLogFileDate(entry.Name())
		if ok && date.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
