// Command morsepad runs the joystick Morse keyer: it samples the joystick,
// turns gestures into Morse characters and mirrors every change to a remote
// peer over MQTT.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"morsepad/accumulator"
	"morsepad/bridge"
	"morsepad/buffer"
	"morsepad/commands"
	"morsepad/config"
	"morsepad/device"
	"morsepad/feedback"
	"morsepad/input"
	"morsepad/recorder"
	"morsepad/stats"

	"golang.org/x/term"
)

// Version is reported at startup.
const Version = "1.2.0"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from env/default locations.
// Key aspects: Tries the env override first, then the default config dir.
// Upstream: main startup.
// Downstream: config.Load.
func loadConfig() (*config.Config, error) {
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(config.EnvPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, config.DefaultPath)

	var lastErr error
	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("unable to load config; tried %s (last error: %v)", strings.Join(candidates, ", "), lastErr)
}

// inputConfig maps the config file onto the classifier parameter set.
func inputConfig(cfg *config.Config) input.Config {
	return input.Config{
		Debounce:    cfg.Input.Debounce(),
		IdleTimeout: cfg.Morse.IdleTimeout(),
		Low:         cfg.Input.Low,
		High:        cfg.Input.High,
		CenterMin:   cfg.Input.CenterMin,
		CenterMax:   cfg.Input.CenterMax,
	}
}

// Purpose: Open the configured joystick source.
// Key aspects: idle needs no hardware; serial and script fail loudly. An
// optional recorder wraps whichever source is chosen.
// Upstream: main startup.
// Downstream: input.OpenSerialSampler, input.OpenScriptSampler.
func openSampler(cfg config.SamplerConfig) (input.Sampler, error) {
	var sampler input.Sampler
	switch cfg.Kind {
	case "serial":
		s, err := input.OpenSerialSampler(input.SerialConfig{Port: cfg.Port, BaudRate: cfg.Baud})
		if err != nil {
			return nil, err
		}
		sampler = s
	case "script":
		s, err := input.OpenScriptSampler(cfg.Script)
		if err != nil {
			return nil, err
		}
		sampler = s
	default:
		sampler = input.IdleSampler{}
	}
	if strings.TrimSpace(cfg.Record) == "" {
		return sampler, nil
	}
	rec, err := recorder.NewRecorder(sampler, cfg.Record)
	if err != nil {
		_ = sampler.Close()
		return nil, err
	}
	log.Printf("Sampler: recording to %s", cfg.Record)
	return rec, nil
}

// Purpose: Build the cue player for feedback.mode.
// Key aspects: A tone device that cannot open degrades to log cues.
// Upstream: main startup.
// Downstream: feedback.NewToneDriver, feedback.NewPacedPlayer.
func openPlayer(cfg config.FeedbackConfig) feedback.Player {
	switch cfg.Mode {
	case "none":
		return feedback.NopPlayer{}
	case "tone":
		driver, err := feedback.NewToneDriver(feedback.ToneConfig{
			SampleRate: cfg.SampleRate,
			Frequency:  cfg.ToneHz,
			Volume:     cfg.Volume,
		})
		if err != nil {
			log.Printf("Feedback: tone unavailable, logging cues instead: %v", err)
			return feedback.LogPlayer{}
		}
		return feedback.NewPacedPlayer(driver, nil)
	default:
		return feedback.LogPlayer{}
	}
}

// Purpose: Program entrypoint; wires configuration, keyer, bridge and UI.
// Key aspects: The broker connect runs in the background so the keyer is
// usable offline; shutdown on SIGINT/SIGTERM or console BYE.
// Upstream: OS process start.
// Downstream: device.Runner, bridge.Client, commands.Processor, dashboard.
func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logs, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetFlags(0)
	log.SetOutput(logs)
	defer logs.Close()
	if logErr != nil {
		log.Printf("Logging: file sink disabled: %v", logErr)
	}
	log.Printf("Loaded configuration from %s", cfg.LoadedFrom)

	inCfg := inputConfig(cfg)
	if err := inCfg.Validate(); err != nil {
		log.Fatalf("Error in input config: %v", err)
	}

	tracker := stats.NewTracker()
	transcript := buffer.NewTranscript(cfg.UI.HistorySize)
	queue := bridge.NewQueue(cfg.MQTT.QueueSize, tracker)
	acc := accumulator.New(inCfg.IdleTimeout)

	sampler, err := openSampler(cfg.Sampler)
	if err != nil {
		log.Fatalf("Error opening sampler: %v", err)
	}
	defer func() {
		if err := sampler.Close(); err != nil {
			log.Printf("Sampler: close: %v", err)
		}
		if rec, ok := sampler.(*recorder.Recorder); ok {
			log.Printf("Sampler: recorded %d script lines to %s", rec.Lines(), cfg.Sampler.Record)
		}
	}()
	player := openPlayer(cfg.Feedback)
	defer player.Close()

	var publisher bridge.Publisher = bridge.LogPublisher{}
	var mqttClient *bridge.Client
	if cfg.MQTT.IsEnabled() {
		mqttClient = bridge.NewClient(bridge.Config{
			Broker:      cfg.MQTT.Broker,
			Port:        cfg.MQTT.Port,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			DeviceID:    cfg.Device.ID,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         byte(cfg.MQTT.QoS),
			KeepAlive:   time.Duration(cfg.MQTT.KeepAliveSeconds) * time.Second,
		}, queue, tracker)
		mqttClient.OnReady(acc.Ready)
		publisher = mqttClient
	}

	runner, err := device.NewRunner(device.Config{
		Tick:          cfg.Morse.Tick(),
		DebugInterval: cfg.Input.DebugInterval(),
	}, device.Deps{
		Sampler:     sampler,
		Classifier:  input.NewClassifier(inCfg),
		Accumulator: acc,
		Queue:       queue,
		Publisher:   publisher,
		Player:      player,
		Tracker:     tracker,
		Transcript:  transcript,
	})
	if err != nil {
		log.Fatalf("Error starting keyer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := commands.NewProcessor(queue, runner, transcript, tracker)
	handleLine := func(line string) string {
		reply := processor.ProcessCommand(line)
		if reply == "BYE" {
			log.Println("Console requested shutdown")
			cancel()
		}
		return reply
	}

	var ui uiSurface
	switch cfg.UI.Mode {
	case "headless":
		log.Printf("UI disabled (mode=headless)")
	default:
		if isStdoutTTY() {
			ui = newDashboard(handleLine)
		} else if cfg.UI.Mode == "tview" {
			log.Printf("UI disabled (tview requires an interactive console)")
		}
	}
	if ui != nil {
		ui.WaitReady()
		defer ui.Stop()
		// The system pane is timestamped by the log tee.
		logs.SetConsole(ui.SystemWriter(), true)
		ui.SetStats([]string{"Initializing..."})
	} else {
		cfg.Print()
		go readConsole(ctx, os.Stdin, handleLine, os.Stdout)
	}

	log.Printf("Morse keyer v%s starting (device %s)", Version, cfg.Device.ID)

	if mqttClient != nil {
		topics := mqttClient.Topics()
		log.Printf("Bridge: in %s, out %s, status %s", topics.Inbound, topics.Outbound, topics.Status)
		go func() {
			if err := mqttClient.Connect(); err != nil {
				log.Printf("Bridge: %v", err)
			}
		}()
		defer mqttClient.Stop()
	} else {
		log.Println("Bridge: MQTT disabled; notifications are logged only")
	}

	logs.OnDayRoll(func(prevPath, newPath string) {
		log.Printf("Logging: rolled %s -> %s", prevPath, newPath)
		logs.WriteFileOnly(tracker.SnapshotLines())
	})

	statsInterval := time.Duration(cfg.Stats.DisplayIntervalSeconds) * time.Second
	go displayStats(ctx, statsInterval, tracker, mqttClient, queue, ui, logs)
	if ui != nil {
		go refreshDashboard(ctx, time.Duration(cfg.UI.RefreshMS)*time.Millisecond, runner, transcript, ui)
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	log.Println("Keyer is running. Type HELP for console commands, Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}
	log.Println("Shutting down gracefully...")
	cancel()
	if err := <-done; err != nil {
		log.Printf("Keyer: %v", err)
	}
	for _, line := range tracker.SnapshotLines() {
		log.Println(line)
	}
}

// Purpose: Feed stdin lines to the console processor when no dashboard runs.
// Key aspects: EOF stops reading but does not stop the keyer.
// Upstream: main (headless).
// Downstream: handle (commands.Processor).
func readConsole(ctx context.Context, r io.Reader, handle func(string) string, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		reply := handle(scanner.Text())
		if reply != "" && reply != "BYE" {
			fmt.Fprint(w, reply)
		}
	}
}

// Purpose: Periodically emit stats to the UI or the log.
// Key aspects: With a dashboard the lines also go to the log file only.
// Upstream: main startup.
// Downstream: stats.Tracker.SnapshotLines.
func displayStats(ctx context.Context, interval time.Duration, tracker *stats.Tracker, client *bridge.Client, queue *bridge.Queue, ui uiSurface, logs *logTee) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		lines := append(tracker.SnapshotLines(), bridgeStatusLine(client, queue))
		if ui != nil {
			ui.SetStats(lines)
			logs.WriteFileOnly(lines)
			continue
		}
		for _, line := range lines {
			log.Println(line)
		}
	}
}

// bridgeStatusLine reports the broker link and the inbound queue totals since
// startup; STATS RESET does not clear the queue totals.
func bridgeStatusLine(client *bridge.Client, queue *bridge.Queue) string {
	line := "MQTT: disabled"
	if client != nil {
		state := "disconnected"
		if client.IsConnected() {
			state = "connected"
		}
		line = fmt.Sprintf("MQTT: %s as %s", state, client.ClientID())
	}
	if queue != nil {
		line += fmt.Sprintf(" | inbound %d queued, %d ignored, %d dropped", queue.Len(), queue.Ignored(), queue.Dropped())
	}
	return line
}

// refreshDashboard mirrors the scheduler snapshot into the keyer panes.
func refreshDashboard(ctx context.Context, interval time.Duration, runner *device.Runner, transcript *buffer.Transcript, ui uiSurface) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ui.SetKeyer(runner.Snapshot(), transcript.Text(), transcript.Recent(eventPaneLines))
		}
	}
}
