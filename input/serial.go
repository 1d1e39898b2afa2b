package input

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"morsepad/internal/ratelimit"
)

// SerialConfig locates the microcontroller streaming joystick readings.
type SerialConfig struct {
	Port     string
	BaudRate int
}

const maxSerialLine = 128

// SerialSampler reads "x,y,button" lines from a UART-attached microcontroller.
// A reader goroutine keeps the latest reading; Sample never blocks.
type SerialSampler struct {
	port io.ReadCloser

	mu      sync.Mutex
	latest  Sample
	hasData bool
	readErr error

	badLines ratelimit.Counter
	closing  chan struct{}
	done     chan struct{}
}

// Purpose: Open the serial port and start the line reader.
// Key aspects: 500ms read timeout so Close can unblock the reader.
// Upstream: main sampler setup when sampler.kind=serial.
// Downstream: serial.OpenPort, newSerialSampler.
func OpenSerialSampler(cfg SerialConfig) (*SerialSampler, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return newSerialSampler(port), nil
}

func newSerialSampler(port io.ReadCloser) *SerialSampler {
	s := &SerialSampler{
		port:     port,
		badLines: ratelimit.NewCounter(10 * time.Second),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop splits the byte stream into lines. A read timeout on the port
// surfaces as a zero-length io.EOF and is not fatal.
func (s *SerialSampler) readLoop() {
	defer close(s.done)
	buf := make([]byte, 256)
	line := make([]byte, 0, maxSerialLine)
	for {
		select {
		case <-s.closing:
			return
		default:
		}
		n, err := s.port.Read(buf)
		for _, b := range buf[:n] {
			switch {
			case b == '\n':
				s.handleLine(string(line))
				line = line[:0]
			case len(line) < maxSerialLine:
				line = append(line, b)
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if n == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		s.mu.Lock()
		s.readErr = err
		s.mu.Unlock()
		return
	}
}

func (s *SerialSampler) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	x, y, btn, err := ParseSampleLine(line)
	if err != nil {
		if total, ok := s.badLines.Inc(); ok {
			log.Printf("Sampler: skipping serial line (%d total): %v", total, err)
		}
		return
	}
	s.mu.Lock()
	s.latest = Sample{X: x, Y: y, Button: btn}
	s.hasData = true
	s.mu.Unlock()
}

// Sample returns the most recent reading stamped with now. Before the first
// line arrives the stick reads centered. Once the reader fails, the error is
// returned on every call.
func (s *SerialSampler) Sample(now time.Time) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return Centered(now), fmt.Errorf("serial sampler stopped: %w", s.readErr)
	}
	if !s.hasData {
		return Centered(now), nil
	}
	out := s.latest
	out.At = now
	return out, nil
}

func (s *SerialSampler) Close() error {
	close(s.closing)
	err := s.port.Close()
	<-s.done
	return err
}
