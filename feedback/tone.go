package feedback

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// ToneConfig describes the sidetone generated for cues.
type ToneConfig struct {
	SampleRate int
	Frequency  float64
	Volume     float64
}

// ToneDriver keeps a mono playback device open and gates a sine tone on demand.
type ToneDriver struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	on     atomic.Bool
	phase  float64
	step   float64
	amp    float32
}

// Purpose: Open the default playback device and start streaming (silence until gated).
// Key aspects: Callback runs on the audio thread; only the atomic gate is shared.
// Upstream: main feedback setup when feedback.mode=tone.
// Downstream: malgo.InitContext, malgo.InitDevice.
func NewToneDriver(cfg ToneConfig) (*ToneDriver, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 700
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = 0.3
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	d := &ToneDriver{
		ctx:  ctx,
		step: 2 * math.Pi * cfg.Frequency / float64(cfg.SampleRate),
		amp:  float32(cfg.Volume),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSendFrames := func(pOutputSample, _ []byte, framecount uint32) {
		if len(pOutputSample) == 0 || framecount == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pOutputSample[0])), int(framecount))
		d.phase = fillTone(samples, d.phase, d.step, d.amp, d.on.Load())
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	d.device = device
	return d, nil
}

func (d *ToneDriver) SetTone(on bool) {
	if d == nil {
		return
	}
	d.on.Store(on)
}

func (d *ToneDriver) Close() error {
	if d == nil {
		return nil
	}
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}

// fillTone writes one buffer of sine (or silence) and returns the next phase.
// Phase keeps advancing while gated off so re-enabling does not click.
func fillTone(out []float32, phase, step float64, amp float32, on bool) float64 {
	for i := range out {
		if on {
			out[i] = amp * float32(math.Sin(phase))
		} else {
			out[i] = 0
		}
		phase += step
		if phase >= 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}
	return phase
}
