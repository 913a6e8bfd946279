// ABOUTME: Audio output abstraction with an oto-backed implementation
// ABOUTME: Persistent pipe player with software volume and mute
package engine

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Output renders interleaved int16 PCM. Implementations own the device
// handle; the engine owns pacing and format conversion.
type Output interface {
	// Open initializes the device. Reopening with the same format is a
	// no-op; a format change after open is not supported.
	Open(sampleRate, channels int) error

	// Write renders samples, blocking until consumed.
	Write(samples []int16) error

	SetVolume(v float64)
	SetMuted(muted bool)
	Volume() float64
	Muted() bool

	Close() error
}

// OtoOutput renders through the oto library. oto allows one context per
// process and no reinitialization, so the first Open fixes the format
// for the process lifetime.
type OtoOutput struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	volume     float64
	muted      bool
	ready      bool
}

// NewOtoOutput creates an unopened oto output at full volume.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{volume: 1.0}
}

func (o *OtoOutput) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil && o.sampleRate == sampleRate && o.channels == channels {
		return nil
	}
	if o.otoCtx != nil {
		log.Printf("output format change %dHz/%dch -> %dHz/%dch not supported, keeping existing context",
			o.sampleRate, o.channels, sampleRate, channels)
		return nil
	}

	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	// A persistent player fed by a pipe avoids per-chunk player churn.
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("audio output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

func (o *OtoOutput) Write(samples []int16) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	w := o.pipeWriter
	gain := o.volume
	if o.muted {
		gain = 0
	}
	o.mu.Unlock()

	scaled := applyGain(samples, gain)
	if _, err := w.Write(audio.SamplesToBytes(scaled)); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}

func (o *OtoOutput) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	o.mu.Lock()
	o.volume = v
	o.mu.Unlock()
}

func (o *OtoOutput) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
}

func (o *OtoOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *OtoOutput) Muted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyGain scales samples with clamping. Full gain returns the input
// unchanged to keep the hot path allocation-free.
func applyGain(samples []int16, gain float64) []int16 {
	if gain >= 1.0 {
		return samples
	}
	out := make([]int16, len(samples))
	if gain <= 0 {
		return out
	}
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
