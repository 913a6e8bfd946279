// ABOUTME: Playback engine draining the capture ring to the output device
// ABOUTME: Paces 20ms chunks, resamples narrowband to the device rate
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/resample"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/ring"
)

const chunkDuration = 20 * time.Millisecond

// Engine renders captured narrowband audio on the local output device.
// It pulls from the capture ring on a fixed cadence, resamples to the
// device rate and writes to the output. Underruns are zero-filled and counted
// rather than treated as errors; a voice stream starves routinely.
type Engine struct {
	out        Output
	buf        *ring.Buffer
	rep        *report.Reporter
	sourceRate int
	deviceRate int
	channels   int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	underruns atomic.Uint64
	chunks    atomic.Uint64
}

// New creates an engine reading sourceRate audio from buf and rendering
// at deviceRate on out.
func New(out Output, buf *ring.Buffer, rep *report.Reporter, sourceRate, deviceRate, channels int) *Engine {
	if channels < 1 {
		channels = 1
	}
	return &Engine{
		out:        out,
		buf:        buf,
		rep:        rep,
		sourceRate: sourceRate,
		deviceRate: deviceRate,
		channels:   channels,
	}
}

// Start opens the output and begins draining the ring. Idempotent while
// running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	if err := e.out.Open(e.deviceRate, e.channels); err != nil {
		e.rep.Recordf(report.StageError, "output open failed: %v", err)
		return fmt.Errorf("open output: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	e.rep.Recordf(report.StagePlayback, "playback started: %dHz source -> %dHz device", e.sourceRate, e.deviceRate)

	go e.run(runCtx)
	return nil
}

// Stop halts draining. The output device stays open; oto does not
// support reopening.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.cancel()
	done := e.done
	e.running = false
	e.mu.Unlock()

	<-done
	e.rep.Recordf(report.StagePlayback, "playback stopped after %d chunks, %d underruns", e.chunks.Load(), e.underruns.Load())
}

// Running reports whether the drain loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Underruns returns how many chunks were only partially filled from the ring.
func (e *Engine) Underruns() uint64 {
	return e.underruns.Load()
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	rs := resample.New(e.sourceRate, e.deviceRate, e.channels)
	outSamples := e.deviceRate * e.channels * int(chunkDuration.Milliseconds()) / 1000
	inSamples := e.sourceRate * e.channels * int(chunkDuration.Milliseconds()) / 1000
	inBuf := make([]int16, inSamples)
	outBuf := make([]int16, outSamples)

	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		got := e.buf.Pull(inBuf)
		if got < len(inBuf) {
			// Zero-fill the shortfall so the device keeps its cadence.
			for i := got; i < len(inBuf); i++ {
				inBuf[i] = 0
			}
			if got > 0 {
				e.underruns.Add(1)
			}
		}

		var chunk []int16
		if e.sourceRate == e.deviceRate {
			chunk = inBuf
		} else {
			n := rs.Resample(inBuf, outBuf)
			chunk = outBuf[:n]
		}
		if len(chunk) == 0 {
			continue
		}

		if err := e.out.Write(chunk); err != nil {
			log.Printf("playback write failed: %v", err)
			e.rep.Recordf(report.StageError, "playback write failed: %v", err)
			return
		}
		e.chunks.Add(1)
	}
}

// PlaySource renders src on the output until ctx is done or the source
// is exhausted. Used by the self-test path; the capture drain loop must
// not be running at the same time.
func (e *Engine) PlaySource(ctx context.Context, src Source) error {
	if e.Running() {
		return fmt.Errorf("engine is draining the capture ring; stop it first")
	}
	// The device has to match the source layout: a stereo file written
	// into a mono-opened device renders at double speed.
	if err := e.out.Open(e.deviceRate, src.Channels()); err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	rs := resample.New(src.SampleRate(), e.deviceRate, src.Channels())
	inSamples := src.SampleRate() * src.Channels() * int(chunkDuration.Milliseconds()) / 1000
	outSamples := e.deviceRate * src.Channels() * int(chunkDuration.Milliseconds()) / 1000
	inBuf := make([]int16, inSamples)
	outBuf := make([]int16, outSamples)

	e.rep.Recordf(report.StagePlayback, "self-test playback: %dHz/%dch source", src.SampleRate(), src.Channels())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Read(inBuf)
		if err != nil {
			return fmt.Errorf("source read: %w", err)
		}
		if n == 0 {
			return nil
		}

		chunk := inBuf[:n]
		if src.SampleRate() != e.deviceRate {
			m := rs.Resample(inBuf[:n], outBuf)
			chunk = outBuf[:m]
		}
		if err := e.out.Write(chunk); err != nil {
			return fmt.Errorf("output write: %w", err)
		}
	}
}
