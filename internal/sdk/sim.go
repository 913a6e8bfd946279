// ABOUTME: Simulated camera SDK emitting fixed-format G.711 voice frames
// ABOUTME: Stands in for the vendor SDK in tests, sim mode, and self-tests
package sdk

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
	"github.com/zaf/g711"
)

// SimConfig tunes the simulated camera.
type SimConfig struct {
	// SampleRate is the narrowband rate the camera streams at. Real
	// devices have been observed at both 8000 and 16000.
	SampleRate int

	// Frequency of the synthetic voice tone.
	Frequency float64

	// FrameDuration is the voice frame cadence (typically 20ms).
	FrameDuration time.Duration

	// Ulaw selects µ-law instead of A-law framing.
	Ulaw bool

	// StartVoiceCode, when non-zero, makes StartVoice fail with that
	// code, mimicking the SDK's startVoice failures.
	StartVoiceCode int

	// RendererName is the name published in the renderer registry once
	// voice starts. Defaults to "sim-player".
	RendererName string
}

// Sim is an in-process camera SDK. Like the real SDK it keeps its renderer
// internal: the render entry point only exists after StartVoice, which is
// why discovery before StartVoice fails.
type Sim struct {
	cfg SimConfig

	mu        sync.Mutex
	renderer  *simRenderer
	voiceTap  func(frame []byte)
	running   atomic.Bool
	muted     atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	frameSeq  uint64
}

// NewSim creates a simulated camera.
func NewSim(cfg SimConfig) *Sim {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 440.0
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20 * time.Millisecond
	}
	if cfg.RendererName == "" {
		cfg.RendererName = "sim-player"
	}
	return &Sim{cfg: cfg}
}

// StartVoice spins up the frame generator and publishes the internal
// renderer for discovery.
func (s *Sim) StartVoice(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.StartVoiceCode != 0 {
		return &OperationError{Op: "startVoice", Code: s.cfg.StartVoiceCode}
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	// The renderer outlives the voice stream, like the real SDK's player
	// instance: a restart reuses it so an attached render notify survives.
	if s.renderer == nil {
		s.renderer = &simRenderer{}
	}
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	RegisterRenderer(s.cfg.RendererName, s.renderer)

	s.wg.Add(1)
	go s.run()

	log.Printf("Sim SDK: voice started (%dHz, %s frames)", s.cfg.SampleRate, s.cfg.FrameDuration)
	return nil
}

// StopVoice halts frame generation. The renderer stays registered, matching
// the real SDK where the player instance outlives the voice stream.
func (s *Sim) StopVoice(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()

	log.Printf("Sim SDK: voice stopped")
	return nil
}

// SetMute silences generated frames without stopping the stream.
func (s *Sim) SetMute(ctx context.Context, muted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.muted.Store(muted)
	return nil
}

// InternalRenderer exposes the renderer for interface-assertion discovery.
// It does not exist before the first StartVoice.
func (s *Sim) InternalRenderer() (RenderTap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == nil {
		return nil, false
	}
	return s.renderer, true
}

// SetVoiceFrameObserver installs an observer of the raw G.711 frames, the
// analogue of polling the SDK's voice frame buffer directly.
func (s *Sim) SetVoiceFrameObserver(fn func(frame []byte)) {
	s.mu.Lock()
	s.voiceTap = fn
	s.mu.Unlock()
}

func (s *Sim) run() {
	defer s.wg.Done()

	s.mu.Lock()
	stop := s.stopChan
	renderer := s.renderer
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.FrameDuration)
	defer ticker.Stop()

	samplesPerFrame := int(float64(s.cfg.SampleRate) * s.cfg.FrameDuration.Seconds())
	pcm := make([]int16, samplesPerFrame)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.fillFrame(pcm)

			// The wire carries G.711; the renderer decodes it back,
			// exactly the lossy round-trip the real pipeline has.
			var encoded []byte
			if s.cfg.Ulaw {
				encoded = g711.EncodeUlaw(audio.SamplesToBytes(pcm))
			} else {
				encoded = g711.EncodeAlaw(audio.SamplesToBytes(pcm))
			}

			s.mu.Lock()
			tap := s.voiceTap
			s.mu.Unlock()
			if tap != nil {
				tap(encoded)
			}

			var decoded []byte
			if s.cfg.Ulaw {
				decoded = g711.DecodeUlaw(encoded)
			} else {
				decoded = g711.DecodeAlaw(encoded)
			}
			renderer.render(audio.BytesToSamples(decoded))
		}
	}
}

func (s *Sim) fillFrame(pcm []int16) {
	if s.muted.Load() {
		for i := range pcm {
			pcm[i] = 0
		}
		s.frameSeq += uint64(len(pcm))
		return
	}

	for i := range pcm {
		t := float64(s.frameSeq+uint64(i)) / float64(s.cfg.SampleRate)
		pcm[i] = int16(math.Sin(2*math.Pi*s.cfg.Frequency*t) * 32767.0 * 0.5)
	}
	s.frameSeq += uint64(len(pcm))
}

// simRenderer is the SDK-internal rendering entry point.
type simRenderer struct {
	mu     sync.Mutex
	notify func(samples []int16)
}

func (r *simRenderer) SetRenderNotify(fn func(samples []int16)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = fn
	return nil
}

func (r *simRenderer) ClearRenderNotify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = nil
}

func (r *simRenderer) render(samples []int16) {
	r.mu.Lock()
	fn := r.notify
	r.mu.Unlock()
	if fn != nil {
		fn(samples)
	}
}
