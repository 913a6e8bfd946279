// ABOUTME: Probe orchestration: session strategies, voice, capture, playback
// ABOUTME: Serializes all operations and degrades gracefully without capture
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mpriessner/veepa-audio-probe/internal/config"
	"github.com/mpriessner/veepa-audio-probe/internal/engine"
	"github.com/mpriessner/veepa-audio-probe/internal/intercept"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/sdk"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/internal/strategy"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/ring"
)

// opTimeout bounds every SDK call. The camera firmware occasionally
// never answers; an unbounded wait would wedge the whole probe.
const opTimeout = 5 * time.Second

// Status is a point-in-time snapshot of the probe for the UI.
type Status struct {
	SessionState   session.State
	Strategy       string
	Granted        audio.FormatDescriptor
	VoiceActive    bool
	Muted          bool
	Degraded       bool
	BridgeState    intercept.BridgeState
	CaptureSource  string
	FramesCaptured uint64
	Underruns      uint64
	Dropped        uint64
	GateInstalled  bool
	GateIntercepts uint64
	Mismatches     int
}

// Controller wires the session configurator, the camera SDK client, the
// interception bridge and the playback engine into one serialized
// control surface. Every public method is safe for concurrent use.
type Controller struct {
	cfg          *config.Config
	client       sdk.Client
	out          engine.Output
	rep          *report.Reporter
	buf          *ring.Buffer
	bridge       *intercept.Bridge
	engine       *engine.Engine
	configurator *session.Configurator
	registry     *strategy.Registry

	mu           sync.Mutex
	strategyName string
	voiceActive  bool
	degraded     bool
}

// New assembles a controller. The host is the audio backend the session
// strategies negotiate with; out is the local render device.
func New(cfg *config.Config, host session.Host, client sdk.Client, out engine.Output) *Controller {
	rep := report.New()
	buf := ring.New(cfg.RingCapacitySamples())
	target := cfg.TargetFormat()

	return &Controller{
		cfg:          cfg,
		client:       client,
		out:          out,
		rep:          rep,
		buf:          buf,
		bridge:       intercept.NewBridge(buf, rep, cfg.Capture.Ulaw),
		engine:       engine.New(out, buf, rep, int(target.SampleRate), cfg.Playback.DeviceSampleRate, target.Channels),
		configurator: session.NewConfigurator(host, rep),
		registry:     strategy.Canonical(target),
	}
}

// Reporter exposes the negotiation report for the UI and log stream.
func (c *Controller) Reporter() *report.Reporter { return c.rep }

// Strategies returns the available strategy names in canonical order.
func (c *Controller) Strategies() []string { return c.registry.Names() }

// ApplyStrategy configures the audio session with the named strategy.
// Rejected while voice is active: reconfiguring a session under a live
// stream is exactly the failure this tool exists to diagnose.
func (c *Controller) ApplyStrategy(ctx context.Context, name string) (audio.FormatDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.voiceActive {
		return audio.FormatDescriptor{}, fmt.Errorf("cannot apply strategy while voice is active")
	}

	s, err := c.registry.Get(name)
	if err != nil {
		return audio.FormatDescriptor{}, err
	}

	granted, err := c.configurator.Apply(ctx, s)
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	c.strategyName = name

	// A fresh strategy is a fresh session: a capture failure under the old
	// configuration must not forbid discovery under the new one.
	if c.degraded {
		c.bridge.Detach()
		c.degraded = false
	}
	return granted, nil
}

// StartVoice starts the camera voice stream, installs the capture bridge
// and begins local playback. A failed renderer discovery degrades to
// voice without local monitoring instead of failing the operation.
func (c *Controller) StartVoice(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.voiceActive {
		return nil
	}
	if c.configurator.State() != session.StateActive {
		return fmt.Errorf("no active session; apply a strategy first")
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.StartVoice(opCtx); err != nil {
		c.rep.Recordf(report.StageError, "startVoice failed: %v", err)
		return fmt.Errorf("start voice: %w", err)
	}
	c.rep.Recordf(report.StageSDK, "voice stream started")

	// The renderer only exists after the voice stream is live.
	if err := c.bridge.Install(c.client); err != nil {
		var derr *intercept.DiscoveryError
		if errors.As(err, &derr) {
			c.degraded = true
			log.Printf("capture unavailable, continuing voice-only: %v", err)
			c.rep.Recordf(report.StageCapture, "degraded: voice active without local monitor (%v)", err)
		} else {
			c.stopVoiceLocked(ctx)
			return fmt.Errorf("install capture bridge: %w", err)
		}
	}

	if !c.degraded {
		if err := c.bridge.StartCapture(); err != nil {
			c.rep.Recordf(report.StageError, "start capture failed: %v", err)
		} else if err := c.engine.Start(context.Background()); err != nil {
			log.Printf("playback unavailable: %v", err)
		}
	}

	c.voiceActive = true
	return nil
}

// StopVoice stops playback, capture and the camera voice stream.
func (c *Controller) StopVoice(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.voiceActive {
		return nil
	}
	return c.stopVoiceLocked(ctx)
}

func (c *Controller) stopVoiceLocked(ctx context.Context) error {
	c.engine.Stop()
	c.bridge.StopCapture()
	c.buf.Reset()

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := c.client.StopVoice(opCtx)
	c.voiceActive = false
	if err != nil {
		c.rep.Recordf(report.StageError, "stopVoice failed: %v", err)
		return fmt.Errorf("stop voice: %w", err)
	}
	c.rep.Recordf(report.StageSDK, "voice stream stopped")
	return nil
}

// SetMute mutes both the camera stream and the local monitor so the two
// stay in agreement.
func (c *Controller) SetMute(ctx context.Context, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.SetMute(opCtx, muted); err != nil {
		c.rep.Recordf(report.StageError, "setMute failed: %v", err)
		return fmt.Errorf("set mute: %w", err)
	}
	c.out.SetMuted(muted)
	c.rep.Recordf(report.StageSDK, "mute set to %v", muted)
	return nil
}

// SelfTest renders a local source through the output path, bypassing the
// camera entirely. It proves the render side works before blaming the
// capture side. Rejected while voice is active.
func (c *Controller) SelfTest(ctx context.Context, path string, d time.Duration) error {
	c.mu.Lock()
	if c.voiceActive {
		c.mu.Unlock()
		return fmt.Errorf("cannot self-test while voice is active")
	}
	c.mu.Unlock()

	src, err := engine.NewFileSource(path, c.cfg.Playback.ToneFrequency, c.cfg.Playback.DeviceSampleRate)
	if err != nil {
		return fmt.Errorf("self-test source: %w", err)
	}
	defer src.Close()

	testCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err = c.engine.PlaySource(testCtx, src)
	if err == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Status returns a snapshot for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		SessionState:   c.configurator.State(),
		Strategy:       c.strategyName,
		Granted:        c.configurator.Granted(),
		VoiceActive:    c.voiceActive,
		Muted:          c.out.Muted(),
		Degraded:       c.degraded,
		BridgeState:    c.bridge.State(),
		CaptureSource:  c.bridge.Source(),
		FramesCaptured: c.bridge.FramesCaptured(),
		Underruns:      c.engine.Underruns(),
		Dropped:        c.buf.Dropped(),
		GateInstalled:  intercept.Gate.Installed(),
		GateIntercepts: intercept.Gate.Intercepts(),
		Mismatches:     c.rep.MismatchCount(),
	}
}

// OnVoiceFrame feeds an encoded voice frame into the capture path. Used
// when frames arrive over the network instead of through the render tap.
func (c *Controller) OnVoiceFrame(frame []byte) {
	c.bridge.OnVoiceFrame(frame)
}

// Shutdown stops everything and tears the session down.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.voiceActive {
		if err := c.stopVoiceLocked(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
	c.bridge.Detach()
	if err := c.configurator.Teardown(); err != nil {
		log.Printf("shutdown teardown: %v", err)
	}
	if err := c.out.Close(); err != nil {
		log.Printf("shutdown output close: %v", err)
	}
}
