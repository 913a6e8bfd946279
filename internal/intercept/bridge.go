// ABOUTME: Capture interception bridge over the SDK's internal renderer
// ABOUTME: Discovers the render entry point and forwards PCM into the ring
package intercept

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/sdk"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/ring"
	"github.com/zaf/g711"
)

// BridgeState is the bridge lifecycle position.
type BridgeState int

const (
	StateUninstalled BridgeState = iota
	StateDiscovering
	StateInstalled
	StateCapturing
	StateIdle
)

func (s BridgeState) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateDiscovering:
		return "discovering"
	case StateInstalled:
		return "installed"
	case StateCapturing:
		return "capturing"
	case StateIdle:
		return "idle"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DiscoveryError means the SDK's internal rendering entry point could not
// be located. This is a distinct "capability not available" condition, not
// a configuration error: the session can continue in no-capture mode.
type DiscoveryError struct {
	Reason string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("renderer discovery failed: %s", e.Reason)
}

// logSampleEvery bounds hot-path logging: one debug line per this many
// render callbacks.
const logSampleEvery = 512

// Bridge intercepts the PCM frames the SDK's internal renderer would send
// straight to hardware and forwards them into the ring buffer. The forward
// callback runs on the renderer's goroutine under real-time constraints:
// no blocking, no allocation, only sampled logging.
type Bridge struct {
	mu              sync.Mutex
	state           BridgeState
	tap             sdk.RenderTap
	source          string
	discoveryFailed bool

	buf  *ring.Buffer
	rep  *report.Reporter
	ulaw bool

	stopping  atomic.Bool
	capturing atomic.Bool
	frames    atomic.Uint64
	callbacks atomic.Uint64
}

// NewBridge creates a bridge pushing captured samples into buf. ulaw
// selects µ-law decoding for the direct voice-frame path.
func NewBridge(buf *ring.Buffer, rep *report.Reporter, ulaw bool) *Bridge {
	return &Bridge{
		state: StateUninstalled,
		buf:   buf,
		rep:   rep,
		ulaw:  ulaw,
	}
}

// Install locates the SDK's internal renderer and attaches the forward
// callback. Discovery failure is terminal for the session: it is recorded,
// the bridge falls back to uninstalled, and repeated Install calls keep
// returning the failure without retrying (no flapping).
func (b *Bridge) Install(client sdk.Client) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateCapturing:
		return nil
	case StateInstalled, StateIdle:
		return b.reverifyLocked(client)
	}
	if b.discoveryFailed {
		return &DiscoveryError{Reason: "previous discovery failed this session; not retrying"}
	}

	b.state = StateDiscovering
	b.rep.Recordf(report.StageIntercept, "discovering SDK renderer")

	tap, source, err := discover(client)
	if err != nil {
		b.discoveryFailed = true
		b.state = StateUninstalled
		b.rep.Recordf(report.StageIntercept, "capture capability not available: %v", err)
		return err
	}

	if err := tap.SetRenderNotify(b.onFrames); err != nil {
		b.discoveryFailed = true
		b.state = StateUninstalled
		b.rep.Recordf(report.StageError, "failed to attach render notify: %v", err)
		return fmt.Errorf("attach render notify: %w", err)
	}

	b.tap = tap
	b.source = source
	b.state = StateInstalled
	b.rep.Recordf(report.StageIntercept, "render notify installed on %q", source)
	return nil
}

// reverifyLocked re-runs discovery on an already-installed bridge. The SDK
// is free to replace its internal renderer between voice sessions; a notify
// left on the old instance captures nothing, so the tap follows the
// renderer. Caller holds b.mu.
func (b *Bridge) reverifyLocked(client sdk.Client) error {
	tap, source, err := discover(client)
	if err != nil || tap == b.tap {
		return nil
	}

	if err := tap.SetRenderNotify(b.onFrames); err != nil {
		b.rep.Recordf(report.StageError, "failed to move render notify to %q: %v", source, err)
		return fmt.Errorf("reattach render notify: %w", err)
	}
	if b.tap != nil {
		b.tap.ClearRenderNotify()
	}
	b.tap = tap
	b.source = source
	b.rep.Recordf(report.StageIntercept, "renderer changed; render notify moved to %q", source)
	return nil
}

// discover tries interface assertion first, then the renderer registry.
func discover(client sdk.Client) (sdk.RenderTap, string, error) {
	if provider, ok := client.(sdk.RenderTapProvider); ok {
		if tap, ok := provider.InternalRenderer(); ok {
			return tap, "client renderer", nil
		}
	}
	if tap, name, ok := sdk.DiscoverRenderer(); ok {
		return tap, name, nil
	}
	return nil, "", &DiscoveryError{Reason: "no internal renderer reachable"}
}

// StartCapture begins forwarding frames into the ring buffer.
func (b *Bridge) StartCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateInstalled, StateIdle:
	case StateCapturing:
		return nil
	default:
		return fmt.Errorf("cannot capture from state %s", b.state)
	}

	b.stopping.Store(false)
	b.capturing.Store(true)
	b.state = StateCapturing
	b.rep.Recordf(report.StageCapture, "capture started via %q", b.source)
	return nil
}

// StopCapture halts forwarding. The stopping flag is checked at the top of
// the callback, so this is safe even while a render callback is
// mid-execution; shared state is never torn down underneath it.
func (b *Bridge) StopCapture() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateCapturing {
		return
	}

	b.stopping.Store(true)
	b.capturing.Store(false)
	b.state = StateIdle
	b.rep.Recordf(report.StageCapture, "capture stopped; %d samples forwarded, %d dropped",
		b.frames.Load(), b.buf.Dropped())
}

// onFrames is the render-notify callback. Real-time path: flag checks,
// ring push, counters, sampled logging only.
func (b *Bridge) onFrames(samples []int16) {
	if b.stopping.Load() || !b.capturing.Load() {
		return
	}

	b.buf.Push(samples)
	b.frames.Add(uint64(len(samples)))

	if n := b.callbacks.Add(1); n%logSampleEvery == 0 {
		log.Printf("Capture: %d callbacks, %d samples forwarded, ring depth %d",
			n, b.frames.Load(), b.buf.Available())
	}
}

// OnVoiceFrame feeds a raw G.711 frame from the SDK's voice buffer through
// the codec and into the ring, bypassing the render-notify path entirely.
func (b *Bridge) OnVoiceFrame(frame []byte) {
	if b.stopping.Load() || !b.capturing.Load() {
		return
	}

	var decoded []byte
	if b.ulaw {
		decoded = g711.DecodeUlaw(frame)
	} else {
		decoded = g711.DecodeAlaw(frame)
	}
	samples := audio.BytesToSamples(decoded)
	b.buf.Push(samples)
	b.frames.Add(uint64(len(samples)))
}

// State returns the bridge state.
func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Source names where the renderer was discovered.
func (b *Bridge) Source() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// FramesCaptured returns the total samples forwarded.
func (b *Bridge) FramesCaptured() uint64 {
	return b.frames.Load()
}

// Detach clears the render notify. Used at session end; the bridge can be
// reinstalled by a fresh session (unlike the rate gate, the render notify
// is per-renderer, not process-global).
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopping.Store(true)
	b.capturing.Store(false)
	if b.tap != nil {
		b.tap.ClearRenderNotify()
		b.tap = nil
	}
	b.state = StateUninstalled
	b.discoveryFailed = false
	b.rep.Recordf(report.StageIntercept, "render notify detached")
}
