// ABOUTME: Host audio session abstraction with explicit lifecycle
// ABOUTME: Defines the Host interface, route info, and the rate filter hook
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Category is the coarse audio session role requested from the host.
type Category string

// Mode refines the category for a specific workload.
type Mode string

const (
	CategoryPlayback      Category = "playback"
	CategoryPlayAndRecord Category = "playAndRecord"

	ModeDefault   Mode = "default"
	ModeVoiceChat Mode = "voiceChat"
)

// CategoryOptions are additional routing options requested with a category.
type CategoryOptions struct {
	DefaultToSpeaker bool
	AllowBluetooth   bool
	MixWithOthers    bool
}

// RouteInfo describes the hardware route the host negotiated. It is pure
// diagnostics: it explains why a preference lock did or did not hold.
type RouteInfo struct {
	AvailableInputs []string
	Input           string
	Output          string
	InputLatency    time.Duration
	OutputLatency   time.Duration
}

// State is the session lifecycle position. The audio session is process-wide
// state, so there is exactly one meaningful State at a time and all
// transitions go through the Configurator.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateActive
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Host is the boundary to the OS audio subsystem. Any low-latency audio
// backend satisfies it; production uses malgo, tests use fakes.
type Host interface {
	// SetCategory declares the session role before activation.
	SetCategory(c Category, m Mode, opts CategoryOptions) error

	// SetPreferredFormat expresses a format preference. The host is free
	// to grant something else; the truth is read back after Activate.
	SetPreferredFormat(f audio.FormatDescriptor) error

	// Activate applies the accumulated preferences and opens the session.
	Activate() error

	// Deactivate releases the session. Must be a no-op when not active.
	Deactivate() error

	// GrantedFormat returns the format the host actually negotiated.
	// Only meaningful after Activate.
	GrantedFormat() (audio.FormatDescriptor, error)

	// Route reports the current hardware route.
	Route() (RouteInfo, error)
}

// ConfigurationError is returned when the host refuses session parameters.
// HostCode carries the backend's numeric result verbatim; in this domain
// the raw code is the diagnostic signal.
type ConfigurationError struct {
	Stage    string
	HostCode int
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration failed at %s (host code %d): %v", e.Stage, e.HostCode, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// rateFilter is the process-wide indirection table for preferred-rate
// requests. Every Host implementation routes requested sample rates through
// FilterRate, so an installed filter sees every caller's request no matter
// who makes it. This is the interception point the runtime-intercepted
// strategy installs into; there is no supported uninstall within a process
// lifetime.
var (
	rateFilterMu sync.RWMutex
	rateFilter   func(requestedHz float64) float64
)

// SetRateFilter installs f as the global rate filter. Passing the filter a
// requested rate returns the rate that will actually be forwarded to the
// host. Installing over an existing filter is rejected.
func SetRateFilter(f func(float64) float64) error {
	rateFilterMu.Lock()
	defer rateFilterMu.Unlock()
	if rateFilter != nil {
		return fmt.Errorf("rate filter already installed")
	}
	rateFilter = f
	return nil
}

// FilterRate passes a requested rate through the installed filter, if any.
func FilterRate(requestedHz float64) float64 {
	rateFilterMu.RLock()
	f := rateFilter
	rateFilterMu.RUnlock()
	if f == nil {
		return requestedHz
	}
	return f(requestedHz)
}

// RateFilterInstalled reports whether a global filter is present.
func RateFilterInstalled() bool {
	rateFilterMu.RLock()
	defer rateFilterMu.RUnlock()
	return rateFilter != nil
}

// resetRateFilter exists for tests only. Production code never uninstalls;
// a process restart is the documented reset path.
func resetRateFilter() {
	rateFilterMu.Lock()
	rateFilter = nil
	rateFilterMu.Unlock()
}
