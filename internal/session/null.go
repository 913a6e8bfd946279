// ABOUTME: Null host backend with a configurable native rate
// ABOUTME: Backs sim mode and tests when no audio hardware is present
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// NullHost is a Host with no hardware behind it. It mimics the negotiation
// behavior observed on real hosts: it has a fixed native rate and either
// honors a preferred rate or silently overrides it, which is exactly the
// failure mode the probe exists to diagnose. Used by sim mode and tests.
type NullHost struct {
	mu sync.Mutex

	// NativeRate is the device rate granted when no preference is set or
	// when HonorPreferredRate is false.
	NativeRate float64

	// HonorPreferredRate controls whether a preferred rate wins over the
	// native rate, emulating a host where "first claimant wins".
	HonorPreferredRate bool

	// ActivateErr, when set, makes Activate fail with this error.
	ActivateErr error

	category  Category
	mode      Mode
	opts      CategoryOptions
	preferred audio.FormatDescriptor
	granted   audio.FormatDescriptor
	active    bool

	activations   int
	deactivations int
}

// NewNullHost creates a null host with a 48 kHz native rate.
func NewNullHost() *NullHost {
	return &NullHost{NativeRate: 48000}
}

func (h *NullHost) SetCategory(c Category, m Mode, opts CategoryOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.category = c
	h.mode = m
	h.opts = opts
	return nil
}

func (h *NullHost) SetPreferredFormat(f audio.FormatDescriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f.SampleRate > 0 {
		f.SampleRate = FilterRate(f.SampleRate)
	}
	h.preferred = f
	return nil
}

func (h *NullHost) Activate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ActivateErr != nil {
		return &ConfigurationError{Stage: "activate", HostCode: -50, Err: h.ActivateErr}
	}

	rate := h.NativeRate
	if h.HonorPreferredRate && h.preferred.SampleRate > 0 {
		rate = h.preferred.SampleRate
	}
	channels := h.preferred.Channels
	if channels < 1 {
		channels = 2
	}
	buffer := h.preferred.BufferDuration
	if buffer == 0 {
		buffer = 10 * time.Millisecond
	}

	h.granted = audio.FormatDescriptor{
		SampleRate:     rate,
		Channels:       channels,
		BitsPerSample:  16,
		BufferDuration: buffer,
	}
	h.active = true
	h.activations++
	return nil
}

func (h *NullHost) Deactivate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
	h.deactivations++
	return nil
}

func (h *NullHost) GrantedFormat() (audio.FormatDescriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return audio.FormatDescriptor{}, fmt.Errorf("session not active")
	}
	return h.granted, nil
}

func (h *NullHost) Route() (RouteInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return RouteInfo{
		AvailableInputs: []string{"Null Microphone"},
		Input:           "Null Microphone",
		Output:          "Null Speaker",
		InputLatency:    10 * time.Millisecond,
		OutputLatency:   10 * time.Millisecond,
	}, nil
}

// Preferred returns the last format preference the host received, after
// rate filtering. Diagnostic accessor for tests and reports.
func (h *NullHost) Preferred() audio.FormatDescriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.preferred
}

// Activations returns how many times Activate succeeded.
func (h *NullHost) Activations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activations
}
