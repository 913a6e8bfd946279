// ABOUTME: Malgo-backed host audio session implementation
// ABOUTME: Probes the default render device to read back the granted format
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// MalgoHost negotiates with the OS audio stack through miniaudio. Desktop
// hosts have no session category in the iOS sense; category and mode are
// retained as declared intent and surfaced in diagnostics, while format
// preferences are negotiated for real against the default render device.
type MalgoHost struct {
	mu        sync.Mutex
	malgoCtx  *malgo.AllocatedContext
	category  Category
	mode      Mode
	opts      CategoryOptions
	preferred audio.FormatDescriptor
	granted   audio.FormatDescriptor
	active    bool
}

// hostCode extracts miniaudio's ma_result from an error. The raw numeric
// code goes into ConfigurationError verbatim; -1 (MA_ERROR) only when the
// error carries no code of its own.
func hostCode(err error) int {
	var result malgo.Result
	if errors.As(err, &result) {
		return int(result)
	}
	return -1
}

// NewMalgoHost creates a host backed by the default miniaudio context.
func NewMalgoHost() (*MalgoHost, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &MalgoHost{malgoCtx: ctx}, nil
}

func (h *MalgoHost) SetCategory(c Category, m Mode, opts CategoryOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.category = c
	h.mode = m
	h.opts = opts
	return nil
}

func (h *MalgoHost) SetPreferredFormat(f audio.FormatDescriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Every preferred rate flows through the process-wide filter so an
	// installed interception sees this request regardless of the caller.
	if f.SampleRate > 0 {
		f.SampleRate = FilterRate(f.SampleRate)
	}
	h.preferred = f
	return nil
}

// Activate negotiates the preferred format against the default playback
// device and caches what the device actually granted. The probe open is the
// same trick the device itself will see later: request the preference, read
// back device.SampleRate().
func (h *MalgoHost) Activate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16

	channels := h.preferred.Channels
	if channels < 1 {
		channels = 2
	}
	deviceConfig.Playback.Channels = uint32(channels)

	if h.preferred.SampleRate > 0 {
		deviceConfig.SampleRate = uint32(h.preferred.SampleRate)
	}
	if h.preferred.BufferDuration > 0 {
		deviceConfig.PeriodSizeInMilliseconds = uint32(h.preferred.BufferDuration.Milliseconds())
	}

	device, err := malgo.InitDevice(h.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return &ConfigurationError{Stage: "activate", HostCode: hostCode(err), Err: err}
	}

	grantedRate := float64(device.SampleRate())
	device.Uninit()

	h.granted = audio.FormatDescriptor{
		SampleRate:     grantedRate,
		Channels:       channels,
		BitsPerSample:  16,
		BufferDuration: h.preferred.BufferDuration,
	}
	if h.granted.BufferDuration == 0 {
		// miniaudio's low-latency default period.
		h.granted.BufferDuration = 10 * time.Millisecond
	}
	h.active = true

	log.Printf("Session active: category=%s mode=%s granted=%s", h.category, h.mode, h.granted)
	return nil
}

func (h *MalgoHost) Deactivate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
	return nil
}

func (h *MalgoHost) GrantedFormat() (audio.FormatDescriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return audio.FormatDescriptor{}, fmt.Errorf("session not active")
	}
	return h.granted, nil
}

// Route enumerates capture devices as available inputs and reports the
// default devices as the current route. Latency is estimated from the
// negotiated period; miniaudio does not expose measured hardware latency.
func (h *MalgoHost) Route() (RouteInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info := RouteInfo{}

	captureDevices, err := h.malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return info, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, d := range captureDevices {
		name := d.Name()
		info.AvailableInputs = append(info.AvailableInputs, name)
		if d.IsDefault != 0 {
			info.Input = name
		}
	}

	playbackDevices, err := h.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return info, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for _, d := range playbackDevices {
		if d.IsDefault != 0 {
			info.Output = d.Name()
		}
	}

	period := h.granted.BufferDuration
	if period == 0 {
		period = 10 * time.Millisecond
	}
	info.InputLatency = period
	info.OutputLatency = period

	return info, nil
}

// Close releases the miniaudio context.
func (h *MalgoHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.malgoCtx != nil {
		if err := h.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		h.malgoCtx.Free()
		h.malgoCtx = nil
	}
	return nil
}
