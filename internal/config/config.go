// ABOUTME: Probe configuration structures and defaults
// ABOUTME: YAML-backed settings for session, capture, playback and streaming
package config

import (
	"time"

	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Config is the full probe configuration. Zero values are filled by
// Default; the loader applies defaults before validation so a partial
// YAML file is always usable.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
	Stream   StreamConfig   `yaml:"stream"`
	Sim      SimConfig      `yaml:"sim"`
	LogFile  string         `yaml:"log_file"`
}

// SessionConfig controls the audio session negotiation.
type SessionConfig struct {
	// Strategy names the configuration strategy applied at startup.
	// One of: baseline, preinit, intercepted, locked.
	Strategy string `yaml:"strategy"`

	// TargetSampleRate is the narrowband rate to request or enforce.
	// Empirical per device; 8000 for strict G.711, 16000 observed on
	// real hardware.
	TargetSampleRate float64 `yaml:"target_sample_rate"`

	Channels         int `yaml:"channels"`
	BufferDurationMs int `yaml:"buffer_duration_ms"`
}

// CaptureConfig controls the interception bridge and its ring buffer.
type CaptureConfig struct {
	// RingCapacityMs sizes the capture ring in milliseconds of audio at
	// the target rate. Oldest samples are overwritten on overflow.
	RingCapacityMs int `yaml:"ring_capacity_ms"`

	// Ulaw selects mu-law companding for the voice stream; false means
	// A-law.
	Ulaw bool `yaml:"ulaw"`
}

// PlaybackConfig controls the local render engine.
type PlaybackConfig struct {
	// DeviceSampleRate is the rate the output device is opened at.
	// Captured audio is resampled from the target rate to this.
	DeviceSampleRate int `yaml:"device_sample_rate"`

	// ToneFrequency is the self-test tone pitch in Hz.
	ToneFrequency float64 `yaml:"tone_frequency"`

	Volume float64 `yaml:"volume"`
}

// StreamConfig controls the diagnostic websocket log stream.
type StreamConfig struct {
	// ListenAddr is the address the report stream listens on. Empty
	// disables the stream.
	ListenAddr string `yaml:"listen_addr"`
}

// SimConfig controls the simulated camera used without hardware.
type SimConfig struct {
	Enabled bool `yaml:"enabled"`

	// HonorPreferredRate makes the simulated host grant preferred rates
	// instead of overriding them with its native rate.
	HonorPreferredRate bool `yaml:"honor_preferred_rate"`

	// NativeRate is the simulated host's device rate.
	NativeRate float64 `yaml:"native_rate"`

	// ToneFrequency is the pitch of the simulated camera's voice stream.
	ToneFrequency float64 `yaml:"tone_frequency"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Strategy:         "locked",
			TargetSampleRate: 16000,
			Channels:         1,
			BufferDurationMs: 20,
		},
		Capture: CaptureConfig{
			RingCapacityMs: 2000,
			Ulaw:           false,
		},
		Playback: PlaybackConfig{
			DeviceSampleRate: 48000,
			ToneFrequency:    440,
			Volume:           1.0,
		},
		Sim: SimConfig{
			NativeRate:    48000,
			ToneFrequency: 440,
		},
	}
}

// TargetFormat returns the narrowband format descriptor the session
// strategies negotiate for.
func (c *Config) TargetFormat() audio.FormatDescriptor {
	return audio.FormatDescriptor{
		SampleRate:     c.Session.TargetSampleRate,
		Channels:       c.Session.Channels,
		BitsPerSample:  16,
		BufferDuration: time.Duration(c.Session.BufferDurationMs) * time.Millisecond,
	}
}

// RingCapacitySamples converts the configured ring capacity to a sample
// count at the target rate.
func (c *Config) RingCapacitySamples() int {
	n := int(c.Session.TargetSampleRate * float64(c.Capture.RingCapacityMs) / 1000)
	if n < 1 {
		n = 1
	}
	return n * c.Session.Channels
}
