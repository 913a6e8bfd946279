// ABOUTME: YAML config loading with defaults and validation
// ABOUTME: Partial files are merged over Default before validation
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// strategyNames lists the strategies the loader accepts. Kept in sync
// with the canonical registry.
var strategyNames = []string{"baseline", "preinit", "intercepted", "locked"}

// Load reads the YAML configuration file at path and returns a validated
// Config. A convenience wrapper around LoadFromReader.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Useful in tests where configs come from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns
// a joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	valid := false
	for _, name := range strategyNames {
		if cfg.Session.Strategy == name {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("session.strategy %q is invalid; valid values: %v", cfg.Session.Strategy, strategyNames))
	}

	if cfg.Session.TargetSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("session.target_sample_rate %g must be positive", cfg.Session.TargetSampleRate))
	}
	if cfg.Session.Channels < 1 {
		errs = append(errs, fmt.Errorf("session.channels %d must be at least 1", cfg.Session.Channels))
	}
	if cfg.Session.BufferDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("session.buffer_duration_ms %d must be positive", cfg.Session.BufferDurationMs))
	}
	if cfg.Capture.RingCapacityMs <= 0 {
		errs = append(errs, fmt.Errorf("capture.ring_capacity_ms %d must be positive", cfg.Capture.RingCapacityMs))
	}
	if cfg.Playback.DeviceSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("playback.device_sample_rate %d must be positive", cfg.Playback.DeviceSampleRate))
	}
	if cfg.Playback.ToneFrequency <= 0 {
		errs = append(errs, fmt.Errorf("playback.tone_frequency %g must be positive", cfg.Playback.ToneFrequency))
	}
	if cfg.Playback.Volume < 0 || cfg.Playback.Volume > 1 {
		errs = append(errs, fmt.Errorf("playback.volume %g is out of range [0, 1]", cfg.Playback.Volume))
	}
	if cfg.Sim.Enabled && cfg.Sim.NativeRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.native_rate %g must be positive when sim is enabled", cfg.Sim.NativeRate))
	}

	return errors.Join(errs...)
}
