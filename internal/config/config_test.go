// ABOUTME: Tests for config defaults, YAML merging and validation
// ABOUTME: Exercises partial files, bad values and derived accessors
package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.Strategy != "locked" {
		t.Errorf("expected default strategy locked, got %q", cfg.Session.Strategy)
	}
	if cfg.Session.TargetSampleRate != 16000 {
		t.Errorf("expected default target rate 16000, got %g", cfg.Session.TargetSampleRate)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	yaml := `
session:
  strategy: intercepted
  target_sample_rate: 8000
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Session.Strategy != "intercepted" {
		t.Errorf("expected strategy intercepted, got %q", cfg.Session.Strategy)
	}
	if cfg.Session.TargetSampleRate != 8000 {
		t.Errorf("expected target rate 8000, got %g", cfg.Session.TargetSampleRate)
	}
	// Untouched sections keep defaults.
	if cfg.Playback.DeviceSampleRate != 48000 {
		t.Errorf("expected default device rate 48000, got %d", cfg.Playback.DeviceSampleRate)
	}
	if cfg.Capture.RingCapacityMs != 2000 {
		t.Errorf("expected default ring capacity 2000ms, got %d", cfg.Capture.RingCapacityMs)
	}
}

func TestEmptyReaderYieldsDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Session.Channels != 1 {
		t.Errorf("expected default 1 channel, got %d", cfg.Session.Channels)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("sesion:\n  strategy: locked\n")); err == nil {
		t.Error("expected unknown top-level key to be rejected")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	yaml := `
session:
  strategy: turbo
  target_sample_rate: -1
playback:
  volume: 3
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"session.strategy", "session.target_sample_rate", "playback.volume"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestDerivedAccessors(t *testing.T) {
	cfg := Default()
	f := cfg.TargetFormat()
	if f.SampleRate != 16000 || f.Channels != 1 || f.BitsPerSample != 16 {
		t.Errorf("unexpected target format: %s", f)
	}
	if f.BufferDuration != 20*time.Millisecond {
		t.Errorf("expected 20ms buffer, got %s", f.BufferDuration)
	}

	// 2000ms at 16kHz mono.
	if n := cfg.RingCapacitySamples(); n != 32000 {
		t.Errorf("expected ring capacity 32000 samples, got %d", n)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/probe.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
