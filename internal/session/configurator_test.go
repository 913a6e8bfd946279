// ABOUTME: Tests for the session configurator and rate filter hook
// ABOUTME: Covers teardown idempotence, error propagation, and serialization
package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// stubApplier is a minimal Applier for configurator tests.
type stubApplier struct {
	name      string
	request   audio.FormatDescriptor
	applyErr  error
	malformed bool
	teardowns int
}

func (s *stubApplier) Name() string        { return s.name }
func (s *stubApplier) Description() string { return "test strategy" }

func (s *stubApplier) Apply(ctx context.Context, host Host, rep *report.Reporter) (audio.FormatDescriptor, error) {
	if s.applyErr != nil {
		return audio.FormatDescriptor{}, s.applyErr
	}
	if err := host.SetPreferredFormat(s.request); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.Activate(); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if s.malformed {
		return audio.FormatDescriptor{}, nil
	}
	granted, err := host.GrantedFormat()
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	return granted, nil
}

func (s *stubApplier) Teardown(host Host) error {
	s.teardowns++
	return nil
}

func TestApplyReturnsGranted(t *testing.T) {
	host := NewNullHost()
	c := NewConfigurator(host, report.New())

	strategy := &stubApplier{
		name:    "test",
		request: audio.FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
	}

	granted, err := c.Apply(context.Background(), strategy)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := granted.Validate(); err != nil {
		t.Errorf("granted format not well-formed: %v", err)
	}
	// NullHost overrides the rate by default: granted differs from
	// requested and that must not be an error.
	if granted.SampleRate != 48000 {
		t.Errorf("expected native 48000, got %g", granted.SampleRate)
	}
	if c.State() != StateActive {
		t.Errorf("expected active state, got %s", c.State())
	}
}

func TestApplyErrorPropagates(t *testing.T) {
	host := NewNullHost()
	host.ActivateErr = errors.New("device busy")
	rep := report.New()
	c := NewConfigurator(host, rep)

	strategy := &stubApplier{name: "failing", request: audio.FormatDescriptor{SampleRate: 16000, Channels: 1}}

	_, err := c.Apply(context.Background(), strategy)
	if err == nil {
		t.Fatal("expected error from failed activation")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError in chain, got %v", err)
	}
	if cfgErr.HostCode != -50 {
		t.Errorf("expected host code -50, got %d", cfgErr.HostCode)
	}

	// Every failure path produces at least one report entry.
	found := false
	for _, e := range rep.Entries() {
		if e.Stage == report.StageError {
			found = true
		}
	}
	if !found {
		t.Error("expected an error entry in the report")
	}
}

func TestApplyRejectsMalformedGrant(t *testing.T) {
	c := NewConfigurator(NewNullHost(), report.New())

	_, err := c.Apply(context.Background(), &stubApplier{name: "malformed", malformed: true,
		request: audio.FormatDescriptor{SampleRate: 16000, Channels: 1}})
	if err == nil {
		t.Fatal("expected error for malformed granted format")
	}
}

func TestTeardownWithoutApply(t *testing.T) {
	c := NewConfigurator(NewNullHost(), report.New())

	if err := c.Teardown(); err != nil {
		t.Fatalf("teardown without apply must be a no-op, got %v", err)
	}
	if c.State() != StateInactive {
		t.Errorf("expected inactive state, got %s", c.State())
	}
}

func TestTeardownTwice(t *testing.T) {
	host := NewNullHost()
	c := NewConfigurator(host, report.New())

	strategy := &stubApplier{name: "test", request: audio.FormatDescriptor{SampleRate: 16000, Channels: 1}}
	if _, err := c.Apply(context.Background(), strategy); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if err := c.Teardown(); err != nil {
		t.Fatalf("first teardown failed: %v", err)
	}
	if err := c.Teardown(); err != nil {
		t.Fatalf("second teardown must be a no-op, got %v", err)
	}
	if strategy.teardowns != 1 {
		t.Errorf("expected exactly one strategy teardown, got %d", strategy.teardowns)
	}
}

func TestRateFilterHook(t *testing.T) {
	defer resetRateFilter()

	if err := SetRateFilter(func(requested float64) float64 { return 16000 }); err != nil {
		t.Fatalf("SetRateFilter failed: %v", err)
	}

	if err := SetRateFilter(func(requested float64) float64 { return 8000 }); err == nil {
		t.Fatal("expected second SetRateFilter to be rejected")
	}

	host := NewNullHost()
	host.HonorPreferredRate = true
	if err := host.SetPreferredFormat(audio.FormatDescriptor{SampleRate: 48000, Channels: 1}); err != nil {
		t.Fatalf("SetPreferredFormat failed: %v", err)
	}
	if err := host.Activate(); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	granted, err := host.GrantedFormat()
	if err != nil {
		t.Fatalf("GrantedFormat failed: %v", err)
	}
	if granted.SampleRate != 16000 {
		t.Errorf("expected filtered rate 16000, got %g", granted.SampleRate)
	}
}

func TestConcurrentApplySerialized(t *testing.T) {
	host := NewNullHost()
	c := NewConfigurator(host, report.New())

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func(i int) {
			s := &stubApplier{
				name:    fmt.Sprintf("concurrent-%d", i),
				request: audio.FormatDescriptor{SampleRate: 16000, Channels: 1},
			}
			_, err := c.Apply(context.Background(), s)
			done <- err
		}(i)
	}

	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Errorf("serialized apply %d failed: %v", i, err)
		}
	}
	if host.Activations() != 4 {
		t.Errorf("expected 4 activations, got %d", host.Activations())
	}
}
