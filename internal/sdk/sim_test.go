// ABOUTME: Tests for the simulated camera SDK
// ABOUTME: Covers renderer discovery timing, mute, and failure codes
package sdk

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRendererHiddenBeforeStartVoice(t *testing.T) {
	sim := NewSim(SimConfig{RendererName: "hidden-test"})
	defer UnregisterRenderer("hidden-test")

	if _, ok := sim.InternalRenderer(); ok {
		t.Error("renderer must not exist before StartVoice")
	}

	ctx := context.Background()
	if err := sim.StartVoice(ctx); err != nil {
		t.Fatalf("StartVoice failed: %v", err)
	}
	defer sim.StopVoice(ctx)

	if _, ok := sim.InternalRenderer(); !ok {
		t.Error("renderer must be discoverable after StartVoice")
	}
}

func TestRegistryDiscovery(t *testing.T) {
	sim := NewSim(SimConfig{RendererName: "registry-test"})
	defer UnregisterRenderer("registry-test")

	ctx := context.Background()
	if err := sim.StartVoice(ctx); err != nil {
		t.Fatalf("StartVoice failed: %v", err)
	}
	defer sim.StopVoice(ctx)

	tap, name, ok := DiscoverRenderer()
	if !ok {
		t.Fatal("expected registry discovery to succeed")
	}
	if name != "registry-test" {
		t.Errorf("expected registry-test, got %q", name)
	}
	if tap == nil {
		t.Error("expected non-nil render tap")
	}
}

func TestFramesDelivered(t *testing.T) {
	sim := NewSim(SimConfig{
		SampleRate:    8000,
		FrameDuration: 5 * time.Millisecond,
		RendererName:  "frames-test",
	})
	defer UnregisterRenderer("frames-test")

	ctx := context.Background()
	if err := sim.StartVoice(ctx); err != nil {
		t.Fatalf("StartVoice failed: %v", err)
	}
	defer sim.StopVoice(ctx)

	tap, _ := sim.InternalRenderer()
	got := make(chan int, 64)
	if err := tap.SetRenderNotify(func(samples []int16) {
		select {
		case got <- len(samples):
		default:
		}
	}); err != nil {
		t.Fatalf("SetRenderNotify failed: %v", err)
	}
	defer tap.ClearRenderNotify()

	select {
	case n := <-got:
		// 5ms at 8kHz mono is 40 samples.
		if n != 40 {
			t.Errorf("expected 40 samples per frame, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frames delivered")
	}
}

func TestMuteProducesSilence(t *testing.T) {
	sim := NewSim(SimConfig{
		SampleRate:    8000,
		FrameDuration: 5 * time.Millisecond,
		RendererName:  "mute-test",
	})
	defer UnregisterRenderer("mute-test")

	ctx := context.Background()
	if err := sim.StartVoice(ctx); err != nil {
		t.Fatalf("StartVoice failed: %v", err)
	}
	defer sim.StopVoice(ctx)

	if err := sim.SetMute(ctx, true); err != nil {
		t.Fatalf("SetMute failed: %v", err)
	}

	tap, _ := sim.InternalRenderer()
	silent := make(chan bool, 64)
	tap.SetRenderNotify(func(samples []int16) {
		allZero := true
		for _, s := range samples {
			if s != 0 {
				allZero = false
				break
			}
		}
		select {
		case silent <- allZero:
		default:
		}
	})
	defer tap.ClearRenderNotify()

	// Skip frames generated before the mute took effect.
	deadline := time.After(2 * time.Second)
	for i := 0; i < 10; i++ {
		select {
		case ok := <-silent:
			if ok {
				return
			}
		case <-deadline:
			t.Fatal("no frames delivered while muted")
		}
	}
	t.Error("expected silent frames after mute")
}

func TestStartVoiceFailureCode(t *testing.T) {
	sim := NewSim(SimConfig{StartVoiceCode: -180, RendererName: "fail-test"})

	err := sim.StartVoice(context.Background())
	if err == nil {
		t.Fatal("expected StartVoice to fail")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if opErr.Code != -180 {
		t.Errorf("expected code -180 surfaced verbatim, got %d", opErr.Code)
	}
	if opErr.Op != "startVoice" {
		t.Errorf("expected op startVoice, got %q", opErr.Op)
	}
}

func TestStartVoiceRespectsContext(t *testing.T) {
	sim := NewSim(SimConfig{RendererName: "ctx-test"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sim.StartVoice(ctx); err == nil {
		t.Error("expected error from canceled context")
		sim.StopVoice(context.Background())
	}
}
