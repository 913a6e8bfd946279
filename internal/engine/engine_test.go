// ABOUTME: Tests for the playback engine, tone source and gain handling
// ABOUTME: Uses a recording fake output instead of a real device
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/ring"
)

type fakeOutput struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	opened     bool
	muted      bool
	volume     float64
	written    []int16
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{volume: 1.0}
}

func (f *fakeOutput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleRate = sampleRate
	f.channels = channels
	f.opened = true
	return nil
}

func (f *fakeOutput) Write(samples []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, samples...)
	return nil
}

func (f *fakeOutput) SetVolume(v float64) { f.mu.Lock(); f.volume = v; f.mu.Unlock() }

func (f *fakeOutput) SetMuted(m bool) { f.mu.Lock(); f.muted = m; f.mu.Unlock() }

func (f *fakeOutput) Volume() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.volume }

func (f *fakeOutput) Muted() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.muted }

func (f *fakeOutput) Close() error { return nil }

func (f *fakeOutput) samples() []int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int16, len(f.written))
	copy(out, f.written)
	return out
}

func TestEngineDrainsRingInOrder(t *testing.T) {
	buf := ring.New(32000)
	pushed := make([]int16, 16000)
	for i := range pushed {
		pushed[i] = int16(i % 1000)
	}
	buf.Push(pushed)

	out := newFakeOutput()
	e := New(out, buf, report.New(), 16000, 16000, 1)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	e.Stop()

	got := out.samples()
	if len(got) == 0 {
		t.Fatal("expected samples rendered")
	}
	for i := range got {
		if got[i] != pushed[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, pushed[i], got[i])
		}
	}
	if !out.opened || out.sampleRate != 16000 || out.channels != 1 {
		t.Errorf("unexpected output format: %dHz/%dch", out.sampleRate, out.channels)
	}
}

func TestEngineResamplesToDeviceRate(t *testing.T) {
	buf := ring.New(32000)
	pushed := make([]int16, 16000)
	for i := range pushed {
		pushed[i] = 1000
	}
	buf.Push(pushed)

	out := newFakeOutput()
	e := New(out, buf, report.New(), 16000, 48000, 1)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	e.Stop()

	got := out.samples()
	if len(got) == 0 {
		t.Fatal("expected samples rendered")
	}
	if out.sampleRate != 48000 {
		t.Errorf("expected device opened at 48000, got %d", out.sampleRate)
	}
	// A constant input stays constant through linear interpolation.
	for i, s := range got {
		if s != 1000 {
			t.Fatalf("sample %d: expected 1000, got %d", i, s)
		}
	}
	// Resampling must produce roughly 3x the consumed sample count.
	consumed := len(pushed) - buf.Available()
	if len(got) < 2*consumed {
		t.Errorf("expected ~3x upsampling: %d output for %d consumed", len(got), consumed)
	}
}

func TestEngineCountsUnderruns(t *testing.T) {
	buf := ring.New(32000)
	// Less than one 20ms chunk at 16kHz (320 samples).
	buf.Push(make([]int16, 100))

	e := New(newFakeOutput(), buf, report.New(), 16000, 16000, 1)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	e.Stop()

	if e.Underruns() == 0 {
		t.Error("expected at least one underrun for a partial chunk")
	}
}

func TestEngineStartStopIdempotent(t *testing.T) {
	e := New(newFakeOutput(), ring.New(1024), report.New(), 16000, 16000, 1)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	e.Stop()
	e.Stop()
	if e.Running() {
		t.Error("expected engine stopped")
	}
}

func TestToneSourceContinuity(t *testing.T) {
	// Two half reads must equal one full read sample for sample.
	full := NewToneSource(440, 8000, 1)
	half := NewToneSource(440, 8000, 1)

	a := make([]int16, 200)
	if n, err := full.Read(a); err != nil || n != 200 {
		t.Fatalf("read failed: n=%d err=%v", n, err)
	}

	b := make([]int16, 100)
	c := make([]int16, 100)
	half.Read(b)
	half.Read(c)

	for i := 0; i < 100; i++ {
		if a[i] != b[i] {
			t.Fatalf("first half diverges at %d", i)
		}
		if a[100+i] != c[i] {
			t.Fatalf("second half diverges at %d", i)
		}
	}

	nonzero := false
	for _, s := range a {
		if s != 0 {
			nonzero = true
		}
		if s > 16384 || s < -16384 {
			t.Fatalf("sample %d exceeds half amplitude", s)
		}
	}
	if !nonzero {
		t.Error("tone produced silence")
	}
}

func TestToneSourceStereoDuplicatesChannels(t *testing.T) {
	s := NewToneSource(440, 8000, 2)
	buf := make([]int16, 64)
	s.Read(buf)
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("frame %d: channels differ (%d vs %d)", i/2, buf[i], buf[i+1])
		}
	}
}

func TestPlaySourceRendersTone(t *testing.T) {
	out := newFakeOutput()
	e := New(out, ring.New(1024), report.New(), 16000, 16000, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.PlaySource(ctx, NewToneSource(440, 16000, 1))
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(out.samples()) == 0 {
		t.Error("expected tone samples rendered")
	}
}

func TestPlaySourceOpensAtSourceChannelCount(t *testing.T) {
	out := newFakeOutput()
	// Engine configured mono, source is stereo; the device must follow the
	// source or every stereo frame plays as two mono frames.
	e := New(out, ring.New(1024), report.New(), 16000, 48000, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.PlaySource(ctx, NewToneSource(440, 48000, 2))
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if out.channels != 2 {
		t.Errorf("expected device opened with 2 channels, got %d", out.channels)
	}
	got := out.samples()
	if len(got) == 0 || len(got)%2 != 0 {
		t.Fatalf("expected whole stereo frames, got %d samples", len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if got[i] != got[i+1] {
			t.Fatalf("frame %d: stereo pair split across frames (%d vs %d)", i/2, got[i], got[i+1])
		}
	}
}

func TestPlaySourceRejectedWhileDraining(t *testing.T) {
	e := New(newFakeOutput(), ring.New(1024), report.New(), 16000, 16000, 1)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer e.Stop()

	if err := e.PlaySource(context.Background(), NewToneSource(440, 16000, 1)); err == nil {
		t.Error("expected rejection while drain loop is running")
	}
}

func TestNewFileSourceDispatch(t *testing.T) {
	src, err := NewFileSource("", 440, 16000)
	if err != nil {
		t.Fatalf("empty path failed: %v", err)
	}
	if _, ok := src.(*ToneSource); !ok {
		t.Errorf("expected tone source for empty path, got %T", src)
	}

	if _, err := NewFileSource("/nonexistent/x.mp3", 440, 16000); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyGain(t *testing.T) {
	in := []int16{-32768, -100, 0, 100, 32767}

	// Full gain passes through untouched.
	if out := applyGain(in, 1.0); &out[0] != &in[0] {
		t.Error("expected full gain to return input unchanged")
	}

	out := applyGain(in, 0.5)
	want := []int16{-16384, -50, 0, 50, 16383}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("half gain sample %d: expected %d, got %d", i, want[i], out[i])
		}
	}

	for _, s := range applyGain(in, 0) {
		if s != 0 {
			t.Error("zero gain must silence")
		}
	}
}
