// ABOUTME: Tests for format descriptor validation and PCM conversion
// ABOUTME: Covers mismatch detection and byte round-trips
package audio

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  FormatDescriptor
		wantErr bool
	}{
		{"narrowband mono", FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16}, false},
		{"host native stereo", FormatDescriptor{SampleRate: 48000, Channels: 2, BitsPerSample: 16}, false},
		{"zero rate", FormatDescriptor{SampleRate: 0, Channels: 1}, true},
		{"negative rate", FormatDescriptor{SampleRate: -8000, Channels: 1}, true},
		{"zero channels", FormatDescriptor{SampleRate: 8000, Channels: 0}, true},
	}

	for _, tt := range tests {
		err := tt.format.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestMatches(t *testing.T) {
	req := FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

	if !req.Matches(FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 32}) {
		t.Error("expected match on rate+channels regardless of bit depth")
	}
	if req.Matches(FormatDescriptor{SampleRate: 48000, Channels: 1}) {
		t.Error("expected mismatch on sample rate")
	}
	if req.Matches(FormatDescriptor{SampleRate: 16000, Channels: 2}) {
		t.Error("expected mismatch on channel count")
	}
}

func TestSamplesFor(t *testing.T) {
	f := FormatDescriptor{SampleRate: 16000, Channels: 1}
	if got := f.SamplesFor(20 * time.Millisecond); got != 320 {
		t.Errorf("expected 320 samples for 20ms at 16kHz mono, got %d", got)
	}

	stereo := FormatDescriptor{SampleRate: 48000, Channels: 2}
	if got := stereo.SamplesFor(20 * time.Millisecond); got != 1920 {
		t.Errorf("expected 1920 samples for 20ms at 48kHz stereo, got %d", got)
	}
}

func TestSampleByteConversion(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}

	got := BytesToSamples(SamplesToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestFormatMismatchError(t *testing.T) {
	err := &FormatMismatchError{
		Requested: FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
		Actual:    FormatDescriptor{SampleRate: 48000, Channels: 2, BitsPerSample: 16},
	}

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
}
