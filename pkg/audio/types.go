// ABOUTME: Audio format descriptor and int16 PCM helpers
// ABOUTME: Defines requested/granted format negotiation types
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// FormatDescriptor describes an audio session configuration, either as
// requested from the host or as actually granted by it.
type FormatDescriptor struct {
	SampleRate     float64
	Channels       int
	BitsPerSample  int
	BufferDuration time.Duration
}

// Validate checks that the descriptor is well-formed.
func (f FormatDescriptor) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %g", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	return nil
}

// Matches reports whether two descriptors agree on the fields the host can
// silently renegotiate (sample rate and channel count).
func (f FormatDescriptor) Matches(other FormatDescriptor) bool {
	return f.SampleRate == other.SampleRate && f.Channels == other.Channels
}

// IsZero reports whether no preference was expressed.
func (f FormatDescriptor) IsZero() bool {
	return f.SampleRate == 0 && f.Channels == 0 && f.BitsPerSample == 0 && f.BufferDuration == 0
}

func (f FormatDescriptor) String() string {
	if f.IsZero() {
		return "unset"
	}
	return fmt.Sprintf("%gHz/%dch/%dbit/%s", f.SampleRate, f.Channels, f.BitsPerSample, f.BufferDuration)
}

// SamplesFor returns the number of interleaved samples covering d at this
// format's rate and channel count.
func (f FormatDescriptor) SamplesFor(d time.Duration) int {
	frames := int(f.SampleRate * d.Seconds())
	ch := f.Channels
	if ch < 1 {
		ch = 1
	}
	return frames * ch
}

// FormatMismatchError records a divergence between requested and granted
// configurations. It is diagnostic, not fatal: callers decide whether to
// proceed after seeing it in the negotiation report.
type FormatMismatchError struct {
	Requested FormatDescriptor
	Actual    FormatDescriptor
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("format mismatch: requested %s, granted %s", e.Requested, e.Actual)
}

// SamplesToBytes converts int16 samples to little-endian PCM bytes.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples converts little-endian PCM bytes to int16 samples.
// Trailing odd bytes are ignored.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
