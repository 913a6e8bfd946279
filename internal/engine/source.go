// ABOUTME: PCM sources for self-test playback
// ABOUTME: Sine tone generator plus MP3 and FLAC file decoders
package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Source provides interleaved int16 PCM for self-test playback.
type Source interface {
	// Read fills samples and returns the number of samples written.
	Read(samples []int16) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// NewFileSource creates a source from a local audio file. An empty path
// returns the built-in test tone.
func NewFileSource(path string, toneFreq float64, toneRate int) (Source, error) {
	if path == "" {
		return NewToneSource(toneFreq, toneRate, 1), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Source(path)
	case ".flac":
		return NewFLACSource(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

// ToneSource generates a continuous sine tone at half amplitude.
type ToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	frequency   float64
	sampleRate  int
	channels    int
}

// NewToneSource creates a sine generator.
func NewToneSource(frequency float64, sampleRate, channels int) *ToneSource {
	if channels < 1 {
		channels = 1
	}
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (s *ToneSource) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(samples) / s.channels
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * 0.5)
		for ch := 0; ch < s.channels; ch++ {
			samples[i*s.channels+ch] = v
		}
	}
	s.sampleIndex += uint64(frames)
	return frames * s.channels, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }

func (s *ToneSource) Channels() int { return s.channels }

func (s *ToneSource) Close() error { return nil }

// MP3Source decodes an MP3 file, looping at EOF.
type MP3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate int
}

func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open MP3 file: %w", err)
	}
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode MP3: %w", err)
	}
	log.Printf("loaded MP3 %s (%d Hz)", filepath.Base(path), decoder.SampleRate())
	return &MP3Source{file: f, decoder: decoder, sampleRate: decoder.SampleRate()}, nil
}

func (s *MP3Source) Read(samples []int16) (int, error) {
	buf := make([]byte, len(samples)*2)
	n, err := s.decoder.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	if err == io.EOF {
		if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
			return numSamples, fmt.Errorf("seek to start: %w", seekErr)
		}
		decoder, decErr := mp3.NewDecoder(s.file)
		if decErr != nil {
			return numSamples, fmt.Errorf("reopen decoder: %w", decErr)
		}
		s.decoder = decoder
	}
	return numSamples, nil
}

func (s *MP3Source) SampleRate() int { return s.sampleRate }

// Channels is always 2: the decoder outputs stereo.
func (s *MP3Source) Channels() int { return 2 }

func (s *MP3Source) Close() error { return s.file.Close() }

// FLACSource decodes a FLAC file, looping at EOF. Samples deeper than
// 16 bits are truncated to 16.
type FLACSource struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int
}

func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FLAC file: %w", err)
	}
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode FLAC: %w", err)
	}
	info := stream.Info
	log.Printf("loaded FLAC %s (%d Hz, %d channels, %d bit)",
		filepath.Base(path), info.SampleRate, info.NChannels, info.BitsPerSample)
	return &FLACSource{
		file:       f,
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		bitDepth:   int(info.BitsPerSample),
	}, nil
}

func (s *FLACSource) Read(samples []int16) (int, error) {
	written := 0
	for written < len(samples) {
		frame, err := s.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
					return written, fmt.Errorf("seek to start: %w", seekErr)
				}
				stream, decErr := flac.New(s.file)
				if decErr != nil {
					return written, fmt.Errorf("reopen stream: %w", decErr)
				}
				s.stream = stream
				continue
			}
			return written, err
		}

		for i := 0; i < int(frame.BlockSize) && written < len(samples); i++ {
			for ch := 0; ch < s.channels && written < len(samples); ch++ {
				v := frame.Subframes[ch].Samples[i]
				if s.bitDepth > 16 {
					v >>= s.bitDepth - 16
				} else if s.bitDepth < 16 {
					v <<= 16 - s.bitDepth
				}
				samples[written] = int16(v)
				written++
			}
		}
		if written == len(samples) {
			break
		}
	}
	return written, nil
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }

func (s *FLACSource) Channels() int { return s.channels }

func (s *FLACSource) Close() error { return s.file.Close() }
