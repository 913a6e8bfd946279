// ABOUTME: Standalone test tone player for checking the output path
// ABOUTME: Renders a sine tone or audio file without any camera involved
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mpriessner/veepa-audio-probe/internal/engine"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio/ring"
)

var (
	freq     = flag.Float64("freq", 440, "Tone frequency in Hz")
	rate     = flag.Int("rate", 48000, "Output device sample rate")
	duration = flag.Duration("duration", 3*time.Second, "How long to play")
	volume   = flag.Float64("volume", 1.0, "Output volume (0..1)")
	file     = flag.String("file", "", "MP3/FLAC file to play instead of the tone")
)

func main() {
	flag.Parse()

	src, err := engine.NewFileSource(*file, *freq, *rate)
	if err != nil {
		log.Fatalf("source: %v", err)
	}
	defer src.Close()

	out := engine.NewOtoOutput()
	out.SetVolume(*volume)
	defer out.Close()

	e := engine.New(out, ring.New(1), report.New(), *rate, *rate, src.Channels())

	if *file != "" {
		log.Printf("playing %s for up to %s", *file, *duration)
	} else {
		log.Printf("playing %gHz tone for %s at %d Hz", *freq, *duration, *rate)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if err := e.PlaySource(ctx, src); err != nil && err != context.DeadlineExceeded {
		log.Fatalf("playback: %v", err)
	}
	log.Printf("done")
}
