// ABOUTME: Baseline strategy that configures the session with host defaults
// ABOUTME: Expresses no format preference so the native grant is observable
package strategy

import (
	"context"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Baseline activates play-and-record voice chat with whatever format the
// host picks. It exists to document the native grant that the other
// strategies fight against, and to reproduce the raw playback failure a
// narrowband source hits on an unprepared stack.
type Baseline struct{}

func NewBaseline() *Baseline { return &Baseline{} }

func (b *Baseline) Name() string { return "baseline" }

func (b *Baseline) Description() string {
	return "host defaults, no format preference; documents the native grant"
}

func (b *Baseline) Apply(ctx context.Context, host session.Host, rep *report.Reporter) (audio.FormatDescriptor, error) {
	rep.Recordf(report.StageConfigure, "baseline: no format preference, host defaults in effect")
	if err := host.SetCategory(session.CategoryPlayAndRecord, session.ModeVoiceChat, session.CategoryOptions{}); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.Activate(); err != nil {
		return audio.FormatDescriptor{}, err
	}
	granted, err := host.GrantedFormat()
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	rep.Recordf(report.StageActivate, "baseline granted %s; narrowband render onto this grant is expected to fail", granted)
	return granted, nil
}

func (b *Baseline) Teardown(host session.Host) error { return nil }
