// ABOUTME: Pre-initialization strategy that requests the narrowband format
// ABOUTME: before activation and records whether the host honored it
package strategy

import (
	"context"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// PreInitialize expresses the narrowband preference before the session
// goes live. The host is free to override it; when it does, exactly one
// mismatch entry lands in the report so runs can be compared by count.
type PreInitialize struct {
	target audio.FormatDescriptor
}

func NewPreInitialize(target audio.FormatDescriptor) *PreInitialize {
	return &PreInitialize{target: target}
}

func (p *PreInitialize) Name() string { return "preinit" }

func (p *PreInitialize) Description() string {
	return "request narrowband format before activation, observe the grant"
}

func (p *PreInitialize) Apply(ctx context.Context, host session.Host, rep *report.Reporter) (audio.FormatDescriptor, error) {
	rep.Recordf(report.StageConfigure, "preinit: requesting %s before activation", p.target)
	if err := host.SetCategory(session.CategoryPlayAndRecord, session.ModeVoiceChat, session.CategoryOptions{}); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.SetPreferredFormat(p.target); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.Activate(); err != nil {
		return audio.FormatDescriptor{}, err
	}
	granted, err := host.GrantedFormat()
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	if !granted.Matches(p.target) {
		rep.Mismatch(p.target, granted)
	} else {
		rep.Recordf(report.StageActivate, "preinit granted %s as requested", granted)
	}
	return granted, nil
}

func (p *PreInitialize) Teardown(host session.Host) error { return nil }
