// ABOUTME: Locked strategy that asserts every session preference at once
// ABOUTME: Single activation, full category options, route diagnostics
package strategy

import (
	"context"
	"strings"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Locked is the most aggressive non-intercepting strategy: category with
// speaker and bluetooth routing options, full format preference including
// buffer duration, a single activation, then route diagnostics explaining
// whether the lock held and why.
type Locked struct {
	target audio.FormatDescriptor
}

func NewLocked(target audio.FormatDescriptor) *Locked {
	return &Locked{target: target}
}

func (l *Locked) Name() string { return "locked" }

func (l *Locked) Description() string {
	return "assert all preferences in one pass, single activation, verify route"
}

func (l *Locked) Apply(ctx context.Context, host session.Host, rep *report.Reporter) (audio.FormatDescriptor, error) {
	rep.Recordf(report.StageConfigure, "locked: asserting %s with speaker routing", l.target)
	opts := session.CategoryOptions{DefaultToSpeaker: true, AllowBluetooth: true}
	if err := host.SetCategory(session.CategoryPlayAndRecord, session.ModeVoiceChat, opts); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.SetPreferredFormat(l.target); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.Activate(); err != nil {
		return audio.FormatDescriptor{}, err
	}
	granted, err := host.GrantedFormat()
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	if !granted.Matches(l.target) {
		rep.Mismatch(l.target, granted)
	} else {
		rep.Recordf(report.StageActivate, "locked granted %s as requested", granted)
	}

	route, err := host.Route()
	if err != nil {
		rep.Recordf(report.StageRoute, "route query failed: %v", err)
	} else {
		rep.Recordf(report.StageRoute, "route %s -> %s (in %s, out %s; inputs: %s)",
			route.Input, route.Output, route.InputLatency, route.OutputLatency,
			strings.Join(route.AvailableInputs, ", "))
	}
	return granted, nil
}

func (l *Locked) Teardown(host session.Host) error { return nil }
