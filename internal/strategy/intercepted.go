// ABOUTME: Intercepted strategy that installs the process-wide rate gate
// ABOUTME: so every preferred-rate request is rewritten to the target
package strategy

import (
	"context"

	"github.com/mpriessner/veepa-audio-probe/internal/intercept"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Intercepted installs the rate gate before configuring the session, so
// rate requests from any code path in the process, not just this
// strategy, are forced to the target. The gate is permanent; Teardown
// deactivates the session but reports that interception survives it.
type Intercepted struct {
	target audio.FormatDescriptor
}

func NewIntercepted(target audio.FormatDescriptor) *Intercepted {
	return &Intercepted{target: target}
}

func (i *Intercepted) Name() string { return "intercepted" }

func (i *Intercepted) Description() string {
	return "install process-wide rate interception, then configure narrowband"
}

func (i *Intercepted) Apply(ctx context.Context, host session.Host, rep *report.Reporter) (audio.FormatDescriptor, error) {
	if !intercept.Gate.Install(i.target.SampleRate, rep) {
		// Already installed from an earlier run; route its entries to
		// the current session's report.
		intercept.Gate.SetReporter(rep)
	}
	if err := host.SetCategory(session.CategoryPlayAndRecord, session.ModeVoiceChat, session.CategoryOptions{}); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.SetPreferredFormat(i.target); err != nil {
		return audio.FormatDescriptor{}, err
	}
	if err := host.Activate(); err != nil {
		return audio.FormatDescriptor{}, err
	}
	granted, err := host.GrantedFormat()
	if err != nil {
		return audio.FormatDescriptor{}, err
	}
	if !granted.Matches(i.target) {
		rep.Mismatch(i.target, granted)
	} else {
		rep.Recordf(report.StageActivate, "intercepted granted %s", granted)
	}
	return granted, nil
}

func (i *Intercepted) Teardown(host session.Host) error {
	// Always ErrRestartRequired: the gate cannot be removed from a live
	// process. The configurator records this without failing teardown.
	return intercept.Gate.Uninstall()
}
