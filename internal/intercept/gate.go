// ABOUTME: Process-wide sample-rate interception gate
// ABOUTME: Rewrites every caller's requested rate to the narrowband target
package intercept

import (
	"errors"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
)

// ErrRestartRequired is returned for any attempt to remove or retarget the
// gate. The interception is a single process-wide hook with no supported
// uninstall; this is a documented limitation, not a bug.
var ErrRestartRequired = errors.New("runtime interception is permanent for this process; restart required")

// RateGate forces every preferred-rate request that flows through the
// session rate filter to a fixed narrowband target, no matter who makes
// the request. There is exactly one gate per process.
type RateGate struct {
	installOnce sync.Once
	installed   atomic.Bool
	targetBits  atomic.Uint64
	intercepts  atomic.Uint64

	repMu sync.Mutex
	rep   *report.Reporter
}

// Gate is the process-wide instance.
var Gate = &RateGate{}

// Install hooks the gate into the session rate filter, exactly once per
// process. The first call installs and returns true; every later call is a
// no-op returning false, regardless of target. Changing the target after
// installation requires a process restart.
func (g *RateGate) Install(targetHz float64, rep *report.Reporter) bool {
	installed := false
	g.installOnce.Do(func() {
		g.targetBits.Store(math.Float64bits(targetHz))
		g.SetReporter(rep)

		if err := session.SetRateFilter(g.apply); err != nil {
			// A foreign filter beat us to the single hook. Treat the
			// gate as installed-and-useless rather than retrying.
			log.Printf("Rate gate: filter hook unavailable: %v", err)
		}
		g.installed.Store(true)
		log.Printf("Rate gate installed: all requested sample rates forced to %gHz", targetHz)
		if rep != nil {
			rep.Recordf(report.StageIntercept, "interception installed, target %gHz", targetHz)
		}
		installed = true
	})

	if !installed && rep != nil {
		rep.Recordf(report.StageIntercept,
			"interception already installed (target %gHz); restart required to change it", g.Target())
	}
	return installed
}

// SetReporter points the gate at the current session's reporter so
// per-call interception entries land in the right report.
func (g *RateGate) SetReporter(rep *report.Reporter) {
	g.repMu.Lock()
	g.rep = rep
	g.repMu.Unlock()
}

// apply is the installed rate filter.
func (g *RateGate) apply(requestedHz float64) float64 {
	target := g.Target()
	if requestedHz == target {
		return target
	}

	g.intercepts.Add(1)
	log.Printf("Rate gate: intercepted request %gHz -> %gHz", requestedHz, target)

	g.repMu.Lock()
	rep := g.rep
	g.repMu.Unlock()
	if rep != nil {
		rep.Recordf(report.StageIntercept, "intercepted rate request: %gHz -> %gHz", requestedHz, target)
	}
	return target
}

// Installed reports whether the gate has been installed.
func (g *RateGate) Installed() bool {
	return g.installed.Load()
}

// Target returns the forced rate.
func (g *RateGate) Target() float64 {
	return math.Float64frombits(g.targetBits.Load())
}

// Intercepts returns how many requests have been rewritten.
func (g *RateGate) Intercepts() uint64 {
	return g.intercepts.Load()
}

// Uninstall always fails; it exists to make the limitation explicit at the
// call site instead of silently doing nothing.
func (g *RateGate) Uninstall() error {
	return ErrRestartRequired
}
