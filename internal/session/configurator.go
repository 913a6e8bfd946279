// ABOUTME: Serializes audio session strategy application and teardown
// ABOUTME: Owns the session lifecycle and validates granted formats
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Applier is a named configuration policy for the host audio session.
// Implementations live in the strategy package.
type Applier interface {
	Name() string
	Description() string

	// Apply configures and activates the session, returning the format
	// the host actually granted.
	Apply(ctx context.Context, host Host, rep *report.Reporter) (audio.FormatDescriptor, error)

	// Teardown undoes whatever Apply set up, where that is possible.
	Teardown(host Host) error
}

// Configurator serializes all mutations of the process-wide audio session.
// At most one configuration is in flight at a time; applying concurrently
// with playback is the caller's bug and the mutex here only keeps it from
// corrupting session state.
type Configurator struct {
	mu       sync.Mutex
	host     Host
	reporter *report.Reporter
	state    State
	granted  audio.FormatDescriptor
	applied  Applier
}

// NewConfigurator creates a configurator for the given host.
func NewConfigurator(host Host, rep *report.Reporter) *Configurator {
	return &Configurator{
		host:     host,
		reporter: rep,
		state:    StateUninitialized,
	}
}

// Apply runs the strategy against the host and returns the granted format.
// Activation failures surface as ConfigurationError; a granted format that
// differs from the request is not an error here, it is a recorded fact.
func (c *Configurator) Apply(ctx context.Context, s Applier) (audio.FormatDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reporter.Recordf(report.StageConfigure, "applying strategy %q: %s", s.Name(), s.Description())
	c.state = StateConfigured

	granted, err := s.Apply(ctx, c.host, c.reporter)
	if err != nil {
		c.reporter.Recordf(report.StageError, "strategy %q failed: %v", s.Name(), err)
		return audio.FormatDescriptor{}, fmt.Errorf("strategy %q: %w", s.Name(), err)
	}

	if verr := granted.Validate(); verr != nil {
		c.reporter.Recordf(report.StageError, "strategy %q granted malformed format: %v", s.Name(), verr)
		return audio.FormatDescriptor{}, fmt.Errorf("strategy %q granted malformed format: %w", s.Name(), verr)
	}

	c.granted = granted
	c.applied = s
	c.state = StateActive
	c.reporter.Record(report.StageActivate, nil, &granted, "session active under strategy %q", s.Name())

	return granted, nil
}

// Teardown deactivates the session. Safe to call without a prior Apply and
// safe to call repeatedly; both are no-ops beyond a report entry.
func (c *Configurator) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUninitialized || c.state == StateInactive {
		c.reporter.Recordf(report.StageTeardown, "teardown: session already %s", c.state)
		c.state = StateInactive
		return nil
	}

	if c.applied != nil {
		if err := c.applied.Teardown(c.host); err != nil {
			// Teardown limitations (e.g. a permanent interception) are
			// reported, not fatal.
			c.reporter.Recordf(report.StageTeardown, "strategy %q teardown: %v", c.applied.Name(), err)
		}
	}

	if err := c.host.Deactivate(); err != nil {
		c.reporter.Recordf(report.StageError, "deactivate failed: %v", err)
		return fmt.Errorf("deactivate: %w", err)
	}

	c.state = StateInactive
	c.reporter.Recordf(report.StageTeardown, "session deactivated")
	return nil
}

// State returns the current lifecycle state.
func (c *Configurator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Granted returns the format granted by the last successful Apply.
func (c *Configurator) Granted() audio.FormatDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted
}
