// ABOUTME: Ordered registry of named audio session configuration strategies
// ABOUTME: Each strategy is a distinct point in the negotiation design space
package strategy

import (
	"fmt"

	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Registry holds strategies in registration order so the UI can present
// them stably and runs can be compared side by side.
type Registry struct {
	order  []string
	byName map[string]session.Applier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]session.Applier)}
}

// Register adds a strategy. Duplicate names are rejected.
func (r *Registry) Register(s session.Applier) error {
	if _, ok := r.byName[s.Name()]; ok {
		return fmt.Errorf("strategy %q already registered", s.Name())
	}
	r.byName[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// Get returns the strategy by name.
func (r *Registry) Get(name string) (session.Applier, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, r.order)
	}
	return s, nil
}

// Names returns strategy names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns strategies in registration order.
func (r *Registry) All() []session.Applier {
	out := make([]session.Applier, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Canonical builds the four canonical strategies against the configured
// narrowband target. The target rate is empirical per device (8 kHz for
// strict G.711, 16 kHz observed on real hardware), never a constant here.
func Canonical(target audio.FormatDescriptor) *Registry {
	r := NewRegistry()
	r.Register(NewBaseline())
	r.Register(NewPreInitialize(target))
	r.Register(NewIntercepted(target))
	r.Register(NewLocked(target))
	return r
}
