// ABOUTME: Append-only negotiation report for audio session diagnosis
// ABOUTME: Records requested vs granted formats per stage with live fan-out
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

// Stage identifies which part of the negotiation produced an entry.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageActivate  Stage = "activate"
	StageRoute     Stage = "route"
	StageIntercept Stage = "intercept"
	StageCapture   Stage = "capture"
	StagePlayback  Stage = "playback"
	StageSDK       Stage = "sdk"
	StageTeardown  Stage = "teardown"
	StageError     Stage = "error"
)

// Entry is one negotiation event. Entries are never mutated after append.
type Entry struct {
	Time      time.Time
	Stage     Stage
	Requested *audio.FormatDescriptor
	Actual    *audio.FormatDescriptor
	Note      string
}

// String renders the entry in the timestamp-prefixed free-text form used
// for side-by-side comparison of strategy runs.
func (e Entry) String() string {
	s := fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05.000"), e.Stage, e.Note)
	if e.Requested != nil {
		s += fmt.Sprintf(" requested=%s", *e.Requested)
	}
	if e.Actual != nil {
		s += fmt.Sprintf(" actual=%s", *e.Actual)
	}
	return s
}

// Reporter collects negotiation entries for one session. It is the primary
// deliverable of the probe: every strategy populates it identically so runs
// can be compared line by line.
type Reporter struct {
	mu        sync.Mutex
	sessionID string
	entries   []Entry
	subs      []chan Entry
}

// New creates a fresh per-session reporter.
func New() *Reporter {
	return &Reporter{sessionID: uuid.New().String()}
}

// SessionID returns the session identifier.
func (r *Reporter) SessionID() string {
	return r.sessionID
}

// Record appends an entry with requested/actual descriptors. Either
// descriptor may be nil when the stage has nothing to say about it.
func (r *Reporter) Record(stage Stage, requested, actual *audio.FormatDescriptor, format string, args ...any) {
	e := Entry{
		Time:      time.Now(),
		Stage:     stage,
		Requested: requested,
		Actual:    actual,
		Note:      fmt.Sprintf(format, args...),
	}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	// Copy the subscriber list: Unsubscribe shifts r.subs in place, so
	// iterating the shared backing array outside the lock would race.
	subs := append([]chan Entry(nil), r.subs...)
	r.mu.Unlock()

	// Fan out without blocking: a slow subscriber loses entries rather
	// than stalling the negotiation path.
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Recordf appends a plain note entry.
func (r *Reporter) Recordf(stage Stage, format string, args ...any) {
	r.Record(stage, nil, nil, format, args...)
}

// Mismatch records a FormatMismatch entry for a requested/granted divergence.
func (r *Reporter) Mismatch(requested, actual audio.FormatDescriptor) {
	err := &audio.FormatMismatchError{Requested: requested, Actual: actual}
	r.Record(StageConfigure, &requested, &actual, "FormatMismatch: %v", err)
}

// MismatchCount returns how many FormatMismatch entries have been recorded.
func (r *Reporter) MismatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if strings.HasPrefix(e.Note, "FormatMismatch") {
			n++
		}
	}
	return n
}

// Entries returns a snapshot of all entries in append order.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Subscribe returns a channel receiving future entries. Delivery is
// best-effort; the channel is buffered and entries are dropped when full.
func (r *Reporter) Subscribe() <-chan Entry {
	ch := make(chan Entry, 256)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes a previously subscribed channel.
func (r *Reporter) Unsubscribe(ch <-chan Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// WriteTo writes the full report as timestamp-prefixed text.
func (r *Reporter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := fmt.Fprintf(w, "session %s\n", r.sessionID)
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, e := range r.Entries() {
		n, err := fmt.Fprintln(w, e.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
