// ABOUTME: Opaque camera SDK boundary: voice operations and renderer discovery
// ABOUTME: Result codes surface verbatim; the numeric code is the diagnostic
package sdk

import (
	"context"
	"fmt"
	"sync"
)

// Client is the minimal surface the probe needs from the vendor SDK. The
// SDK is a black box; nothing here assumes anything about its internals
// beyond "startVoice eventually drives some audio-rendering entry point".
// Every call honors its context deadline: waiting forever on the SDK is a
// defect, so the controller always passes a bounded context.
type Client interface {
	// StartVoice asks the camera to begin streaming voice audio.
	StartVoice(ctx context.Context) error

	// StopVoice halts the voice stream.
	StopVoice(ctx context.Context) error

	// SetMute toggles the camera-side mute.
	SetMute(ctx context.Context, muted bool) error
}

// OperationError carries a non-success SDK result code verbatim. The code
// is never translated: in this domain the raw number is the primary signal
// (e.g. -11 from the render pipeline on a rate mismatch).
type OperationError struct {
	Op   string
	Code int
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("sdk %s failed with code %d", e.Op, e.Code)
}

// RenderTap is an SDK-internal audio-rendering entry point that accepts a
// render-notify callback. The vendor SDK does not expose this publicly;
// the interception bridge locates it by runtime introspection.
type RenderTap interface {
	// SetRenderNotify installs a callback invoked with each rendered
	// int16 PCM chunk, on the renderer's own goroutine.
	SetRenderNotify(fn func(samples []int16)) error

	// ClearRenderNotify detaches the callback.
	ClearRenderNotify()
}

// RenderTapProvider is implemented by clients whose internal renderer is
// reachable by interface assertion. This is the cheap discovery path.
type RenderTapProvider interface {
	InternalRenderer() (RenderTap, bool)
}

// renderers is the process-wide renderer registry, the moral equivalent of
// resolving the SDK's internal player symbols at runtime. Implementations
// register their renderer under a name; the bridge discovers whatever is
// there.
var (
	renderersMu sync.Mutex
	renderers   = map[string]RenderTap{}
	renderOrder []string
)

// RegisterRenderer publishes an SDK-internal renderer for discovery.
func RegisterRenderer(name string, tap RenderTap) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	if _, ok := renderers[name]; !ok {
		renderOrder = append(renderOrder, name)
	}
	renderers[name] = tap
}

// UnregisterRenderer removes a renderer from the registry.
func UnregisterRenderer(name string) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	if _, ok := renderers[name]; ok {
		delete(renderers, name)
		for i, n := range renderOrder {
			if n == name {
				renderOrder = append(renderOrder[:i], renderOrder[i+1:]...)
				break
			}
		}
	}
}

// DiscoverRenderer returns the earliest-registered renderer, if any.
func DiscoverRenderer() (RenderTap, string, bool) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	for _, name := range renderOrder {
		if tap, ok := renderers[name]; ok {
			return tap, name, true
		}
	}
	return nil, "", false
}
