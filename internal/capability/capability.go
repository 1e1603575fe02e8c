package capability

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidInput is returned (possibly wrapped) by a capability that
// explicitly rejects its input as malformed. The renderer treats it as a
// compile failure and stops the fallback chain instead of trying the next
// strategy.
var ErrInvalidInput = errors.New("capability rejected input")

// Capability is the opaque external rendering engine. Implementations expose
// one or more invocation shapes through the optional Direct, Staged and
// Callback interfaces below; the renderer probes for them in order and must
// not assume which shapes a given capability supports.
type Capability interface {
	// Name identifies the capability in logs, metrics and API responses.
	Name() string

	// Marker is a substring every successful output must contain. The
	// mount-and-poll strategy uses it as the settle condition, and the
	// renderer uses it to tell a real result from leftover noise.
	Marker() string
}

// Direct is the first invocation shape: a plain call that returns the output
// or an error. Capabilities whose completion signal is synchronous (or a
// well-behaved awaitable) implement this.
type Direct interface {
	Capability
	Render(ctx context.Context, input string) (string, error)
}

// Staged is the second invocation shape: the capability populates a
// caller-provided container and signals completion only through the
// container's contents. RenderInto may return before the output is complete;
// the renderer polls its staging area for the marker within a bounded settle
// window.
type Staged interface {
	Capability
	RenderInto(ctx context.Context, input string, container io.Writer) error
}

// Callback is the third invocation shape, the last resort: the capability
// delivers its result through a completion callback with no deadline of its
// own. The renderer guards the call with an explicit timeout because the
// callback is not guaranteed to fire.
type Callback interface {
	Capability
	RenderAsync(input string, done func(output string, err error))
}
