package renderer

import "errors"

// The render failure taxonomy. Every failed render settles with exactly one
// of these, wrapped with detail; callers classify with errors.Is.
var (
	// ErrCompile means the capability explicitly rejected the input as invalid.
	ErrCompile = errors.New("input failed to compile")

	// ErrTimeout means no strategy completed inside its time box.
	ErrTimeout = errors.New("render timed out")

	// ErrExhaustedStrategies means every strategy was attempted without the
	// capability raising an explicit error, yet none produced usable output.
	ErrExhaustedStrategies = errors.New("all render strategies exhausted")
)
