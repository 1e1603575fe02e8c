// Package cmdrender provides a capability backed by an external renderer
// command. The command receives the source text on stdin and writes the
// rendered output to stdout; a non-zero exit with diagnostics on stderr is
// reported as an input rejection.
package cmdrender

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/sctg/renderpool/internal/capability"
)

// Compile-time interface satisfaction check.
var _ capability.Direct = (*Capability)(nil)

// Capability renders by shelling out to an external command such as the
// mermaid CLI.
type Capability struct {
	name   string
	marker string
	argv   []string
	logger *slog.Logger
}

// New creates a command-backed capability. argv is the command and its
// arguments; marker is the substring expected in every successful output.
func New(name, marker string, argv []string, logger *slog.Logger) (*Capability, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("cmdrender %q: empty command", name)
	}
	return &Capability{
		name:   name,
		marker: marker,
		argv:   argv,
		logger: logger,
	}, nil
}

// Name identifies the capability.
func (c *Capability) Name() string { return c.name }

// Marker returns the expected output marker.
func (c *Capability) Marker() string { return c.marker }

// Render runs the command with the input on stdin and returns its stdout.
// The context deadline kills the process on timeout.
func (c *Capability) Render(ctx context.Context, input string) (string, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", fmt.Errorf("%s: %w", c.name, ctx.Err())
	}
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		c.logger.Debug("render command failed",
			"capability", c.name,
			"error", err,
			"stderr", diag,
		)
		if diag != "" {
			// The renderer ran and rejected the source text.
			return "", fmt.Errorf("%w: %s", capability.ErrInvalidInput, diag)
		}
		return "", fmt.Errorf("%s: %w", c.name, err)
	}

	return stdout.String(), nil
}
