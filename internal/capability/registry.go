package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sctg/renderpool/internal/model"
)

// Info pairs a render format with the capability serving it.
type Info struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Marker string `json:"marker"`
}

// Registry holds registered capabilities and resolves which one to use for a
// given render format.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
	}
}

// Register adds a capability to the registry under the given format.
func (r *Registry) Register(format string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[format] = c
}

// Resolve returns the capability to use for the given format. If format is
// "auto", the input is inspected to pick one. Returns an error if the
// resolved format has no registered capability.
func (r *Registry) Resolve(format, input string) (Capability, error) {
	target := format
	if target == model.FormatAuto {
		target = detectFormat(input)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.capabilities[target]
	if !ok {
		return nil, fmt.Errorf("no capability registered for format %q", target)
	}
	return c, nil
}

// List returns information about all registered capabilities, sorted by
// format for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.capabilities))
	for format, c := range r.capabilities {
		infos = append(infos, Info{
			Format: format,
			Name:   c.Name(),
			Marker: c.Marker(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Format < infos[j].Format
	})
	return infos
}

// detectFormat routes "auto" submissions by inspecting the source text.
// LaTeX formulas are recognizable by their command syntax; everything else is
// treated as a diagram.
func detectFormat(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, `\`) ||
		strings.Contains(trimmed, `\begin{`) ||
		strings.Contains(trimmed, `\frac`) {
		return model.FormatLatex
	}
	return model.FormatMermaid
}
