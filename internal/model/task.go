package model

import "time"

// Task status constants.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Render format constants.
const (
	FormatMermaid = "mermaid"
	FormatLatex   = "latex"
	FormatAuto    = "auto"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Done and error are terminal: they have no outgoing edges, which is what keeps
// settled registry entries immutable.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusError:   true,
	},
	StatusRunning: {
		StatusDone:  true,
		StatusError: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether a status is terminal.
func Terminal(status string) bool {
	return status == StatusDone || status == StatusError
}

// Task represents one submitted rendering request and its lifecycle state.
type Task struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Format     string     `json:"format"`
	Input      string     `json:"input"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	Renderer   *int       `json:"renderer,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
