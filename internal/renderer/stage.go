package renderer

import (
	"bytes"
	"sync"
)

// Stage is the staging area for one staged render attempt. The capability
// writes its output into it and signals completion only through its contents,
// so the renderer polls it for the expected marker. A Stage belongs to exactly
// one attempt; once the attempt's settle window expires it is abandoned, and
// any writer that fires late lands in a buffer nothing reads.
type Stage struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewStage creates an empty staging area.
func NewStage() *Stage {
	return &Stage{}
}

// Write appends rendered bytes. Safe for concurrent use with Contents, since
// staged capabilities populate the stage from their own goroutines.
func (s *Stage) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Contents returns a snapshot of everything written so far.
func (s *Stage) Contents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
