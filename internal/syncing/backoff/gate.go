package backoff

import (
	"sync"
	"time"
)

// Gate suppresses every sync attempt until a deadline. The deadline only
// moves forward.
type Gate struct {
	mu    sync.Mutex
	until time.Time
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Raise moves the deadline to t if t is later. Reports whether it moved.
func (g *Gate) Raise(t time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !t.After(g.until) {
		return false
	}
	g.until = t
	return true
}

// Active reports whether now is before the deadline.
func (g *Gate) Active(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Before(g.until)
}

// Until returns the current deadline (zero if never raised).
func (g *Gate) Until() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.until
}
