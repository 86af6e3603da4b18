// Package session exposes the identity the sync engine pushes records for.
package session

import (
	"context"
	"sync"
)

// Provider returns the authenticated owner id, if any.
type Provider interface {
	Owner(ctx context.Context) (string, bool)
}

// Static is a Provider holding an owner id set by configuration or login.
type Static struct {
	mu    sync.RWMutex
	owner string
}

// NewStatic creates a provider. An empty owner means signed out.
func NewStatic(owner string) *Static {
	return &Static{owner: owner}
}

// Owner returns the current owner.
func (s *Static) Owner(context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, s.owner != ""
}

// SignIn sets the owner.
func (s *Static) SignIn(owner string) {
	s.mu.Lock()
	s.owner = owner
	s.mu.Unlock()
}

// SignOut clears the owner.
func (s *Static) SignOut() {
	s.SignIn("")
}
