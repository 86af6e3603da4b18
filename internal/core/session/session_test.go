package session

import (
	"context"
	"testing"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic("")

	if _, ok := s.Owner(ctx); ok {
		t.Error("expected signed out with empty owner")
	}

	s.SignIn("user-1")
	if owner, ok := s.Owner(ctx); !ok || owner != "user-1" {
		t.Errorf("expected user-1, got %q %v", owner, ok)
	}

	s.SignOut()
	if _, ok := s.Owner(ctx); ok {
		t.Error("expected signed out after SignOut")
	}
}
