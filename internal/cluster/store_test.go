package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/notifyhub/core/internal/apperror"
	"github.com/notifyhub/core/internal/model"
)

func TestLocalStore_ResolvesLookupsToItself(t *testing.T) {
	s := NewLocalStore("srv-1")
	ctx := context.Background()

	servers, err := s.FindUserServers(ctx, "u1")
	if err != nil || len(servers) != 1 || servers[0] != "srv-1" {
		t.Fatalf("expected [srv-1], got %v, %v", servers, err)
	}

	servers, err = s.FindChannelServers(ctx, "news")
	if err != nil || len(servers) != 1 || servers[0] != "srv-1" {
		t.Fatalf("expected [srv-1], got %v, %v", servers, err)
	}
}

func TestLocalStore_MutatorsAreNoOps(t *testing.T) {
	s := NewLocalStore("srv-1")
	ctx := context.Background()

	if err := s.RegisterSession(ctx, model.SessionInfo{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := s.UnregisterSession(ctx, "c1"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if n, err := s.RefreshSessions(ctx); err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d, %v", n, err)
	}
}

func TestLocalStore_CrossServerOperationsReportDisabled(t *testing.T) {
	s := NewLocalStore("srv-1")
	ctx := context.Background()

	if err := s.PublishRoutedMessage(ctx, model.RoutedMessage{}); !errors.Is(err, apperror.ErrBackendDisabled) {
		t.Fatalf("expected ErrBackendDisabled, got %v", err)
	}
	if _, err := s.GetAllSessions(ctx); !errors.Is(err, apperror.ErrBackendDisabled) {
		t.Fatalf("expected ErrBackendDisabled, got %v", err)
	}
}

func TestLocalStore_IdentityMethods(t *testing.T) {
	s := NewLocalStore("srv-1")
	if s.ServerID() != "srv-1" {
		t.Fatalf("expected srv-1, got %s", s.ServerID())
	}
	if s.IsEnabled() {
		t.Fatal("expected local store to report disabled")
	}
	if s.BackendType() != "local" {
		t.Fatalf("expected backend type local, got %s", s.BackendType())
	}
}
