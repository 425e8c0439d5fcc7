package alarms

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func newTestConnection(t *testing.T, userID uuid.UUID) *Connection {
	t.Helper()
	conn, err := NewConnection(userID, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	return conn
}

func TestRegistryAddAndGet(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	conn := newTestConnection(t, userID)

	if previous := registry.Add(conn); previous != nil {
		t.Fatalf("expected no previous connection")
	}
	if got := registry.Get(userID); got != conn {
		t.Fatalf("expected registered connection")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one connection, got %d", registry.Len())
	}
}

func TestRegistryGetMissingUser(t *testing.T) {
	registry := NewRegistry()
	if got := registry.Get(uuid.New()); got != nil {
		t.Fatalf("expected nil for unknown user")
	}
}

func TestRegistryReplaceReturnsPrevious(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	first := newTestConnection(t, userID)
	second := newTestConnection(t, userID)

	registry.Add(first)
	previous := registry.Add(second)
	if previous != first {
		t.Fatalf("expected first connection returned on replace")
	}
	if got := registry.Get(userID); got != second {
		t.Fatalf("expected second connection registered")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one connection after replace, got %d", registry.Len())
	}
}

func TestRegistryRemoveIdentityGuard(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	stale := newTestConnection(t, userID)
	current := newTestConnection(t, userID)

	registry.Add(stale)
	registry.Add(current)

	// removing the replaced connection must not evict the current one
	if registry.Remove(stale) {
		t.Fatalf("expected stale remove to be a no-op")
	}
	if got := registry.Get(userID); got != current {
		t.Fatalf("current connection was evicted by stale remove")
	}

	if !registry.Remove(current) {
		t.Fatalf("expected current connection removed")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistryRemoveNil(t *testing.T) {
	registry := NewRegistry()
	if registry.Remove(nil) {
		t.Fatalf("expected nil remove to be a no-op")
	}
}
