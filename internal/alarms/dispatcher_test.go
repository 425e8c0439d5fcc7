package alarms

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/enums"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
)

func newTestDispatcher(t *testing.T, registry *Registry) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(registry, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return dispatcher
}

func TestDispatcherNotifyWithoutConnectionIsNoop(t *testing.T) {
	registry := NewRegistry()
	dispatcher := newTestDispatcher(t, registry)

	err := dispatcher.Notify(context.Background(), uuid.New(), Notification{ID: uuid.New()})
	if err != nil {
		t.Fatalf("expected no-op for disconnected user, got %v", err)
	}
}

func TestDispatcherNotifyDelivers(t *testing.T) {
	registry := NewRegistry()
	dispatcher := newTestDispatcher(t, registry)

	userID := uuid.New()
	var buf bytes.Buffer
	conn, err := NewConnection(userID, &buf)
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	registry.Add(conn)

	notification := Notification{
		ID:   uuid.New(),
		Type: enums.AlarmNewLikeOnPost,
		Text: enums.AlarmNewLikeOnPost.Text(),
	}
	if err := dispatcher.Notify(context.Background(), userID, notification); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(buf.String(), "new like!") {
		t.Fatalf("expected frame written, got %q", buf.String())
	}
}

func TestDispatcherNotifyFailureEvicts(t *testing.T) {
	registry := NewRegistry()
	dispatcher := newTestDispatcher(t, registry)

	userID := uuid.New()
	conn, err := NewConnection(userID, failingWriter{})
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	registry.Add(conn)

	err = dispatcher.Notify(context.Background(), userID, Notification{ID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotificationDelivery) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if registry.Get(userID) != nil {
		t.Fatalf("expected dead connection evicted")
	}

	// user is now disconnected; the next notify is a clean no-op
	if err := dispatcher.Notify(context.Background(), userID, Notification{ID: uuid.New()}); err != nil {
		t.Fatalf("expected no-op after eviction, got %v", err)
	}
}

func TestDispatcherNotifyValidatesUser(t *testing.T) {
	dispatcher := newTestDispatcher(t, NewRegistry())
	err := dispatcher.Notify(context.Background(), uuid.Nil, Notification{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
