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

func newTestService(t *testing.T, registry *Registry) Service {
	t.Helper()
	return newTestServiceWithUsers(t, registry, &fakeReceiverChecker{exists: true})
}

func newTestServiceWithUsers(t *testing.T, registry *Registry, users receiverChecker) Service {
	t.Helper()
	dispatcher := newTestDispatcher(t, registry)
	svc, err := NewService(newTestRepo(t), users, registry, dispatcher, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceOpenConnectionHandshake(t *testing.T) {
	registry := NewRegistry()
	svc := newTestService(t, registry)

	userID := uuid.New()
	var buf bytes.Buffer
	conn, err := svc.OpenConnection(context.Background(), userID, &buf)
	if err != nil {
		t.Fatalf("OpenConnection: %v", err)
	}

	if registry.Get(userID) != conn {
		t.Fatalf("expected connection registered")
	}
	if !strings.Contains(buf.String(), "data: connect completed\n") {
		t.Fatalf("expected handshake written, got %q", buf.String())
	}
}

func TestServiceOpenConnectionReplacesPrevious(t *testing.T) {
	registry := NewRegistry()
	svc := newTestService(t, registry)
	ctx := context.Background()

	userID := uuid.New()
	first, err := svc.OpenConnection(ctx, userID, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open first connection: %v", err)
	}

	second, err := svc.OpenConnection(ctx, userID, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open second connection: %v", err)
	}

	if registry.Get(userID) != second {
		t.Fatalf("expected second connection registered")
	}
	select {
	case <-first.Done():
	default:
		t.Fatalf("expected replaced connection closed")
	}
}

func TestServiceOpenConnectionHandshakeFailure(t *testing.T) {
	registry := NewRegistry()
	svc := newTestService(t, registry)

	userID := uuid.New()
	_, err := svc.OpenConnection(context.Background(), userID, failingWriter{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotificationConnect) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if registry.Get(userID) != nil {
		t.Fatalf("expected failed connection unregistered")
	}
}

func TestServiceCloseConnectionIdentityGuard(t *testing.T) {
	registry := NewRegistry()
	svc := newTestService(t, registry)
	ctx := context.Background()

	userID := uuid.New()
	stale, err := svc.OpenConnection(ctx, userID, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open stale connection: %v", err)
	}
	current, err := svc.OpenConnection(ctx, userID, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open current connection: %v", err)
	}

	svc.CloseConnection(ctx, stale, "client_gone")
	if registry.Get(userID) != current {
		t.Fatalf("closing a stale connection must not evict the current one")
	}

	svc.CloseConnection(ctx, current, "client_gone")
	if registry.Get(userID) != nil {
		t.Fatalf("expected current connection removed")
	}
}

func TestServiceSendPersistsAndPushes(t *testing.T) {
	registry := NewRegistry()
	svc := newTestService(t, registry)
	ctx := context.Background()

	receiverID := uuid.New()
	var buf bytes.Buffer
	if _, err := svc.OpenConnection(ctx, receiverID, &buf); err != nil {
		t.Fatalf("OpenConnection: %v", err)
	}
	buf.Reset()

	args := AlarmArgs{FromUserID: uuid.New(), TargetID: uuid.New()}
	notification, err := svc.Send(ctx, enums.AlarmNewFollow, args, receiverID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if notification.Text != "new follower!" {
		t.Fatalf("unexpected text %q", notification.Text)
	}
	if notification.Args != args {
		t.Fatalf("args not preserved")
	}
	if !strings.Contains(buf.String(), notification.ID.String()) {
		t.Fatalf("expected live push frame, got %q", buf.String())
	}

	result, err := svc.List(ctx, ListParams{UserID: receiverID, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one history row, got %d", len(result.Items))
	}
	if result.Items[0].ID != notification.ID {
		t.Fatalf("history row mismatch")
	}
}

func TestServiceSendWithoutConnectionStillPersists(t *testing.T) {
	svc := newTestService(t, NewRegistry())
	ctx := context.Background()

	receiverID := uuid.New()
	notification, err := svc.Send(ctx, enums.AlarmNewLikeOnPost, AlarmArgs{}, receiverID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	result, err := svc.List(ctx, ListParams{UserID: receiverID, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != notification.ID {
		t.Fatalf("expected persisted alarm without live connection")
	}
}

func TestServiceSendUnknownReceiver(t *testing.T) {
	svc := newTestServiceWithUsers(t, NewRegistry(), &fakeReceiverChecker{exists: false})
	ctx := context.Background()

	receiverID := uuid.New()
	_, err := svc.Send(ctx, enums.AlarmNewFollow, AlarmArgs{}, receiverID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	result, err := svc.List(ctx, ListParams{UserID: receiverID, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("no alarm row may be created for an unknown receiver, got %d", len(result.Items))
	}
}

func TestServiceSendValidation(t *testing.T) {
	svc := newTestService(t, NewRegistry())
	ctx := context.Background()

	if _, err := svc.Send(ctx, enums.AlarmType("bogus"), AlarmArgs{}, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
	if _, err := svc.Send(ctx, enums.AlarmNewFollow, AlarmArgs{}, uuid.Nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil receiver, got %v", err)
	}
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, NewRegistry())

	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 10, Cursor: "not-a-cursor"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
