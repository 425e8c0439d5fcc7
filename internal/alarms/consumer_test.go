package alarms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/enums"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/outbox"
	"github.com/fastsns/sns-backend/pkg/outbox/idempotency"
	"github.com/fastsns/sns-backend/pkg/outbox/payloads"
)

type fakeIdempotencyStore struct {
	keys   map[string]bool
	setErr error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sns:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

type recordingDispatcher struct {
	notified []Notification
	users    []uuid.UUID
	err      error
}

func (r *recordingDispatcher) Notify(_ context.Context, userID uuid.UUID, notification Notification) error {
	r.users = append(r.users, userID)
	r.notified = append(r.notified, notification)
	return r.err
}

type consumerHarness struct {
	consumer   *Consumer
	repo       Repository
	users      *fakeReceiverChecker
	store      *fakeIdempotencyStore
	dispatcher *recordingDispatcher
}

func newConsumerHarness(t *testing.T) *consumerHarness {
	t.Helper()
	repo := newTestRepo(t)
	store := newFakeIdempotencyStore()
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	users := &fakeReceiverChecker{exists: true}
	dispatcher := &recordingDispatcher{}
	consumer := &Consumer{
		repo:        repo,
		users:       users,
		idempotency: manager,
		dispatcher:  dispatcher,
		logg:        logger.NewNop(),
	}
	return &consumerHarness{
		consumer:   consumer,
		repo:       repo,
		users:      users,
		store:      store,
		dispatcher: dispatcher,
	}
}

func alarmMessage(t *testing.T, eventID uuid.UUID, payload payloads.AlarmRaisedEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       raw,
		Attributes: map[string]string{"event_type": string(enums.EventAlarmRaised)},
	}
}

func TestConsumerProcessPersistsAndNotifies(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()

	eventID := uuid.New()
	receiverID := uuid.New()
	payload := payloads.AlarmRaisedEvent{
		Type:       enums.AlarmNewCommentOnPost,
		Args:       AlarmArgs{FromUserID: uuid.New(), TargetID: uuid.New()},
		ReceiverID: receiverID,
	}

	result := h.consumer.process(ctx, alarmMessage(t, eventID, payload))
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}

	alarm, err := h.repo.FindByEventID(ctx, eventID)
	if err != nil {
		t.Fatalf("expected persisted alarm: %v", err)
	}
	if alarm.UserID != receiverID {
		t.Fatalf("alarm persisted for wrong user")
	}

	if len(h.dispatcher.notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(h.dispatcher.notified))
	}
	got := h.dispatcher.notified[0]
	if got.Type != enums.AlarmNewCommentOnPost || got.Text != "new comment!" {
		t.Fatalf("notification fields not preserved: %+v", got)
	}
	if got.Args != payload.Args {
		t.Fatalf("args not preserved")
	}
	if h.dispatcher.users[0] != receiverID {
		t.Fatalf("notified wrong user")
	}
}

func TestConsumerProcessDuplicateEvent(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()

	eventID := uuid.New()
	payload := payloads.AlarmRaisedEvent{
		Type:       enums.AlarmNewFollow,
		ReceiverID: uuid.New(),
	}

	first := h.consumer.process(ctx, alarmMessage(t, eventID, payload))
	if !first.ack {
		t.Fatalf("expected first delivery acked")
	}
	second := h.consumer.process(ctx, alarmMessage(t, eventID, payload))
	if !second.ack {
		t.Fatalf("expected duplicate acked")
	}

	if len(h.dispatcher.notified) != 1 {
		t.Fatalf("duplicate must not notify again, got %d", len(h.dispatcher.notified))
	}
}

func TestConsumerProcessSkipsForeignEvent(t *testing.T) {
	h := newConsumerHarness(t)

	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte(`{}`),
		Attributes: map[string]string{"event_type": "user_created"},
	}
	result := h.consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected foreign event acked")
	}
	if len(h.dispatcher.notified) != 0 {
		t.Fatalf("foreign event must not notify")
	}
}

func TestConsumerProcessMalformedEnvelope(t *testing.T) {
	h := newConsumerHarness(t)

	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte(`not json`),
		Attributes: map[string]string{"event_type": string(enums.EventAlarmRaised)},
	}
	result := h.consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("malformed envelope should ack, not redeliver forever")
	}
}

func TestConsumerProcessUnknownReceiverDropped(t *testing.T) {
	h := newConsumerHarness(t)
	h.users.exists = false
	ctx := context.Background()

	eventID := uuid.New()
	payload := payloads.AlarmRaisedEvent{Type: enums.AlarmNewFollow, ReceiverID: uuid.New()}
	result := h.consumer.process(ctx, alarmMessage(t, eventID, payload))
	if !result.ack || result.nack {
		t.Fatalf("alarm for a deleted receiver must be acked and dropped, got %+v", result)
	}

	if _, err := h.repo.FindByEventID(ctx, eventID); err == nil {
		t.Fatalf("no alarm row may be persisted for an unknown receiver")
	}
	if len(h.dispatcher.notified) != 0 {
		t.Fatalf("unknown receiver must not be notified")
	}
}

func TestConsumerProcessReceiverLookupFailureNacks(t *testing.T) {
	h := newConsumerHarness(t)
	h.users.err = errors.New("db down")

	payload := payloads.AlarmRaisedEvent{Type: enums.AlarmNewFollow, ReceiverID: uuid.New()}
	result := h.consumer.process(context.Background(), alarmMessage(t, uuid.New(), payload))
	if !result.nack {
		t.Fatalf("expected nack when the receiver lookup fails")
	}
	if len(h.store.keys) != 0 {
		t.Fatalf("idempotency mark must be released so redelivery can retry")
	}
}

func TestConsumerProcessIdempotencyFailureNacks(t *testing.T) {
	h := newConsumerHarness(t)
	h.store.setErr = errors.New("redis down")

	payload := payloads.AlarmRaisedEvent{Type: enums.AlarmNewFollow, ReceiverID: uuid.New()}
	result := h.consumer.process(context.Background(), alarmMessage(t, uuid.New(), payload))
	if !result.nack {
		t.Fatalf("expected nack when idempotency store is down")
	}
}

func TestConsumerProcessDeliveryFailureStillAcks(t *testing.T) {
	h := newConsumerHarness(t)
	h.dispatcher.err = errors.New("dead connection")
	ctx := context.Background()

	eventID := uuid.New()
	payload := payloads.AlarmRaisedEvent{Type: enums.AlarmNewLikeOnPost, ReceiverID: uuid.New()}
	result := h.consumer.process(ctx, alarmMessage(t, eventID, payload))
	if !result.ack {
		t.Fatalf("persisted alarm with failed push must still ack")
	}

	if _, err := h.repo.FindByEventID(ctx, eventID); err != nil {
		t.Fatalf("expected alarm persisted despite push failure: %v", err)
	}
}

func TestConsumerProcessPreservesPerUserOrder(t *testing.T) {
	h := newConsumerHarness(t)
	ctx := context.Background()
	receiverID := uuid.New()

	firstEvent := uuid.New()
	secondEvent := uuid.New()
	h.consumer.process(ctx, alarmMessage(t, firstEvent, payloads.AlarmRaisedEvent{Type: enums.AlarmNewFollow, ReceiverID: receiverID}))
	h.consumer.process(ctx, alarmMessage(t, secondEvent, payloads.AlarmRaisedEvent{Type: enums.AlarmNewLikeOnPost, ReceiverID: receiverID}))

	if len(h.dispatcher.notified) != 2 {
		t.Fatalf("expected two notifications, got %d", len(h.dispatcher.notified))
	}
	if h.dispatcher.notified[0].Type != enums.AlarmNewFollow || h.dispatcher.notified[1].Type != enums.AlarmNewLikeOnPost {
		t.Fatalf("notifications delivered out of order")
	}
}
