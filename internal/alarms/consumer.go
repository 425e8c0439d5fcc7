package alarms

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/db"
	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/enums"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/metrics"
	"github.com/fastsns/sns-backend/pkg/outbox"
	"github.com/fastsns/sns-backend/pkg/outbox/idempotency"
	"github.com/fastsns/sns-backend/pkg/outbox/payloads"
)

const alarmConsumerName = "alarm-worker"

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notification Notification) error
}

// Consumer drains alarm events from the subscription, persists the durable
// alarm row, and pushes a live notification when the receiver is connected.
type Consumer struct {
	repo         Repository
	users        receiverChecker
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	dispatcher   notifier
	metrics      *metrics.AlarmMetrics
	logg         *logger.Logger
}

// NewConsumer builds the alarm consumer.
func NewConsumer(repo Repository, users receiverChecker, subscription *pubsub.Subscriber, manager *idempotency.Manager, dispatcher notifier, m *metrics.AlarmMetrics, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("alarms repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("alarm subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		users:        users,
		subscription: subscription,
		idempotency:  manager,
		dispatcher:   dispatcher,
		metrics:      m,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventAlarmRaised) {
		c.logg.Info(logCtx, "skipping non-alarm event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		c.metrics.IncConsumed("malformed")
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		c.metrics.IncConsumed("malformed")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, alarmConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		c.metrics.IncConsumed("duplicate")
		return processResult{ack: true}
	}

	var payload payloads.AlarmRaisedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, alarmConsumerName, eventID)
		return processResult{nack: true}
	}
	if !payload.Type.IsValid() || payload.ReceiverID == uuid.Nil {
		c.logg.Info(logCtx, "dropping invalid alarm payload")
		c.metrics.IncConsumed("malformed")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithAlarmType(logCtx, string(payload.Type))
	logCtx = c.logg.WithUserID(logCtx, payload.ReceiverID.String())

	exists, err := c.users.Exists(ctx, payload.ReceiverID)
	if err != nil {
		c.logg.Error(logCtx, "receiver lookup failed", err)
		_ = c.idempotency.Delete(ctx, alarmConsumerName, eventID)
		return processResult{nack: true}
	}
	if !exists {
		// a deleted receiver drops the event; redelivery cannot make the
		// user reappear
		c.logg.Info(logCtx, "dropping alarm for unknown receiver")
		c.metrics.IncConsumed("unknown_receiver")
		return processResult{ack: true}
	}

	alarm, err := c.persist(ctx, eventID, payload)
	if err != nil {
		if db.IsUniqueViolation(err, "event_id") {
			// another replica won the insert; keep the processed mark
			c.logg.Info(logCtx, "alarm already persisted for event")
			c.metrics.IncConsumed("duplicate")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to persist alarm", err)
		_ = c.idempotency.Delete(ctx, alarmConsumerName, eventID)
		return processResult{nack: true}
	}

	c.metrics.IncConsumed("processed")

	// live push is best-effort; the durable row is already committed and a
	// failed send evicts the dead connection
	notification := Notification{
		ID:        alarm.ID,
		Type:      payload.Type,
		Text:      payload.Type.Text(),
		Args:      payload.Args,
		CreatedAt: alarm.CreatedAt,
	}
	if err := c.dispatcher.Notify(ctx, payload.ReceiverID, notification); err != nil {
		c.logg.Warn(logCtx, "live delivery failed")
	}

	return processResult{ack: true}
}

func (c *Consumer) persist(ctx context.Context, eventID uuid.UUID, payload payloads.AlarmRaisedEvent) (*models.Alarm, error) {
	args, err := json.Marshal(payload.Args)
	if err != nil {
		return nil, err
	}
	alarm := &models.Alarm{
		ID:      uuid.New(),
		UserID:  payload.ReceiverID,
		Type:    payload.Type,
		Args:    args,
		EventID: &eventID,
	}
	if err := c.repo.Create(ctx, alarm); err != nil {
		return nil, err
	}
	return alarm, nil
}
