package alarms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/pkg/enums"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/outbox"
	"github.com/fastsns/sns-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type receiverChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Producer raises alarm events through the transactional outbox. The event
// row commits atomically with nothing else to lose it to; the relay forwards
// committed rows to the broker with per-receiver ordering.
type Producer struct {
	db     txRunner
	users  receiverChecker
	outbox eventEmitter
	logg   *logger.Logger
}

// NewProducer wires the alarm producer.
func NewProducer(db txRunner, users receiverChecker, emitter eventEmitter, logg *logger.Logger) (*Producer, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &Producer{db: db, users: users, outbox: emitter, logg: logg}, nil
}

// Raise queues one alarm event for the receiver.
func (p *Producer) Raise(ctx context.Context, alarmType enums.AlarmType, args AlarmArgs, receiverID uuid.UUID) error {
	if !alarmType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid alarm type")
	}
	if receiverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiver id required")
	}

	exists, err := p.users.Exists(ctx, receiverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check receiver")
		}
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "receiver not found")
	}

	event := payloads.AlarmRaisedEvent{
		Type:       alarmType,
		Args:       args,
		ReceiverID: receiverID,
	}

	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAlarmRaised,
			AggregateType: enums.AggregateUser,
			AggregateID:   receiverID,
			OrderingKey:   receiverID.String(),
			Actor:         &outbox.ActorRef{UserID: args.FromUserID.String()},
			Data:          event,
			Version:       1,
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue alarm event")
	}

	if p.logg != nil {
		logCtx := p.logg.WithUserID(ctx, receiverID.String())
		logCtx = p.logg.WithAlarmType(logCtx, string(alarmType))
		p.logg.Info(logCtx, "alarm event queued")
	}
	return nil
}
