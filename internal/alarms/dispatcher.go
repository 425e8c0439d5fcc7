package alarms

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/metrics"
)

// Dispatcher pushes notifications to live connections. A user without a
// connection is a no-op; a connection that fails a send is evicted so the
// next notify does not retry a dead stream.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.AlarmMetrics
	logg     *logger.Logger
}

// NewDispatcher wires the dispatcher against a shared registry.
func NewDispatcher(registry *Registry, m *metrics.AlarmMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "connection registry required")
	}
	return &Dispatcher{registry: registry, metrics: m, logg: logg}, nil
}

// Notify sends the notification to the user's live connection if one exists.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, notification Notification) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	conn := d.registry.Get(userID)
	if conn == nil {
		if d.logg != nil {
			logCtx := d.logg.WithUserID(ctx, userID.String())
			d.logg.Info(logCtx, "no live connection for user")
		}
		return nil
	}

	if err := conn.Send(notification); err != nil {
		d.evict(ctx, conn, "send_failure")
		return pkgerrors.Wrap(pkgerrors.CodeNotificationDelivery, err, "deliver notification")
	}

	d.metrics.IncDelivered(string(notification.Type))
	if d.logg != nil {
		logCtx := d.logg.WithUserID(ctx, userID.String())
		logCtx = d.logg.WithAlarmType(logCtx, string(notification.Type))
		d.logg.Info(logCtx, "notification delivered")
	}
	return nil
}

func (d *Dispatcher) evict(ctx context.Context, conn *Connection, reason string) {
	conn.Close()
	if d.registry.Remove(conn) {
		d.metrics.IncEviction(reason)
		d.metrics.ConnectionClosed()
		if d.logg != nil {
			logCtx := d.logg.WithUserID(ctx, conn.UserID().String())
			d.logg.Warn(logCtx, "connection evicted: "+reason)
		}
	}
}
