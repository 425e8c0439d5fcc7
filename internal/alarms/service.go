package alarms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/enums"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/metrics"
	"github.com/fastsns/sns-backend/pkg/pagination"
)

// Service exposes the alarm operations the API serves: opening a live
// stream, sending an alarm synchronously, and listing history.
type Service interface {
	OpenConnection(ctx context.Context, userID uuid.UUID, w io.Writer) (*Connection, error)
	CloseConnection(ctx context.Context, conn *Connection, reason string)
	Send(ctx context.Context, alarmType enums.AlarmType, args AlarmArgs, receiverID uuid.UUID) (*Notification, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo       Repository
	users      receiverChecker
	registry   *Registry
	dispatcher notifier
	metrics    *metrics.AlarmMetrics
	logg       *logger.Logger
}

// ListParams configures pagination for the alarm history.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []Notification `json:"items"`
	Cursor string         `json:"cursor"`
}

// NewService wires alarm dependencies.
func NewService(repo Repository, users receiverChecker, registry *Registry, dispatcher notifier, m *metrics.AlarmMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alarms repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "connection registry required")
	}
	if dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatcher required")
	}
	return &service{
		repo:       repo,
		users:      users,
		registry:   registry,
		dispatcher: dispatcher,
		metrics:    m,
		logg:       logg,
	}, nil
}

// OpenConnection registers a live stream for the user and confirms it with
// the handshake frame. A previous connection for the same user is replaced
// and closed. A failed handshake unregisters the connection so a stream the
// client never saw confirmed cannot linger.
func (s *service) OpenConnection(ctx context.Context, userID uuid.UUID, w io.Writer) (*Connection, error) {
	conn, err := NewConnection(userID, w)
	if err != nil {
		return nil, err
	}

	if previous := s.registry.Add(conn); previous != nil {
		previous.Close()
		s.metrics.IncEviction("replaced")
		s.metrics.ConnectionClosed()
		if s.logg != nil {
			logCtx := s.logg.WithUserID(ctx, userID.String())
			s.logg.Info(logCtx, "previous connection replaced")
		}
	}

	if err := conn.SendHandshake(); err != nil {
		conn.Close()
		s.registry.Remove(conn)
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotificationConnect, err, "complete handshake")
	}

	s.metrics.ConnectionOpened()
	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, userID.String())
		s.logg.Info(logCtx, "connection opened")
	}
	return conn, nil
}

// CloseConnection tears the stream down if it is still the registered one.
func (s *service) CloseConnection(ctx context.Context, conn *Connection, reason string) {
	if conn == nil {
		return
	}
	conn.Close()
	if s.registry.Remove(conn) {
		s.metrics.IncEviction(reason)
		s.metrics.ConnectionClosed()
		if s.logg != nil {
			logCtx := s.logg.WithUserID(ctx, conn.UserID().String())
			s.logg.Info(logCtx, "connection closed: "+reason)
		}
	}
}

// Send resolves the receiver, persists the alarm, and pushes it to the
// receiver's live connection in one call, bypassing the broker. An unknown
// receiver fails before any row is written. The persisted row is durable
// before any push attempt; a push failure evicts the dead connection but the
// send still succeeds.
func (s *service) Send(ctx context.Context, alarmType enums.AlarmType, args AlarmArgs, receiverID uuid.UUID) (*Notification, error) {
	if !alarmType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid alarm type")
	}
	if receiverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver id required")
	}

	exists, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check receiver")
		}
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receiver not found")
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode alarm args")
	}

	alarm := &models.Alarm{
		ID:     uuid.New(),
		UserID: receiverID,
		Type:   alarmType,
		Args:   rawArgs,
	}
	if err := s.repo.Create(ctx, alarm); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist alarm")
	}

	notification := toNotification(*alarm, args)
	if err := s.dispatcher.Notify(ctx, receiverID, notification); err != nil && s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, receiverID.String())
		s.logg.Warn(logCtx, "live delivery failed")
	}
	return &notification, nil
}

// List returns a page of the user's alarm history, newest first.
func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listAlarmsParams{
		UserID: params.UserID,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alarms")
	}

	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		var args AlarmArgs
		if len(row.Args) > 0 {
			_ = json.Unmarshal(row.Args, &args)
		}
		items = append(items, toNotification(row, args))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{Items: items, Cursor: cursor}, nil
}

func toNotification(alarm models.Alarm, args AlarmArgs) Notification {
	createdAt := alarm.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return Notification{
		ID:        alarm.ID,
		Type:      alarm.Type,
		Text:      alarm.Type.Text(),
		Args:      args,
		CreatedAt: createdAt,
	}
}
