package alarms

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/pagination"
)

// Repository exposes persistence helpers for alarm history rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alarm *models.Alarm) error
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.Alarm, error)
	List(ctx context.Context, params listAlarmsParams) ([]models.Alarm, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an alarms repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listAlarmsParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, alarm *models.Alarm) error {
	if alarm.ID == uuid.Nil {
		alarm.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(alarm).Error
}

func (r *repositoryImpl) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.Alarm, error) {
	var alarm models.Alarm
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&alarm).Error
	if err != nil {
		return nil, err
	}
	return &alarm, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listAlarmsParams) ([]models.Alarm, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Alarm{}).Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var alarms []models.Alarm
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&alarms).Error; err != nil {
		return nil, nil, err
	}

	if len(alarms) > normalized {
		alarms = alarms[:normalized]
		last := alarms[len(alarms)-1]
		return alarms, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return alarms, nil, nil
}
