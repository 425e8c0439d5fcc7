package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/enums"
)

// Alarm is the durable notification row shown in a user's alarm history.
// Rows are append-only: the consumer writes one per processed event before any
// live push attempt, and nothing mutates them afterwards.
type Alarm struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.AlarmType `gorm:"column:alarm_type;type:alarm_type;not null"`
	Args      json.RawMessage `gorm:"column:args;type:jsonb;not null"`
	EventID   *uuid.UUID      `gorm:"column:event_id;type:uuid;uniqueIndex:ux_alarms_event_id"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
