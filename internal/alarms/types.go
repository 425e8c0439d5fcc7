package alarms

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/enums"
	"github.com/fastsns/sns-backend/pkg/outbox/payloads"
)

// AlarmArgs is the shared argument shape carried by every alarm kind.
type AlarmArgs = payloads.AlarmArgs

// Notification is the payload pushed to a live connection and returned from
// the alarm history listing.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	Type      enums.AlarmType `json:"type"`
	Text      string          `json:"text"`
	Args      AlarmArgs       `json:"args"`
	CreatedAt time.Time       `json:"created_at"`
}
