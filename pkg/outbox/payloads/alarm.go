package payloads

import (
	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/enums"
)

// AlarmArgs carries the entity identifiers an alarm refers to. The shape is
// shared by every alarm kind and stored as-is on the durable record.
type AlarmArgs struct {
	FromUserID uuid.UUID `json:"fromUserId"`
	TargetID   uuid.UUID `json:"targetId"`
}

// AlarmRaisedEvent is the broker message for one notifiable occurrence.
// ReceiverID doubles as the ordering key so one user's alarms are consumed in
// publish order.
type AlarmRaisedEvent struct {
	Type       enums.AlarmType `json:"type"`
	Args       AlarmArgs       `json:"args"`
	ReceiverID uuid.UUID       `json:"receiverId"`
}
