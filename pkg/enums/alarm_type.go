package enums

import "fmt"

// AlarmType maps to the alarm_type enum in Postgres. The set is closed; each
// kind carries the display template rendered into live notifications.
type AlarmType string

const (
	AlarmNewLikeOnPost    AlarmType = "NEW_LIKE_ON_POST"
	AlarmNewCommentOnPost AlarmType = "NEW_COMMENT_ON_POST"
	AlarmNewFollow        AlarmType = "NEW_FOLLOW"
)

var validAlarmTypes = []AlarmType{
	AlarmNewLikeOnPost,
	AlarmNewCommentOnPost,
	AlarmNewFollow,
}

var alarmTexts = map[AlarmType]string{
	AlarmNewLikeOnPost:    "new like!",
	AlarmNewCommentOnPost: "new comment!",
	AlarmNewFollow:        "new follower!",
}

// IsValid reports whether the value matches the canonical alarm_type enum.
func (a AlarmType) IsValid() bool {
	for _, candidate := range validAlarmTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// Text returns the display text pushed to clients for this alarm kind.
func (a AlarmType) Text() string {
	if text, ok := alarmTexts[a]; ok {
		return text
	}
	return string(a)
}

// ParseAlarmType converts raw input into AlarmType.
func ParseAlarmType(value string) (AlarmType, error) {
	for _, candidate := range validAlarmTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alarm type %q", value)
}
