package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/api/responses"
	"github.com/fastsns/sns-backend/internal/alarms"
	"github.com/fastsns/sns-backend/pkg/enums"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
)

// DevSendAlarm triggers the synchronous path: persist the record and push it
// to the receiver's live connection, skipping the broker entirely.
func DevSendAlarm(svc alarms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alarmType, args, receiverID, err := devAlarmParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		notification, err := svc.Send(r.Context(), alarmType, args, receiverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, notification)
	}
}

// DevRaiseAlarm triggers the full production path: outbox write, relay,
// broker, consumer, dispatch.
func DevRaiseAlarm(producer *alarms.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alarmType, args, receiverID, err := devAlarmParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := producer.Raise(r.Context(), alarmType, args, receiverID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "raised"})
	}
}

func devAlarmParams(r *http.Request) (enums.AlarmType, alarms.AlarmArgs, uuid.UUID, error) {
	query := r.URL.Query()

	alarmType, err := enums.ParseAlarmType(strings.TrimSpace(query.Get("type")))
	if err != nil {
		return "", alarms.AlarmArgs{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid alarm type")
	}

	receiverID, err := uuid.Parse(strings.TrimSpace(query.Get("receiverId")))
	if err != nil {
		return "", alarms.AlarmArgs{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receiverId")
	}

	fromUserID, err := uuid.Parse(strings.TrimSpace(query.Get("fromUserId")))
	if err != nil {
		return "", alarms.AlarmArgs{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fromUserId")
	}

	targetID, err := uuid.Parse(strings.TrimSpace(query.Get("targetId")))
	if err != nil {
		return "", alarms.AlarmArgs{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid targetId")
	}

	return alarmType, alarms.AlarmArgs{FromUserID: fromUserID, TargetID: targetID}, receiverID, nil
}
