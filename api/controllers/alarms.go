package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/api/middleware"
	"github.com/fastsns/sns-backend/api/responses"
	"github.com/fastsns/sns-backend/api/validators"
	"github.com/fastsns/sns-backend/internal/alarms"
	"github.com/fastsns/sns-backend/pkg/config"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
)

const (
	alarmListMaxLimit     = 100
	alarmListDefaultLimit = 20
)

// AlarmSubscribe opens the live SSE stream for the authenticated user. The
// handler blocks until the client disconnects, the idle timeout elapses, or
// the connection is closed server-side (a replacement login, a failed write).
func AlarmSubscribe(svc alarms.Service, alarmCfg config.AlarmConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, ok := w.(http.Flusher); !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ctx := logg.WithUserID(r.Context(), userID.String())
		conn, err := svc.OpenConnection(ctx, userID, w)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		idle := time.NewTimer(alarmCfg.ConnectionTimeout)
		defer idle.Stop()

		select {
		case <-ctx.Done():
			svc.CloseConnection(ctx, conn, "client_disconnect")
		case <-idle.C:
			svc.CloseConnection(ctx, conn, "idle_timeout")
		case <-conn.Done():
			// Already closed by a replacement or a failed write.
		}
	}
}

// AlarmList returns the user's alarm history, newest first, cursor paginated.
func AlarmList(svc alarms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", alarmListDefaultLimit, 1, alarmListMaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := alarms.ListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func authenticatedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
