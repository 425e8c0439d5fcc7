package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/fastsns/sns-backend/api/responses"
	"github.com/fastsns/sns-backend/pkg/config"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is any backing dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SNS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every registered dependency and reports not-ready on the
// first failure. Nil pingers are skipped so binaries can wire only what they
// actually hold.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SNS-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(logg.WithField(ctx, "dependency", name), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
