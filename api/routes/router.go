package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastsns/sns-backend/api/controllers"
	"github.com/fastsns/sns-backend/api/middleware"
	"github.com/fastsns/sns-backend/internal/alarms"
	"github.com/fastsns/sns-backend/pkg/config"
	"github.com/fastsns/sns-backend/pkg/logger"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	AlarmService  alarms.Service
	AlarmProducer *alarms.Producer
	UsersRepo     controllers.UsersStore
	Registry      *prometheus.Registry
	Pingers       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/api/v1/users", controllers.RegisterUser(deps.UsersRepo, cfg.JWT, logg))
	r.Post("/api/v1/auth/login", controllers.LoginUser(deps.UsersRepo, cfg.JWT, logg))

	r.Route("/api/v1/alarms", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/", controllers.AlarmList(deps.AlarmService, logg))
		r.Get("/subscribe", controllers.AlarmSubscribe(deps.AlarmService, cfg.Alarm, logg))
	})

	if !cfg.App.IsProd() {
		r.Route("/api-dev/v1", func(r chi.Router) {
			r.Get("/notification", controllers.DevSendAlarm(deps.AlarmService, logg))
			r.Get("/send", controllers.DevRaiseAlarm(deps.AlarmProducer, logg))
		})
	}

	return r
}
