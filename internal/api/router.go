package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-booking-engine/internal/appointment"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	Dependencies []Dependency
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger
	Env          string
	Version      string

	RateLimit rate.Limit
	RateBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Reads
	r.Get("/doctors/{doctorID}/availability", getAvailabilityHandler(cfg.Availability))
	r.Get("/doctors/{doctorID}/sessions", getSessionsHandler(cfg.Appointments))
	r.Get("/doctors/{doctorID}/slots", getFreeSlotsHandler(cfg.Appointments))
	r.Get("/doctors/{doctorID}/appointments", listDoctorAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments", listPatientAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))

	// Writes are rate limited
	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
		}

		r.Put("/doctors/{doctorID}/availability", setAvailabilityHandler(cfg.Availability))
		r.Post("/doctors/{doctorID}/availability/days", upsertDayHandler(cfg.Availability))
		r.Post("/doctors/{doctorID}/availability/breaks", addBreakHandler(cfg.Availability))
		r.Post("/doctors/{doctorID}/availability/blocks", addBlockHandler(cfg.Availability))
		r.Delete("/doctors/{doctorID}/availability/exceptions/{exceptionID}", removeExceptionHandler(cfg.Availability))
		r.Delete("/doctors/{doctorID}/appointments", purgeDayHandler(cfg.Appointments))

		r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Appointments))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
	})

	return r
}
