package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service      AppointmentService
	Checks       []Check
	Logger       *zap.Logger
	Env          string
	Version      string
	CORSOrigins  []string
	RateLimitRPS int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, log: log}

	r.Get("/availability", h.availability)
	r.Get("/case-types", h.caseTypes)

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.createAppointment)
		r.Get("/", h.listAppointments)
		r.Post("/link", h.linkAppointments)
		r.Get("/{id}", h.getAppointment)
		r.Post("/{id}/status", h.updateStatus)
	})

	r.Post("/registrations", h.createRegistration)

	// Admin endpoints
	r.Get("/blocked-dates", h.listBlockedDates)
	r.Put("/blocked-dates/{date}", h.putBlockedDate)
	r.Get("/slots/{caseType}", h.getSlots)
	r.Put("/slots/{caseType}", h.putSlots)

	return r
}
