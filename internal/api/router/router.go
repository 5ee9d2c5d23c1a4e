package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slotline/booking-platform/internal/appointments"
	"github.com/slotline/booking-platform/internal/availability"
	"github.com/slotline/booking-platform/internal/calcom"
	"github.com/slotline/booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	BookingHandler      *appointments.Handler
	CalWebhook          *calcom.WebhookHandler
	MetricsHandler      http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "status": "healthy"})
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.CalWebhook != nil {
		r.Post("/webhooks/calcom", cfg.CalWebhook.HandleInbound)
	}

	if cfg.AvailabilityHandler != nil {
		r.Get("/availability/slots", cfg.AvailabilityHandler.GetSlots)
	}

	if cfg.BookingHandler != nil {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", cfg.BookingHandler.Create)
			r.Get("/{uid}", cfg.BookingHandler.Get)
			r.Post("/{uid}/cancel", cfg.BookingHandler.Cancel)
			r.Post("/{uid}/reschedule", cfg.BookingHandler.Reschedule)
		})
	}

	return r
}
