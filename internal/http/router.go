package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Reservations  *ReservationHandler
	Seats         *SeatHandler
	FixedSchedule *FixedScheduleHandler
	Classes       *ClassHandler
	Notifications *NotificationHandler
	// Identity guards every route except /healthz.
	Identity IdentityVerifier
	Health   HealthChecker
	Logger   *slog.Logger
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if h := cfg.Reservations; h != nil {
		api.HandleFunc("POST /reservations", h.Create)
		api.HandleFunc("GET /reservations", h.List)
		api.HandleFunc("GET /reservations/{id}", h.Get)
		api.HandleFunc("POST /reservations/{id}/cancel", h.Cancel)
		api.HandleFunc("POST /reservations/{id}/confirm", h.Confirm)
		api.HandleFunc("POST /reservations/{id}/attendance", h.MarkAttendance)
		api.HandleFunc("GET /availability", h.Availability)
	}

	if h := cfg.Seats; h != nil {
		api.HandleFunc("GET /seats", h.List)
		api.HandleFunc("PUT /seats", h.Upsert)
		api.HandleFunc("DELETE /seats/{id}", h.Delete)
		api.HandleFunc("GET /seat-blocks", h.ListBlocks)
		api.HandleFunc("POST /seat-blocks", h.CreateBlock)
		api.HandleFunc("DELETE /seat-blocks/{id}", h.DeleteBlock)
	}

	if h := cfg.FixedSchedule; h != nil {
		api.HandleFunc("GET /fixed-schedule", h.List)
		api.HandleFunc("GET /fixed-schedule/mine", h.ListMine)
		api.HandleFunc("PUT /fixed-schedule", h.Upsert)
		api.HandleFunc("DELETE /fixed-schedule/{id}", h.Delete)
	}

	if h := cfg.Classes; h != nil {
		api.HandleFunc("GET /classes", h.List)
		api.HandleFunc("POST /classes", h.Create)
		api.HandleFunc("GET /classes/mine", h.ListMine)
		api.HandleFunc("GET /classes/{id}", h.Get)
		api.HandleFunc("PUT /classes/{id}", h.Update)
		api.HandleFunc("DELETE /classes/{id}", h.Delete)
	}

	if h := cfg.Notifications; h != nil {
		api.HandleFunc("GET /notifications", h.List)
		api.HandleFunc("POST /notifications/{id}/read", h.MarkRead)
	}

	var guarded http.Handler = api
	if cfg.Identity != nil {
		guarded = RequireIdentity(cfg.Identity, cfg.Logger)(api)
	}

	root := http.NewServeMux()
	root.Handle("GET /healthz", healthHandler(cfg.Health, newResponder(cfg.Logger)))
	root.Handle("/", guarded)

	var handler http.Handler = root
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func healthHandler(checker HealthChecker, responder responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type healthResponse struct {
	Status string `json:"status"`
}
