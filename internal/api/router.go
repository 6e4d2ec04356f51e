package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/payment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/review"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

type RouterConfig struct {
	Calendar  *schedule.Service
	Scheduler *appointment.Service
	Ledger    *payment.Service
	Reviews   *review.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Availability calendar
	r.Post("/slots", createSlotHandler(cfg.Calendar))
	r.Delete("/slots/{id}", deactivateSlotHandler(cfg.Calendar))
	r.Get("/professionals/{id}/slots", listSlotsHandler(cfg.Calendar))
	r.Get("/professionals/{id}/rating", ratingSummaryHandler(cfg.Reviews))
	r.Get("/professionals/{id}/reviews", listReviewsHandler(cfg.Reviews))

	// Appointment lifecycle
	r.Post("/appointments", bookAppointmentHandler(cfg.Scheduler))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Scheduler))

	// Payment gateway adapter
	r.Post("/payments", openPaymentHandler(cfg.Ledger))
	r.Get("/payments/{txn}", getPaymentHandler(cfg.Ledger))
	r.Post("/payments/{txn}/approve", approvePaymentHandler(cfg.Ledger))
	r.Post("/payments/{txn}/fail", failPaymentHandler(cfg.Ledger))
	r.Post("/payments/{txn}/refund", refundPaymentHandler(cfg.Ledger))

	// Reviews
	r.Post("/reviews", submitReviewHandler(cfg.Reviews))
	r.Post("/reviews/{id}/approve", approveReviewHandler(cfg.Reviews))
	r.Post("/reviews/{id}/flag", flagReviewHandler(cfg.Reviews))

	return r
}
