package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/queue"
	"github.com/clinicops/clinic-scheduling/internal/room"
)

type RouterConfig struct {
	Bookings     *appointment.BookingService
	Appointments *appointment.Service
	Queues       *queue.Manager
	Rooms        *room.Allocator
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Slots
	r.Get("/practitioners/{id}/slots", getSlotsHandler(cfg.Bookings))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Bookings))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/check-in", checkInAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/start", startAppointmentHandler(cfg.Appointments, cfg.Queues))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments, cfg.Queues))
	r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Appointments, cfg.Queues))
	r.Post("/appointments/{id}/admit", admitAppointmentHandler(cfg.Queues))
	r.Get("/appointments/{id}/wait-estimate", waitEstimateHandler(cfg.Queues))

	// Queues
	r.Get("/queues", findQueueHandler(cfg.Queues))
	r.Get("/queues/{id}", getQueueHandler(cfg.Queues))
	r.Post("/queues/{id}/call-next", callNextHandler(cfg.Queues))
	r.Post("/queues/{id}/reorder", reorderQueueHandler(cfg.Queues))
	r.Post("/queues/{id}/entries/{appointmentID}/complete", completeQueueEntryHandler(cfg.Queues))
	r.Post("/walk-ins", admitWalkInHandler(cfg.Queues))

	// Rooms
	r.Get("/rooms", listRoomsHandler(cfg.Rooms))
	r.Get("/rooms/{id}", getRoomHandler(cfg.Rooms))
	r.Post("/rooms/{id}/occupy", occupyRoomHandler(cfg.Rooms))
	r.Post("/rooms/{id}/free", freeRoomHandler(cfg.Rooms))

	return r
}
