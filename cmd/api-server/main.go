package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-scheduling/internal/api"
	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/config"
	"github.com/clinicops/clinic-scheduling/internal/db"
	"github.com/clinicops/clinic-scheduling/internal/events"
	"github.com/clinicops/clinic-scheduling/internal/logging"
	"github.com/clinicops/clinic-scheduling/internal/queue"
	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
	"github.com/clinicops/clinic-scheduling/internal/room"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("api-server", "dev")
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init("api-server", cfg.Env)

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	bus := events.NewBus(events.NewPgRecorder(pgPool), rdb, cfg.EventChannel)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	apptRepo := appointment.NewPgRepository(pgPool)
	roomRepo := room.NewPgRepository(pgPool)
	queueRepo := queue.NewPgRepository(pgPool)

	allocator := room.NewAllocator(roomRepo)
	apptSvc := appointment.NewService(apptRepo, allocator, bus)
	bookingSvc := appointment.NewBookingService(apptRepo, locker, bus)
	queueMgr := queue.NewManager(queueRepo, apptSvc, bus, cfg.DefaultWaitMins)

	router := api.NewRouter(api.RouterConfig{
		Bookings:     bookingSvc,
		Appointments: apptSvc,
		Queues:       queueMgr,
		Rooms:        allocator,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	log.Info().Msg("api-server stopped")
}
