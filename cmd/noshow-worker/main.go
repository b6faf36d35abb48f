package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/config"
	"github.com/clinicops/clinic-scheduling/internal/db"
	"github.com/clinicops/clinic-scheduling/internal/events"
	"github.com/clinicops/clinic-scheduling/internal/logging"
	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
)

// The no-show worker periodically writes off appointments whose patients
// never arrived: still scheduled or confirmed well past their start time.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("noshow-worker", "dev")
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init("noshow-worker", cfg.Env)

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Dur("grace", cfg.NoShowGrace).
		Msg("noshow-worker starting up")

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
	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, nil, bus)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.NoShowGrace)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping noshow-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.NoShowGrace)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, grace time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepNoShows(runCtx, grace)
	if err != nil {
		log.Error().Err(err).Msg("no-show sweep")
		return
	}
	log.Info().Int("swept", swept).Dur("took", time.Since(start)).Msg("no-show sweep complete")
}
