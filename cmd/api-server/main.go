package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/api"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/config"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/db"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/events"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/observability/metrics"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/payment"
	redisclient "github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/redis"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/review"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	outbox := events.NewOutboxStore(pgPool)
	locker := redisclient.NewCalendarLocker(rdb, cfg.LockTTL, cfg.LockWait)

	calendar := schedule.NewService(schedule.NewPgRepository(pgPool))
	scheduler := appointment.NewService(appointment.NewPgRepository(pgPool), calendar, locker, outbox, m, cfg.ConsultDuration)
	ledger := payment.NewService(payment.NewPgRepository(pgPool), scheduler, outbox, m)
	reviews := review.NewService(review.NewPgRepository(pgPool), scheduler, outbox, m)

	router := api.NewRouter(api.RouterConfig{
		Calendar:  calendar,
		Scheduler: scheduler,
		Ledger:    ledger,
		Reviews:   reviews,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
