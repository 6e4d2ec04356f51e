package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/config"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/db"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/events"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("outbox-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running outbox worker in env=%s interval=%s batch=%d", cfg.Env, cfg.WorkerInterval, cfg.WorkerBatchSize)

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

	store := events.NewOutboxStore(pgPool)
	deliverer := events.NewDeliverer(store, events.LogHandler{}, cfg.WorkerBatchSize, cfg.WorkerInterval)

	// Drain whatever accumulated while the worker was down, then tick.
	deliverer.DeliverOnce(rootCtx)
	deliverer.Run(rootCtx)

	log.Println("shutdown signal received, outbox worker stopped")
}
