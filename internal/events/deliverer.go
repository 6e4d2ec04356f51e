package events

import (
	"context"
	"log"
	"time"
)

// DeliveryHandler hands events to a downstream transport. Notification
// push/SMS/email lives outside this service; the handler is the boundary.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// LogHandler writes events to the process log. Stands in for the external
// notification dispatcher in dev.
type LogHandler struct{}

func (LogHandler) Handle(_ context.Context, entry OutboxEntry) error {
	log.Printf("event delivered type=%s id=%s payload=%s", entry.Type, entry.ID, entry.Payload)
	return nil
}

// Deliverer polls the outbox and invokes the handler. Entries that fail
// delivery stay pending and are retried on the next tick.
type Deliverer struct {
	store     *OutboxStore
	handler   DeliveryHandler
	batchSize int
	interval  time.Duration
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, batchSize int, interval time.Duration) *Deliverer {
	if batchSize <= 0 {
		batchSize = 25
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled.
func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DeliverOnce(ctx)
		}
	}
}

// DeliverOnce drains at most one batch.
func (d *Deliverer) DeliverOnce(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		log.Printf("outbox fetch error: %v", err)
		return
	}

	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			log.Printf("deliver event %s (%s): %v", entry.ID, entry.Type, err)
			continue
		}
		if _, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			log.Printf("mark delivered %s: %v", entry.ID, err)
		}
	}
}
