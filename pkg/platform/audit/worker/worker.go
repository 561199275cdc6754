package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "docsign/pkg/platform/audit"
)

// OutboxStore is the outbox surface the relay drains.
type OutboxStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer publishes one record to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Relay polls the outbox and publishes pending entries. Delivery is
// at-least-once: an entry is marked only after its publish succeeded, and a
// crash between the two republishes it.
type Relay struct {
	store     OutboxStore
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(store OutboxStore, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were marked.
// Publishing stops at the first failure; entries published before it are
// still marked.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published []uuid.UUID
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		var publishErr error
		for _, e := range entries {
			headers := map[string]string{
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
			}
			if err := r.producer.Produce(ctx, r.topic, []byte(e.AggregateID), e.Payload, headers); err != nil {
				publishErr = err
				break
			}
			published = append(published, e.ID)
		}
		if err := r.store.MarkPublished(ctx, published, time.Now()); err != nil {
			return err
		}
		if publishErr != nil {
			r.logger.WarnContext(ctx, "outbox publish interrupted",
				"error", publishErr,
				"published", len(published),
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(published), nil
}
