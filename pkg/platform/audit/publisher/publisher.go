package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	id "docsign/pkg/domain"
	audit "docsign/pkg/platform/audit"
	"docsign/pkg/requestcontext"
)

// Publisher enriches audit events from request context and hands them to a
// store. In async mode Emit never blocks: events go through a bounded buffer
// drained by one goroutine, and a full buffer drops the event.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	dropped prometheus.Counter

	buffer chan audit.Event
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDroppedCounter counts events lost to a full buffer or a failed write.
func WithDroppedCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records event. In sync mode the store error is returned; in async mode
// errors are logged and dropped.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(ctx, event, "publisher closed")
		return nil
	}
	select {
	case p.buffer <- event:
	default:
		p.drop(ctx, event, "buffer full")
	}
	return nil
}

// List proxies to the store.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	return p.store.List(ctx, filter)
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.drop(ctx, event, err.Error())
		}
		cancel()
	}
}

func (p *Publisher) drop(ctx context.Context, event audit.Event, reason string) {
	if p.dropped != nil {
		p.dropped.Inc()
	}
	p.logger.WarnContext(ctx, "audit event dropped",
		"action", event.Action,
		"reason", reason,
		"request_id", event.RequestID,
	)
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.ID == (id.AuditEventID{}) {
		event.ID = id.NewAuditEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	return event
}
