// Package service renders, persists and publishes in-app notifications for
// document recipients.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"text/template"
	"time"

	docmodels "docsign/internal/document/models"
	"docsign/internal/notification/metrics"
	"docsign/internal/notification/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/circuit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.Notification, int, error)
	MarkRead(ctx context.Context, notifID id.NotificationID, userID id.UserID, now time.Time) (*models.Notification, error)
}

// Producer publishes one record to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type message struct {
	title *template.Template
	body  *template.Template
}

var messages = map[models.Type]message{
	models.TypeDocumentCreated: {
		title: template.Must(template.New("created.title").Parse(`New Document Created`)),
		body:  template.Must(template.New("created.body").Parse(`A new document "{{.DocumentTitle}}" has been created for you.`)),
	},
	models.TypeDocumentSigned: {
		title: template.Must(template.New("signed.title").Parse(`Document Signed`)),
		body:  template.Must(template.New("signed.body").Parse(`Your document "{{.DocumentTitle}}" has been digitally signed.`)),
	},
	models.TypeDocumentRevoked: {
		title: template.Must(template.New("revoked.title").Parse(`Document Revoked`)),
		body:  template.Must(template.New("revoked.body").Parse(`Your document "{{.DocumentTitle}}" has been revoked.{{with .Reason}} Reason: {{.}}{{end}}`)),
	},
}

var errUnknownType = errors.New("unknown notification type")

type job struct {
	event models.Event
	at    time.Time
}

// Service delivers notifications. Notify never fails the caller: with a
// buffer it hands events to one worker and drops them when the buffer is
// full; delivery errors are logged and counted.
type Service struct {
	store    Store
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics

	buffer chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithProducer publishes every persisted notification to topic.
func WithProducer(p Producer, topic string) Option {
	return func(s *Service) {
		s.producer = p
		s.topic = topic
	}
}

// WithPublishBreaker skips publishing while b is open. Notifications are
// still persisted.
func WithPublishBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// WithBuffer makes Notify asynchronous with a buffer of n events.
func WithBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = make(chan job, n)
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("notification store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.producer != nil && s.topic == "" {
		return nil, errors.New("notification topic is required with a producer")
	}
	if s.buffer != nil {
		s.wg.Add(1)
		go s.drain()
	}
	return s, nil
}

// Notify queues ev for delivery. Events without a recipient are ignored.
func (s *Service) Notify(ctx context.Context, ev models.Event) {
	if ev.UserID.IsNil() {
		return
	}
	j := job{event: ev, at: requestcontext.Now(ctx).UTC()}
	if s.buffer == nil {
		_ = s.deliver(context.WithoutCancel(ctx), j)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ctx, ev, "service closed")
		return
	}
	select {
	case s.buffer <- j:
	default:
		s.drop(ctx, ev, "buffer full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *Service) Close() {
	if s.buffer == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.buffer)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, p authz.Principal, unreadOnly bool, page, limit int) (docmodels.Page[*models.Notification], error) {
	if err := p.RequireAuthenticated(); err != nil {
		return docmodels.Page[*models.Notification]{}, err
	}
	paging := docmodels.ListFilter{Page: page, Limit: limit}
	paging.Normalize()
	items, total, err := s.store.List(ctx, models.ListFilter{
		UserID:     p.UserID,
		UnreadOnly: unreadOnly,
		Limit:      paging.Limit,
		Offset:     paging.Offset(),
	})
	if err != nil {
		return docmodels.Page[*models.Notification]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return docmodels.NewPage(items, total, paging.Page, paging.Limit), nil
}

// MarkRead marks one of the caller's notifications as read. Notifications of
// other users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, p authz.Principal, notifID id.NotificationID) (*models.Notification, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	n, err := s.store.MarkRead(ctx, notifID, p.UserID, requestcontext.Now(ctx).UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return n, nil
}

func (s *Service) drain() {
	defer s.wg.Done()
	for j := range s.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.deliver(ctx, j)
		cancel()
	}
}

func (s *Service) deliver(ctx context.Context, j job) error {
	n, err := render(j.event, j.at)
	if err != nil {
		s.fail(ctx, "render", j.event, err)
		return err
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.fail(ctx, "persist", j.event, err)
		return err
	}
	if s.metrics != nil {
		s.metrics.Delivered.WithLabelValues(string(n.Type)).Inc()
	}
	s.logger.InfoContext(ctx, "notification sent",
		"notification_id", n.ID.String(),
		"user_id", n.UserID.String(),
		"type", string(n.Type),
	)
	if s.producer == nil {
		return nil
	}
	return s.publish(ctx, j.event, n)
}

func (s *Service) publish(ctx context.Context, ev models.Event, n *models.Notification) error {
	if s.breaker != nil && !s.breaker.Allow() {
		if s.metrics != nil {
			s.metrics.IncrementFailure("circuit_open")
		}
		return nil
	}
	value, err := json.Marshal(n.Payload())
	if err != nil {
		s.fail(ctx, "encode", ev, err)
		return err
	}
	if err := s.producer.Produce(ctx, s.topic, []byte(n.UserID.String()), value, map[string]string{
		"notification_type": string(n.Type),
	}); err != nil {
		s.fail(ctx, "publish", ev, err)
		if s.breaker != nil {
			if _, change := s.breaker.RecordFailure(); change.Opened {
				s.logger.WarnContext(ctx, "notification publishing paused", "breaker", s.breaker.Name())
			}
		}
		return err
	}
	if s.breaker != nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "notification publishing resumed", "breaker", s.breaker.Name())
		}
	}
	if s.metrics != nil {
		s.metrics.Published.Inc()
	}
	return nil
}

func render(ev models.Event, at time.Time) (*models.Notification, error) {
	msg, ok := messages[ev.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownType, ev.Type)
	}
	var title, body bytes.Buffer
	if err := msg.title.Execute(&title, ev); err != nil {
		return nil, fmt.Errorf("render title: %w", err)
	}
	if err := msg.body.Execute(&body, ev); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return &models.Notification{
		ID:         id.NewNotificationID(),
		UserID:     ev.UserID,
		DocumentID: ev.DocumentID,
		Title:      title.String(),
		Message:    body.String(),
		Type:       ev.Type,
		CreatedAt:  at,
	}, nil
}

func (s *Service) fail(ctx context.Context, stage string, ev models.Event, err error) {
	if s.metrics != nil {
		s.metrics.IncrementFailure(stage)
	}
	s.logger.WarnContext(ctx, "notification delivery failed",
		"stage", stage,
		"type", string(ev.Type),
		"user_id", ev.UserID.String(),
		"error", err,
	)
}

func (s *Service) drop(ctx context.Context, ev models.Event, reason string) {
	if s.metrics != nil {
		s.metrics.Dropped.Inc()
	}
	s.logger.WarnContext(ctx, "notification dropped",
		"type", string(ev.Type),
		"user_id", ev.UserID.String(),
		"reason", reason,
	)
}
