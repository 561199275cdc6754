package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"

	"docsign/internal/verification/models"
	id "docsign/pkg/domain"
	"docsign/pkg/requestcontext"
)

var (
	errBufferFull     = errors.New("record buffer full")
	errRecorderClosed = errors.New("recorder closed")
)

// RecordStore is the append-only persistence behind the Recorder.
type RecordStore interface {
	Append(ctx context.Context, rec models.Record) error
	ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]models.Record, int, error)
}

// Recorder persists verification records on a best-effort basis. Record never
// fails the caller: in async mode a bounded buffer feeds one worker and a full
// buffer drops the record; store failures are logged and counted.
type Recorder struct {
	store   RecordStore
	logger  *slog.Logger
	dropped prometheus.Counter

	buffer chan models.Record
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type RecorderOption func(*Recorder)

// WithRecordBuffer switches the recorder to async mode with a buffer of n records.
func WithRecordBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.buffer = make(chan models.Record, n)
		}
	}
}

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithDroppedCounter(c prometheus.Counter) RecorderOption {
	return func(r *Recorder) {
		r.dropped = c
	}
}

func NewRecorder(store RecordStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.buffer != nil {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, rec models.Record) {
	if r.buffer == nil {
		if err := r.store.Append(ctx, rec); err != nil {
			r.drop(ctx, rec, err)
		}
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ctx, rec, errRecorderClosed)
		return
	}
	select {
	case r.buffer <- rec:
	default:
		r.drop(ctx, rec, errBufferFull)
	}
}

func (r *Recorder) ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]models.Record, int, error) {
	return r.store.ListByDocument(ctx, docID, limit, offset)
}

// Close stops accepting records and waits for the buffer to drain.
func (r *Recorder) Close() {
	if r.buffer == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.buffer)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for rec := range r.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Append(ctx, rec); err != nil {
			r.drop(ctx, rec, err)
		}
		cancel()
	}
}

func (r *Recorder) drop(ctx context.Context, rec models.Record, err error) {
	if r.dropped != nil {
		r.dropped.Inc()
	}
	r.logger.ErrorContext(ctx, "verification record dropped",
		"verification_id", rec.ID.String(),
		"status", string(rec.Status),
		"error", err,
	)
}

// verifierInfo describes the requesting client from request metadata.
func verifierInfo(ctx context.Context, at time.Time) models.VerifierInfo {
	raw := requestcontext.UserAgent(ctx)
	info := models.VerifierInfo{
		UserAgent:  raw,
		Referer:    requestcontext.Referer(ctx),
		HTTPMethod: requestcontext.HTTPMethod(ctx),
		Timestamp:  at,
	}
	if raw == "" {
		return info
	}
	ua := useragent.New(raw)
	info.Browser, info.BrowserVersion = ua.Browser()
	info.OS = ua.OS()
	info.Mobile = ua.Mobile()
	info.Bot = ua.Bot()
	return info
}
