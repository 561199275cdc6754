package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	audithandler "docsign/internal/audit/handler"
	auditservice "docsign/internal/audit/service"
	"docsign/internal/document/content"
	dochandler "docsign/internal/document/handler"
	docmetrics "docsign/internal/document/metrics"
	"docsign/internal/document/qrcode"
	docservice "docsign/internal/document/service"
	docstore "docsign/internal/document/store"
	"docsign/internal/document/store/share"
	"docsign/internal/document/store/template"
	jwttoken "docsign/internal/jwt_token"
	keyhandler "docsign/internal/keys/handler"
	keymetrics "docsign/internal/keys/metrics"
	keymodels "docsign/internal/keys/models"
	"docsign/internal/keys/sealer"
	keyservice "docsign/internal/keys/service"
	"docsign/internal/keys/store/certificate"
	"docsign/internal/keys/store/keypair"
	notifhandler "docsign/internal/notification/handler"
	notifmetrics "docsign/internal/notification/metrics"
	notifservice "docsign/internal/notification/service"
	notifstore "docsign/internal/notification/store"
	"docsign/internal/platform/config"
	"docsign/internal/platform/httpserver"
	"docsign/internal/platform/kafka"
	"docsign/internal/platform/logger"
	"docsign/internal/platform/metrics"
	"docsign/internal/platform/postgres"
	"docsign/internal/platform/redis"
	"docsign/internal/verification/cache"
	verifyhandler "docsign/internal/verification/handler"
	verifymetrics "docsign/internal/verification/metrics"
	verifyservice "docsign/internal/verification/service"
	verifystore "docsign/internal/verification/store"
	"docsign/migrations"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/audit"
	auditpublisher "docsign/pkg/platform/audit/publisher"
	auditmemory "docsign/pkg/platform/audit/store/memory"
	auditpostgres "docsign/pkg/platform/audit/store/postgres"
	"docsign/pkg/platform/audit/worker"
	"docsign/pkg/platform/circuit"
	"docsign/pkg/platform/httputil"
	authmw "docsign/pkg/platform/middleware/auth"
	"docsign/pkg/platform/middleware/metadata"
	request "docsign/pkg/platform/middleware/request"
	"docsign/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("docsign stopped", "error", err)
		os.Exit(1)
	}
}

// stores groups the persistence layer. Every field has a Postgres and an
// in-memory implementation.
type stores struct {
	keyPairs      keyservice.KeyPairStore
	certificates  keyservice.CertificateStore
	documents     documentStore
	shares        docservice.ShareStore
	templates     docservice.TemplateStore
	verifications verifyservice.RecordStore
	notifications notifservice.Store
	audit         audit.Store
	outbox        *auditpostgres.Store
}

// documentStore is the union of what the document and verification services
// need from document persistence.
type documentStore interface {
	docservice.DocumentStore
	verifyservice.DocumentReader
}

// healthCheck reports whether one backing service is reachable.
type healthCheck func(ctx context.Context) error

// invalidatorFunc adapts a function to keyservice.PublicKeyInvalidator.
type invalidatorFunc func(ctx context.Context, certID id.CertificateID) error

func (f invalidatorFunc) Invalidate(ctx context.Context, certID id.CertificateID) error {
	return f(ctx, certID)
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := keymodels.ParseKeyPolicy(cfg.Keys.Policy)
	if err != nil {
		return err
	}
	keySealer, err := sealer.FromConfig(cfg.Keys.MasterKey)
	if err != nil {
		return err
	}

	checks := map[string]healthCheck{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checks["postgres"] = db.PingContext
		if cfg.Database.AutoMigrate {
			if err := migrations.Apply(ctx, db); err != nil {
				return err
			}
		}
	}
	st, err := openStores(ctx, db, policy)
	if err != nil {
		return err
	}
	if db == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb.Health
	}

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		checks["kafka"] = producer.Health
		if cfg.Kafka.EnsureTopics {
			if err := producer.EnsureTopics(ctx, cfg.Kafka.TopicPartitions, cfg.Kafka.TopicReplicaFactor,
				cfg.Kafka.AuditTopic, cfg.Kafka.NotificationTopic); err != nil {
				return err
			}
		}
	}

	httpMetrics := metrics.New(prometheus.DefaultRegisterer)
	verifyMetrics := verifymetrics.New()

	auditPub := auditpublisher.NewPublisher(st.audit,
		auditpublisher.WithAsyncBuffer(cfg.Documents.AuditBuffer),
		auditpublisher.WithLogger(log),
		auditpublisher.WithDroppedCounter(httpMetrics.AuditDropped),
	)
	defer auditPub.Close()

	if st.outbox != nil && producer != nil {
		relay := worker.NewRelay(st.outbox, producer, cfg.Kafka.AuditTopic,
			worker.WithBatchSize(cfg.Kafka.RelayBatchSize),
			worker.WithInterval(cfg.Kafka.RelayInterval),
			worker.WithLogger(log),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	// The key service invalidates the public key cache, which in turn reads
	// through the key service.
	var keyCache interface {
		verifyservice.PublicKeyResolver
		keyservice.PublicKeyInvalidator
	}
	keys, err := keyservice.New(st.keyPairs, st.certificates,
		keyservice.WithLogger(log),
		keyservice.WithAuditPublisher(auditPub),
		keyservice.WithMetrics(keymetrics.New()),
		keyservice.WithPolicy(policy),
		keyservice.WithKeySize(cfg.Keys.KeySize),
		keyservice.WithConcurrency(cfg.Keys.Concurrency),
		keyservice.WithSealer(keySealer),
		keyservice.WithPublicKeyInvalidator(invalidatorFunc(func(ctx context.Context, certID id.CertificateID) error {
			return keyCache.Invalidate(ctx, certID)
		})),
	)
	if err != nil {
		return err
	}
	if rdb != nil {
		keyCache = cache.NewRedis(rdb.Client, keys,
			cache.WithTTL(cfg.Verification.PublicKeyTTL),
			cache.WithLogger(log),
			cache.WithMetrics(verifyMetrics),
		)
	} else {
		keyCache = cache.NewPassthrough(keys)
	}

	notifOpts := []notifservice.Option{
		notifservice.WithLogger(log),
		notifservice.WithMetrics(notifmetrics.New()),
		notifservice.WithBuffer(cfg.Documents.NotifyBuffer),
	}
	if producer != nil {
		notifOpts = append(notifOpts,
			notifservice.WithProducer(producer, cfg.Kafka.NotificationTopic),
			notifservice.WithPublishBreaker(circuit.New("notification-publish")),
		)
	}
	notifications, err := notifservice.New(st.notifications, notifOpts...)
	if err != nil {
		return err
	}
	defer notifications.Close()

	documents, err := docservice.New(st.documents, keys, content.NewFSSource(os.DirFS(cfg.Content.Root)),
		docservice.WithLogger(log),
		docservice.WithAuditPublisher(auditPub),
		docservice.WithAuditReader(st.audit),
		docservice.WithMetrics(docmetrics.New()),
		docservice.WithNotifier(notifications),
		docservice.WithQRRenderer(qrcode.NewRenderer(cfg.Verification.BaseURL, qrcode.DefaultSize)),
		docservice.WithBatchConcurrency(cfg.Documents.BatchConcurrency),
		docservice.WithMaxBatchSize(cfg.Documents.MaxBatchSize),
		docservice.WithShareStore(st.shares),
		docservice.WithTemplateStore(st.templates),
		docservice.WithShareBaseURL(cfg.Verification.BaseURL),
	)
	if err != nil {
		return err
	}

	recorder := verifyservice.NewRecorder(st.verifications,
		verifyservice.WithRecordBuffer(cfg.Verification.RecorderBuffer),
		verifyservice.WithRecorderLogger(log),
		verifyservice.WithDroppedCounter(verifyMetrics.RecordsDropped),
	)
	defer recorder.Close()

	verifier, err := verifyservice.New(st.documents, keyCache, recorder,
		verifyservice.WithLogger(log),
		verifyservice.WithAuditPublisher(auditPub),
		verifyservice.WithMetrics(verifyMetrics),
		verifyservice.WithHistory(recorder),
	)
	if err != nil {
		return err
	}

	audits, err := auditservice.New(st.audit, auditservice.WithLogger(log), auditservice.WithAuditPublisher(auditPub))
	if err != nil {
		return err
	}

	tokens := jwttoken.NewValidator(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(httpMetrics.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(checks))
	r.Handle("/metrics", metrics.Handler())

	verifyHTTP := verifyhandler.New(verifier, log)
	docHTTP := dochandler.New(documents, log)
	r.Route("/api/v1", func(api chi.Router) {
		api.Group(verifyHTTP.RegisterPublic)
		api.Group(docHTTP.RegisterPublic)
		api.Group(func(priv chi.Router) {
			priv.Use(authmw.RequireAuth(tokens, log))
			docHTTP.Register(priv)
			verifyHTTP.Register(priv)
			keyhandler.New(keys, log).Register(priv)
			audithandler.New(audits, log).Register(priv)
			notifhandler.New(notifications, log).Register(priv)
		})
	})

	log.Info("starting docsign", "addr", cfg.Addr, "key_policy", string(policy))
	srv := httpserver.New(cfg.Addr, r, cfg.RequestTimeout)
	return httpserver.Run(ctx, srv, cfg.ShutdownTimeout, log)
}

func openStores(ctx context.Context, db *sql.DB, policy keymodels.KeyPolicy) (*stores, error) {
	if db == nil {
		return &stores{
			keyPairs:      keypair.NewInMemory(),
			certificates:  certificate.NewInMemory(),
			documents:     docstore.NewInMemory(),
			shares:        share.NewInMemory(),
			templates:     template.NewInMemory(),
			verifications: verifystore.NewInMemory(),
			notifications: notifstore.NewInMemory(),
			audit:         auditmemory.NewInMemoryStore(),
		}, nil
	}

	keyPairs := keypair.NewPostgres(db)
	if err := keyPairs.ApplyPolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("apply key policy: %w", err)
	}
	auditStore := auditpostgres.New(db)
	return &stores{
		keyPairs:      keyPairs,
		certificates:  certificate.NewPostgres(db),
		documents:     docstore.NewPostgres(db),
		shares:        share.NewPostgres(db),
		templates:     template.NewPostgres(db),
		verifications: verifystore.NewPostgres(db),
		notifications: notifstore.NewPostgres(db),
		audit:         auditStore,
		outbox:        auditStore,
	}, nil
}

func healthHandler(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
