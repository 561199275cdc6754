//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"docsign/internal/platform/kafka"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/audit/store/postgres"
	"docsign/pkg/platform/audit/worker"
	"docsign/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "audit_events", "outbox"))
}

func (s *AuditStoreSuite) event(action audit.AuditEvent, org id.OrganizationID, doc id.DocumentID, at time.Time) audit.Event {
	return audit.Event{
		ID:             id.NewAuditEventID(),
		Category:       action.Category(),
		Action:         string(action),
		UserID:         id.UserID(uuid.New()),
		OrganizationID: org,
		DocumentID:     doc,
		Details:        map[string]any{"certificate_id": "c-1"},
		IP:             "198.51.100.7",
		UserAgent:      "curl/8.0",
		RequestID:      "req-1",
		Timestamp:      at,
	}
}

func (s *AuditStoreSuite) TestAppendAndList() {
	org := id.OrganizationID(uuid.New())
	doc := id.NewDocumentID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(s.ctx, s.event(audit.EventDocumentCreated, org, doc, base)))
	s.Require().NoError(s.store.Append(s.ctx, s.event(audit.EventDocumentSigned, org, doc, base.Add(time.Minute))))
	s.Require().NoError(s.store.Append(s.ctx, s.event(audit.EventDocumentCreated, id.OrganizationID(uuid.New()), id.DocumentID{}, base)))

	events, total, err := s.store.List(s.ctx, audit.Filter{OrganizationID: org, Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventDocumentSigned), events[0].Action, "newest first")
	s.Equal("c-1", events[0].Details["certificate_id"])
	s.Equal("198.51.100.7", events[0].IP)

	from := base.Add(30 * time.Second)
	_, total, err = s.store.List(s.ctx, audit.Filter{From: &from, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)

	_, total, err = s.store.List(s.ctx, audit.Filter{Action: string(audit.EventDocumentCreated), Limit: 1})
	s.Require().NoError(err)
	s.Equal(2, total, "total ignores the page size")
}

// TestRelayPublishesOutbox drives the outbox relay against a real broker.
func (s *AuditStoreSuite) TestRelayPublishesOutbox() {
	broker := containers.GetManager().GetRedpanda(s.T())
	producer, err := kafka.NewProducer(broker.Brokers)
	s.Require().NoError(err)
	defer producer.Close()

	topic := "docsign.audit." + uuid.NewString()
	s.Require().NoError(producer.EnsureTopics(s.ctx, 1, 1, topic))

	doc := id.NewDocumentID()
	for _, action := range []audit.AuditEvent{audit.EventDocumentCreated, audit.EventDocumentSigned} {
		s.Require().NoError(s.store.Append(s.ctx, s.event(action, id.OrganizationID(uuid.New()), doc, time.Now())))
	}

	relay := worker.NewRelay(s.store, producer, topic)
	n, err := relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n, "published entries are not relayed twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Second)
	defer cancel()
	var records []*kgo.Record
	for len(records) < 2 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		records = append(records, fetches.Records()...)
	}
	s.Require().Len(records, 2)
	for _, rec := range records {
		s.Equal(doc.String(), string(rec.Key), "document events are keyed by document")
		var payload map[string]any
		s.Require().NoError(json.Unmarshal(rec.Value, &payload))
		s.NotEmpty(payload["action"])
	}
}
