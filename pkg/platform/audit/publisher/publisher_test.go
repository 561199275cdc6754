package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "docsign/pkg/domain"
	audit "docsign/pkg/platform/audit"
	"docsign/pkg/platform/audit/store/memory"
	"docsign/pkg/requestcontext"
)

func byDocument(docID id.DocumentID) audit.Filter {
	return audit.Filter{DocumentID: docID}
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	docID := id.NewDocumentID()
	err := pub.Emit(context.Background(), audit.Event{
		DocumentID: docID,
		Action:     string(audit.EventDocumentSigned),
	})
	require.NoError(t, err)

	events, total, err := pub.List(context.Background(), byDocument(docID))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, string(audit.EventDocumentSigned), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	docID := id.NewDocumentID()
	err := pub.Emit(context.Background(), audit.Event{
		DocumentID: docID,
		Action:     string(audit.EventDocumentRevoked),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _, _ := pub.List(context.Background(), byDocument(docID))
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	docID := id.NewDocumentID()
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			DocumentID: docID,
			Action:     string(audit.EventDocumentViewed),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, _, err := store.List(context.Background(), byDocument(docID))
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseIsDropped(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDocumentViewed)})
	require.NoError(t, err)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDocumentViewed)})
			assert.NoError(t, err, "async emit never surfaces errors")
		}()
	}
	wg.Wait()
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.5", "curl/8.5")
	ctx = requestcontext.WithRequestID(ctx, "req-123")

	docID := id.NewDocumentID()
	require.NoError(t, pub.Emit(ctx, audit.Event{DocumentID: docID, Action: string(audit.EventDocumentCreated)}))

	events, _, err := pub.List(ctx, byDocument(docID))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "203.0.113.5", events[0].IP)
	assert.Equal(t, "curl/8.5", events[0].UserAgent)
	assert.Equal(t, "req-123", events[0].RequestID)
	assert.NotEqual(t, id.AuditEventID{}, events[0].ID)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID(uuid.New())
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Emit(context.Background(), audit.Event{
		UserID:    userID,
		Action:    string(audit.EventKeyPairGenerated),
		Timestamp: customTime,
	})
	require.NoError(t, err)

	events, _, err := pub.List(context.Background(), audit.Filter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_ListsMostRecentFirst(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	docID := id.NewDocumentID()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	actions := []audit.AuditEvent{audit.EventDocumentCreated, audit.EventDocumentSigned, audit.EventDocumentRevoked}
	for i, action := range actions {
		ctx := requestcontext.WithTime(context.Background(), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, pub.Emit(ctx, audit.Event{DocumentID: docID, Action: string(action)}))
	}

	result, total, err := pub.List(context.Background(), audit.Filter{DocumentID: docID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, result, 2)
	assert.Equal(t, string(audit.EventDocumentRevoked), result[0].Action)
	assert.Equal(t, string(audit.EventDocumentSigned), result[1].Action)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("db down") }
func (failingStore) List(context.Context, audit.Filter) ([]audit.Event, int, error) {
	return nil, 0, nil
}

func TestPublisher_SyncModeReturnsStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{})
	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDocumentSigned)})
	assert.Error(t, err)
}
