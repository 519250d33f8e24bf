package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func pendingEvent(id, documentID string, nextRunAt time.Time) *models.OutboxEvent {
	event := models.NewOutboxEvent(id, documentID, models.OutboxEventUpserted, nil, "hash-"+documentID)
	event.NextRunAt = nextRunAt
	return event
}

func TestOutboxStorage_EnqueueAndFetchPending(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	// Two eligible events and one scheduled in the future
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", now.Add(-time.Minute))))
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-2", "doc-2", now.Add(-time.Second))))
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-3", "doc-3", now.Add(time.Hour))))

	events, err := storage.FetchPending(ctx, 10, now)
	require.NoError(t, err)
	require.Len(t, events, 2, "events with future NextRunAt must not be fetched")
	assert.Equal(t, "evt-1", events[0].ID, "oldest event first")
	assert.Equal(t, "evt-2", events[1].ID)
}

func TestOutboxStorage_FetchPendingHonoursLimit(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("evt-%02d", i)
		require.NoError(t, storage.Enqueue(ctx, pendingEvent(id, "doc-"+id, now.Add(-time.Minute))))
	}

	events, err := storage.FetchPending(ctx, 10, now)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestOutboxStorage_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", now)))

	require.NoError(t, storage.MarkProcessing(ctx, "evt-1"))
	event, err := storage.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusProcessing, event.Status)

	// Processing events are not fetched as pending
	events, err := storage.FetchPending(ctx, 10, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, storage.MarkCompleted(ctx, "evt-1"))
	event, err = storage.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusCompleted, event.Status)
	assert.True(t, event.IsTerminal())
}

func TestOutboxStorage_RescheduleWithBackoff(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", now)))
	require.NoError(t, storage.MarkProcessing(ctx, "evt-1"))

	retryAt := now.Add(2 * time.Second)
	require.NoError(t, storage.RescheduleWithBackoff(ctx, "evt-1", "index unavailable", retryAt))

	event, err := storage.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusPending, event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, "index unavailable", event.LastError)

	// Not eligible until the backoff elapses
	events, err := storage.FetchPending(ctx, 10, now)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = storage.FetchPending(ctx, 10, retryAt.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestOutboxStorage_MarkDead(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", time.Now())))
	require.NoError(t, storage.MarkDead(ctx, "evt-1", "retries exhausted"))

	event, err := storage.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusFailed, event.Status)
	assert.True(t, event.IsTerminal())

	// Dead events never come back as pending
	events, err := storage.FetchPending(ctx, 10, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxStorage_ResetProcessing(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", now)))
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-2", "doc-2", now)))
	require.NoError(t, storage.MarkProcessing(ctx, "evt-1"))
	require.NoError(t, storage.MarkProcessing(ctx, "evt-2"))

	// Simulate a restart after a crash mid-batch
	count, err := storage.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	events, err := storage.FetchPending(ctx, 10, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestOutboxStorage_GetEventNotFound(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())

	_, err := storage.GetEvent(context.Background(), "ghost")
	require.ErrorIs(t, err, interfaces.ErrEventNotFound)
}

func TestOutboxStorage_DeleteCompletedBefore(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-old", "doc-1", time.Now())))
	require.NoError(t, storage.MarkCompleted(ctx, "evt-old"))
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-live", "doc-2", time.Now())))

	count, err := storage.DeleteCompletedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = storage.GetEvent(ctx, "evt-old")
	assert.ErrorIs(t, err, interfaces.ErrEventNotFound)

	// Pending events are untouched by cleanup
	_, err = storage.GetEvent(ctx, "evt-live")
	assert.NoError(t, err)
}

func TestOutboxStorage_CountByStatus(t *testing.T) {
	db := newTestDB(t)
	storage := NewOutboxStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-1", "doc-1", time.Now())))
	require.NoError(t, storage.Enqueue(ctx, pendingEvent("evt-2", "doc-2", time.Now())))
	require.NoError(t, storage.MarkCompleted(ctx, "evt-2"))

	pending, err := storage.CountByStatus(ctx, models.OutboxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	completed, err := storage.CountByStatus(ctx, models.OutboxStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}
