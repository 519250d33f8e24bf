package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// memOutboxStorage is an in-memory OutboxStorage for worker tests.
type memOutboxStorage struct {
	mu     sync.Mutex
	events map[string]*models.OutboxEvent
}

func newMemOutboxStorage() *memOutboxStorage {
	return &memOutboxStorage{events: make(map[string]*models.OutboxEvent)}
}

func (m *memOutboxStorage) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.ID]; exists {
		return fmt.Errorf("event already exists: %s", event.ID)
	}
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *memOutboxStorage) GetEvent(ctx context.Context, eventID string) (*models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrEventNotFound, eventID)
	}
	clone := *event
	return &clone, nil
}

func (m *memOutboxStorage) FetchPending(ctx context.Context, limit int, now time.Time) ([]*models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.OutboxEvent
	for _, event := range m.events {
		if event.Status == models.OutboxStatusPending && !event.NextRunAt.After(now) {
			clone := *event
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *memOutboxStorage) MarkProcessing(ctx context.Context, eventID string) error {
	return m.mutate(eventID, func(e *models.OutboxEvent) { e.MarkProcessing() })
}

func (m *memOutboxStorage) MarkCompleted(ctx context.Context, eventID string) error {
	return m.mutate(eventID, func(e *models.OutboxEvent) { e.MarkCompleted() })
}

func (m *memOutboxStorage) RescheduleWithBackoff(ctx context.Context, eventID string, lastError string, nextRunAt time.Time) error {
	return m.mutate(eventID, func(e *models.OutboxEvent) { e.ScheduleRetry(lastError, nextRunAt) })
}

func (m *memOutboxStorage) MarkDead(ctx context.Context, eventID string, lastError string) error {
	return m.mutate(eventID, func(e *models.OutboxEvent) { e.MarkDead(lastError) })
}

func (m *memOutboxStorage) ResetProcessing(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, event := range m.events {
		if event.Status == models.OutboxStatusProcessing {
			event.Status = models.OutboxStatusPending
			count++
		}
	}
	return count, nil
}

func (m *memOutboxStorage) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, event := range m.events {
		if event.Status == models.OutboxStatusCompleted && event.UpdatedAt.Before(cutoff) {
			delete(m.events, id)
			count++
		}
	}
	return count, nil
}

func (m *memOutboxStorage) CountByStatus(ctx context.Context, status models.OutboxStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, event := range m.events {
		if event.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memOutboxStorage) mutate(eventID string, fn func(*models.OutboxEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrEventNotFound, eventID)
	}
	fn(event)
	return nil
}

// memGeoStorage is an in-memory GeoRecordStorage for processor tests.
type memGeoStorage struct {
	mu      sync.Mutex
	records map[string]*models.GeoRecord
}

func newMemGeoStorage() *memGeoStorage {
	return &memGeoStorage{records: make(map[string]*models.GeoRecord)}
}

func (m *memGeoStorage) GetRecord(ctx context.Context, documentID string) (*models.GeoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrGeoRecordNotFound, documentID)
	}
	clone := *record
	return &clone, nil
}

func (m *memGeoStorage) SaveRecord(ctx context.Context, record *models.GeoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[record.DocumentID] = &clone
	return nil
}

func (m *memGeoStorage) DeleteRecord(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, documentID)
	return nil
}

// memSpatialIndex is an in-memory SpatialIndex recording writes. A non-nil
// failWith makes every write fail, for retry-path tests. Writes honor ctx
// the way the rate-limited index does: a cancelled context fails the write.
type memSpatialIndex struct {
	mu       sync.Mutex
	features map[string]*models.SpatialFeature
	puts     int
	failWith error
}

func newMemSpatialIndex() *memSpatialIndex {
	return &memSpatialIndex{features: make(map[string]*models.SpatialFeature)}
}

func (m *memSpatialIndex) UpsertFeature(ctx context.Context, documentID string, geometry map[string]interface{}, contentHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if existing, ok := m.features[documentID]; ok && existing.ContentHash == contentHash {
		return nil
	}
	m.puts++
	m.features[documentID] = &models.SpatialFeature{
		DocumentID:  documentID,
		Geometry:    geometry,
		ContentHash: contentHash,
		SyncedAt:    time.Now(),
	}
	return nil
}

func (m *memSpatialIndex) DeleteFeature(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.features, documentID)
	return nil
}

func (m *memSpatialIndex) GetFeature(ctx context.Context, documentID string) (*models.SpatialFeature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.features[documentID], nil
}
