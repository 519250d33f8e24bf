package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// OutboxStorage implements the OutboxStorage interface for Badger
type OutboxStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewOutboxStorage creates a new OutboxStorage instance
func NewOutboxStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OutboxStorage {
	return &OutboxStorage{
		db:     db,
		logger: logger,
	}
}

func (s *OutboxStorage) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid outbox event: %w", err)
	}

	if err := s.db.Store().Insert(event.ID, event); err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}

	s.logger.Debug().
		Str("event_id", event.ID).
		Str("document_id", event.DocumentID).
		Str("event_type", string(event.EventType)).
		Msg("Outbox event enqueued")

	return nil
}

func (s *OutboxStorage) GetEvent(ctx context.Context, eventID string) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	if err := s.db.Store().Get(eventID, &event); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEventNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to get outbox event: %w", err)
	}
	return &event, nil
}

func (s *OutboxStorage) FetchPending(ctx context.Context, limit int, now time.Time) ([]*models.OutboxEvent, error) {
	query := badgerhold.Where("Status").Eq(models.OutboxStatusPending).
		And("NextRunAt").Le(now).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var events []models.OutboxEvent
	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	result := make([]*models.OutboxEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}

func (s *OutboxStorage) MarkProcessing(ctx context.Context, eventID string) error {
	return s.mutate(eventID, func(event *models.OutboxEvent) {
		event.MarkProcessing()
	})
}

func (s *OutboxStorage) MarkCompleted(ctx context.Context, eventID string) error {
	return s.mutate(eventID, func(event *models.OutboxEvent) {
		event.MarkCompleted()
	})
}

func (s *OutboxStorage) RescheduleWithBackoff(ctx context.Context, eventID string, lastError string, nextRunAt time.Time) error {
	return s.mutate(eventID, func(event *models.OutboxEvent) {
		event.ScheduleRetry(lastError, nextRunAt)
	})
}

func (s *OutboxStorage) MarkDead(ctx context.Context, eventID string, lastError string) error {
	err := s.mutate(eventID, func(event *models.OutboxEvent) {
		event.MarkDead(lastError)
	})
	if err != nil {
		return err
	}

	s.logger.Warn().
		Str("event_id", eventID).
		Str("last_error", lastError).
		Msg("Outbox event marked dead")

	return nil
}

// ResetProcessing returns in-flight events back to pending. Events found in
// the processing state on startup were orphaned by a crash mid-batch.
func (s *OutboxStorage) ResetProcessing(ctx context.Context) (int, error) {
	var events []models.OutboxEvent
	if err := s.db.Store().Find(&events, badgerhold.Where("Status").Eq(models.OutboxStatusProcessing)); err != nil {
		return 0, fmt.Errorf("failed to find processing events: %w", err)
	}

	count := 0
	for i := range events {
		events[i].Status = models.OutboxStatusPending
		events[i].UpdatedAt = time.Now()
		if err := s.db.Store().Update(events[i].ID, &events[i]); err != nil {
			return count, fmt.Errorf("failed to reset event %s: %w", events[i].ID, err)
		}
		count++
	}

	if count > 0 {
		s.logger.Info().Int("count", count).Msg("Reset orphaned processing events to pending")
	}

	return count, nil
}

func (s *OutboxStorage) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var events []models.OutboxEvent
	query := badgerhold.Where("Status").Eq(models.OutboxStatusCompleted).And("UpdatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&events, query); err != nil {
		return 0, fmt.Errorf("failed to find completed events: %w", err)
	}

	count := 0
	for i := range events {
		if err := s.db.Store().Delete(events[i].ID, &models.OutboxEvent{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return count, fmt.Errorf("failed to delete event %s: %w", events[i].ID, err)
		}
		count++
	}
	return count, nil
}

func (s *OutboxStorage) CountByStatus(ctx context.Context, status models.OutboxStatus) (int, error) {
	count, err := s.db.Store().Count(&models.OutboxEvent{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int(count), nil
}

// mutate loads an event, applies fn, and writes it back.
func (s *OutboxStorage) mutate(eventID string, fn func(*models.OutboxEvent)) error {
	var event models.OutboxEvent
	if err := s.db.Store().Get(eventID, &event); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrEventNotFound, eventID)
		}
		return fmt.Errorf("failed to get outbox event: %w", err)
	}

	fn(&event)

	if err := s.db.Store().Update(eventID, &event); err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	return nil
}
