package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/common"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// GeoRecordStorage implements the GeoRecordStorage interface for Badger.
// Every record write also enqueues an outbox event in the same store, so the
// secondary index change is never lost even if the process dies right after
// the save.
type GeoRecordStorage struct {
	db     *BadgerDB
	outbox interfaces.OutboxStorage
	logger arbor.ILogger
}

// NewGeoRecordStorage creates a new GeoRecordStorage instance
func NewGeoRecordStorage(db *BadgerDB, outbox interfaces.OutboxStorage, logger arbor.ILogger) interfaces.GeoRecordStorage {
	return &GeoRecordStorage{
		db:     db,
		outbox: outbox,
		logger: logger,
	}
}

func (s *GeoRecordStorage) GetRecord(ctx context.Context, documentID string) (*models.GeoRecord, error) {
	var record models.GeoRecord
	if err := s.db.Store().Get(documentID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrGeoRecordNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to get geo record: %w", err)
	}
	return &record, nil
}

func (s *GeoRecordStorage) SaveRecord(ctx context.Context, record *models.GeoRecord) error {
	if record.DocumentID == "" {
		return fmt.Errorf("geo record document ID is required")
	}
	if record.ContentHash == "" {
		record.ContentHash = models.ComputeContentHash(record.Geometry)
	}
	record.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(record.DocumentID, record); err != nil {
		return fmt.Errorf("failed to save geo record: %w", err)
	}

	event := models.NewOutboxEvent(
		common.NewEventID(),
		record.DocumentID,
		models.OutboxEventUpserted,
		nil,
		record.ContentHash,
	)
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue sync event for %s: %w", record.DocumentID, err)
	}

	s.logger.Debug().
		Str("document_id", record.DocumentID).
		Str("content_hash", record.ContentHash).
		Str("event_id", event.ID).
		Msg("Geo record saved")

	return nil
}

func (s *GeoRecordStorage) DeleteRecord(ctx context.Context, documentID string) error {
	if err := s.db.Store().Delete(documentID, &models.GeoRecord{}); err != nil {
		if err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to delete geo record: %w", err)
		}
	}

	event := models.NewOutboxEvent(
		common.NewEventID(),
		documentID,
		models.OutboxEventDeleted,
		nil,
		"",
	)
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue delete event for %s: %w", documentID, err)
	}

	return nil
}
