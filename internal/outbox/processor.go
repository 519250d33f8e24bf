// -----------------------------------------------------------------------
// Outbox Processor - Applies one outbox event to the spatial index
// -----------------------------------------------------------------------

package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// Processor applies a single outbox event to the secondary spatial index.
// Processing is idempotent: replaying a completed event converges on the
// same index state.
type Processor struct {
	geo    interfaces.GeoRecordStorage
	index  interfaces.SpatialIndex
	events interfaces.EventService
	logger arbor.ILogger
}

// NewProcessor creates an outbox event processor.
func NewProcessor(geo interfaces.GeoRecordStorage, index interfaces.SpatialIndex, events interfaces.EventService, logger arbor.ILogger) *Processor {
	return &Processor{
		geo:    geo,
		index:  index,
		events: events,
		logger: logger,
	}
}

// Process applies the event. A returned error means the attempt failed and
// the event should be rescheduled or marked dead by the caller.
func (p *Processor) Process(ctx context.Context, event *models.OutboxEvent) error {
	switch event.EventType {
	case models.OutboxEventUpserted:
		return p.processUpsert(ctx, event)
	case models.OutboxEventDeleted:
		return p.processDelete(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}
}

// processUpsert syncs the current primary record to the index. The record is
// re-read at processing time: if it changed since the event was enqueued, the
// current state wins and the stale event still converges the index.
func (p *Processor) processUpsert(ctx context.Context, event *models.OutboxEvent) error {
	record, err := p.geo.GetRecord(ctx, event.DocumentID)
	if err != nil {
		if errors.Is(err, interfaces.ErrGeoRecordNotFound) {
			// The record may have been deleted after this event was enqueued;
			// the matching delete event will clean up the index. Still a
			// failure for this event so it retries rather than silently
			// dropping a sync.
			return fmt.Errorf("geo record missing for event %s: %w", event.ID, err)
		}
		return fmt.Errorf("failed to load geo record: %w", err)
	}

	if event.ContentHash != "" && event.ContentHash != record.ContentHash {
		p.logger.Debug().
			Str("event_id", event.ID).
			Str("document_id", event.DocumentID).
			Str("event_hash", event.ContentHash).
			Str("current_hash", record.ContentHash).
			Msg("Record changed since enqueue, syncing current state")
	}

	if err := p.index.UpsertFeature(ctx, record.DocumentID, record.Geometry, record.ContentHash); err != nil {
		return fmt.Errorf("failed to upsert index feature: %w", err)
	}

	p.publishSynced(ctx, event, record.ContentHash)
	return nil
}

func (p *Processor) processDelete(ctx context.Context, event *models.OutboxEvent) error {
	if err := p.index.DeleteFeature(ctx, event.DocumentID); err != nil {
		return fmt.Errorf("failed to delete index feature: %w", err)
	}

	p.publishSynced(ctx, event, "")
	return nil
}

func (p *Processor) publishSynced(ctx context.Context, event *models.OutboxEvent, contentHash string) {
	if p.events == nil {
		return
	}
	p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventGeoSynced,
		Payload: map[string]interface{}{
			"event_id":     event.ID,
			"document_id":  event.DocumentID,
			"event_type":   string(event.EventType),
			"content_hash": contentHash,
		},
	})
}
