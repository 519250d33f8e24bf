// -----------------------------------------------------------------------
// Spatial Index - Rate-limited, idempotent secondary index client
// -----------------------------------------------------------------------

package spatial

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
	"golang.org/x/time/rate"
)

// FeatureStore is the raw persistence behind the index.
type FeatureStore interface {
	Put(ctx context.Context, feature *models.SpatialFeature) error
	Get(ctx context.Context, documentID string) (*models.SpatialFeature, error)
	Delete(ctx context.Context, documentID string) error
}

// Index is the secondary spatial store the outbox worker reconciles. Writes
// are throttled by a token-bucket limiter and keyed by content hash so a
// replayed upsert with an unchanged hash never touches the store.
type Index struct {
	features FeatureStore
	limiter  *rate.Limiter
	logger   arbor.ILogger
}

// NewIndex creates a spatial index client. A zero writeInterval disables
// throttling.
func NewIndex(features FeatureStore, writeInterval time.Duration, burst int, logger arbor.ILogger) interfaces.SpatialIndex {
	limit := rate.Inf
	if writeInterval > 0 {
		limit = rate.Every(writeInterval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Index{
		features: features,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

func (i *Index) UpsertFeature(ctx context.Context, documentID string, geometry map[string]interface{}, contentHash string) error {
	existing, err := i.features.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to read indexed feature: %w", err)
	}
	if existing != nil && existing.ContentHash == contentHash {
		i.logger.Debug().
			Str("document_id", documentID).
			Str("content_hash", contentHash).
			Msg("Index entry already current, skipping write")
		return nil
	}

	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("index write throttled: %w", err)
	}

	feature := &models.SpatialFeature{
		DocumentID:  documentID,
		Geometry:    geometry,
		ContentHash: contentHash,
		SyncedAt:    time.Now(),
	}
	if err := i.features.Put(ctx, feature); err != nil {
		return fmt.Errorf("failed to write indexed feature: %w", err)
	}

	i.logger.Debug().
		Str("document_id", documentID).
		Str("content_hash", contentHash).
		Msg("Index entry written")

	return nil
}

func (i *Index) DeleteFeature(ctx context.Context, documentID string) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("index write throttled: %w", err)
	}
	if err := i.features.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete indexed feature: %w", err)
	}
	return nil
}

func (i *Index) GetFeature(ctx context.Context, documentID string) (*models.SpatialFeature, error) {
	return i.features.Get(ctx, documentID)
}
