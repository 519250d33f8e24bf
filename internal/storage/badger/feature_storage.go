package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FeatureStorage persists spatial index entries. It is the raw store behind
// the rate-limited index client; callers go through the spatial package.
type FeatureStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFeatureStorage creates a new FeatureStorage instance
func NewFeatureStorage(db *BadgerDB, logger arbor.ILogger) *FeatureStorage {
	return &FeatureStorage{
		db:     db,
		logger: logger,
	}
}

// Put creates or replaces a feature keyed by document id.
func (s *FeatureStorage) Put(ctx context.Context, feature *models.SpatialFeature) error {
	if feature.DocumentID == "" {
		return fmt.Errorf("spatial feature document ID is required")
	}
	if err := s.db.Store().Upsert(feature.DocumentID, feature); err != nil {
		return fmt.Errorf("failed to save spatial feature: %w", err)
	}
	return nil
}

// Get returns the feature for a document id, or nil when absent.
func (s *FeatureStorage) Get(ctx context.Context, documentID string) (*models.SpatialFeature, error) {
	var feature models.SpatialFeature
	if err := s.db.Store().Get(documentID, &feature); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get spatial feature: %w", err)
	}
	return &feature, nil
}

// Delete removes the feature for a document id. Deleting an absent feature is
// not an error.
func (s *FeatureStorage) Delete(ctx context.Context, documentID string) error {
	if err := s.db.Store().Delete(documentID, &models.SpatialFeature{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete spatial feature: %w", err)
	}
	return nil
}

// Count returns the number of indexed features.
func (s *FeatureStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.SpatialFeature{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count spatial features: %w", err)
	}
	return int(count), nil
}
