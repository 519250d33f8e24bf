package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/models"
)

func TestProcessor_UpsertSyncsRecordToIndex(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())
	ctx := context.Background()

	record := models.NewGeoRecord("doc-1", map[string]interface{}{"type": "Point"})
	require.NoError(t, geo.SaveRecord(ctx, record))

	event := models.NewOutboxEvent("evt-1", "doc-1", models.OutboxEventUpserted, nil, record.ContentHash)
	require.NoError(t, processor.Process(ctx, event))

	feature, err := index.GetFeature(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, feature)
	assert.Equal(t, record.ContentHash, feature.ContentHash)
}

func TestProcessor_ReplayConvergesWithoutRewriting(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())
	ctx := context.Background()

	record := models.NewGeoRecord("doc-1", map[string]interface{}{"type": "Point"})
	require.NoError(t, geo.SaveRecord(ctx, record))

	event := models.NewOutboxEvent("evt-1", "doc-1", models.OutboxEventUpserted, nil, record.ContentHash)
	require.NoError(t, processor.Process(ctx, event))
	require.NoError(t, processor.Process(ctx, event))
	require.NoError(t, processor.Process(ctx, event))

	// Reprocessing the same content hash never writes again
	assert.Equal(t, 1, index.puts)
}

func TestProcessor_StaleEventSyncsCurrentRecord(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())
	ctx := context.Background()

	// Event captured against the first version of the record
	original := models.NewGeoRecord("doc-1", map[string]interface{}{"type": "Point"})
	require.NoError(t, geo.SaveRecord(ctx, original))
	staleEvent := models.NewOutboxEvent("evt-1", "doc-1", models.OutboxEventUpserted, nil, original.ContentHash)

	// The record changes before the event is processed
	updated := models.NewGeoRecord("doc-1", map[string]interface{}{"type": "Polygon"})
	require.NoError(t, geo.SaveRecord(ctx, updated))

	require.NoError(t, processor.Process(ctx, staleEvent))

	// The index reflects the current record, not the stale snapshot
	feature, err := index.GetFeature(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, feature)
	assert.Equal(t, updated.ContentHash, feature.ContentHash)
	assert.NotEqual(t, original.ContentHash, feature.ContentHash)
}

func TestProcessor_MissingRecordIsRetryableFailure(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())

	event := models.NewOutboxEvent("evt-1", "ghost", models.OutboxEventUpserted, nil, "hash")
	err := processor.Process(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, 0, index.puts)
}

func TestProcessor_DeleteRemovesFeature(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())
	ctx := context.Background()

	record := models.NewGeoRecord("doc-1", map[string]interface{}{"type": "Point"})
	require.NoError(t, geo.SaveRecord(ctx, record))
	require.NoError(t, processor.Process(ctx, models.NewOutboxEvent("evt-1", "doc-1", models.OutboxEventUpserted, nil, record.ContentHash)))

	require.NoError(t, processor.Process(ctx, models.NewOutboxEvent("evt-2", "doc-1", models.OutboxEventDeleted, nil, "")))

	feature, err := index.GetFeature(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, feature)
}

func TestProcessor_DeleteAbsentFeatureSucceeds(t *testing.T) {
	geo := newMemGeoStorage()
	index := newMemSpatialIndex()
	processor := NewProcessor(geo, index, nil, arbor.NewLogger())

	event := models.NewOutboxEvent("evt-1", "ghost", models.OutboxEventDeleted, nil, "")
	assert.NoError(t, processor.Process(context.Background(), event))
}

func TestProcessor_UnknownEventTypeFails(t *testing.T) {
	processor := NewProcessor(newMemGeoStorage(), newMemSpatialIndex(), nil, arbor.NewLogger())

	event := models.NewOutboxEvent("evt-1", "doc-1", models.OutboxEventType("exploded"), nil, "")
	assert.Error(t, processor.Process(context.Background(), event))
}
