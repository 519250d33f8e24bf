package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/praxis/internal/models"
)

var (
	// ErrEventNotFound is returned for unknown outbox event ids.
	ErrEventNotFound = errors.New("outbox event not found")

	// ErrGeoRecordNotFound is returned when a document has no geo record in
	// the primary store.
	ErrGeoRecordNotFound = errors.New("geo record not found")

	// ErrDuplicateRun is returned when creating a pipeline run whose run id
	// already exists (unique index semantics).
	ErrDuplicateRun = errors.New("pipeline run already exists")

	// ErrPipelineRunNotFound is returned for unknown pipeline run ids.
	ErrPipelineRunNotFound = errors.New("pipeline run not found")
)

// OutboxStorage is the append/update log of pending side-effects. Events are
// owned by the store; the worker holds only a momentary lock-by-convention
// ("pick next pending batch").
type OutboxStorage interface {
	// Enqueue appends a new pending event.
	Enqueue(ctx context.Context, event *models.OutboxEvent) error

	// GetEvent returns an event by id, or ErrEventNotFound.
	GetEvent(ctx context.Context, eventID string) (*models.OutboxEvent, error)

	// FetchPending returns up to limit pending events whose NextRunAt has
	// elapsed, ordered oldest-first.
	FetchPending(ctx context.Context, limit int, now time.Time) ([]*models.OutboxEvent, error)

	// MarkProcessing transitions an event to the in-flight state.
	MarkProcessing(ctx context.Context, eventID string) error

	// MarkCompleted transitions an event to the terminal completed state.
	MarkCompleted(ctx context.Context, eventID string) error

	// RescheduleWithBackoff records a failure: increments attempts, stores
	// lastError, and sets NextRunAt so the event becomes eligible again after
	// the backoff elapses.
	RescheduleWithBackoff(ctx context.Context, eventID string, lastError string, nextRunAt time.Time) error

	// MarkDead transitions an event past its retry budget to the terminal
	// failed state for manual remediation.
	MarkDead(ctx context.Context, eventID string, lastError string) error

	// ResetProcessing returns events left in-flight by a crashed run back to
	// pending. Called once on worker startup before the first poll.
	ResetProcessing(ctx context.Context) (int, error)

	// DeleteCompletedBefore removes completed events older than cutoff.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// CountByStatus returns the number of events in the given status.
	CountByStatus(ctx context.Context, status models.OutboxStatus) (int, error)
}

// GeoRecordStorage is the primary-store view of document geometry records,
// the source of truth an upserted outbox event refers to.
type GeoRecordStorage interface {
	// GetRecord returns the current geo record for a document id, or
	// ErrGeoRecordNotFound.
	GetRecord(ctx context.Context, documentID string) (*models.GeoRecord, error)

	// SaveRecord creates or replaces a geo record and returns the enqueued
	// outbox event describing the change.
	SaveRecord(ctx context.Context, record *models.GeoRecord) error

	// DeleteRecord removes a geo record.
	DeleteRecord(ctx context.Context, documentID string) error
}

// SpatialIndex is the derived secondary store the outbox reconciles. Both
// operations are idempotent: upserting the same document id with the same
// content hash is a no-op write, and deleting an absent entry is not an error.
type SpatialIndex interface {
	// UpsertFeature writes a feature keyed by document id, passing the
	// content hash as the idempotency token.
	UpsertFeature(ctx context.Context, documentID string, geometry map[string]interface{}, contentHash string) error

	// DeleteFeature removes the feature for a document id (tolerant delete).
	DeleteFeature(ctx context.Context, documentID string) error

	// GetFeature returns the indexed feature, or nil when absent.
	GetFeature(ctx context.Context, documentID string) (*models.SpatialFeature, error)
}

// PipelineRunStorage persists the coarse-grained durable run state machine.
type PipelineRunStorage interface {
	// CreateRun inserts a new run. Re-creating an existing run id fails with
	// ErrDuplicateRun.
	CreateRun(ctx context.Context, run *models.PipelineRun) error

	// GetRun returns a run by id, or ErrPipelineRunNotFound.
	GetRun(ctx context.Context, runID string) (*models.PipelineRun, error)

	// UpdateRun replaces a stored run.
	UpdateRun(ctx context.Context, run *models.PipelineRun) error

	// MarkRunning transitions queued/failed -> running.
	MarkRunning(ctx context.Context, runID string) error

	// MarkSucceeded transitions running -> succeeded.
	MarkSucceeded(ctx context.Context, runID string) error

	// MarkFailed transitions running -> failed and appends the error.
	MarkFailed(ctx context.Context, runID string, runErr models.PipelineRunError) error

	// IncrementRetry bumps retryCount and sets the next eligible retry time.
	IncrementRetry(ctx context.Context, runID string, nextRetryAt time.Time) error

	// FindRunsReadyForRetry returns failed runs whose NextRetryAt has elapsed
	// and whose retry budget is not spent. Implementations apply the
	// retryCount < maxRetries comparison in application code after the query,
	// since it compares two fields of one document; runs past their budget
	// never appear in the result.
	FindRunsReadyForRetry(ctx context.Context, now time.Time) ([]*models.PipelineRun, error)

	// ListRunsByState returns runs in the given state, newest first.
	ListRunsByState(ctx context.Context, state models.PipelineRunState) ([]*models.PipelineRun, error)
}
