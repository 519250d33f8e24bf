// -----------------------------------------------------------------------
// Outbox Event - Durable record of a pending side-effect
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// OutboxEventType identifies the kind of change an event carries.
type OutboxEventType string

const (
	OutboxEventUpserted OutboxEventType = "upserted"
	OutboxEventDeleted  OutboxEventType = "deleted"
)

// OutboxStatus is the lifecycle state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a durable record of a pending side-effect to be applied to
// the secondary store. Lifecycle: created pending -> picked up (processing)
// -> completed, or rescheduled with backoff back to pending. Events that
// exhaust their retry budget become permanently failed and require manual
// intervention.
//
// The idempotency key is (DocumentID, ContentHash): reprocessing the same
// hash must be a no-op write to the secondary store.
type OutboxEvent struct {
	ID          string                 `json:"id" badgerhold:"key"`
	DocumentID  string                 `json:"document_id"`
	EventType   OutboxEventType        `json:"event_type"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	ContentHash string                 `json:"content_hash,omitempty"` // Hash of the geometry captured at enqueue time
	Status      OutboxStatus           `json:"status"`
	Attempts    int                    `json:"attempts"`
	LastError   string                 `json:"last_error,omitempty"`
	NextRunAt   time.Time              `json:"next_run_at"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewOutboxEvent creates a pending event eligible for immediate pickup.
func NewOutboxEvent(id, documentID string, eventType OutboxEventType, payload map[string]interface{}, contentHash string) *OutboxEvent {
	now := time.Now()
	return &OutboxEvent{
		ID:          id,
		DocumentID:  documentID,
		EventType:   eventType,
		Payload:     payload,
		ContentHash: contentHash,
		Status:      OutboxStatusPending,
		Attempts:    0,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate validates the outbox event
func (e *OutboxEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event ID is required")
	}
	if e.DocumentID == "" {
		return fmt.Errorf("event document ID is required")
	}
	if e.EventType != OutboxEventUpserted && e.EventType != OutboxEventDeleted {
		return fmt.Errorf("invalid event type '%s' - must be one of: upserted, deleted", e.EventType)
	}
	return nil
}

// MarkProcessing transitions the event to the in-flight state.
func (e *OutboxEvent) MarkProcessing() {
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now()
}

// MarkCompleted transitions the event to the terminal completed state.
func (e *OutboxEvent) MarkCompleted() {
	e.Status = OutboxStatusCompleted
	e.UpdatedAt = time.Now()
}

// ScheduleRetry records a failure and makes the event eligible again once
// nextRunAt elapses.
func (e *OutboxEvent) ScheduleRetry(lastError string, nextRunAt time.Time) {
	e.Status = OutboxStatusPending
	e.Attempts++
	e.LastError = lastError
	e.NextRunAt = nextRunAt
	e.UpdatedAt = time.Now()
}

// MarkDead transitions the event to the terminal failed state. Dead events
// are never retried automatically.
func (e *OutboxEvent) MarkDead(lastError string) {
	e.Status = OutboxStatusFailed
	e.LastError = lastError
	e.UpdatedAt = time.Now()
}

// IsTerminal returns true if the event is in a terminal state
func (e *OutboxEvent) IsTerminal() bool {
	return e.Status == OutboxStatusCompleted || e.Status == OutboxStatusFailed
}

// RetriesExhausted returns true when attempts have reached the budget.
func (e *OutboxEvent) RetriesExhausted(maxRetries int) bool {
	return e.Attempts >= maxRetries
}
