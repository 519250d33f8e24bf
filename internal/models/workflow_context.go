// -----------------------------------------------------------------------
// Workflow Run - Per-run context, checkpoints, and backup history
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"
)

// InternalKeyPrefix marks reserved run-parameter keys (backup history,
// checkpoint pointers). Keys with this prefix are excluded when recovering a
// context from raw run parameters.
const InternalKeyPrefix = "_"

// WorkflowRun is the stored state of a single workflow run: an open
// parameter map plus the internal recovery bookkeeping stored under
// reserved keys.
type WorkflowRun struct {
	ID        string                 `json:"id" badgerhold:"key"`
	Params    map[string]interface{} `json:"params"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewWorkflowRun creates a run with the given parameters.
func NewWorkflowRun(id string, params map[string]interface{}) *WorkflowRun {
	if params == nil {
		params = make(map[string]interface{})
	}
	now := time.Now()
	return &WorkflowRun{
		ID:        id,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExternalParams returns the run parameters excluding reserved internal keys.
func (r *WorkflowRun) ExternalParams() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Params))
	for k, v := range r.Params {
		if strings.HasPrefix(k, InternalKeyPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// ContextBackup is one historical snapshot of a run's context. Backups are
// deep copies: mutating the live context after a backup must not change it.
// A run retains at most RingCapacity backups, oldest evicted first.
type ContextBackup struct {
	Context   map[string]interface{} `json:"context"`
	Version   int                    `json:"version"` // Monotonic per run
	StepID    string                 `json:"step_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Checkpoint is the single latest known-good resumption point for a run,
// distinct from the backup ring.
type Checkpoint struct {
	StepID         string                 `json:"step_id"`
	NextStepID     string                 `json:"next_step_id,omitempty"`
	Context        map[string]interface{} `json:"context"`
	CheckpointedAt time.Time              `json:"checkpointed_at"`
	Version        int                    `json:"version"`
}

// MergeContext shallow-merges a step's output into the running context: a
// step's output keys overwrite same-named context keys. A nil result means
// "no context change".
func MergeContext(context, result map[string]interface{}) map[string]interface{} {
	if result == nil {
		return context
	}
	if context == nil {
		context = make(map[string]interface{}, len(result))
	}
	for k, v := range result {
		context[k] = v
	}
	return context
}
