package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/praxis/internal/models"
)

// ErrRunNotFound is returned when a workflow run id has no stored run.
var ErrRunNotFound = errors.New("run not found")

// RunManager is the opaque per-run key-value persistence the recovery
// service and backup storage depend on. Runs are keyed by run id; keys with
// the reserved "_" prefix are internal (backup history, checkpoint pointers)
// and excluded from raw-parameter recovery.
type RunManager interface {
	// GetRun returns the run for runID, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error)

	// UpdateRunParams replaces the stored parameter map for runID.
	UpdateRunParams(ctx context.Context, runID string, params map[string]interface{}) error

	// SaveRun creates or replaces a run.
	SaveRun(ctx context.Context, run *models.WorkflowRun) error
}
