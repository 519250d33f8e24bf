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

// WorkflowRunStorage implements the RunManager interface for Badger
type WorkflowRunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWorkflowRunStorage creates a new WorkflowRunStorage instance
func NewWorkflowRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunManager {
	return &WorkflowRunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WorkflowRunStorage) GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}
	if run.Params == nil {
		run.Params = make(map[string]interface{})
	}
	return &run, nil
}

func (s *WorkflowRunStorage) UpdateRunParams(ctx context.Context, runID string, params map[string]interface{}) error {
	var run models.WorkflowRun
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrRunNotFound, runID)
		}
		return fmt.Errorf("failed to get workflow run: %w", err)
	}

	run.Params = params
	run.UpdatedAt = time.Now()

	if err := s.db.Store().Update(runID, &run); err != nil {
		return fmt.Errorf("failed to update workflow run params: %w", err)
	}
	return nil
}

func (s *WorkflowRunStorage) SaveRun(ctx context.Context, run *models.WorkflowRun) error {
	if run.ID == "" {
		return fmt.Errorf("workflow run ID is required")
	}
	if run.Params == nil {
		run.Params = make(map[string]interface{})
	}
	run.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save workflow run: %w", err)
	}
	return nil
}
