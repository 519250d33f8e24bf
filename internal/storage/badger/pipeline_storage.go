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

// PipelineRunStorage implements the PipelineRunStorage interface for Badger
type PipelineRunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPipelineRunStorage creates a new PipelineRunStorage instance
func NewPipelineRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PipelineRunStorage {
	return &PipelineRunStorage{
		db:     db,
		logger: logger,
	}
}

// CreateRun inserts a new run. Insert fails on an existing key, which gives
// the unique run id guarantee.
func (s *PipelineRunStorage) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline run: %w", err)
	}

	if err := s.db.Store().Insert(run.RunID, run); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("%w: %s", interfaces.ErrDuplicateRun, run.RunID)
		}
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	s.logger.Debug().
		Str("run_id", run.RunID).
		Str("state", string(run.State)).
		Msg("Pipeline run created")

	return nil
}

func (s *PipelineRunStorage) GetRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrPipelineRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return &run, nil
}

func (s *PipelineRunStorage) UpdateRun(ctx context.Context, run *models.PipelineRun) error {
	if err := s.db.Store().Update(run.RunID, run); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrPipelineRunNotFound, run.RunID)
		}
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	return nil
}

func (s *PipelineRunStorage) MarkRunning(ctx context.Context, runID string) error {
	return s.mutate(runID, func(run *models.PipelineRun) error {
		if run.State != models.PipelineRunQueued && run.State != models.PipelineRunFailed {
			return fmt.Errorf("cannot start run %s from state %s", runID, run.State)
		}
		run.MarkRunning()
		return nil
	})
}

func (s *PipelineRunStorage) MarkSucceeded(ctx context.Context, runID string) error {
	return s.mutate(runID, func(run *models.PipelineRun) error {
		if run.State != models.PipelineRunRunning {
			return fmt.Errorf("cannot complete run %s from state %s", runID, run.State)
		}
		run.MarkSucceeded()
		return nil
	})
}

func (s *PipelineRunStorage) MarkFailed(ctx context.Context, runID string, runErr models.PipelineRunError) error {
	return s.mutate(runID, func(run *models.PipelineRun) error {
		if run.State != models.PipelineRunRunning {
			return fmt.Errorf("cannot fail run %s from state %s", runID, run.State)
		}
		run.MarkFailed(runErr)
		return nil
	})
}

func (s *PipelineRunStorage) IncrementRetry(ctx context.Context, runID string, nextRetryAt time.Time) error {
	return s.mutate(runID, func(run *models.PipelineRun) error {
		run.ScheduleRetry(nextRetryAt)
		return nil
	})
}

// FindRunsReadyForRetry returns failed runs whose next retry time has
// elapsed and whose retry budget is not spent. The budget comparison happens
// here in application code, after the query, since it relates two fields of
// the same document: an exhausted run can still carry a stale NextRetryAt.
func (s *PipelineRunStorage) FindRunsReadyForRetry(ctx context.Context, now time.Time) ([]*models.PipelineRun, error) {
	var runs []models.PipelineRun
	query := badgerhold.Where("State").Eq(models.PipelineRunFailed).
		And("NextRetryAt").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
			run, ok := ra.Record().(*models.PipelineRun)
			if !ok {
				return false, nil
			}
			return run.NextRetryAt != nil && !run.NextRetryAt.After(now), nil
		}).
		SortBy("CreatedAt")
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to find runs ready for retry: %w", err)
	}

	result := make([]*models.PipelineRun, 0, len(runs))
	for i := range runs {
		if runs[i].RetryCount >= runs[i].MaxRetries {
			continue
		}
		result = append(result, &runs[i])
	}
	return result, nil
}

func (s *PipelineRunStorage) ListRunsByState(ctx context.Context, state models.PipelineRunState) ([]*models.PipelineRun, error) {
	var runs []models.PipelineRun
	query := badgerhold.Where("State").Eq(state).SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs by state: %w", err)
	}

	result := make([]*models.PipelineRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *PipelineRunStorage) mutate(runID string, fn func(*models.PipelineRun) error) error {
	var run models.PipelineRun
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrPipelineRunNotFound, runID)
		}
		return fmt.Errorf("failed to get pipeline run: %w", err)
	}

	if err := fn(&run); err != nil {
		return err
	}

	if err := s.db.Store().Update(runID, &run); err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	return nil
}
