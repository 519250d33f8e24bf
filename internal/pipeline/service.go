// -----------------------------------------------------------------------
// Pipeline Service - Durable run state machine operations
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/common"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// Config holds the resolved pipeline retry settings.
type Config struct {
	RetrySchedule string
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	MaxRetries    int
}

// ConfigFromApp resolves pipeline settings from application config.
func ConfigFromApp(cfg *common.Config) Config {
	return Config{
		RetrySchedule: cfg.Pipeline.RetrySchedule,
		BaseBackoff:   time.Duration(cfg.Pipeline.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:    time.Duration(cfg.Pipeline.MaxBackoffMs) * time.Millisecond,
		MaxRetries:    cfg.Pipeline.MaxRetries,
	}
}

// Service drives the run state machine: queued -> running -> succeeded, or
// running -> failed with retries scheduled until the budget is spent.
type Service struct {
	store  interfaces.PipelineRunStorage
	config Config
	logger arbor.ILogger
}

// NewService creates a pipeline run service.
func NewService(store interfaces.PipelineRunStorage, config Config, logger arbor.ILogger) *Service {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Service{
		store:  store,
		config: config,
		logger: logger,
	}
}

// SubmitRequest validates a job request and creates the queued run for it.
// The request's run id is taken as-is; a duplicate submission fails with
// ErrDuplicateRun.
func (s *Service) SubmitRequest(ctx context.Context, request *ETLJobRequest) (*models.PipelineRun, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	input := map[string]interface{}{
		"query":          request.Input.Query,
		"include_chunks": request.Input.IncludeChunks,
		"geo_source":     request.Input.GeoSource,
		"output_format":  request.Output.Format,
	}
	if len(request.Input.DocumentIDs) > 0 {
		input["document_ids"] = request.Input.DocumentIDs
	}

	run := models.NewPipelineRun(
		request.RunID,
		input,
		request.Models.NLPModelID,
		request.Models.RDFMappingVersion,
		s.config.MaxRetries,
	)
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("run_id", run.RunID).
		Str("nlp_model_id", run.NLPModelID).
		Msg("Pipeline run queued")

	return run, nil
}

// NewRun creates a queued run with a generated id.
func (s *Service) NewRun(ctx context.Context, input map[string]interface{}, nlpModelID, rdfMappingVersion string) (*models.PipelineRun, error) {
	run := models.NewPipelineRun(common.NewRunID(), input, nlpModelID, rdfMappingVersion, s.config.MaxRetries)
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Start transitions a run to running.
func (s *Service) Start(ctx context.Context, runID string) error {
	return s.store.MarkRunning(ctx, runID)
}

// Succeed transitions a run to succeeded and records its stats.
func (s *Service) Succeed(ctx context.Context, runID string, stats models.PipelineRunStats, provenance models.PipelineRunProvenance) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.State != models.PipelineRunRunning {
		return fmt.Errorf("cannot complete run %s from state %s", runID, run.State)
	}
	run.Stats = stats
	run.Provenance = provenance
	run.MarkSucceeded()
	if err := s.store.UpdateRun(ctx, run); err != nil {
		return err
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("documents", stats.DocumentsProcessed).
		Int("triples", stats.TriplesEmitted).
		Msg("Pipeline run succeeded")

	return nil
}

// Fail transitions a run to failed and, while the retry budget lasts,
// schedules the next attempt with exponential backoff. Exhausted runs stay
// failed and are only requeued manually.
func (s *Service) Fail(ctx context.Context, runID string, runErr models.PipelineRunError) error {
	if err := s.store.MarkFailed(ctx, runID, runErr); err != nil {
		return err
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	if run.RetriesExhausted() {
		s.logger.Warn().
			Str("run_id", runID).
			Int("retry_count", run.RetryCount).
			Str("error_code", runErr.Code).
			Msg("Pipeline run failed with retries exhausted")
		return nil
	}

	delay := retryBackoff(run.RetryCount, s.config.BaseBackoff, s.config.MaxBackoff)
	nextRetryAt := time.Now().Add(delay)
	if err := s.store.IncrementRetry(ctx, runID, nextRetryAt); err != nil {
		return err
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("retry_count", run.RetryCount+1).
		Dur("backoff", delay).
		Str("error_code", runErr.Code).
		Msg("Pipeline run failed, retry scheduled")

	return nil
}

// GetRun returns a run by id.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	return s.store.GetRun(ctx, runID)
}

// retryBackoff doubles the base delay per prior retry, capped at max.
func retryBackoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if max < base {
		max = base
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max || delay < 0 {
			return max
		}
	}
	return delay
}
