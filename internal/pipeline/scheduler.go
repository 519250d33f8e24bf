// -----------------------------------------------------------------------
// Retry Scheduler - Cron-driven scan requeueing failed runs
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
)

// Scheduler periodically scans for failed runs whose retry time has elapsed
// and puts them back into running. The retry budget comparison happens here,
// not in the storage query, since it relates two fields of the same run.
type Scheduler struct {
	store  interfaces.PipelineRunStorage
	events interfaces.EventService
	cron   *cron.Cron
	spec   string
	logger arbor.ILogger
}

// NewScheduler creates a retry scheduler. spec is a cron expression such as
// "@every 30s".
func NewScheduler(store interfaces.PipelineRunStorage, events interfaces.EventService, spec string, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		store:  store,
		events: events,
		cron:   cron.New(),
		spec:   spec,
		logger: logger,
	}
}

// Start registers the retry scan and begins the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		requeued, err := s.RequeueReady(context.Background(), time.Now())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Retry scan failed")
			return
		}
		if requeued > 0 {
			s.logger.Info().Int("count", requeued).Msg("Requeued failed runs for retry")
		}
	}); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.spec).Msg("Pipeline retry scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Pipeline retry scheduler stopped")
}

// RequeueReady restarts every failed run whose retry time has elapsed and
// whose retry budget is not spent. Returns the number of runs requeued.
func (s *Scheduler) RequeueReady(ctx context.Context, now time.Time) (int, error) {
	runs, err := s.store.FindRunsReadyForRetry(ctx, now)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, run := range runs {
		// The store already excludes exhausted runs; guard again so a
		// non-conforming store can never restart one.
		if run.RetryCount >= run.MaxRetries {
			s.logger.Debug().
				Str("run_id", run.RunID).
				Int("retry_count", run.RetryCount).
				Msg("Skipping run with exhausted retry budget")
			continue
		}

		if err := s.store.MarkRunning(ctx, run.RunID); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to restart run")
			continue
		}
		requeued++

		s.logger.Info().
			Str("run_id", run.RunID).
			Int("retry_count", run.RetryCount).
			Msg("Pipeline run restarted for retry")

		if s.events != nil {
			s.events.Publish(ctx, interfaces.Event{
				Type: interfaces.EventPipelineRunRetried,
				Payload: map[string]interface{}{
					"run_id":      run.RunID,
					"retry_count": run.RetryCount,
				},
			})
		}
	}

	return requeued, nil
}
