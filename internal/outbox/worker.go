// -----------------------------------------------------------------------
// Outbox Worker - Polling loop draining pending sync events
// -----------------------------------------------------------------------

package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/common"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// WorkerConfig holds the resolved outbox worker settings.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxRetries   int
	CleanupAfter time.Duration
}

// WorkerConfigFromApp resolves the worker settings from application config.
func WorkerConfigFromApp(cfg *common.Config) WorkerConfig {
	pollInterval, err := cfg.OutboxPollInterval()
	if err != nil {
		pollInterval = 5 * time.Second
	}
	cleanupAfter, err := time.ParseDuration(cfg.Outbox.CleanupAfter)
	if err != nil {
		cleanupAfter = 0
	}
	return WorkerConfig{
		PollInterval: pollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		Concurrency:  cfg.Outbox.Concurrency,
		BaseBackoff:  time.Duration(cfg.Outbox.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:   time.Duration(cfg.Outbox.MaxBackoffMs) * time.Millisecond,
		MaxRetries:   cfg.Outbox.MaxRetries,
		CleanupAfter: cleanupAfter,
	}
}

// Worker polls the outbox store and drains pending events in bounded batches.
// Only one batch is in flight at a time; within a batch, events run in groups
// of Concurrency. Stop waits for the in-flight batch to settle before
// returning.
//
// The cancellable ctx only stops the poll loop. Batches process under an
// uncancelled context so a shutdown mid-batch never fails in-flight events;
// they settle normally and Stop waits for them.
type Worker struct {
	storage      interfaces.OutboxStorage
	processor    *Processor
	events       interfaces.EventService
	config       WorkerConfig
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
	isProcessing atomic.Bool
	done         chan struct{}
}

// NewWorker creates an outbox worker.
func NewWorker(storage interfaces.OutboxStorage, processor *Processor, events interfaces.EventService, config WorkerConfig, logger arbor.ILogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if config.BatchSize < 1 {
		config.BatchSize = 10
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	return &Worker{
		storage:   storage,
		processor: processor,
		events:    events,
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start resets events orphaned in the processing state by a previous crash,
// then begins polling.
func (w *Worker) Start() error {
	reset, err := w.storage.ResetProcessing(context.Background())
	if err != nil {
		return err
	}
	if reset > 0 {
		w.logger.Info().Int("count", reset).Msg("Recovered orphaned outbox events")
	}

	w.logger.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int("batch_size", w.config.BatchSize).
		Int("concurrency", w.config.Concurrency).
		Msg("Starting outbox worker")

	common.SafeGo(w.logger, "outbox-worker", w.run)
	return nil
}

// Stop cancels polling and waits for the in-flight batch to settle.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done

	// The poll loop has exited; wait out any batch it left mid-flight.
	for w.isProcessing.Load() {
		time.Sleep(100 * time.Millisecond)
	}

	w.logger.Info().Msg("Outbox worker stopped")
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Drain whatever accumulated before startup
	w.processBatch(context.Background())

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.processBatch(context.Background())
		}
	}
}

// processBatch fetches one batch of eligible events and settles every one of
// them: completed, rescheduled with backoff, or dead. ctx must outlive the
// batch; the worker's own cancellable context is deliberately not used here.
func (w *Worker) processBatch(ctx context.Context) {
	if !w.isProcessing.CompareAndSwap(false, true) {
		// Previous batch still running; skip this tick
		return
	}
	defer w.isProcessing.Store(false)

	now := time.Now()
	events, err := w.storage.FetchPending(ctx, w.config.BatchSize, now)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to fetch pending outbox events")
		return
	}
	if len(events) == 0 {
		w.cleanup(ctx, now)
		return
	}

	w.logger.Debug().Int("count", len(events)).Msg("Processing outbox batch")

	for start := 0; start < len(events); start += w.config.Concurrency {
		end := start + w.config.Concurrency
		if end > len(events) {
			end = len(events)
		}

		var wg sync.WaitGroup
		for _, event := range events[start:end] {
			wg.Add(1)
			go func(event *models.OutboxEvent) {
				defer wg.Done()
				w.processEvent(ctx, event)
			}(event)
		}
		wg.Wait()
	}

	w.cleanup(ctx, now)
}

func (w *Worker) processEvent(ctx context.Context, event *models.OutboxEvent) {
	if err := w.storage.MarkProcessing(ctx, event.ID); err != nil {
		w.logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to mark event processing")
		return
	}

	err := w.processor.Process(ctx, event)
	if err == nil {
		if markErr := w.storage.MarkCompleted(ctx, event.ID); markErr != nil {
			w.logger.Warn().Err(markErr).Str("event_id", event.ID).Msg("Failed to mark event completed")
		}
		return
	}

	attempts := event.Attempts + 1
	if attempts >= w.config.MaxRetries {
		if markErr := w.storage.MarkDead(ctx, event.ID, err.Error()); markErr != nil {
			w.logger.Warn().Err(markErr).Str("event_id", event.ID).Msg("Failed to mark event dead")
			return
		}
		w.logger.Error().
			Str("event_id", event.ID).
			Str("document_id", event.DocumentID).
			Int("attempts", attempts).
			Err(err).
			Msg("Outbox event exhausted retries")
		if w.events != nil {
			w.events.Publish(ctx, interfaces.Event{
				Type: interfaces.EventOutboxEventDead,
				Payload: map[string]interface{}{
					"event_id":    event.ID,
					"document_id": event.DocumentID,
					"last_error":  err.Error(),
				},
			})
		}
		return
	}

	delay := Backoff(event.Attempts, w.config.BaseBackoff, w.config.MaxBackoff)
	nextRunAt := time.Now().Add(delay)
	if markErr := w.storage.RescheduleWithBackoff(ctx, event.ID, err.Error(), nextRunAt); markErr != nil {
		w.logger.Warn().Err(markErr).Str("event_id", event.ID).Msg("Failed to reschedule event")
		return
	}

	w.logger.Debug().
		Str("event_id", event.ID).
		Int("attempts", attempts).
		Dur("backoff", delay).
		Err(err).
		Msg("Outbox event rescheduled")
}

// cleanup prunes old completed events. Failures here are logged and ignored;
// cleanup runs again on the next tick.
func (w *Worker) cleanup(ctx context.Context, now time.Time) {
	if w.config.CleanupAfter <= 0 {
		return
	}
	deleted, err := w.storage.DeleteCompletedBefore(ctx, now.Add(-w.config.CleanupAfter))
	if err != nil {
		w.logger.Warn().Err(err).Msg("Outbox cleanup failed")
		return
	}
	if deleted > 0 {
		w.logger.Debug().Int("count", deleted).Msg("Pruned completed outbox events")
	}
}
