// -----------------------------------------------------------------------
// Context Recovery Service - Backup history and multi-strategy recovery
// -----------------------------------------------------------------------

package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/common"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// Reserved run-parameter keys used for recovery bookkeeping. All carry the
// internal prefix so raw-parameter recovery excludes them.
const (
	keyBackupHistory = "_backup_history"
	keyLatestBackup  = "_latest_backup"
	keyCheckpoint    = "_checkpoint"
)

// DefaultParallelTimeout bounds the parallel-optimized recovery race.
const DefaultParallelTimeout = 5 * time.Second

// ContextValidator is the pluggable semantic check a recovered context must
// pass. A structurally valid candidate failing this check is rejected and
// the next strategy is tried.
type ContextValidator func(context map[string]interface{}) error

// Result is the outcome of a recovery attempt. "Nothing to recover" is
// reported as Success=false, never as an error; errors are reserved for
// infrastructure failures such as a missing run.
type Result struct {
	Success  bool                   `json:"success"`
	StepID   string                 `json:"step_id,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Strategy string                 `json:"strategy,omitempty"`
}

// Service maintains a bounded backup history and latest-checkpoint pointer
// per run, and reconstructs the last valid execution context after a crash.
// Persistence goes through the external RunManager, treated as an opaque
// per-run key-value store.
type Service struct {
	runs            interfaces.RunManager
	validate        ContextValidator
	parallelTimeout time.Duration
	logger          arbor.ILogger
}

// NewService creates a recovery service. A nil validator accepts any
// non-empty context map.
func NewService(runs interfaces.RunManager, validate ContextValidator, parallelTimeout time.Duration, logger arbor.ILogger) *Service {
	if validate == nil {
		validate = defaultContextValidator
	}
	if parallelTimeout <= 0 {
		parallelTimeout = DefaultParallelTimeout
	}
	return &Service{
		runs:            runs,
		validate:        validate,
		parallelTimeout: parallelTimeout,
		logger:          logger,
	}
}

func defaultContextValidator(ctx map[string]interface{}) error {
	if len(ctx) == 0 {
		return fmt.Errorf("context is empty")
	}
	return nil
}

// StoreBackup appends a backup to the run's ring buffer, evicting the oldest
// entry past capacity, and stores the latest-backup pointer. The context is
// deep-copied: callers may keep mutating the live context afterwards. This
// is an explicit write invoked before risky mutations, not automatic.
func (s *Service) StoreBackup(ctx context.Context, runID string, backup *models.ContextBackup) error {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run for backup: %w", err)
	}

	stored := &models.ContextBackup{
		Context:   common.DeepCloneMap(backup.Context),
		Version:   backup.Version,
		StepID:    backup.StepID,
		Timestamp: backup.Timestamp,
		Metadata:  common.DeepCloneMap(backup.Metadata),
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}

	ring := FromSnapshot(decodeBackupHistory(run.Params[keyBackupHistory]))
	ring.Push(stored)

	run.Params[keyBackupHistory] = encodeBackupHistory(ring.Snapshot())
	run.Params[keyLatestBackup] = encodeBackup(stored)

	if err := s.runs.UpdateRunParams(ctx, runID, run.Params); err != nil {
		return fmt.Errorf("failed to persist backup: %w", err)
	}

	s.logger.Debug().
		Str("run_id", runID).
		Str("step_id", stored.StepID).
		Int("version", stored.Version).
		Int("history_len", ring.Len()).
		Msg("Context backup stored")

	return nil
}

// StoreCheckpoint replaces the single latest known-good resumption point,
// distinct from the backup ring.
func (s *Service) StoreCheckpoint(ctx context.Context, runID string, cp *models.Checkpoint) error {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run for checkpoint: %w", err)
	}

	stored := &models.Checkpoint{
		StepID:         cp.StepID,
		NextStepID:     cp.NextStepID,
		Context:        common.DeepCloneMap(cp.Context),
		CheckpointedAt: cp.CheckpointedAt,
		Version:        cp.Version,
	}
	if stored.CheckpointedAt.IsZero() {
		stored.CheckpointedAt = time.Now()
	}

	run.Params[keyCheckpoint] = encodeCheckpoint(stored)

	if err := s.runs.UpdateRunParams(ctx, runID, run.Params); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

// BackupHistory returns the run's retained backups oldest-first.
func (s *Service) BackupHistory(ctx context.Context, runID string) ([]*models.ContextBackup, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return decodeBackupHistory(run.Params[keyBackupHistory]), nil
}

// Recover attempts sequential recovery: checkpoint, then most recent valid
// backup, then raw run parameters, stopping at the first success.
func (s *Service) Recover(ctx context.Context, runID string) (*Result, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("recovery failed: %w", err)
	}

	strategies := []struct {
		name string
		fn   func(*models.WorkflowRun) *Result
	}{
		{"checkpoint", s.recoverFromCheckpoint},
		{"backup", s.recoverFromBackup},
		{"params", s.recoverFromParams},
	}

	for _, strategy := range strategies {
		if result := strategy.fn(run); result != nil {
			result.Strategy = strategy.name
			s.logger.Info().
				Str("run_id", runID).
				Str("strategy", strategy.name).
				Str("step_id", result.StepID).
				Msg("Context recovered")
			return result, nil
		}
		s.logger.Debug().
			Str("run_id", runID).
			Str("strategy", strategy.name).
			Msg("Recovery strategy not applicable")
	}

	return &Result{Success: false}, nil
}

// RecoverParallel races all three recovery strategies concurrently under a
// single timeout. The first strategy (in precedence order) to succeed wins;
// the others' results are discarded. Strategies are side-effect-free reads,
// so discarding is safe.
func (s *Service) RecoverParallel(ctx context.Context, runID string) (*Result, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("recovery failed: %w", err)
	}

	type attempt struct {
		name   string
		result *Result
	}

	strategies := []struct {
		name string
		fn   func(*models.WorkflowRun) *Result
	}{
		{"checkpoint", s.recoverFromCheckpoint},
		{"backup", s.recoverFromBackup},
		{"params", s.recoverFromParams},
	}

	// Buffered so losing strategies never block after the race is decided.
	results := make(chan attempt, len(strategies))
	for _, strategy := range strategies {
		go func(name string, fn func(*models.WorkflowRun) *Result) {
			results <- attempt{name: name, result: fn(run)}
		}(strategy.name, strategy.fn)
	}

	timer := time.NewTimer(s.parallelTimeout)
	defer timer.Stop()

	for received := 0; received < len(strategies); received++ {
		select {
		case a := <-results:
			if a.result == nil {
				continue
			}
			a.result.Strategy = a.name
			s.logger.Info().
				Str("run_id", runID).
				Str("strategy", a.name).
				Msg("Context recovered (parallel)")
			return a.result, nil
		case <-timer.C:
			s.logger.Warn().
				Str("run_id", runID).
				Dur("timeout", s.parallelTimeout).
				Msg("Parallel recovery timed out")
			return &Result{Success: false}, nil
		case <-ctx.Done():
			return &Result{Success: false}, nil
		}
	}

	return &Result{Success: false}, nil
}

// recoverFromCheckpoint tries the latest checkpoint pointer.
func (s *Service) recoverFromCheckpoint(run *models.WorkflowRun) *Result {
	candidate, ok := run.Params[keyCheckpoint].(map[string]interface{})
	if !ok {
		return nil
	}
	return s.acceptCandidate(candidate)
}

// recoverFromBackup tries the most recent structurally valid backup from the
// ring, newest first.
func (s *Service) recoverFromBackup(run *models.WorkflowRun) *Result {
	history := decodeBackupHistory(run.Params[keyBackupHistory])
	for i := len(history) - 1; i >= 0; i-- {
		if result := s.acceptCandidate(encodeBackup(history[i])); result != nil {
			return result
		}
	}
	return nil
}

// recoverFromParams falls back to the raw run parameters, excluding internal
// keys. There is no step to resume from, so the step id is empty.
func (s *Service) recoverFromParams(run *models.WorkflowRun) *Result {
	external := run.ExternalParams()
	if err := s.validate(external); err != nil {
		return nil
	}
	return &Result{
		Success: true,
		Context: common.DeepCloneMap(external),
	}
}

// acceptCandidate applies the structural then semantic checks to a stored
// checkpoint/backup shape. Returns nil when the candidate doesn't apply.
func (s *Service) acceptCandidate(candidate map[string]interface{}) *Result {
	stepID, okStep := candidate["step_id"].(string)
	contextMap, okCtx := candidate["context"].(map[string]interface{})
	if !okStep || stepID == "" || !okCtx {
		return nil
	}
	if err := s.validate(contextMap); err != nil {
		return nil
	}
	return &Result{
		Success: true,
		StepID:  stepID,
		Context: common.DeepCloneMap(contextMap),
	}
}

// --- persisted shapes -------------------------------------------------

// Backups and checkpoints are stored inside the run's parameter map as plain
// JSON-shaped maps so the RunManager stays an opaque key-value store.

func encodeBackup(b *models.ContextBackup) map[string]interface{} {
	return map[string]interface{}{
		"context":   b.Context,
		"version":   b.Version,
		"step_id":   b.StepID,
		"timestamp": b.Timestamp,
		"metadata":  b.Metadata,
	}
}

func encodeBackupHistory(backups []*models.ContextBackup) []interface{} {
	out := make([]interface{}, len(backups))
	for i, b := range backups {
		out[i] = encodeBackup(b)
	}
	return out
}

func encodeCheckpoint(cp *models.Checkpoint) map[string]interface{} {
	return map[string]interface{}{
		"step_id":         cp.StepID,
		"next_step_id":    cp.NextStepID,
		"context":         cp.Context,
		"checkpointed_at": cp.CheckpointedAt,
		"version":         cp.Version,
	}
}

func decodeBackupHistory(raw interface{}) []*models.ContextBackup {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*models.ContextBackup, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		backup := &models.ContextBackup{}
		backup.StepID, _ = m["step_id"].(string)
		backup.Context, _ = m["context"].(map[string]interface{})
		backup.Metadata, _ = m["metadata"].(map[string]interface{})
		switch v := m["version"].(type) {
		case int:
			backup.Version = v
		case float64:
			backup.Version = int(v)
		}
		switch ts := m["timestamp"].(type) {
		case time.Time:
			backup.Timestamp = ts
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				backup.Timestamp = parsed
			}
		}
		out = append(out, backup)
	}
	return out
}
