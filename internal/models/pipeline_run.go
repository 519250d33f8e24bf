// -----------------------------------------------------------------------
// Pipeline Run - Durable state machine for extract-transform-load jobs
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// PipelineRunState is the coarse-grained run lifecycle state.
// Transitions: queued -(start)-> running -(success)-> succeeded;
// running -(error)-> failed; failed -(schedule retry, attempts<max)-> running.
type PipelineRunState string

const (
	PipelineRunQueued    PipelineRunState = "queued"
	PipelineRunRunning   PipelineRunState = "running"
	PipelineRunSucceeded PipelineRunState = "succeeded"
	PipelineRunFailed    PipelineRunState = "failed"
)

// PipelineRunError is one structured error recorded against a run.
type PipelineRunError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	DocumentID string                 `json:"document_id,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// PipelineRunStats counts the work a run performed.
type PipelineRunStats struct {
	DocumentsProcessed int `json:"documents_processed"`
	TriplesEmitted     int `json:"triples_emitted"`
	FilesWritten       int `json:"files_written"`
}

// PipelineRunProvenance records what produced a run's outputs, for
// deterministic replay. Content fingerprints are sha256 hex strings.
type PipelineRunProvenance struct {
	InputFingerprints map[string]string `json:"input_fingerprints,omitempty"` // documentID -> content fingerprint
	ParserVersions    map[string]string `json:"parser_versions,omitempty"`
	MapperVersions    map[string]string `json:"mapper_versions,omitempty"`
	ModelVersions     map[string]string `json:"model_versions,omitempty"`
}

// PipelineRun is a coarse-grained, retryable unit of an ETL job. RunID is
// globally unique; state transitions are monotonic forward except
// failed->(retry)->running.
type PipelineRun struct {
	RunID             string                 `json:"run_id" badgerhold:"key"`
	State             PipelineRunState       `json:"state"`
	Input             map[string]interface{} `json:"input"` // Immutable input config snapshot
	NLPModelID        string                 `json:"nlp_model_id"`
	RDFMappingVersion string                 `json:"rdf_mapping_version"`
	RetryCount        int                    `json:"retry_count"`
	MaxRetries        int                    `json:"max_retries"`
	NextRetryAt       *time.Time             `json:"next_retry_at,omitempty"`
	Errors            []PipelineRunError     `json:"errors,omitempty"`
	Stats             PipelineRunStats       `json:"stats"`
	Provenance        PipelineRunProvenance  `json:"provenance"`
	CreatedAt         time.Time              `json:"created_at"`
	StartedAt         *time.Time             `json:"started_at,omitempty"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
}

// NewPipelineRun creates a queued run.
func NewPipelineRun(runID string, input map[string]interface{}, nlpModelID, rdfMappingVersion string, maxRetries int) *PipelineRun {
	return &PipelineRun{
		RunID:             runID,
		State:             PipelineRunQueued,
		Input:             input,
		NLPModelID:        nlpModelID,
		RDFMappingVersion: rdfMappingVersion,
		RetryCount:        0,
		MaxRetries:        maxRetries,
		CreatedAt:         time.Now(),
	}
}

// Validate validates the pipeline run
func (r *PipelineRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.NLPModelID == "" {
		return fmt.Errorf("nlp model ID is required")
	}
	if r.RDFMappingVersion == "" {
		return fmt.Errorf("rdf mapping version is required")
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// MarkRunning marks the run as started
func (r *PipelineRun) MarkRunning() {
	r.State = PipelineRunRunning
	now := time.Now()
	r.StartedAt = &now
}

// MarkSucceeded marks the run as completed successfully
func (r *PipelineRun) MarkSucceeded() {
	r.State = PipelineRunSucceeded
	now := time.Now()
	r.CompletedAt = &now
}

// MarkFailed marks the run as failed and appends the error
func (r *PipelineRun) MarkFailed(runErr PipelineRunError) {
	r.State = PipelineRunFailed
	if runErr.OccurredAt.IsZero() {
		runErr.OccurredAt = time.Now()
	}
	r.Errors = append(r.Errors, runErr)
	now := time.Now()
	r.CompletedAt = &now
}

// ScheduleRetry bumps the retry count and sets the next eligible time. The
// run stays failed until the scheduler picks it up again.
func (r *PipelineRun) ScheduleRetry(nextRetryAt time.Time) {
	r.RetryCount++
	r.NextRetryAt = &nextRetryAt
}

// RetriesExhausted returns true when the retry budget is spent. Exhausted
// runs remain failed and are terminal until manually requeued.
func (r *PipelineRun) RetriesExhausted() bool {
	return r.RetryCount >= r.MaxRetries
}

// IsTerminal returns true if the run is in a terminal state
func (r *PipelineRun) IsTerminal() bool {
	if r.State == PipelineRunSucceeded {
		return true
	}
	return r.State == PipelineRunFailed && r.RetriesExhausted()
}
