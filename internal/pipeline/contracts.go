// -----------------------------------------------------------------------
// ETL Contracts - Cross-runtime job request/result/manifest schemas
// -----------------------------------------------------------------------

package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SchemaVersionETLJob is the wire schema version accepted for job requests.
const SchemaVersionETLJob = "etl-job@v1"

// Job result statuses.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultPartial   = "partial"
)

// Geo source selectors for extension extraction.
const (
	GeoSourcePrimary = "primary"
	GeoSourceSpatial = "spatial"
	GeoSourceBoth    = "both"
)

var sha256HexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ETLExtensions selects which extension extractors run for a job.
type ETLExtensions struct {
	Geo   bool `json:"geo"`
	Legal bool `json:"legal"`
	Web   bool `json:"web"`
}

// ETLJobInput selects the documents a job operates on: an explicit id list
// or a query, never both and never neither.
type ETLJobInput struct {
	DocumentIDs       []string      `json:"documentIds,omitempty" validate:"omitempty,min=1,dive,required"`
	Query             string        `json:"query,omitempty"`
	IncludeChunks     bool          `json:"includeChunks"`
	IncludeExtensions ETLExtensions `json:"includeExtensions"`
	GeoSource         string        `json:"geoSource,omitempty" validate:"omitempty,oneof=primary spatial both"`
}

// ETLModelSelection pins the model and mapping versions a job runs with, so
// results are reproducible.
type ETLModelSelection struct {
	NLPModelID        string `json:"nlpModelId" validate:"required"`
	RDFMappingVersion string `json:"rdfMappingVersion" validate:"required"`
}

// ETLOutputSpec names where job outputs land: a local directory or an
// artifact store prefix, never both and never neither.
type ETLOutputSpec struct {
	Format              string `json:"format" validate:"required,oneof=turtle"`
	OutputDir           string `json:"outputDir,omitempty"`
	ArtifactStorePrefix string `json:"artifactStorePrefix,omitempty"`
	ManifestName        string `json:"manifestName,omitempty"`
}

// ETLJobRequest is the versioned cross-runtime job submission contract.
type ETLJobRequest struct {
	SchemaVersion string            `json:"schemaVersion" validate:"required"`
	RunID         string            `json:"runId" validate:"required"`
	CreatedAt     time.Time         `json:"createdAt" validate:"required"`
	Input         ETLJobInput       `json:"input"`
	Models        ETLModelSelection `json:"models"`
	Output        ETLOutputSpec     `json:"output"`
}

// ETLJobStats counts the work a job performed.
type ETLJobStats struct {
	DocumentsProcessed int `json:"documentsProcessed"`
	TriplesEmitted     int `json:"triplesEmitted"`
	FilesWritten       int `json:"filesWritten"`
}

// ETLJobError is one structured error from a job run.
type ETLJobError struct {
	Code       string `json:"code" validate:"required"`
	Message    string `json:"message" validate:"required"`
	DocumentID string `json:"documentId,omitempty"`
}

// ETLJobResult is the cross-runtime job outcome contract.
type ETLJobResult struct {
	SchemaVersion string        `json:"schemaVersion" validate:"required"`
	RunID         string        `json:"runId" validate:"required"`
	Status        string        `json:"status" validate:"required,oneof=succeeded failed partial"`
	Stats         ETLJobStats   `json:"stats"`
	Outputs       []string      `json:"outputs,omitempty"`
	Errors        []ETLJobError `json:"errors,omitempty" validate:"dive"`
	CompletedAt   time.Time     `json:"completedAt" validate:"required"`
}

// ETLManifest records what produced a set of outputs. Input fingerprints are
// sha256 hex digests of document content at processing time; replaying a run
// against unchanged inputs must reproduce the same fingerprints.
type ETLManifest struct {
	SchemaVersion     string            `json:"schemaVersion" validate:"required"`
	RunID             string            `json:"runId" validate:"required"`
	NLPModelID        string            `json:"nlpModelId" validate:"required"`
	RDFMappingVersion string            `json:"rdfMappingVersion" validate:"required"`
	InputFingerprints map[string]string `json:"inputFingerprints" validate:"required,min=1,dive,sha256hex"`
	ParserVersions    map[string]string `json:"parserVersions,omitempty"`
	MapperVersions    map[string]string `json:"mapperVersions,omitempty"`
	Outputs           []string          `json:"outputs" validate:"required,min=1"`
	GeneratedAt       time.Time         `json:"generatedAt" validate:"required"`
}

// contractValidator is shared across calls; validator instances cache struct
// metadata and are safe for concurrent use.
var contractValidator = newContractValidator()

func newContractValidator() *validator.Validate {
	v := validator.New()

	// sha256hex matches lowercase sha256 hex digests
	_ = v.RegisterValidation("sha256hex", func(fl validator.FieldLevel) bool {
		return sha256HexPattern.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		input := sl.Current().Interface().(ETLJobInput)
		hasIDs := len(input.DocumentIDs) > 0
		hasQuery := strings.TrimSpace(input.Query) != ""
		if hasIDs == hasQuery {
			sl.ReportError(input.DocumentIDs, "documentIds", "DocumentIDs", "input_selector", "")
		}
	}, ETLJobInput{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		output := sl.Current().Interface().(ETLOutputSpec)
		hasDir := strings.TrimSpace(output.OutputDir) != ""
		hasPrefix := strings.TrimSpace(output.ArtifactStorePrefix) != ""
		if hasDir == hasPrefix {
			sl.ReportError(output.OutputDir, "outputDir", "OutputDir", "output_target", "")
		}
	}, ETLOutputSpec{})

	return v
}

// Validate checks the request against the contract, reporting all violations
// together.
func (r *ETLJobRequest) Validate() error {
	if r.SchemaVersion != SchemaVersionETLJob {
		return fmt.Errorf("unsupported schema version %q, expected %q", r.SchemaVersion, SchemaVersionETLJob)
	}
	return collectViolations(contractValidator.Struct(r))
}

// Validate checks the result against the contract.
func (r *ETLJobResult) Validate() error {
	return collectViolations(contractValidator.Struct(r))
}

// Validate checks the manifest against the contract.
func (m *ETLManifest) Validate() error {
	return collectViolations(contractValidator.Struct(m))
}

// collectViolations flattens validator errors into a single message naming
// every failing field.
func collectViolations(err error) error {
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "input_selector":
			messages = append(messages, "input requires exactly one of documentIds or query")
		case "output_target":
			messages = append(messages, "output requires exactly one of outputDir or artifactStorePrefix")
		case "sha256hex":
			messages = append(messages, fmt.Sprintf("%s must be a sha256 hex digest", fe.Namespace()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", fe.Namespace(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}

	return fmt.Errorf("contract validation failed: %s", strings.Join(messages, "; "))
}
