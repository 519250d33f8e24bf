package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *ETLJobRequest {
	return &ETLJobRequest{
		SchemaVersion: SchemaVersionETLJob,
		RunID:         "run-1",
		CreatedAt:     time.Now(),
		Input: ETLJobInput{
			Query:             "waterbeheer utrecht",
			IncludeChunks:     true,
			IncludeExtensions: ETLExtensions{Geo: true},
			GeoSource:         GeoSourcePrimary,
		},
		Models: ETLModelSelection{
			NLPModelID:        "robbert-v2",
			RDFMappingVersion: "mapping-3",
		},
		Output: ETLOutputSpec{
			Format:    "turtle",
			OutputDir: "/tmp/out",
		},
	}
}

func TestETLJobRequest_Valid(t *testing.T) {
	assert.NoError(t, validRequest().Validate())
}

func TestETLJobRequest_WrongSchemaVersion(t *testing.T) {
	request := validRequest()
	request.SchemaVersion = "etl-job@v2"

	err := request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etl-job@v1")
}

func TestETLJobRequest_InputSelectorExactlyOne(t *testing.T) {
	// Both selectors set
	request := validRequest()
	request.Input.DocumentIDs = []string{"doc-1"}
	err := request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of documentIds or query")

	// Neither selector set
	request = validRequest()
	request.Input.Query = "   "
	err = request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of documentIds or query")

	// Document ids alone is fine
	request = validRequest()
	request.Input.Query = ""
	request.Input.DocumentIDs = []string{"doc-1", "doc-2"}
	assert.NoError(t, request.Validate())
}

func TestETLJobRequest_OutputTargetExactlyOne(t *testing.T) {
	request := validRequest()
	request.Output.ArtifactStorePrefix = "s3://bucket/etl/"
	err := request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of outputDir or artifactStorePrefix")

	request = validRequest()
	request.Output.OutputDir = ""
	err = request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of outputDir or artifactStorePrefix")
}

func TestETLJobRequest_GeoSourceEnum(t *testing.T) {
	request := validRequest()
	request.Input.GeoSource = "mongo"

	err := request.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary spatial both")
}

func TestETLJobRequest_AllViolationsReportedTogether(t *testing.T) {
	request := validRequest()
	request.Models.NLPModelID = ""
	request.Models.RDFMappingVersion = ""
	request.Output.Format = "json"

	err := request.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "NLPModelID")
	assert.Contains(t, msg, "RDFMappingVersion")
	assert.Contains(t, msg, "Format")
}

func TestETLJobResult_StatusEnum(t *testing.T) {
	result := &ETLJobResult{
		SchemaVersion: SchemaVersionETLJob,
		RunID:         "run-1",
		Status:        ResultPartial,
		CompletedAt:   time.Now(),
	}
	assert.NoError(t, result.Validate())

	result.Status = "exploded"
	err := result.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "succeeded failed partial")
}

func TestETLManifest_FingerprintsMustBeSha256Hex(t *testing.T) {
	manifest := &ETLManifest{
		SchemaVersion:     SchemaVersionETLJob,
		RunID:             "run-1",
		NLPModelID:        "robbert-v2",
		RDFMappingVersion: "mapping-3",
		InputFingerprints: map[string]string{
			"doc-1": strings.Repeat("ab", 32),
		},
		Outputs:     []string{"out/doc-1.ttl"},
		GeneratedAt: time.Now(),
	}
	assert.NoError(t, manifest.Validate())

	manifest.InputFingerprints["doc-2"] = "not-a-digest"
	err := manifest.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha256 hex digest")

	// Uppercase hex is rejected, fingerprints are canonical lowercase
	manifest.InputFingerprints["doc-2"] = strings.Repeat("AB", 32)
	assert.Error(t, manifest.Validate())
}

func TestETLManifest_RequiresFingerprintsAndOutputs(t *testing.T) {
	manifest := &ETLManifest{
		SchemaVersion:     SchemaVersionETLJob,
		RunID:             "run-1",
		NLPModelID:        "robbert-v2",
		RDFMappingVersion: "mapping-3",
		GeneratedAt:       time.Now(),
	}
	assert.Error(t, manifest.Validate())
}
