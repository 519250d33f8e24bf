package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
	"github.com/ternarybob/praxis/internal/recovery"
)

func TestWorkflowRunStorage_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	storage := NewWorkflowRunStorage(db, arbor.NewLogger())
	ctx := context.Background()

	run := models.NewWorkflowRun("run-1", map[string]interface{}{"subject": "waterbeheer"})
	require.NoError(t, storage.SaveRun(ctx, run))

	stored, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "waterbeheer", stored.Params["subject"])
}

func TestWorkflowRunStorage_UpdateRunParams(t *testing.T) {
	db := newTestDB(t)
	storage := NewWorkflowRunStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveRun(ctx, models.NewWorkflowRun("run-1", nil)))
	require.NoError(t, storage.UpdateRunParams(ctx, "run-1", map[string]interface{}{
		"subject":    "bodem",
		"_bookmarks": []interface{}{"a"},
	}))

	stored, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bodem", stored.Params["subject"])

	// Reserved keys persist but stay out of the external view
	external := stored.ExternalParams()
	_, hasInternal := external["_bookmarks"]
	assert.False(t, hasInternal)
}

// Backups carry nested maps, []interface{} coordinate arrays, []string and
// time.Time inside interface-typed fields; all of them must survive the gob
// encoding badgerhold uses.
func TestWorkflowRunStorage_RecoveryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	runs := NewWorkflowRunStorage(db, arbor.NewLogger())
	svc := recovery.NewService(runs, nil, 0, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, runs.SaveRun(ctx, models.NewWorkflowRun("run-1", map[string]interface{}{
		"subject": "waterbeheer",
	})))

	backupCtx := map[string]interface{}{
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []interface{}{5.1214, 52.0907},
		},
		"themes": []string{"water", "bodem"},
	}
	for i := 1; i <= 3; i++ {
		require.NoError(t, svc.StoreBackup(ctx, "run-1", &models.ContextBackup{
			Context:   backupCtx,
			Version:   i,
			StepID:    fmt.Sprintf("step-%d", i),
			Timestamp: time.Now(),
		}))
	}

	history, err := svc.BackupHistory(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "step-1", history[0].StepID)
	assert.False(t, history[2].Timestamp.IsZero())

	result, err := svc.Recover(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "step-3", result.StepID)

	geometry, ok := result.Context["geometry"].(map[string]interface{})
	require.True(t, ok)
	coordinates, ok := geometry["coordinates"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, 5.1214, coordinates[0])
}

func TestWorkflowRunStorage_NotFound(t *testing.T) {
	db := newTestDB(t)
	storage := NewWorkflowRunStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.GetRun(ctx, "ghost")
	require.ErrorIs(t, err, interfaces.ErrRunNotFound)

	err = storage.UpdateRunParams(ctx, "ghost", map[string]interface{}{})
	require.ErrorIs(t, err, interfaces.ErrRunNotFound)
}
