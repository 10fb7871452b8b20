package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
	"github.com/halyard-app/halyard-core/internal/uuid"
)

func TestExecutionSaveUpsertsOnPair(t *testing.T) {
	repo := NewExecutionRepo(newTestDB(t))
	checklistID := uuid.New()
	charterID := uuid.New()

	exec := &models.ChecklistExecution{
		ChecklistID: models.UUID(checklistID),
		CharterID:   models.UUID(charterID),
	}
	exec.SetItem("i1", true, "")
	require.NoError(t, repo.Save(exec))
	firstID := exec.ID

	// Saving the same pair again must update, not create a second row.
	again := &models.ChecklistExecution{
		ChecklistID: models.UUID(checklistID),
		CharterID:   models.UUID(charterID),
	}
	again.SetItem("i1", true, "")
	again.SetItem("i2", true, "reefed early")
	require.NoError(t, repo.Save(again))
	assert.Equal(t, firstID, again.ID)

	got, err := repo.FetchFor(checklistID, charterID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, "reefed early", got.Items["i2"].Notes)

	all, err := repo.ListForCharter(charterID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExecutionSeparateChartersSeparateProgress(t *testing.T) {
	repo := NewExecutionRepo(newTestDB(t))
	checklistID := uuid.New()
	charterA := uuid.New()
	charterB := uuid.New()

	a := &models.ChecklistExecution{ChecklistID: models.UUID(checklistID), CharterID: models.UUID(charterA)}
	a.SetItem("i1", true, "")
	require.NoError(t, repo.Save(a))

	b := &models.ChecklistExecution{ChecklistID: models.UUID(checklistID), CharterID: models.UUID(charterB)}
	require.NoError(t, repo.Save(b))

	gotA, err := repo.FetchFor(checklistID, charterA)
	require.NoError(t, err)
	gotB, err := repo.FetchFor(checklistID, charterB)
	require.NoError(t, err)
	assert.NotEqual(t, gotA.ID, gotB.ID)
	assert.True(t, gotA.Items["i1"].Checked)
	assert.False(t, gotB.Items["i1"].Checked)
}

func TestExecutionSaveDemotesSyncedStatus(t *testing.T) {
	repo := NewExecutionRepo(newTestDB(t))
	checklistID := uuid.New()
	charterID := uuid.New()

	exec := &models.ChecklistExecution{
		ChecklistID: models.UUID(checklistID),
		CharterID:   models.UUID(charterID),
		SyncStatus:  models.SyncSynced,
	}
	require.NoError(t, repo.Save(exec))

	edit := &models.ChecklistExecution{
		ChecklistID: models.UUID(checklistID),
		CharterID:   models.UUID(charterID),
	}
	edit.SetItem("i1", true, "")
	require.NoError(t, repo.Save(edit))

	got, err := repo.FetchFor(checklistID, charterID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPending, got.SyncStatus)
	assert.Greater(t, got.UpdatedAt, exec.UpdatedAt)
}

func TestExecutionDelete(t *testing.T) {
	repo := NewExecutionRepo(newTestDB(t))
	checklistID := uuid.New()
	charterID := uuid.New()

	exec := &models.ChecklistExecution{ChecklistID: models.UUID(checklistID), CharterID: models.UUID(charterID)}
	require.NoError(t, repo.Save(exec))
	require.NoError(t, repo.Delete(checklistID, charterID))

	_, err := repo.FetchFor(checklistID, charterID)
	assert.True(t, errors.IsNotFound(err))
}
