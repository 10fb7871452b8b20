package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
	"github.com/halyard-app/halyard-core/internal/uuid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, Migrate(database))
	return database
}

func newChecklist(title string) (*models.LibraryItem, *models.ChecklistBody) {
	item := &models.LibraryItem{
		ID:          models.UUID(uuid.New()),
		Title:       title,
		ContentType: models.ContentTypeChecklist,
		Visibility:  models.VisibilityPrivate,
		Tags:        []string{"engine", "departure"},
	}
	body := &models.ChecklistBody{
		Sections: []models.ChecklistSection{
			{ID: "s1", Title: "Engine", Items: []models.ChecklistItem{
				{ID: "i1", Text: "Check oil", Order: 1},
			}},
		},
	}
	return item, body
}

func TestLibrarySavePreservesCreationTime(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")

	require.NoError(t, repo.Save(item, body))
	first, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)

	item.Title = "Departure v2"
	require.NoError(t, repo.Save(item, body))
	second, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "creation time must survive re-save")
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt, "updated_at must strictly advance")
	assert.Equal(t, "Departure v2", second.Title)
}

func TestLibrarySaveDemotesSyncedStatus(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")
	item.Visibility = models.VisibilityPublic

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.MarkSynced(string(item.ID), "pub-1", "departure"))

	synced, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	require.Equal(t, models.SyncSynced, synced.SyncStatus)

	synced.Title = "Departure edited"
	require.NoError(t, repo.Save(synced, nil))

	edited, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, models.SyncPending, edited.SyncStatus, "local edit must invalidate synced-ness")
}

func TestLibrarySavePreservesNonSyncedStatus(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.MarkStatus(string(item.ID), models.SyncFailed))

	item.Title = "Departure edited"
	require.NoError(t, repo.Save(item, nil))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, got.SyncStatus, "non-synced status is preserved across saves")
}

func TestLibrarySavePreservesPublicationMetadata(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")
	item.Visibility = models.VisibilityUnlisted

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.MarkSynced(string(item.ID), "pub-1", "departure"))

	// A bare save without publication fields must not lose them.
	bare := &models.LibraryItem{
		ID:          item.ID,
		Title:       "Departure edited",
		ContentType: models.ContentTypeChecklist,
		Visibility:  models.VisibilityUnlisted,
	}
	require.NoError(t, repo.Save(bare, nil))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, "pub-1", got.PublicID)
	assert.Equal(t, "departure", got.Slug)
	assert.NotZero(t, got.PublishedAt)
}

func TestLibraryFetchOneNotFound(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))

	_, err := repo.FetchOne(uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "missing rows map to the not-found code")
}

func TestLibraryBodyRoundTripAndCascade(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")

	require.NoError(t, repo.Save(item, body))

	got, err := repo.FetchContent(string(item.ID))
	require.NoError(t, err)
	checklist, ok := got.(*models.ChecklistBody)
	require.True(t, ok)
	assert.Equal(t, "Check oil", checklist.Sections[0].Items[0].Text)

	require.NoError(t, repo.Delete(string(item.ID)))

	_, err = repo.FetchOne(string(item.ID))
	assert.True(t, errors.IsNotFound(err))
	_, err = repo.FetchContent(string(item.ID))
	assert.True(t, errors.IsNotFound(err), "delete must cascade to the body row")
}

func TestLibraryTagsRoundTrip(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")

	require.NoError(t, repo.Save(item, body))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"engine", "departure"}, got.Tags)
}

func TestLibraryClearPublication(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")
	item.Visibility = models.VisibilityPublic

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.MarkSynced(string(item.ID), "pub-1", "departure"))
	require.NoError(t, repo.ClearPublication(string(item.ID)))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Empty(t, got.PublicID)
	assert.Empty(t, got.Slug)
	assert.Zero(t, got.PublishedAt)
	assert.Equal(t, models.SyncSynced, got.SyncStatus)
}

func TestLibraryIncrementForkCount(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Departure")

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.IncrementForkCount(string(item.ID)))
	require.NoError(t, repo.IncrementForkCount(string(item.ID)))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, got.ForkCount)

	err = repo.IncrementForkCount(uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestLibrarySetForkAttribution(t *testing.T) {
	repo := NewLibraryRepo(newTestDB(t))
	item, body := newChecklist("Forked checklist")

	require.NoError(t, repo.Save(item, body))
	require.NoError(t, repo.SetForkAttribution(string(item.ID), "src-1", "skipper42", "src-1"))

	got, err := repo.FetchOne(string(item.ID))
	require.NoError(t, err)
	assert.Equal(t, "src-1", got.ForkedFromID)
	assert.Equal(t, "skipper42", got.OriginalAuthor)
	assert.Equal(t, "src-1", got.OriginalPublicID)
}
