package charter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halyard-app/halyard-core/internal/api"
	"github.com/halyard-app/halyard-core/internal/db"
	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
)

type fakeClient struct {
	create func(c *models.Charter) (string, error)
	update func(c *models.Charter) error
	fetch  func(serverID string) (*models.Charter, error)
	list   func(limit, offset int) (*api.CharterPage, error)
}

func (f *fakeClient) CreateCharter(_ context.Context, c *models.Charter) (string, error) {
	if f.create == nil {
		return "", fmt.Errorf("unexpected CreateCharter call")
	}
	return f.create(c)
}

func (f *fakeClient) UpdateCharter(_ context.Context, c *models.Charter) error {
	if f.update == nil {
		return fmt.Errorf("unexpected UpdateCharter call")
	}
	return f.update(c)
}

func (f *fakeClient) FetchCharter(_ context.Context, serverID string) (*models.Charter, error) {
	if f.fetch == nil {
		return nil, fmt.Errorf("unexpected FetchCharter call")
	}
	return f.fetch(serverID)
}

func (f *fakeClient) ListCharters(_ context.Context, limit, offset int) (*api.CharterPage, error) {
	if f.list == nil {
		return nil, fmt.Errorf("unexpected ListCharters call")
	}
	return f.list(limit, offset)
}

func (f *fakeClient) Publish(context.Context, *api.PublishPayload) (*api.PublicContentRef, error) {
	return nil, fmt.Errorf("unexpected Publish call")
}

func (f *fakeClient) PublishUpdate(context.Context, string, *api.PublishPayload) error {
	return fmt.Errorf("unexpected PublishUpdate call")
}

func (f *fakeClient) Unpublish(context.Context, string) error {
	return fmt.Errorf("unexpected Unpublish call")
}

func (f *fakeClient) FetchShared(context.Context, string) (*api.SharedContentDetail, error) {
	return nil, fmt.Errorf("unexpected FetchShared call")
}

func (f *fakeClient) IncrementForkCount(context.Context, string) error {
	return fmt.Errorf("unexpected IncrementForkCount call")
}

func newFixture(t *testing.T) (*Service, *db.CharterRepo, *fakeClient) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	repo := db.NewCharterRepo(database)
	client := &fakeClient{}
	return NewService(repo, client), repo, client
}

func saveCharter(t *testing.T, svc *Service, name string) *models.Charter {
	t.Helper()
	c := &models.Charter{
		Name:      name,
		Vessel:    "Beneteau 40",
		Location:  "Split, Croatia",
		StartDate: models.Now() + 86400,
		EndDate:   models.Now() + 7*86400,
	}
	require.NoError(t, svc.Save(c))
	return c
}

func TestSyncAllCreatesNewCharter(t *testing.T) {
	svc, repo, client := newFixture(t)
	c := saveCharter(t, svc, "Adriatic week")

	client.create = func(got *models.Charter) (string, error) {
		assert.Equal(t, "Adriatic week", got.Name)
		return "srv-1", nil
	}

	summary, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncSummary{Succeeded: 1}, summary)

	synced, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", synced.ServerID)
	assert.False(t, synced.NeedsSync)
	assert.Equal(t, models.SyncSynced, synced.SyncStatus)
}

func TestSyncAllUpdatesExistingCharter(t *testing.T) {
	svc, repo, client := newFixture(t)
	c := saveCharter(t, svc, "Adriatic week")

	client.create = func(*models.Charter) (string, error) { return "srv-1", nil }
	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	client.create = nil

	synced, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	synced.Name = "Adriatic fortnight"
	require.NoError(t, svc.Save(synced))

	var updated bool
	client.update = func(got *models.Charter) error {
		assert.Equal(t, "srv-1", got.ServerID)
		assert.Equal(t, "Adriatic fortnight", got.Name)
		updated = true
		return nil
	}

	summary, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncSummary{Succeeded: 1}, summary)
	assert.True(t, updated)

	final, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", final.ServerID)
	assert.False(t, final.NeedsSync)
}

func TestSyncAllRecreatesExpiredCharter(t *testing.T) {
	svc, repo, client := newFixture(t)
	c := saveCharter(t, svc, "Adriatic week")

	client.create = func(*models.Charter) (string, error) { return "srv-1", nil }
	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	synced, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	synced.Name = "Adriatic week, again"
	require.NoError(t, svc.Save(synced))

	client.update = func(*models.Charter) error {
		return errors.New(errors.ErrNotFound, "charter expired")
	}
	client.create = func(*models.Charter) (string, error) { return "srv-2", nil }

	summary, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncSummary{Succeeded: 1}, summary)

	final, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "srv-2", final.ServerID, "recreate adopts the new server identity")
}

func TestSyncAllOneFailureDoesNotBlockRest(t *testing.T) {
	svc, repo, client := newFixture(t)
	bad := saveCharter(t, svc, "Bad")
	good := saveCharter(t, svc, "Good")

	client.create = func(c *models.Charter) (string, error) {
		if c.Name == "Bad" {
			return "", errors.New(errors.ErrNetwork, "connection refused")
		}
		return "srv-good", nil
	}

	summary, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncSummary{Succeeded: 1, Failed: 1}, summary)

	stillDirty, err := repo.FetchOne(string(bad.ID))
	require.NoError(t, err)
	assert.True(t, stillDirty.NeedsSync, "a failed charter stays dirty for the next pass")

	delivered, err := repo.FetchOne(string(good.ID))
	require.NoError(t, err)
	assert.False(t, delivered.NeedsSync)
}

func TestRefreshLastWriterWins(t *testing.T) {
	svc, repo, client := newFixture(t)
	c := saveCharter(t, svc, "Adriatic week")

	client.create = func(*models.Charter) (string, error) { return "srv-1", nil }
	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	local, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)

	// Remote is newer: its record wins and lands locally as synced.
	client.fetch = func(serverID string) (*models.Charter, error) {
		assert.Equal(t, "srv-1", serverID)
		return &models.Charter{
			Name:       "Adriatic week (renamed ashore)",
			Vessel:     local.Vessel,
			Location:   local.Location,
			StartDate:  local.StartDate,
			EndDate:    local.EndDate,
			Visibility: local.Visibility,
			UpdatedAt:  local.UpdatedAt + 100,
		}, nil
	}

	got, err := svc.Refresh(context.Background(), string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "Adriatic week (renamed ashore)", got.Name)

	stored, err := repo.FetchOne(string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "Adriatic week (renamed ashore)", stored.Name)
	assert.False(t, stored.NeedsSync)
	assert.Equal(t, c.ID, stored.ID, "local ID survives reconciliation")

	// Remote is older: local record is kept untouched.
	client.fetch = func(string) (*models.Charter, error) {
		return &models.Charter{Name: "Stale", UpdatedAt: stored.UpdatedAt - 100}, nil
	}
	got, err = svc.Refresh(context.Background(), string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "Adriatic week (renamed ashore)", got.Name)
}

func TestRefreshSkipsDirtyCharter(t *testing.T) {
	svc, _, _ := newFixture(t)
	c := saveCharter(t, svc, "Adriatic week")

	// Dirty local state always wins; the fetch hook stays unset on purpose.
	got, err := svc.Refresh(context.Background(), string(c.ID))
	require.NoError(t, err)
	assert.Equal(t, "Adriatic week", got.Name)
}

func TestDiscover(t *testing.T) {
	svc, _, client := newFixture(t)

	client.list = func(limit, offset int) (*api.CharterPage, error) {
		assert.Equal(t, 20, limit)
		assert.Equal(t, 40, offset)
		return &api.CharterPage{
			Items:  []*models.Charter{{Name: "Community charter"}},
			Total:  41,
			Limit:  limit,
			Offset: offset,
		}, nil
	}

	page, err := svc.Discover(context.Background(), 20, 40)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 41, page.Total)
}
