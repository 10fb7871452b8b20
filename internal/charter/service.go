// Package charter coordinates local charters with the remote service.
// Charters are not routed through the publish queue; each dirty row is
// delivered directly, create-or-update depending on whether the server has
// assigned an ID yet.
package charter

import (
	"context"

	"github.com/halyard-app/halyard-core/internal/api"
	"github.com/halyard-app/halyard-core/internal/db"
	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/logging"
	"github.com/halyard-app/halyard-core/internal/models"
	"github.com/halyard-app/halyard-core/internal/uuid"
)

// SyncSummary reports one charter sync pass.
type SyncSummary struct {
	Succeeded int
	Failed    int
}

// Service is the charter orchestrator.
type Service struct {
	repo   *db.CharterRepo
	client api.Client
}

// NewService creates a Service.
func NewService(repo *db.CharterRepo, client api.Client) *Service {
	return &Service{repo: repo, client: client}
}

// Charters lists all local charters.
func (s *Service) Charters() ([]*models.Charter, error) {
	return s.repo.FetchAll()
}

// Charter returns one charter.
func (s *Service) Charter(id string) (*models.Charter, error) {
	return s.repo.FetchOne(id)
}

// Save persists a charter locally. The repository flags the row needs_sync
// and demotes a previously-synced status to pending_update; delivery happens
// on the next sync pass.
func (s *Service) Save(c *models.Charter) error {
	if c.ID == "" {
		c.ID = models.UUID(uuid.New())
	}
	if c.Visibility == "" {
		c.Visibility = models.CharterVisibilityPrivate
	}
	return s.repo.Save(c)
}

// Delete removes a charter locally. Remote cleanup is not attempted: the
// server expires charters by date and keeps no reference into local state.
func (s *Service) Delete(id string) error {
	return s.repo.Delete(id)
}

// SyncAll delivers every dirty charter: create when the server has not
// assigned an ID, update otherwise. Failures are logged and the charter
// stays dirty for the next pass; one bad charter never blocks the rest.
func (s *Service) SyncAll(ctx context.Context) (SyncSummary, error) {
	dirty, err := s.repo.FetchNeedingSync()
	if err != nil {
		return SyncSummary{}, err
	}

	var summary SyncSummary
	for _, c := range dirty {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := s.syncOne(ctx, c); err != nil {
			summary.Failed++
			logging.Error("Charter sync failed", err,
				map[string]interface{}{"charter_id": c.ID})
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

func (s *Service) syncOne(ctx context.Context, c *models.Charter) error {
	if c.ServerID == "" {
		serverID, err := s.client.CreateCharter(ctx, c)
		if err != nil {
			return err
		}
		return s.repo.MarkSynced(string(c.ID), serverID)
	}

	if err := s.client.UpdateCharter(ctx, c); err != nil {
		if errors.IsNotFound(err) {
			// Server dropped the record (expired); recreate.
			serverID, createErr := s.client.CreateCharter(ctx, c)
			if createErr != nil {
				return createErr
			}
			return s.repo.MarkSynced(string(c.ID), serverID)
		}
		return err
	}
	return s.repo.MarkSynced(string(c.ID), c.ServerID)
}

// Refresh pulls the server's view of a synced charter and reconciles
// last-writer-wins at record granularity. A locally dirty charter always
// keeps its local edits; ties go to local.
func (s *Service) Refresh(ctx context.Context, id string) (*models.Charter, error) {
	local, err := s.repo.FetchOne(id)
	if err != nil {
		return nil, err
	}
	if local.ServerID == "" || local.NeedsSync {
		return local, nil
	}

	remote, err := s.client.FetchCharter(ctx, local.ServerID)
	if err != nil {
		if errors.IsNotFound(err) {
			return local, nil
		}
		return nil, err
	}

	if remote.UpdatedAt <= local.UpdatedAt {
		return local, nil
	}

	remote.ID = local.ID
	remote.ServerID = local.ServerID
	remote.CreatedAt = local.CreatedAt
	if err := s.repo.ApplyRemote(remote); err != nil {
		return nil, err
	}
	return remote, nil
}

// Discover returns one page of community charters from the remote service.
func (s *Service) Discover(ctx context.Context, limit, offset int) (*api.CharterPage, error) {
	return s.client.ListCharters(ctx, limit, offset)
}
