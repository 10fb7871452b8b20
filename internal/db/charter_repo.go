package db

import (
	"database/sql"
	stderrors "errors"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
)

// CharterRepo is the sole write path for charter rows.
type CharterRepo struct {
	db *DB
}

// NewCharterRepo creates a new CharterRepo.
func NewCharterRepo(db *DB) *CharterRepo {
	return &CharterRepo{db: db}
}

const charterColumns = `id, name, vessel, location, start_date, end_date, visibility,
	latitude, longitude, place_id, needs_sync, last_synced_at, server_id,
	sync_status, created_at, updated_at`

// FetchAll returns all charters, soonest start date first.
func (r *CharterRepo) FetchAll() ([]*models.Charter, error) {
	return r.fetchWhere("", nil)
}

// FetchNeedingSync returns charters whose local state has not been delivered.
func (r *CharterRepo) FetchNeedingSync() ([]*models.Charter, error) {
	return r.fetchWhere("WHERE needs_sync = 1", nil)
}

func (r *CharterRepo) fetchWhere(where string, args []interface{}) ([]*models.Charter, error) {
	query := `SELECT ` + charterColumns + ` FROM charters ` + where + ` ORDER BY start_date ASC`
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list charters", err)
	}
	defer rows.Close()

	var charters []*models.Charter
	for rows.Next() {
		c, err := scanCharter(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan charter", err)
		}
		charters = append(charters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate charters", err)
	}
	return charters, nil
}

// FetchOne returns a single charter by ID.
func (r *CharterRepo) FetchOne(id string) (*models.Charter, error) {
	query := `SELECT ` + charterColumns + ` FROM charters WHERE id = ?`
	c, err := scanCharter(r.db.QueryRow(query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrNotFound, "charter not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch charter", err)
	}
	return c, nil
}

// Save upserts a charter. Saving an existing charter preserves its original
// creation timestamp and demotes a previously-synced status to
// pending_update; either way the row comes out flagged needs_sync.
func (r *CharterRepo) Save(c *models.Charter) error {
	prior, err := r.FetchOne(string(c.ID))
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	now := models.Now()
	if prior != nil {
		c.CreatedAt = prior.CreatedAt
		c.ServerID = prior.ServerID
		c.LastSyncedAt = prior.LastSyncedAt
		if prior.SyncStatus == models.SyncSynced {
			c.SyncStatus = models.SyncPendingUpdate
		} else {
			c.SyncStatus = prior.SyncStatus
		}
		if now <= prior.UpdatedAt {
			now = prior.UpdatedAt + 1
		}
	} else {
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		if c.SyncStatus == "" {
			c.SyncStatus = models.SyncPending
		}
	}
	c.UpdatedAt = now
	c.NeedsSync = true

	return r.write(c)
}

// ApplyRemote stores a charter exactly as reconciled against the server:
// not dirty, synced, last-synced stamped now.
func (r *CharterRepo) ApplyRemote(c *models.Charter) error {
	c.NeedsSync = false
	c.SyncStatus = models.SyncSynced
	c.LastSyncedAt = models.Now()
	if c.CreatedAt == 0 {
		c.CreatedAt = c.LastSyncedAt
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.LastSyncedAt
	}
	return r.write(c)
}

func (r *CharterRepo) write(c *models.Charter) error {
	query := `INSERT INTO charters (` + charterColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, vessel = excluded.vessel, location = excluded.location,
			start_date = excluded.start_date, end_date = excluded.end_date,
			visibility = excluded.visibility, latitude = excluded.latitude,
			longitude = excluded.longitude, place_id = excluded.place_id,
			needs_sync = excluded.needs_sync, last_synced_at = excluded.last_synced_at,
			server_id = excluded.server_id, sync_status = excluded.sync_status,
			updated_at = excluded.updated_at`
	_, err := r.db.Exec(query, c.ID, c.Name, c.Vessel, c.Location, c.StartDate, c.EndDate,
		c.Visibility, c.Latitude, c.Longitude, c.PlaceID, c.NeedsSync, c.LastSyncedAt,
		c.ServerID, c.SyncStatus, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to save charter", err)
	}
	return nil
}

// Delete removes a charter row.
func (r *CharterRepo) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM charters WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete charter", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "charter not found: "+id)
	}
	return nil
}

// MarkSynced records a successful remote create/update. A non-empty server
// ID replaces the stored one, so a recreate after server-side expiry takes
// the new identity; an empty serverID keeps the existing value.
func (r *CharterRepo) MarkSynced(id, serverID string) error {
	query := `UPDATE charters SET needs_sync = 0, sync_status = ?, last_synced_at = ?,
		server_id = CASE WHEN ? = '' THEN server_id ELSE ? END
		WHERE id = ?`
	result, err := r.db.Exec(query, models.SyncSynced, models.Now(), serverID, serverID, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to mark charter synced", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "charter not found: "+id)
	}
	return nil
}

// MarkStatus sets a charter's sync status, used for the queued/failed edges.
func (r *CharterRepo) MarkStatus(id string, status models.SyncStatus) error {
	_, err := r.db.Exec(`UPDATE charters SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update charter sync status", err)
	}
	return nil
}

func scanCharter(s scanner) (*models.Charter, error) {
	var c models.Charter
	var lat, lon sql.NullFloat64
	err := s.Scan(
		&c.ID, &c.Name, &c.Vessel, &c.Location, &c.StartDate, &c.EndDate, &c.Visibility,
		&lat, &lon, &c.PlaceID, &c.NeedsSync, &c.LastSyncedAt, &c.ServerID,
		&c.SyncStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lon.Valid {
		c.Longitude = &lon.Float64
	}
	return &c, nil
}
