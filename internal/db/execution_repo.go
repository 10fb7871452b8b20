package db

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
	"github.com/halyard-app/halyard-core/internal/uuid"
)

// ExecutionRepo owns per-charter checklist progress. Rows are unique per
// (checklist, charter) pair and never routed through the publish queue.
type ExecutionRepo struct {
	db *DB
}

// NewExecutionRepo creates a new ExecutionRepo.
func NewExecutionRepo(db *DB) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

const executionColumns = `id, checklist_id, charter_id, items, completed_at,
	sync_status, last_error, created_at, updated_at`

// FetchFor returns the execution state for a (checklist, charter) pair.
func (r *ExecutionRepo) FetchFor(checklistID, charterID string) (*models.ChecklistExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM checklist_executions
		WHERE checklist_id = ? AND charter_id = ?`
	exec, err := scanExecution(r.db.QueryRow(query, checklistID, charterID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrNotFound, "no execution state for checklist "+checklistID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch execution state", err)
	}
	return exec, nil
}

// ListForCharter returns all checklist progress recorded for a charter.
func (r *ExecutionRepo) ListForCharter(charterID string) ([]*models.ChecklistExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM checklist_executions
		WHERE charter_id = ? ORDER BY updated_at DESC`
	rows, err := r.db.Query(query, charterID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list execution state", err)
	}
	defer rows.Close()

	var execs []*models.ChecklistExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan execution state", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate execution state", err)
	}
	return execs, nil
}

// Save upserts execution state on the unique (checklist, charter) pair.
// The preservation rule applies here too: an edit to previously-synced
// progress demotes it to pending for the backup path.
func (r *ExecutionRepo) Save(exec *models.ChecklistExecution) error {
	prior, err := r.FetchFor(string(exec.ChecklistID), string(exec.CharterID))
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	now := models.Now()
	if prior != nil {
		exec.ID = prior.ID
		exec.CreatedAt = prior.CreatedAt
		if prior.SyncStatus == models.SyncSynced {
			exec.SyncStatus = models.SyncPending
		} else {
			exec.SyncStatus = prior.SyncStatus
		}
		if now <= prior.UpdatedAt {
			now = prior.UpdatedAt + 1
		}
	} else {
		if exec.ID == "" {
			exec.ID = models.UUID(uuid.New())
		}
		exec.CreatedAt = now
		if exec.SyncStatus == "" {
			exec.SyncStatus = models.SyncPending
		}
	}
	exec.UpdatedAt = now

	items, err := json.Marshal(exec.Items)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, "failed to encode execution items", err)
	}

	query := `INSERT INTO checklist_executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(checklist_id, charter_id) DO UPDATE SET
			items = excluded.items, completed_at = excluded.completed_at,
			sync_status = excluded.sync_status, last_error = excluded.last_error,
			updated_at = excluded.updated_at`
	_, err = r.db.Exec(query, exec.ID, exec.ChecklistID, exec.CharterID, string(items),
		exec.CompletedAt, exec.SyncStatus, exec.LastError, exec.CreatedAt, exec.UpdatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to save execution state", err)
	}
	return nil
}

// Delete removes the execution state for a (checklist, charter) pair.
func (r *ExecutionRepo) Delete(checklistID, charterID string) error {
	_, err := r.db.Exec(`DELETE FROM checklist_executions WHERE checklist_id = ? AND charter_id = ?`,
		checklistID, charterID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete execution state", err)
	}
	return nil
}

func scanExecution(s scanner) (*models.ChecklistExecution, error) {
	var exec models.ChecklistExecution
	var items string
	var completedAt sql.NullInt64
	err := s.Scan(&exec.ID, &exec.ChecklistID, &exec.CharterID, &items, &completedAt,
		&exec.SyncStatus, &exec.LastError, &exec.CreatedAt, &exec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Int64
	}
	if err := json.Unmarshal([]byte(items), &exec.Items); err != nil {
		return nil, err
	}
	return &exec, nil
}
