package db

import (
	"database/sql"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
)

// QueueRepo owns the durable sync_queue table. Rows survive process death;
// they are mutated only by incrementing retry_count / recording an error or
// by stamping synced_at, and are removed only by explicit pruning.
type QueueRepo struct {
	db *DB
}

// NewQueueRepo creates a new QueueRepo.
func NewQueueRepo(db *DB) *QueueRepo {
	return &QueueRepo{db: db}
}

const queueColumns = `id, content_id, operation, visibility_state, payload,
	created_at, retry_count, last_error, synced_at`

// Insert appends a queue entry in its own transaction.
func (r *QueueRepo) Insert(entry *models.QueueEntry) error {
	return r.insert(r.db, entry)
}

// InsertTx appends a queue entry inside the caller's transaction so it
// commits or rolls back with the local mutation that triggered it.
func (r *QueueRepo) InsertTx(tx *sql.Tx, entry *models.QueueEntry) error {
	return r.insert(tx, entry)
}

func (r *QueueRepo) insert(q querier, entry *models.QueueEntry) error {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = models.Now()
	}
	var payload interface{}
	if len(entry.Payload) > 0 {
		payload = string(entry.Payload)
	}
	result, err := q.Exec(`INSERT INTO sync_queue
		(content_id, operation, visibility_state, payload, created_at, retry_count, last_error, synced_at)
		VALUES (?, ?, ?, ?, ?, 0, NULL, NULL)`,
		entry.ContentID, entry.Operation, entry.VisibilityState, payload, entry.CreatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to insert queue entry", err)
	}
	entry.ID, _ = result.LastInsertId()
	entry.RetryCount = 0
	return nil
}

// FetchPending returns undelivered entries below the retry cap in FIFO
// creation order. Entries at or over the cap are failed-permanent and are
// excluded until an explicit reset.
func (r *QueueRepo) FetchPending(maxRetries int) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue
		WHERE synced_at IS NULL AND retry_count < ?
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(query, maxRetries)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch pending queue entries", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan queue entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate queue entries", err)
	}
	return entries, nil
}

// FetchForContent returns all entries for one content ID, oldest first.
func (r *QueueRepo) FetchForContent(contentID string) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue
		WHERE content_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(query, contentID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch queue entries", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan queue entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate queue entries", err)
	}
	return entries, nil
}

// MarkSynced stamps an entry delivered. Terminal for the row.
func (r *QueueRepo) MarkSynced(id int64) error {
	_, err := r.db.Exec(`UPDATE sync_queue SET synced_at = ?, last_error = NULL WHERE id = ?`,
		models.Now(), id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to mark queue entry synced", err)
	}
	return nil
}

// RecordFailure increments the retry counter and stores the error text.
// Returns the new retry count so the caller can compare against its cap.
func (r *QueueRepo) RecordFailure(id int64, errText string) (int, error) {
	_, err := r.db.Exec(`UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`,
		errText, id)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to record queue failure", err)
	}
	var count int
	if err := r.db.QueryRow(`SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to read retry count", err)
	}
	return count, nil
}

// Counts reports sync health: pending = undelivered under the cap,
// failed = undelivered at or over the cap.
func (r *QueueRepo) Counts(maxRetries int) (pending, failed int, err error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN retry_count < ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN retry_count >= ? THEN 1 ELSE 0 END), 0)
		FROM sync_queue WHERE synced_at IS NULL`
	if err := r.db.QueryRow(query, maxRetries, maxRetries).Scan(&pending, &failed); err != nil {
		return 0, 0, errors.Wrap(errors.ErrDatabase, "failed to count queue entries", err)
	}
	return pending, failed, nil
}

// ResetFailed re-enters failed-permanent entries for a content ID into the
// retryable pool: retry count back to zero, error cleared. Returns how many
// entries were reset.
func (r *QueueRepo) ResetFailed(contentID string, maxRetries int) (int, error) {
	result, err := r.db.Exec(`UPDATE sync_queue SET retry_count = 0, last_error = NULL
		WHERE content_id = ? AND synced_at IS NULL AND retry_count >= ?`,
		contentID, maxRetries)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to reset failed queue entries", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// PruneSynced removes delivered entries older than the cutoff. Retention
// policy only; nothing in the sync path depends on pruning.
func (r *QueueRepo) PruneSynced(olderThan int64) (int, error) {
	result, err := r.db.Exec(`DELETE FROM sync_queue WHERE synced_at IS NOT NULL AND synced_at < ?`,
		olderThan)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to prune synced queue entries", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanQueueEntry(s scanner) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	var payload, lastError sql.NullString
	var syncedAt sql.NullInt64
	err := s.Scan(&entry.ID, &entry.ContentID, &entry.Operation, &entry.VisibilityState,
		&payload, &entry.CreatedAt, &entry.RetryCount, &lastError, &syncedAt)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		entry.Payload = []byte(payload.String)
	}
	if lastError.Valid {
		entry.LastError = lastError.String
	}
	if syncedAt.Valid {
		entry.SyncedAt = &syncedAt.Int64
	}
	return &entry, nil
}
