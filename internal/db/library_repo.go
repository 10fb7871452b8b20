package db

import (
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repository reads and
// writes can run inside a caller-owned transaction.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// LibraryRepo is the sole write path for library item metadata and content
// bodies. In-memory copies held by UI stores are caches; every cross-cutting
// mutation goes through here.
type LibraryRepo struct {
	db *DB
}

// NewLibraryRepo creates a new LibraryRepo.
func NewLibraryRepo(db *DB) *LibraryRepo {
	return &LibraryRepo{db: db}
}

const libraryColumns = `id, title, description, content_type, visibility, creator_id,
	forked_from_id, original_author, original_public_id, fork_count,
	rating_average, rating_count, tags, language, pinned, pin_order,
	created_at, updated_at, sync_status, public_id, published_at, slug,
	view_count, can_fork`

// FetchAll returns all library item metadata, pinned items first.
func (r *LibraryRepo) FetchAll() ([]*models.LibraryItem, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_items
		ORDER BY pinned DESC, pin_order ASC, updated_at DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list library items", err)
	}
	defer rows.Close()

	var items []*models.LibraryItem
	for rows.Next() {
		item, err := scanLibraryItem(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan library item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate library items", err)
	}
	return items, nil
}

// FetchOne returns the metadata record for one item. A missing row maps to
// the distinct not-found code so callers can treat it as "deleted elsewhere".
func (r *LibraryRepo) FetchOne(id string) (*models.LibraryItem, error) {
	return fetchLibraryItem(r.db, id)
}

func fetchLibraryItem(q querier, id string) (*models.LibraryItem, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_items WHERE id = ?`
	item, err := scanLibraryItem(q.QueryRow(query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrNotFound, "library item not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch library item", err)
	}
	return item, nil
}

// FetchContent returns the full content body for an item, decoded by its
// stored discriminator. Bodies are expensive, callers front this with the
// content cache.
func (r *LibraryRepo) FetchContent(id string) (models.ContentBody, error) {
	var contentType models.ContentType
	var raw string
	err := r.db.QueryRow(`SELECT content_type, body FROM library_content WHERE id = ?`, id).
		Scan(&contentType, &raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrNotFound, "content body not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to fetch content body", err)
	}
	body, err := models.DecodeBody(contentType, []byte(raw))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "stored content body is corrupt", err)
	}
	return body, nil
}

// Save upserts an item and (when non-nil) its content body in one
// transaction.
func (r *LibraryRepo) Save(item *models.LibraryItem, body models.ContentBody) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := r.SaveTx(tx, item, body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to commit save", err)
	}
	return nil
}

// SaveTx is Save inside a caller-owned transaction, so an enqueue that
// depends on the save can commit or roll back with it.
//
// Saving an existing item preserves its original creation timestamp and
// demotes a previously-synced status to pending: a local edit always
// invalidates synced-ness without the caller managing status explicitly.
func (r *LibraryRepo) SaveTx(tx *sql.Tx, item *models.LibraryItem, body models.ContentBody) error {
	prior, err := fetchLibraryItem(tx, string(item.ID))
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	now := models.Now()
	if prior != nil {
		item.CreatedAt = prior.CreatedAt
		if prior.SyncStatus == models.SyncSynced {
			item.SyncStatus = models.SyncPending
		} else {
			item.SyncStatus = prior.SyncStatus
		}
		// Publication metadata is server-derived; callers that round-trip a
		// fetched item carry it, everyone else gets the stored values back.
		if item.PublicID == "" {
			item.PublicID = prior.PublicID
			item.PublishedAt = prior.PublishedAt
			item.Slug = prior.Slug
		}
		// Unix-second clocks can collide on rapid edits; updated_at must
		// still move forward.
		if now <= prior.UpdatedAt {
			now = prior.UpdatedAt + 1
		}
	} else {
		if item.CreatedAt == 0 {
			item.CreatedAt = now
		}
		if item.SyncStatus == "" {
			item.SyncStatus = models.SyncPending
		}
	}
	item.UpdatedAt = now

	if err := item.Validate(); err != nil {
		return errors.Wrap(errors.ErrValidation, "invalid library item", err)
	}

	if prior != nil {
		query := `UPDATE library_items SET title = ?, description = ?, content_type = ?,
			visibility = ?, creator_id = ?, forked_from_id = ?, original_author = ?,
			original_public_id = ?, fork_count = ?, rating_average = ?, rating_count = ?,
			tags = ?, language = ?, pinned = ?, pin_order = ?, updated_at = ?,
			sync_status = ?, public_id = ?, published_at = ?, slug = ?, view_count = ?,
			can_fork = ?
			WHERE id = ?`
		_, err = tx.Exec(query, item.Title, item.Description, item.ContentType,
			item.Visibility, item.CreatorID, item.ForkedFromID, item.OriginalAuthor,
			item.OriginalPublicID, item.ForkCount, item.RatingAverage, item.RatingCount,
			joinTags(item.Tags), item.Language, item.Pinned, item.PinOrder, item.UpdatedAt,
			item.SyncStatus, item.PublicID, item.PublishedAt, item.Slug, item.ViewCount,
			item.CanFork, item.ID)
	} else {
		query := `INSERT INTO library_items (` + libraryColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = tx.Exec(query, item.ID, item.Title, item.Description, item.ContentType,
			item.Visibility, item.CreatorID, item.ForkedFromID, item.OriginalAuthor,
			item.OriginalPublicID, item.ForkCount, item.RatingAverage, item.RatingCount,
			joinTags(item.Tags), item.Language, item.Pinned, item.PinOrder,
			item.CreatedAt, item.UpdatedAt, item.SyncStatus, item.PublicID,
			item.PublishedAt, item.Slug, item.ViewCount, item.CanFork)
	}
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to save library item", err)
	}

	if body != nil {
		raw, err := models.EncodeBody(body)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "failed to encode content body", err)
		}
		query := `INSERT INTO library_content (id, content_type, body) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET content_type = excluded.content_type, body = excluded.body`
		if _, err := tx.Exec(query, item.ID, body.BodyType(), string(raw)); err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to save content body", err)
		}
	}
	return nil
}

// Delete removes an item and, via the foreign key cascade, its content body.
func (r *LibraryRepo) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM library_items WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete library item", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "library item not found: "+id)
	}
	return nil
}

// MarkStatus sets an item's sync status, used by the queue service for the
// queued/pending/failed edges.
func (r *LibraryRepo) MarkStatus(id string, status models.SyncStatus) error {
	result, err := r.db.Exec(`UPDATE library_items SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update sync status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "library item not found: "+id)
	}
	return nil
}

// MarkStatusTx is MarkStatus inside a caller-owned transaction.
func (r *LibraryRepo) MarkStatusTx(tx *sql.Tx, id string, status models.SyncStatus) error {
	if _, err := tx.Exec(`UPDATE library_items SET sync_status = ? WHERE id = ?`, status, id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update sync status", err)
	}
	return nil
}

// MarkSynced records a successful remote operation. The public ID and slug
// are stamped on first publish and left alone afterwards.
func (r *LibraryRepo) MarkSynced(id, publicID, slug string) error {
	var err error
	if publicID != "" {
		_, err = r.db.Exec(`UPDATE library_items
			SET sync_status = ?, public_id = ?, slug = ?,
			    published_at = CASE WHEN published_at = 0 THEN ? ELSE published_at END
			WHERE id = ?`,
			models.SyncSynced, publicID, slug, models.Now(), id)
	} else {
		_, err = r.db.Exec(`UPDATE library_items SET sync_status = ? WHERE id = ?`,
			models.SyncSynced, id)
	}
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to mark library item synced", err)
	}
	return nil
}

// ClearPublication removes publication metadata after a successful
// unpublish. Until then an item gone private keeps its public handle so
// the pending withdrawal can still resolve it.
func (r *LibraryRepo) ClearPublication(id string) error {
	_, err := r.db.Exec(`UPDATE library_items
		SET public_id = '', published_at = 0, slug = '', sync_status = ?
		WHERE id = ?`, models.SyncSynced, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear publication metadata", err)
	}
	return nil
}

// SetForkAttribution stamps fork lineage on a freshly forked item. This is
// the best-effort write-back target; callers log failures and move on.
func (r *LibraryRepo) SetForkAttribution(id, forkedFromID, originalAuthor, originalPublicID string) error {
	_, err := r.db.Exec(`UPDATE library_items
		SET forked_from_id = ?, original_author = ?, original_public_id = ?
		WHERE id = ?`,
		forkedFromID, originalAuthor, originalPublicID, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to set fork attribution", err)
	}
	return nil
}

// IncrementForkCount bumps the local fork counter, reconciling the count the
// remote service reports for a published item.
func (r *LibraryRepo) IncrementForkCount(id string) error {
	result, err := r.db.Exec(`UPDATE library_items SET fork_count = fork_count + 1 WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to increment fork count", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "library item not found: "+id)
	}
	return nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLibraryItem(s scanner) (*models.LibraryItem, error) {
	var item models.LibraryItem
	var tags string
	err := s.Scan(
		&item.ID, &item.Title, &item.Description, &item.ContentType, &item.Visibility,
		&item.CreatorID, &item.ForkedFromID, &item.OriginalAuthor, &item.OriginalPublicID,
		&item.ForkCount, &item.RatingAverage, &item.RatingCount, &tags, &item.Language,
		&item.Pinned, &item.PinOrder, &item.CreatedAt, &item.UpdatedAt, &item.SyncStatus,
		&item.PublicID, &item.PublishedAt, &item.Slug, &item.ViewCount, &item.CanFork,
	)
	if err != nil {
		return nil, err
	}
	item.Tags = splitTags(tags)
	return &item, nil
}
