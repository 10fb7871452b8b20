package db

import (
	"database/sql"
	"fmt"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/logging"
	"github.com/halyard-app/halyard-core/internal/models"
)

// Migration is one additive schema change, versioned by name.
type Migration struct {
	Name string
	SQL  string
}

// migrations are applied in order; names are recorded in schema_migrations
// and already-applied entries are skipped. Never edit an applied migration,
// append a new one.
var migrations = []Migration{
	{
		Name: "001_library_items",
		SQL: `
		CREATE TABLE library_items (
			id                 TEXT PRIMARY KEY,
			title              TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			content_type       TEXT NOT NULL,
			visibility         TEXT NOT NULL DEFAULT 'private',
			creator_id         TEXT NOT NULL DEFAULT '',
			forked_from_id     TEXT NOT NULL DEFAULT '',
			original_author    TEXT NOT NULL DEFAULT '',
			original_public_id TEXT NOT NULL DEFAULT '',
			fork_count         INTEGER NOT NULL DEFAULT 0,
			rating_average     REAL NOT NULL DEFAULT 0,
			rating_count       INTEGER NOT NULL DEFAULT 0,
			tags               TEXT NOT NULL DEFAULT '',
			language           TEXT NOT NULL DEFAULT '',
			pinned             INTEGER NOT NULL DEFAULT 0,
			pin_order          INTEGER NOT NULL DEFAULT 0,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL,
			sync_status        TEXT NOT NULL DEFAULT 'pending',
			public_id          TEXT NOT NULL DEFAULT '',
			published_at       INTEGER NOT NULL DEFAULT 0,
			slug               TEXT NOT NULL DEFAULT '',
			view_count         INTEGER NOT NULL DEFAULT 0,
			can_fork           INTEGER NOT NULL DEFAULT 1
		);
		CREATE TABLE library_content (
			id           TEXT PRIMARY KEY REFERENCES library_items(id) ON DELETE CASCADE,
			content_type TEXT NOT NULL,
			body         TEXT NOT NULL
		);`,
	},
	{
		Name: "002_charters",
		SQL: `
		CREATE TABLE charters (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			vessel         TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT '',
			start_date     INTEGER NOT NULL DEFAULT 0,
			end_date       INTEGER NOT NULL DEFAULT 0,
			visibility     TEXT NOT NULL DEFAULT 'private',
			latitude       REAL,
			longitude      REAL,
			place_id       TEXT NOT NULL DEFAULT '',
			needs_sync     INTEGER NOT NULL DEFAULT 1,
			last_synced_at INTEGER NOT NULL DEFAULT 0,
			server_id      TEXT NOT NULL DEFAULT '',
			sync_status    TEXT NOT NULL DEFAULT 'pending',
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);`,
	},
	{
		Name: "003_sync_queue",
		SQL: `
		CREATE TABLE sync_queue (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			content_id       TEXT NOT NULL,
			operation        TEXT NOT NULL,
			visibility_state TEXT NOT NULL,
			payload          TEXT,
			created_at       INTEGER NOT NULL,
			retry_count      INTEGER NOT NULL DEFAULT 0,
			last_error       TEXT,
			synced_at        INTEGER
		);
		CREATE INDEX idx_sync_queue_pending ON sync_queue (synced_at, retry_count);
		CREATE INDEX idx_sync_queue_content ON sync_queue (content_id);`,
	},
	{
		Name: "004_checklist_executions",
		SQL: `
		CREATE TABLE checklist_executions (
			id           TEXT PRIMARY KEY,
			checklist_id TEXT NOT NULL,
			charter_id   TEXT NOT NULL,
			items        TEXT NOT NULL DEFAULT '{}',
			completed_at INTEGER,
			sync_status  TEXT NOT NULL DEFAULT 'pending',
			last_error   TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			UNIQUE (checklist_id, charter_id)
		);`,
	},
}

// Migrate applies all missing migrations in order, each in its own
// transaction.
func Migrate(db *DB) error {
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to create schema_migrations", err)
	}

	applied, err := appliedMigrations(db.DB)
	if err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to read applied migrations", err)
	}

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		if err := applyMigration(db.DB, m); err != nil {
			return errors.Wrap(errors.ErrMigration, fmt.Sprintf("migration %s failed", m.Name), err)
		}
		logging.Info("Applied migration", map[string]interface{}{"name": m.Name})
	}
	return nil
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT name FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)",
		m.Name, models.Now()); err != nil {
		return err
	}
	return tx.Commit()
}
