package models

import "encoding/json"

// QueueEntry is a durable record of one intended network operation.
// Rows are inserted once per triggering action and mutated only by
// incrementing the retry count, recording an error, or setting SyncedAt.
type QueueEntry struct {
	ID              int64           `db:"id" json:"id"`
	ContentID       UUID            `db:"content_id" json:"content_id"`
	Operation       string          `db:"operation" json:"operation"` // publish, publish_update, unpublish
	VisibilityState string          `db:"visibility_state" json:"visibility_state"`
	Payload         json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt       int64           `db:"created_at" json:"created_at"`
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	LastError       string          `db:"last_error" json:"last_error,omitempty"`
	SyncedAt        *int64          `db:"synced_at" json:"synced_at,omitempty"`
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}

// IsSynced reports whether the entry has been delivered.
func (e *QueueEntry) IsSynced() bool {
	return e.SyncedAt != nil
}
