package models

// ExecutionItem is the checked state of one checklist item during a charter.
type ExecutionItem struct {
	Checked   bool   `json:"checked"`
	CheckedAt int64  `json:"checked_at,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ChecklistExecution is per-charter checklist progress, unique per
// (checklist, charter) pair. It is charter-local and never routed through
// the publish queue, but carries its own sync status for a future
// cloud-backup path.
type ChecklistExecution struct {
	ID          UUID                     `db:"id" json:"id"`
	ChecklistID UUID                     `db:"checklist_id" json:"checklist_id"`
	CharterID   UUID                     `db:"charter_id" json:"charter_id"`
	Items       map[string]ExecutionItem `db:"items" json:"items"`
	CompletedAt *int64                   `db:"completed_at" json:"completed_at,omitempty"`

	SyncStatus SyncStatus `db:"sync_status" json:"sync_status"`
	LastError  string     `db:"last_error" json:"last_error,omitempty"`

	CreatedAt int64 `db:"created_at" json:"created_at"`
	UpdatedAt int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for ChecklistExecution.
func (ChecklistExecution) TableName() string {
	return "checklist_executions"
}

// SetItem records the checked state of a single checklist item.
func (e *ChecklistExecution) SetItem(itemID string, checked bool, notes string) {
	if e.Items == nil {
		e.Items = make(map[string]ExecutionItem)
	}
	entry := ExecutionItem{Checked: checked, Notes: notes}
	if checked {
		entry.CheckedAt = Now()
	}
	e.Items[itemID] = entry
}
