package models

// SyncStatus tracks whether local state matches the remote service.
type SyncStatus string

const (
	// SyncPending is the initial state for newly created or edited content.
	SyncPending SyncStatus = "pending"
	// SyncQueued means a network operation has been enqueued for the entity.
	SyncQueued SyncStatus = "queued"
	// SyncSynced means the last enqueued operation succeeded.
	SyncSynced SyncStatus = "synced"
	// SyncFailed means the retry cap was exceeded; a manual retry re-enters pending.
	SyncFailed SyncStatus = "failed"
	// SyncPendingUpdate marks a previously-synced charter that was edited locally.
	// Charters distinguish "never synced" from "differs from server"; library
	// items demote straight to pending.
	SyncPendingUpdate SyncStatus = "pending_update"
)

// transitions encodes the legal sync-state machine edges.
var transitions = map[SyncStatus][]SyncStatus{
	SyncPending:       {SyncQueued},
	SyncPendingUpdate: {SyncQueued},
	SyncQueued:        {SyncSynced, SyncPending, SyncFailed},
	SyncSynced:        {SyncPending, SyncPendingUpdate},
	SyncFailed:        {SyncPending, SyncPendingUpdate},
}

// CanTransition reports whether moving from s to the given state is a legal
// edge of the sync-state machine. Self-transitions are allowed.
func (s SyncStatus) CanTransition(to SyncStatus) bool {
	if s == to {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsDirty reports whether the entity differs from what the server has
// (or was never sent at all).
func (s SyncStatus) IsDirty() bool {
	return s == SyncPending || s == SyncPendingUpdate
}
