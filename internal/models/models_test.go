package models

import (
	"testing"
	"time"
)

// TestSyncStatusTransitions tests the legal edges of the sync-state machine.
func TestSyncStatusTransitions(t *testing.T) {
	legal := []struct {
		from, to SyncStatus
	}{
		{SyncPending, SyncQueued},
		{SyncQueued, SyncSynced},
		{SyncQueued, SyncPending},
		{SyncQueued, SyncFailed},
		{SyncSynced, SyncPending},
		{SyncSynced, SyncPendingUpdate},
		{SyncFailed, SyncPending},
		{SyncPendingUpdate, SyncQueued},
	}
	for _, tc := range legal {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("Expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to SyncStatus
	}{
		{SyncPending, SyncSynced}, // must pass through queued
		{SyncPending, SyncFailed},
		{SyncSynced, SyncQueued}, // a local edit must dirty it first
		{SyncFailed, SyncSynced},
	}
	for _, tc := range illegal {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("Expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

// TestSyncStatusIsDirty tests dirty-state classification.
func TestSyncStatusIsDirty(t *testing.T) {
	if !SyncPending.IsDirty() || !SyncPendingUpdate.IsDirty() {
		t.Error("Expected pending and pending_update to be dirty")
	}
	if SyncSynced.IsDirty() || SyncQueued.IsDirty() || SyncFailed.IsDirty() {
		t.Error("Expected synced, queued and failed to not be dirty")
	}
}

// TestLibraryItemValidatePublicationInvariant tests that a public ID
// requires a publish timestamp, while visibility may lag behind a queued
// withdrawal.
func TestLibraryItemValidatePublicationInvariant(t *testing.T) {
	item := &LibraryItem{
		ID:          "11111111-1111-4111-8111-111111111111",
		Title:       "Docking checklist",
		ContentType: ContentTypeChecklist,
		Visibility:  VisibilityPrivate,
	}
	if err := item.Validate(); err != nil {
		t.Fatalf("Expected private unpublished item to be valid: %v", err)
	}

	item.PublicID = "pub-1"
	if err := item.Validate(); err == nil {
		t.Error("Expected error: published item missing publish timestamp")
	}

	item.PublishedAt = time.Now().Unix()
	if err := item.Validate(); err != nil {
		t.Errorf("Expected published item to be valid: %v", err)
	}

	// Still valid while an unpublish waits to drain.
	item.Visibility = VisibilityPrivate
	if err := item.Validate(); err != nil {
		t.Errorf("Expected published item going private to be valid: %v", err)
	}
}

// TestCharterIsDiscoverable tests the discovery invariant.
func TestCharterIsDiscoverable(t *testing.T) {
	now := time.Now().Unix()

	c := &Charter{Visibility: CharterVisibilityCommunity, StartDate: now + 3600}
	if !c.IsDiscoverable(now) {
		t.Error("Expected community charter starting in the future to be discoverable")
	}

	c.Visibility = CharterVisibilityPrivate
	if c.IsDiscoverable(now) {
		t.Error("Expected private charter to not be discoverable")
	}

	c.Visibility = CharterVisibilityPublic
	c.StartDate = now - 3600
	if c.IsDiscoverable(now) {
		t.Error("Expected past charter to not be discoverable")
	}
}

// TestDecodeBodyDiscriminator tests that content data decodes into the type
// matching the discriminator.
func TestDecodeBodyDiscriminator(t *testing.T) {
	body, err := DecodeBody(ContentTypeChecklist,
		[]byte(`{"sections":[{"id":"s1","title":"Engine","items":[{"id":"i1","text":"Check oil","order":1}]}]}`))
	if err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	checklist, ok := body.(*ChecklistBody)
	if !ok {
		t.Fatalf("Expected *ChecklistBody, got %T", body)
	}
	if len(checklist.Sections) != 1 || checklist.Sections[0].Items[0].Text != "Check oil" {
		t.Error("Decoded checklist does not match input")
	}

	if _, err := DecodeBody("unknown", []byte(`{}`)); err == nil {
		t.Error("Expected error for unknown content type")
	}
}

// TestExecutionSetItem tests recording item state during a charter.
func TestExecutionSetItem(t *testing.T) {
	exec := &ChecklistExecution{}

	exec.SetItem("i1", true, "tight")

	entry, ok := exec.Items["i1"]
	if !ok {
		t.Fatal("Expected item entry after SetItem")
	}
	if !entry.Checked || entry.CheckedAt == 0 || entry.Notes != "tight" {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	exec.SetItem("i1", false, "")
	if exec.Items["i1"].Checked || exec.Items["i1"].CheckedAt != 0 {
		t.Error("Expected unchecking to clear checked state and timestamp")
	}
}
