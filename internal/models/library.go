package models

import "fmt"

// ContentType discriminates the kinds of library content.
type ContentType string

const (
	ContentTypeChecklist     ContentType = "checklist"
	ContentTypePracticeGuide ContentType = "practice_guide"
	ContentTypeFlashcardDeck ContentType = "flashcard_deck"
)

// Visibility controls who can see a library item.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// LibraryItem is the metadata record for a syncable piece of library content.
// The full content body is a separate record joined by ID; metadata is cheap
// to list, bodies are fetched on demand.
type LibraryItem struct {
	ID          UUID        `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	Visibility  Visibility  `db:"visibility" json:"visibility"`
	CreatorID   string      `db:"creator_id" json:"creator_id"`

	// Fork lineage. Populated best-effort after a fork; empty for originals.
	ForkedFromID     string `db:"forked_from_id" json:"forked_from_id,omitempty"`
	OriginalAuthor   string `db:"original_author" json:"original_author,omitempty"`
	OriginalPublicID string `db:"original_public_id" json:"original_public_id,omitempty"`
	ForkCount        int    `db:"fork_count" json:"fork_count"`

	RatingAverage float64 `db:"rating_average" json:"rating_average"`
	RatingCount   int     `db:"rating_count" json:"rating_count"`

	Tags     []string `db:"tags" json:"tags"`
	Language string   `db:"language" json:"language"`

	Pinned   bool `db:"pinned" json:"pinned"`
	PinOrder int  `db:"pin_order" json:"pin_order"`

	CreatedAt int64 `db:"created_at" json:"created_at"`
	UpdatedAt int64 `db:"updated_at" json:"updated_at"`

	SyncStatus SyncStatus `db:"sync_status" json:"sync_status"`

	// Publication metadata, populated only once the item has a public ID.
	PublicID    string `db:"public_id" json:"public_id,omitempty"`
	PublishedAt int64  `db:"published_at" json:"published_at,omitempty"`
	Slug        string `db:"slug" json:"slug,omitempty"`
	ViewCount   int    `db:"view_count" json:"view_count"`
	CanFork     bool   `db:"can_fork" json:"can_fork"`
}

// TableName returns the table name for LibraryItem.
func (LibraryItem) TableName() string {
	return "library_items"
}

// IsPublished reports whether the item has been accepted by the remote service.
func (i *LibraryItem) IsPublished() bool {
	return i.PublicID != ""
}

// Touch updates the UpdatedAt timestamp.
func (i *LibraryItem) Touch() {
	i.UpdatedAt = Now()
}

// Validate checks basic integrity: a public ID requires a publish timestamp.
// A private item may still carry a public ID while a queued unpublish waits
// to drain; the publication metadata is cleared once the withdrawal lands.
func (i *LibraryItem) Validate() error {
	if i.Title == "" {
		return fmt.Errorf("library item %s: title is required", i.ID)
	}
	switch i.ContentType {
	case ContentTypeChecklist, ContentTypePracticeGuide, ContentTypeFlashcardDeck:
	default:
		return fmt.Errorf("library item %s: unknown content type %q", i.ID, i.ContentType)
	}
	if i.PublicID != "" && i.PublishedAt == 0 {
		return fmt.Errorf("library item %s: published item missing publish timestamp", i.ID)
	}
	return nil
}
