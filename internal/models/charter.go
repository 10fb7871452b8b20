package models

// CharterVisibility controls who can discover a charter.
type CharterVisibility string

const (
	CharterVisibilityPrivate   CharterVisibility = "private"
	CharterVisibilityCommunity CharterVisibility = "community"
	CharterVisibilityPublic    CharterVisibility = "public"
)

// Charter represents a planned trip on a vessel.
type Charter struct {
	ID       UUID   `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Vessel   string `db:"vessel" json:"vessel"`
	Location string `db:"location" json:"location"`

	StartDate int64 `db:"start_date" json:"start_date"`
	EndDate   int64 `db:"end_date" json:"end_date"`

	Visibility CharterVisibility `db:"visibility" json:"visibility"`

	// Optional geolocation.
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
	PlaceID   string   `db:"place_id" json:"place_id,omitempty"`

	NeedsSync    bool       `db:"needs_sync" json:"needs_sync"`
	LastSyncedAt int64      `db:"last_synced_at" json:"last_synced_at,omitempty"`
	ServerID     string     `db:"server_id" json:"server_id,omitempty"`
	SyncStatus   SyncStatus `db:"sync_status" json:"sync_status"`

	CreatedAt int64 `db:"created_at" json:"created_at"`
	UpdatedAt int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Charter.
func (Charter) TableName() string {
	return "charters"
}

// Touch updates the UpdatedAt timestamp.
func (c *Charter) Touch() {
	c.UpdatedAt = Now()
}

// IsDiscoverable reports whether the charter can appear in community
// discovery: non-private visibility and a start date still in the future.
func (c *Charter) IsDiscoverable(now int64) bool {
	return c.Visibility != CharterVisibilityPrivate && c.StartDate > now
}
