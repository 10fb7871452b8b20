package api

import "github.com/halyard-app/halyard-core/internal/models"

// charterDTO is the wire shape for charters. The server speaks snake_case
// and identifies charters by its own ID; the client ID rides along so the
// server can echo it back for reconciliation.
type charterDTO struct {
	ID         string   `json:"id,omitempty"`
	ClientID   string   `json:"client_id"`
	Name       string   `json:"name"`
	Vessel     string   `json:"vessel"`
	Location   string   `json:"location"`
	StartDate  int64    `json:"start_date"`
	EndDate    int64    `json:"end_date"`
	Visibility string   `json:"visibility"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	PlaceID    string   `json:"place_id,omitempty"`
	UpdatedAt  int64    `json:"updated_at"`
}

// charterPageDTO is the paginated listing envelope.
type charterPageDTO struct {
	Items  []charterDTO `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// charterRefDTO is the server's acknowledgment of a charter create.
type charterRefDTO struct {
	ID string `json:"id"`
}

func toCharterDTO(c *models.Charter) charterDTO {
	return charterDTO{
		ID:         c.ServerID,
		ClientID:   string(c.ID),
		Name:       c.Name,
		Vessel:     c.Vessel,
		Location:   c.Location,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
		Visibility: string(c.Visibility),
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
		PlaceID:    c.PlaceID,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromCharterDTO(d charterDTO) *models.Charter {
	return &models.Charter{
		ID:         models.UUID(d.ClientID),
		ServerID:   d.ID,
		Name:       d.Name,
		Vessel:     d.Vessel,
		Location:   d.Location,
		StartDate:  d.StartDate,
		EndDate:    d.EndDate,
		Visibility: models.CharterVisibility(d.Visibility),
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
		PlaceID:    d.PlaceID,
		UpdatedAt:  d.UpdatedAt,
	}
}
