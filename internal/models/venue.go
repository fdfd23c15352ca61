package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/geo"
)

// Venue is a restaurant, bar or cafe. Internal venues are stored in the
// catalogue with their specials; external venues are rebuilt from a provider
// on every request and never carry specials.
type Venue struct {
	ID               VenueID        `json:"id"`
	Name             string         `json:"name"`
	Address          string         `json:"address"`
	Location         geo.Coordinate `json:"location"`
	Phone            string         `json:"phone,omitempty"`
	Website          string         `json:"website,omitempty"`
	Cuisine          []string       `json:"cuisine_type"`
	Rating           *float64       `json:"rating,omitempty"`
	PriceLevel       *int           `json:"price_level,omitempty"`
	Photos           []string       `json:"photos,omitempty"`
	Verified         bool           `json:"is_verified"`
	OwnerID          *uuid.UUID     `json:"owner_id,omitempty"`
	SourceExternalID *VenueID       `json:"source_external_id,omitempty"`
	Specials         []Special      `json:"specials"`
	CreatedAt        time.Time      `json:"created_at"`
}

// IsInternal reports whether the venue belongs to the catalogue.
func (v Venue) IsInternal() bool {
	return v.ID.Kind() == KindInternal
}

// MatchesText reports whether the name or any cuisine tag contains query,
// ignoring case. An empty query matches everything.
func (v Venue) MatchesText(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(v.Name), q) {
		return true
	}
	for _, c := range v.Cuisine {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// FindSpecial returns the index of the special with id, or -1.
func (v Venue) FindSpecial(id uuid.UUID) int {
	for i, s := range v.Specials {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks the fields an owner supplies when creating a venue.
func (v Venue) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return Invalid("name", "is required")
	}
	if strings.TrimSpace(v.Address) == "" {
		return Invalid("address", "is required")
	}
	if err := v.Location.Validate(); err != nil {
		return Invalid("location", "%v", err)
	}
	if v.PriceLevel != nil && (*v.PriceLevel < 1 || *v.PriceLevel > 4) {
		return Invalid("price_level", "must be between 1 and 4")
	}
	if v.Rating != nil && (*v.Rating < 0 || *v.Rating > 5) {
		return Invalid("rating", "must be between 0 and 5")
	}
	return nil
}
