// Package seed loads the demo catalogue of San Francisco venues.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"onthecheap/internal/geo"
	"onthecheap/internal/logging"
	"onthecheap/internal/models"
	"onthecheap/internal/specials"
)

//go:embed venues.yaml
var catalogue []byte

// Store is the subset of the catalogue store the seeder needs.
type Store interface {
	CountVenues(ctx context.Context) (int, error)
	CreateVenue(ctx context.Context, v models.Venue) (models.Venue, error)
}

type file struct {
	Venues []venueEntry `yaml:"venues"`
}

type venueEntry struct {
	Name       string         `yaml:"name"`
	Address    string         `yaml:"address"`
	Latitude   float64        `yaml:"latitude"`
	Longitude  float64        `yaml:"longitude"`
	Phone      string         `yaml:"phone"`
	Website    string         `yaml:"website"`
	Cuisine    []string       `yaml:"cuisine"`
	Rating     *float64       `yaml:"rating"`
	PriceLevel *int           `yaml:"price_level"`
	Specials   []specialEntry `yaml:"specials"`
}

type specialEntry struct {
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	Type          string   `yaml:"type"`
	Price         *float64 `yaml:"price"`
	OriginalPrice *float64 `yaml:"original_price"`
	Days          []string `yaml:"days"`
	Start         string   `yaml:"start"`
	End           string   `yaml:"end"`
}

// Venues parses the embedded catalogue. Every venue and special is
// validated; ids are freshly generated.
func Venues() ([]models.Venue, error) {
	return parse(catalogue)
}

func parse(raw []byte) ([]models.Venue, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed catalogue: %w", err)
	}

	venues := make([]models.Venue, 0, len(f.Venues))
	for _, entry := range f.Venues {
		v := models.Venue{
			ID:         models.InternalID(uuid.New()),
			Name:       entry.Name,
			Address:    entry.Address,
			Location:   geo.Coordinate{Latitude: entry.Latitude, Longitude: entry.Longitude},
			Phone:      entry.Phone,
			Website:    entry.Website,
			Cuisine:    entry.Cuisine,
			Rating:     entry.Rating,
			PriceLevel: entry.PriceLevel,
			Verified:   true,
			Specials:   make([]models.Special, 0, len(entry.Specials)),
		}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("seed venue %q: %w", entry.Name, err)
		}

		for _, se := range entry.Specials {
			sp := specials.Normalize(models.Special{
				ID:            uuid.New(),
				Title:         se.Title,
				Description:   se.Description,
				Category:      models.Category(se.Type),
				Price:         se.Price,
				OriginalPrice: se.OriginalPrice,
				DaysAvailable: se.Days,
				TimeStart:     se.Start,
				TimeEnd:       se.End,
				IsActive:      true,
			})
			if err := specials.Validate(sp); err != nil {
				return nil, fmt.Errorf("seed special %q at %q: %w", se.Title, entry.Name, err)
			}
			v.Specials = append(v.Specials, sp)
		}
		venues = append(venues, v)
	}
	return venues, nil
}

// Apply inserts the catalogue when the store holds no venues and returns
// how many venues were inserted.
func Apply(ctx context.Context, st Store) (int, error) {
	logger := logging.WithComponent("seed")

	n, err := st.CountVenues(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debug().Int("venues", n).Msg("catalogue not empty, skipping seed")
		return 0, nil
	}

	venues, err := Venues()
	if err != nil {
		return 0, err
	}
	for i, v := range venues {
		if _, err := st.CreateVenue(ctx, v); err != nil {
			return i, fmt.Errorf("insert seed venue %q: %w", v.Name, err)
		}
	}
	logger.Info().Int("venues", len(venues)).Msg("inserted seed catalogue")
	return len(venues), nil
}
