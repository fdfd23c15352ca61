package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"onthecheap/internal/geo"
	"onthecheap/internal/models"
)

const (
	// FoursquareName is the provider tag used in external venue ids.
	FoursquareName = "foursquare"

	foursquareBaseURL = "https://api.foursquare.com/v3"
	// general restaurant category
	foursquareRestaurantCategory = "13065"
	foursquareSearchFields       = "fsq_id,name,geocodes,location,categories,rating,price,photos,website,tel"
	foursquareDetailFields       = foursquareSearchFields + ",hours"
	foursquareMaxRadius          = 100000
	foursquareMaxLimit           = 50
)

// Foursquare implements Provider against the Foursquare Places API.
type Foursquare struct {
	apiKey string
	client *client
}

// NewFoursquare creates a Foursquare adapter.
func NewFoursquare(cfg Config) (*Foursquare, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", FoursquareName, ErrMissingCredentials)
	}
	return &Foursquare{
		apiKey: cfg.APIKey,
		client: newClient(FoursquareName, foursquareBaseURL, cfg),
	}, nil
}

// Foursquare API response structures
type foursquareSearchResponse struct {
	Results []foursquarePlace `json:"results"`
}

type foursquarePlace struct {
	FsqID    string `json:"fsq_id"`
	Name     string `json:"name"`
	Geocodes struct {
		Main *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
	Location struct {
		Address          string `json:"address"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Rating  *float64          `json:"rating"`
	Price   *int              `json:"price"`
	Photos  []foursquarePhoto `json:"photos"`
	Website string            `json:"website"`
	Tel     string            `json:"tel"`
}

type foursquarePhoto struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Name implements Provider.
func (f *Foursquare) Name() string { return FoursquareName }

// Search implements Provider.
func (f *Foursquare) Search(ctx context.Context, q Query) ([]models.Venue, error) {
	params := url.Values{}
	params.Set("ll", formatCoordinate(q.Center))
	params.Set("radius", strconv.Itoa(clamp(q.RadiusM, 1, foursquareMaxRadius)))
	params.Set("categories", foursquareRestaurantCategory)
	params.Set("limit", strconv.Itoa(clamp(q.Limit, 1, foursquareMaxLimit)))
	params.Set("fields", foursquareSearchFields)
	if text := strings.TrimSpace(q.Text); text != "" {
		params.Set("query", text)
	}

	var resp foursquareSearchResponse
	if err := f.client.do(ctx, f.request("places/search", params), &resp); err != nil {
		return nil, err
	}

	venues := make([]models.Venue, 0, len(resp.Results))
	for _, place := range resp.Results {
		if place.FsqID == "" || place.Geocodes.Main == nil {
			f.client.logger.Debug().Str("fsq_id", place.FsqID).Msg("skipping place without id or coordinates")
			continue
		}
		venues = append(venues, convertFoursquarePlace(place))
	}
	return venues, nil
}

// Get implements Provider.
func (f *Foursquare) Get(ctx context.Context, providerID string) (models.Venue, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return models.Venue{}, ErrNotFound
	}

	params := url.Values{}
	params.Set("fields", foursquareDetailFields)

	var place foursquarePlace
	if err := f.client.do(ctx, f.request("places/"+url.PathEscape(providerID), params), &place); err != nil {
		return models.Venue{}, err
	}
	if place.FsqID == "" {
		place.FsqID = providerID
	}
	return convertFoursquarePlace(place), nil
}

func (f *Foursquare) request(endpoint string, params url.Values) request {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.apiKey)
	return request{method: http.MethodGet, endpoint: endpoint, params: params, header: header}
}

func convertFoursquarePlace(p foursquarePlace) models.Venue {
	venue := models.Venue{
		ID:       models.ExternalID(FoursquareName, p.FsqID),
		Name:     p.Name,
		Address:  p.Location.FormattedAddress,
		Phone:    p.Tel,
		Website:  p.Website,
		Cuisine:  []string{},
		Verified: true,
		Specials: []models.Special{},
	}
	if venue.Address == "" {
		venue.Address = p.Location.Address
	}
	if p.Geocodes.Main != nil {
		venue.Location = geo.Coordinate{Latitude: p.Geocodes.Main.Latitude, Longitude: p.Geocodes.Main.Longitude}
	}
	for _, c := range p.Categories {
		if c.Name != "" {
			venue.Cuisine = append(venue.Cuisine, c.Name)
		}
	}
	if p.Rating != nil {
		// Foursquare rates out of 10
		r := *p.Rating / 2
		venue.Rating = &r
	}
	if p.Price != nil && *p.Price >= 1 && *p.Price <= 4 {
		price := *p.Price
		venue.PriceLevel = &price
	}
	for _, photo := range p.Photos {
		if photo.Prefix != "" && photo.Suffix != "" {
			venue.Photos = append(venue.Photos, photo.Prefix+"300x300"+photo.Suffix)
		}
	}
	return venue
}

func formatCoordinate(c geo.Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
