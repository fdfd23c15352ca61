package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"onthecheap/internal/geo"
	"onthecheap/internal/models"
)

const (
	// GooglePlacesName is the provider tag used in external venue ids.
	GooglePlacesName = "google_places"

	googlePlacesBaseURL  = "https://places.googleapis.com/v1"
	googleMaxRadius      = 50000
	googleMaxResultCount = 20
	googlePlaceFields    = "id,displayName,types,rating,priceLevel,location,formattedAddress,nationalPhoneNumber,websiteUri"
)

var googleIncludedTypes = []string{"restaurant", "bar", "cafe", "meal_takeaway"}

var googlePriceLevels = map[string]int{
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// GooglePlaces implements Provider against the Places API (New).
type GooglePlaces struct {
	apiKey string
	client *client
}

// NewGooglePlaces creates a Google Places adapter.
func NewGooglePlaces(cfg Config) (*GooglePlaces, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", GooglePlacesName, ErrMissingCredentials)
	}
	return &GooglePlaces{
		apiKey: cfg.APIKey,
		client: newClient(GooglePlacesName, googlePlacesBaseURL, cfg),
	}, nil
}

type googleCircle struct {
	Center googleLatLng `json:"center"`
	Radius float64      `json:"radius"`
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type googleArea struct {
	Circle googleCircle `json:"circle"`
}

type googleNearbyRequest struct {
	IncludedTypes       []string   `json:"includedTypes"`
	MaxResultCount      int        `json:"maxResultCount"`
	LocationRestriction googleArea `json:"locationRestriction"`
}

type googleTextRequest struct {
	TextQuery    string     `json:"textQuery"`
	IncludedType string     `json:"includedType"`
	PageSize     int        `json:"pageSize"`
	LocationBias googleArea `json:"locationBias"`
}

type googleSearchResponse struct {
	Places []googlePlace `json:"places"`
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Types               []string      `json:"types"`
	Rating              *float64      `json:"rating"`
	PriceLevel          string        `json:"priceLevel"`
	Location            *googleLatLng `json:"location"`
	FormattedAddress    string        `json:"formattedAddress"`
	NationalPhoneNumber string        `json:"nationalPhoneNumber"`
	WebsiteURI          string        `json:"websiteUri"`
}

// Name implements Provider.
func (g *GooglePlaces) Name() string { return GooglePlacesName }

// Search implements Provider. A text query switches to the text search
// endpoint biased to the same circle, since nearby search ignores text.
func (g *GooglePlaces) Search(ctx context.Context, q Query) ([]models.Venue, error) {
	area := googleArea{Circle: googleCircle{
		Center: googleLatLng{Latitude: q.Center.Latitude, Longitude: q.Center.Longitude},
		Radius: float64(clamp(q.RadiusM, 1, googleMaxRadius)),
	}}
	count := clamp(q.Limit, 1, googleMaxResultCount)

	endpoint := "places:searchNearby"
	var body any = googleNearbyRequest{
		IncludedTypes:       googleIncludedTypes,
		MaxResultCount:      count,
		LocationRestriction: area,
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		endpoint = "places:searchText"
		body = googleTextRequest{
			TextQuery:    text,
			IncludedType: "restaurant",
			PageSize:     count,
			LocationBias: area,
		}
	}

	var resp googleSearchResponse
	if err := g.client.do(ctx, g.request(http.MethodPost, endpoint, body, "places."), &resp); err != nil {
		return nil, err
	}

	venues := make([]models.Venue, 0, len(resp.Places))
	for _, place := range resp.Places {
		if place.ID == "" || place.Location == nil {
			g.client.logger.Debug().Str("place_id", place.ID).Msg("skipping place without id or location")
			continue
		}
		venues = append(venues, convertGooglePlace(place))
	}
	return venues, nil
}

// Get implements Provider.
func (g *GooglePlaces) Get(ctx context.Context, providerID string) (models.Venue, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return models.Venue{}, ErrNotFound
	}

	var place googlePlace
	if err := g.client.do(ctx, g.request(http.MethodGet, "places/"+url.PathEscape(providerID), nil, ""), &place); err != nil {
		return models.Venue{}, err
	}
	if place.ID == "" {
		place.ID = providerID
	}
	return convertGooglePlace(place), nil
}

func (g *GooglePlaces) request(method, endpoint string, body any, fieldPrefix string) request {
	fields := strings.Split(googlePlaceFields, ",")
	for i := range fields {
		fields[i] = fieldPrefix + fields[i]
	}

	header := http.Header{}
	header.Set("X-Goog-Api-Key", g.apiKey)
	header.Set("X-Goog-FieldMask", strings.Join(fields, ","))
	return request{method: method, endpoint: endpoint, body: body, header: header}
}

func convertGooglePlace(p googlePlace) models.Venue {
	venue := models.Venue{
		ID:       models.ExternalID(GooglePlacesName, p.ID),
		Name:     p.DisplayName.Text,
		Address:  p.FormattedAddress,
		Phone:    p.NationalPhoneNumber,
		Website:  p.WebsiteURI,
		Rating:   p.Rating,
		Cuisine:  googleCuisine(p.Types),
		Verified: true,
		Specials: []models.Special{},
	}
	if venue.Name == "" {
		venue.Name = "Unknown Restaurant"
	}
	if p.Location != nil {
		venue.Location = geo.Coordinate{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude}
	}
	if level, ok := googlePriceLevels[p.PriceLevel]; ok {
		venue.PriceLevel = &level
	}
	return venue
}

// googleCuisine keeps the venue-type tags worth matching on, e.g.
// "meal_takeaway" -> "Meal Takeaway" and "italian_restaurant" -> "Italian".
func googleCuisine(types []string) []string {
	out := []string{}
	for _, t := range types {
		switch {
		case t == "restaurant" || t == "bar" || t == "cafe" || t == "meal_takeaway":
			out = append(out, titleWords(t))
		case strings.HasSuffix(t, "_restaurant"):
			out = append(out, titleWords(strings.TrimSuffix(t, "_restaurant")))
		}
	}
	return out
}

func titleWords(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
