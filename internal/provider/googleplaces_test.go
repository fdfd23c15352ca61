package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onthecheap/internal/models"
)

const googleSearchBody = `{
  "places": [
    {
      "id": "ChIJ123",
      "displayName": {"text": "Zuni Cafe"},
      "types": ["mediterranean_restaurant", "restaurant", "point_of_interest"],
      "rating": 4.4,
      "priceLevel": "PRICE_LEVEL_EXPENSIVE",
      "location": {"latitude": 37.7735, "longitude": -122.4216},
      "formattedAddress": "1658 Market St, San Francisco, CA 94102",
      "nationalPhoneNumber": "(415) 552-2522",
      "websiteUri": "https://zunicafe.com"
    },
    {
      "id": "ChIJnoloc",
      "displayName": {"text": "Nowhere"}
    }
  ]
}`

func newGoogleForTest(t *testing.T, handler http.HandlerFunc) *GooglePlaces {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGooglePlaces(Config{APIKey: "gkey", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return g
}

func TestNewGooglePlacesRequiresKey(t *testing.T) {
	_, err := NewGooglePlaces(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGooglePlacesNearbySearch(t *testing.T) {
	var body map[string]any
	g := newGoogleForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchNearby", r.URL.Path)
		assert.Equal(t, "gkey", r.Header.Get("X-Goog-Api-Key"))
		assert.True(t, strings.HasPrefix(r.Header.Get("X-Goog-FieldMask"), "places.id,places.displayName"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(googleSearchBody))
	})

	venues, err := g.Search(context.Background(), Query{Center: sfCenter, RadiusM: 80467, Limit: 50})
	require.NoError(t, err)

	assert.EqualValues(t, 20, body["maxResultCount"])
	circle := body["locationRestriction"].(map[string]any)["circle"].(map[string]any)
	assert.EqualValues(t, 50000, circle["radius"])

	require.Len(t, venues, 1)
	v := venues[0]
	assert.Equal(t, "external:google_places:ChIJ123", v.ID.String())
	assert.Equal(t, "Zuni Cafe", v.Name)
	assert.Equal(t, []string{"Mediterranean", "Restaurant"}, v.Cuisine)
	require.NotNil(t, v.PriceLevel)
	assert.Equal(t, 3, *v.PriceLevel)
	require.NotNil(t, v.Rating)
	assert.Equal(t, 4.4, *v.Rating)
	assert.Equal(t, "(415) 552-2522", v.Phone)
	assert.Empty(t, v.Specials)
}

func TestGooglePlacesTextSearch(t *testing.T) {
	var body map[string]any
	g := newGoogleForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"places": []}`))
	})

	venues, err := g.Search(context.Background(), Query{Center: sfCenter, RadiusM: 1000, Text: " tacos ", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, venues)
	assert.Equal(t, "tacos", body["textQuery"])
	assert.EqualValues(t, 5, body["pageSize"])
	assert.Contains(t, body, "locationBias")
}

func TestGooglePlacesGet(t *testing.T) {
	g := newGoogleForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "id,displayName,types,rating,priceLevel,location,formattedAddress,nationalPhoneNumber,websiteUri", r.Header.Get("X-Goog-FieldMask"))
		switch r.URL.Path {
		case "/places/ChIJ123":
			_, _ = w.Write([]byte(`{"id":"ChIJ123","location":{"latitude":37.77,"longitude":-122.42},"priceLevel":"PRICE_LEVEL_FREE"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	v, err := g.Get(context.Background(), "ChIJ123")
	require.NoError(t, err)
	assert.Equal(t, "Unknown Restaurant", v.Name)
	assert.Nil(t, v.PriceLevel)

	_, err = g.Get(context.Background(), "gone")
	assert.Equal(t, "not_found", Outcome(err))

	_, err = g.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGooglePlacesForbiddenIsAuthError(t *testing.T) {
	g := newGoogleForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := g.Search(context.Background(), Query{Center: sfCenter, RadiusM: 1000, Limit: 5})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, GooglePlacesName, authErr.Provider)
}

func TestGooglePlacesUndecodableBody(t *testing.T) {
	g := newGoogleForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := g.Search(context.Background(), Query{Center: sfCenter, RadiusM: 1000, Limit: 5})
	assert.Equal(t, "unavailable", Outcome(err))
}

func TestGoogleCuisine(t *testing.T) {
	got := googleCuisine([]string{"meal_takeaway", "south_indian_restaurant", "food", "bar"})
	assert.Equal(t, []string{"Meal Takeaway", "South Indian", "Bar"}, got)
	assert.Empty(t, googleCuisine(nil))
}

type stubProvider struct {
	name   string
	venues map[string]models.Venue
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Search(context.Context, Query) ([]models.Venue, error) {
	out := make([]models.Venue, 0, len(s.venues))
	for _, v := range s.venues {
		out = append(out, v)
	}
	return out, nil
}

func (s stubProvider) Get(_ context.Context, id string) (models.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return models.Venue{}, ErrNotFound
	}
	return v, nil
}

func TestRegistry(t *testing.T) {
	fsq := stubProvider{name: FoursquareName, venues: map[string]models.Venue{
		"abc": {ID: models.ExternalID(FoursquareName, "abc"), Name: "Stub Diner"},
	}}
	google := stubProvider{name: GooglePlacesName}
	reg := NewRegistry(fsq, nil, google, stubProvider{name: FoursquareName, venues: fsq.venues})

	assert.Equal(t, []string{FoursquareName, GooglePlacesName}, reg.Names())
	assert.Len(t, reg.All(), 2)

	v, err := reg.Lookup(context.Background(), models.ExternalID(FoursquareName, "abc"))
	require.NoError(t, err)
	assert.Equal(t, "Stub Diner", v.Name)

	_, err = reg.Lookup(context.Background(), models.ExternalID(FoursquareName, "zzz"))
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = reg.Lookup(context.Background(), models.ExternalID("yelp", "abc"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = reg.Lookup(context.Background(), models.InternalID(uuid.New()))
	assert.ErrorIs(t, err, models.ErrValidation)

	var nilReg *Registry
	_, ok := nilReg.Get(FoursquareName)
	assert.False(t, ok)
	assert.Empty(t, nilReg.All())
}
