package favorites

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onthecheap/internal/models"
	"onthecheap/internal/provider"
)

type memStore struct {
	favorites []string
	venues    map[uuid.UUID]models.Venue
	batches   int
}

func (m *memStore) AddFavorite(_ context.Context, _ uuid.UUID, id string) error {
	for _, f := range m.favorites {
		if f == id {
			return nil
		}
	}
	m.favorites = append(m.favorites, id)
	return nil
}

func (m *memStore) RemoveFavorite(_ context.Context, _ uuid.UUID, id string) error {
	out := m.favorites[:0]
	for _, f := range m.favorites {
		if f != id {
			out = append(out, f)
		}
	}
	m.favorites = out
	return nil
}

func (m *memStore) Favorites(context.Context, uuid.UUID) ([]string, error) {
	return append([]string(nil), m.favorites...), nil
}

func (m *memStore) GetVenues(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Venue, error) {
	m.batches++
	out := map[uuid.UUID]models.Venue{}
	for _, id := range ids {
		if v, ok := m.venues[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type stubProvider struct {
	name   string
	venues map[string]models.Venue
	err    error
	delay  time.Duration
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Search(context.Context, provider.Query) ([]models.Venue, error) {
	return nil, nil
}

func (p stubProvider) Get(ctx context.Context, id string) (models.Venue, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.Venue{}, &provider.UnavailableError{Provider: p.name, Err: ctx.Err()}
		}
	}
	if p.err != nil {
		return models.Venue{}, p.err
	}
	v, ok := p.venues[id]
	if !ok {
		return models.Venue{}, provider.ErrNotFound
	}
	return v, nil
}

func TestAddRejectsMalformedIDs(t *testing.T) {
	st := &memStore{}
	svc := New(st, nil, time.Second)
	user := uuid.New()

	for _, raw := range []string{"", "google_ChIJ", "internal:nope", "external:foursquare:"} {
		err := svc.Add(context.Background(), user, raw)
		assert.ErrorIs(t, err, models.ErrValidation, raw)
	}
	assert.ErrorIs(t, svc.Remove(context.Background(), user, "bogus"), models.ErrValidation)
	assert.Empty(t, st.favorites)
}

func TestAddRemoveIdempotent(t *testing.T) {
	st := &memStore{}
	svc := New(st, nil, time.Second)
	user := uuid.New()
	id := "external:foursquare:4b5c"

	require.NoError(t, svc.Add(context.Background(), user, id))
	require.NoError(t, svc.Add(context.Background(), user, " "+id))
	assert.Equal(t, []string{id}, st.favorites)

	require.NoError(t, svc.Remove(context.Background(), user, id))
	require.NoError(t, svc.Remove(context.Background(), user, id))
	assert.Empty(t, st.favorites)
}

func TestListResolvesInOrderAndOmitsFailures(t *testing.T) {
	inA, inB := uuid.New(), uuid.New()
	st := &memStore{
		venues: map[uuid.UUID]models.Venue{
			inA: {ID: models.InternalID(inA), Name: "Tony's Tavern"},
			inB: {ID: models.InternalID(inB), Name: "Golden Gate Cafe"},
		},
		favorites: []string{
			"external:foursquare:slow",
			models.InternalID(inA).String(),
			"external:foursquare:missing",
			"external:google_places:down",
			models.InternalID(uuid.New()).String(),
			"external:yelp:abc",
			models.InternalID(inB).String(),
			"external:foursquare:fast",
		},
	}
	fsq := stubProvider{
		name:  "foursquare",
		delay: 20 * time.Millisecond,
		venues: map[string]models.Venue{
			"slow": {ID: models.ExternalID("foursquare", "slow"), Name: "Slow Diner"},
			"fast": {ID: models.ExternalID("foursquare", "fast"), Name: "Fast Grill"},
		},
	}
	google := stubProvider{name: "google_places", err: &provider.RateLimitedError{Provider: "google_places"}}
	svc := New(st, provider.NewRegistry(fsq, google), time.Second)

	got, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)

	var names []string
	for _, v := range got {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"Slow Diner", "Tony's Tavern", "Golden Gate Cafe", "Fast Grill"}, names)
	assert.Equal(t, 1, st.batches)
}

func TestListProviderTimeout(t *testing.T) {
	st := &memStore{favorites: []string{"external:foursquare:slow"}}
	fsq := stubProvider{name: "foursquare", delay: time.Second}
	svc := New(st, provider.NewRegistry(fsq), 10*time.Millisecond)

	got, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, st.batches)
}
