package claims

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onthecheap/internal/auth"
	"onthecheap/internal/events"
	"onthecheap/internal/geo"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
)

// memStore is an in-memory Store with the same conflict and transition
// rules as the Postgres store.
type memStore struct {
	mu     sync.Mutex
	claims []models.Claim
	venues map[uuid.UUID]models.Venue
}

func newMemStore() *memStore {
	return &memStore{venues: map[uuid.UUID]models.Venue{}}
}

func (m *memStore) CreateClaim(_ context.Context, c models.Claim) (models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.claims {
		if existing.ExternalID == c.ExternalID && existing.Status.Holds() {
			return models.Claim{}, models.ErrConflict
		}
	}
	c.ID = uuid.New()
	c.Status = models.ClaimPending
	c.CreatedAt = time.Now()
	m.claims = append(m.claims, c)
	return c, nil
}

func (m *memStore) GetClaim(_ context.Context, id uuid.UUID) (models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Claim{}, models.ErrNotFound
}

func (m *memStore) ListClaims(_ context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.claims {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ClaimsByUser(_ context.Context, userID uuid.UUID, status models.ClaimStatus) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.claims {
		if c.UserID == userID && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) HoldingClaims(_ context.Context, ids []string) (map[string]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Claim{}
	for _, id := range ids {
		for _, c := range m.claims {
			if c.ExternalID.String() == id && c.Status.Holds() {
				out[id] = c
			}
		}
	}
	return out, nil
}

func (m *memStore) DecideClaim(_ context.Context, id uuid.UUID, status models.ClaimStatus, at time.Time, imported *models.Venue) (models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.claims {
		if m.claims[i].ID != id {
			continue
		}
		c := m.claims[i]
		if err := c.Transition(status, at); err != nil {
			return models.Claim{}, err
		}
		m.claims[i] = c
		if imported != nil && !m.hasSourceLocked(*imported.SourceExternalID) {
			vid := uuid.New()
			v := *imported
			v.ID = models.InternalID(vid)
			m.venues[vid] = v
		}
		return c, nil
	}
	return models.Claim{}, models.ErrNotFound
}

func (m *memStore) hasSourceLocked(source models.VenueID) bool {
	for _, v := range m.venues {
		if v.SourceExternalID != nil && *v.SourceExternalID == source {
			return true
		}
	}
	return false
}

func (m *memStore) GetVenue(_ context.Context, id uuid.UUID) (models.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return models.Venue{}, models.ErrNotFound
	}
	return v, nil
}

func (m *memStore) VenuesManagedBy(_ context.Context, ownerID uuid.UUID, sources []string) ([]models.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Venue
	for _, v := range m.venues {
		match := v.OwnerID != nil && *v.OwnerID == ownerID
		for _, s := range sources {
			if v.SourceExternalID != nil && v.SourceExternalID.String() == s {
				match = true
			}
		}
		if match {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) AddSpecial(_ context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.venues[venueID]
	v.Specials = append(v.Specials, sp)
	m.venues[venueID] = v
	return sp, nil
}

func (m *memStore) UpdateSpecial(_ context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.venues[venueID]
	i := v.FindSpecial(sp.ID)
	if i < 0 {
		return models.Special{}, models.ErrNotFound
	}
	sp.CreatedAt = v.Specials[i].CreatedAt
	v.Specials[i] = sp
	return sp, nil
}

func (m *memStore) DeleteSpecial(_ context.Context, venueID, specialID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.venues[venueID]
	i := v.FindSpecial(specialID)
	if i < 0 {
		return models.ErrNotFound
	}
	v.Specials = append(v.Specials[:i], v.Specials[i+1:]...)
	m.venues[venueID] = v
	return nil
}

func (m *memStore) addVenue(v models.Venue) models.Venue {
	id := uuid.New()
	v.ID = models.InternalID(id)
	m.venues[id] = v
	return v
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type stubProvider struct {
	venues []models.Venue
	err    error
}

func (p stubProvider) Name() string { return "foursquare" }

func (p stubProvider) Search(context.Context, provider.Query) ([]models.Venue, error) {
	return p.venues, p.err
}

func (p stubProvider) Get(_ context.Context, id string) (models.Venue, error) {
	for _, v := range p.venues {
		if _, pid, _ := v.ID.External(); pid == id {
			return v, nil
		}
	}
	return models.Venue{}, provider.ErrNotFound
}

var (
	tavernID = models.ExternalID("foursquare", "4b5c")
	tavern   = models.Venue{
		ID:       tavernID,
		Name:     "Tony's Tavern",
		Address:  "123 Main St",
		Location: geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
		Cuisine:  []string{"Bar"},
	}
)

func owner() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: models.RoleOwner}
}

func newService(t *testing.T) (*memStore, *recorder, Service) {
	t.Helper()
	st := newMemStore()
	rec := &recorder{}
	reg := provider.NewRegistry(stubProvider{venues: []models.Venue{tavern}})
	return st, rec, New(st, reg, rec, time.Second)
}

func happyHour() models.Special {
	return models.Special{
		Title:         "Half Price Apps",
		Category:      models.HappyHour,
		DaysAvailable: []string{"Monday", "friday"},
		TimeStart:     "15:00",
		TimeEnd:       "18:00",
		IsActive:      true,
	}
}

func TestSubmitValidation(t *testing.T) {
	_, _, svc := newService(t)
	ctx := context.Background()
	o := owner()

	_, err := svc.Submit(ctx, auth.Principal{UserID: uuid.New(), Role: models.RoleCustomer}, tavernID, "Tony's", "")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.Submit(ctx, o, models.InternalID(uuid.New()), "Tony's", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Submit(ctx, o, models.ExternalID("yelp", "x"), "Tony's", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Submit(ctx, o, tavernID, "   ", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestClaimLifecycle(t *testing.T) {
	_, rec, svc := newService(t)
	ctx := context.Background()
	first, second := owner(), owner()

	claim, err := svc.Submit(ctx, first, tavernID, "Tony's Tavern LLC", "  liquor license #4411  ")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPending, claim.Status)
	assert.Equal(t, "liquor license #4411", claim.VerificationNotes)

	_, err = svc.Submit(ctx, second, tavernID, "Someone Else", "")
	assert.ErrorIs(t, err, models.ErrConflict)

	rejected, err := svc.Reject(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	require.NotNil(t, rejected.DecidedAt)

	_, err = svc.Reject(ctx, claim.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	again, err := svc.Submit(ctx, second, tavernID, "Someone Else", "")
	require.NoError(t, err)
	assert.NotEqual(t, claim.ID, again.ID)

	assert.Equal(t, []events.Type{events.ClaimSubmitted, events.ClaimRejected, events.ClaimSubmitted}, rec.types())

	pending, err := svc.List(ctx, models.ClaimPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, again.ID, pending[0].ID)

	_, err = svc.List(ctx, "bogus")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestApproveImportsVenue(t *testing.T) {
	st, rec, svc := newService(t)
	ctx := context.Background()
	o := owner()

	claim, err := svc.Submit(ctx, o, tavernID, "Tony's Tavern LLC", "")
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, approved.Status)

	mine, err := svc.MyVenues(ctx, o)
	require.NoError(t, err)
	require.Len(t, mine.Venues, 1)
	assert.Empty(t, mine.PendingClaims)
	imported := mine.Venues[0]
	assert.True(t, imported.IsInternal())
	assert.True(t, imported.Verified)
	assert.Equal(t, "Tony's Tavern", imported.Name)
	require.NotNil(t, imported.SourceExternalID)
	assert.Equal(t, tavernID, *imported.SourceExternalID)
	assert.Len(t, st.venues, 1)

	_, err = svc.Approve(ctx, claim.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.Approve(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Submit(ctx, owner(), tavernID, "Late", "")
	assert.ErrorIs(t, err, models.ErrConflict)

	assert.Contains(t, rec.types(), events.ClaimApproved)
}

func TestApproveFailsWhenProviderCannotResolve(t *testing.T) {
	st, _, svc := newService(t)
	ctx := context.Background()

	claim, err := svc.Submit(ctx, owner(), models.ExternalID("foursquare", "gone"), "Gone Bar", "")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, claim.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	still, err := st.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPending, still.Status)
}

func TestMyVenuesListsPendingClaims(t *testing.T) {
	st, _, svc := newService(t)
	ctx := context.Background()
	o := owner()
	ownerID := o.UserID
	st.addVenue(models.Venue{Name: "Direct", OwnerID: &ownerID})
	st.addVenue(models.Venue{Name: "Not Mine"})

	_, err := svc.Submit(ctx, o, tavernID, "Tony's", "")
	require.NoError(t, err)

	mine, err := svc.MyVenues(ctx, o)
	require.NoError(t, err)
	require.Len(t, mine.Venues, 1)
	assert.Equal(t, "Direct", mine.Venues[0].Name)
	require.Len(t, mine.PendingClaims, 1)

	_, err = svc.MyVenues(ctx, auth.Principal{UserID: uuid.New(), Role: models.RoleCustomer})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAuthorize(t *testing.T) {
	st, _, svc := newService(t)
	ctx := context.Background()
	o, other := owner(), owner()
	ownerID := o.UserID

	direct := st.addVenue(models.Venue{Name: "Direct", OwnerID: &ownerID})
	ok, err := svc.Authorize(ctx, o, direct)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Authorize(ctx, other, direct)
	require.NoError(t, err)
	assert.False(t, ok)

	source := tavernID
	imported := st.addVenue(models.Venue{Name: "Imported", SourceExternalID: &source})
	ok, err = svc.Authorize(ctx, o, imported)
	require.NoError(t, err)
	assert.False(t, ok, "pending claim does not authorize")

	claim, err := svc.Submit(ctx, o, tavernID, "Tony's", "")
	require.NoError(t, err)
	_, err = st.DecideClaim(ctx, claim.ID, models.ClaimApproved, time.Now(), nil)
	require.NoError(t, err)

	ok, err = svc.Authorize(ctx, o, imported)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSpecialsGate(t *testing.T) {
	st, rec, svc := newService(t)
	ctx := context.Background()
	o, intruder := owner(), owner()
	ownerID := o.UserID
	venue := st.addVenue(models.Venue{Name: "Direct", OwnerID: &ownerID})

	created, err := svc.CreateSpecial(ctx, o, venue.ID, happyHour())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, []string{"monday", "friday"}, created.DaysAvailable)
	assert.False(t, created.CreatedAt.IsZero())

	list, err := svc.ListSpecials(ctx, o, venue.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	t.Run("venue not found before forbidden", func(t *testing.T) {
		_, err := svc.CreateSpecial(ctx, intruder, models.InternalID(uuid.New()), happyHour())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
	t.Run("special not found before forbidden", func(t *testing.T) {
		err := svc.DeleteSpecial(ctx, intruder, venue.ID, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
	t.Run("external venue has no specials", func(t *testing.T) {
		_, err := svc.ListSpecials(ctx, o, tavernID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
	t.Run("forbidden", func(t *testing.T) {
		_, err := svc.UpdateSpecial(ctx, intruder, venue.ID, created.ID, happyHour())
		assert.ErrorIs(t, err, models.ErrForbidden)
		_, err = svc.ListSpecials(ctx, intruder, venue.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
	t.Run("validation", func(t *testing.T) {
		bad := happyHour()
		bad.TimeStart = "25:00"
		_, err := svc.CreateSpecial(ctx, o, venue.ID, bad)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	update := happyHour()
	update.Title = "Half Price Apps and Drafts"
	updated, err := svc.UpdateSpecial(ctx, o, venue.ID, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Half Price Apps and Drafts", updated.Title)

	require.NoError(t, svc.DeleteSpecial(ctx, o, venue.ID, created.ID))
	list, err = svc.ListSpecials(ctx, o, venue.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, []events.Type{events.SpecialCreated, events.SpecialUpdated, events.SpecialDeleted}, rec.types())
}

func TestSearchClaimable(t *testing.T) {
	st := newMemStore()
	other := models.Venue{ID: models.ExternalID("foursquare", "9z"), Name: "Corner Cafe"}
	reg := provider.NewRegistry(stubProvider{venues: []models.Venue{tavern, other}})
	svc := New(st, reg, nil, time.Second)
	ctx := context.Background()
	o := owner()

	_, err := svc.Submit(ctx, o, tavernID, "Tony's", "")
	require.NoError(t, err)

	q := provider.Query{Center: tavern.Location, RadiusM: 1000}
	found, err := svc.SearchClaimable(ctx, o, q)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].IsClaimed)
	assert.Equal(t, models.ClaimPending, found[0].ClaimStatus)
	assert.False(t, found[1].IsClaimed)

	_, err = svc.SearchClaimable(ctx, o, provider.Query{Center: geo.Coordinate{Latitude: 95}})
	assert.ErrorIs(t, err, models.ErrValidation)

	broken := New(st, provider.NewRegistry(stubProvider{err: errors.New("boom")}), nil, time.Second)
	found, err = broken.SearchClaimable(ctx, o, q)
	require.NoError(t, err)
	assert.Empty(t, found)
}
