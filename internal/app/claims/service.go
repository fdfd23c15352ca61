// Package claims decides who may manage a venue and gates every change to
// its specials on that decision.
package claims

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/auth"
	"onthecheap/internal/events"
	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
	"onthecheap/internal/specials"
)

// Store defines the persistence operations for claims and owner-managed
// specials.
type Store interface {
	CreateClaim(ctx context.Context, c models.Claim) (models.Claim, error)
	GetClaim(ctx context.Context, id uuid.UUID) (models.Claim, error)
	ListClaims(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error)
	ClaimsByUser(ctx context.Context, userID uuid.UUID, status models.ClaimStatus) ([]models.Claim, error)
	HoldingClaims(ctx context.Context, externalIDs []string) (map[string]models.Claim, error)
	DecideClaim(ctx context.Context, id uuid.UUID, status models.ClaimStatus, at time.Time, imported *models.Venue) (models.Claim, error)

	GetVenue(ctx context.Context, id uuid.UUID) (models.Venue, error)
	VenuesManagedBy(ctx context.Context, ownerID uuid.UUID, sources []string) ([]models.Venue, error)
	AddSpecial(ctx context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error)
	UpdateSpecial(ctx context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error)
	DeleteSpecial(ctx context.Context, venueID, specialID uuid.UUID) error
}

// OwnerVenues is the owner portal overview.
type OwnerVenues struct {
	Venues        []models.Venue `json:"restaurants"`
	PendingClaims []models.Claim `json:"pending_claims"`
}

// ClaimableVenue is a provider venue annotated with its claim state.
type ClaimableVenue struct {
	models.Venue
	IsClaimed   bool               `json:"is_claimed"`
	ClaimStatus models.ClaimStatus `json:"claim_status,omitempty"`
}

// Service mediates ownership claims and owner edits to specials.
type Service interface {
	Submit(ctx context.Context, user auth.Principal, externalID models.VenueID, businessName, notes string) (models.Claim, error)
	Approve(ctx context.Context, claimID uuid.UUID) (models.Claim, error)
	Reject(ctx context.Context, claimID uuid.UUID) (models.Claim, error)
	List(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error)

	Authorize(ctx context.Context, user auth.Principal, venue models.Venue) (bool, error)
	MyVenues(ctx context.Context, user auth.Principal) (OwnerVenues, error)
	SearchClaimable(ctx context.Context, user auth.Principal, q provider.Query) ([]ClaimableVenue, error)

	ListSpecials(ctx context.Context, user auth.Principal, venueID models.VenueID) ([]models.Special, error)
	CreateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, sp models.Special) (models.Special, error)
	UpdateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID, sp models.Special) (models.Special, error)
	DeleteSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID) error
}

type service struct {
	store     Store
	providers *provider.Registry
	events    events.Publisher
	timeout   time.Duration
	now       func() time.Time
}

// New constructs a claims Service. providerTimeout bounds each provider call
// made while searching or importing; zero means 5s.
func New(st Store, providers *provider.Registry, pub events.Publisher, providerTimeout time.Duration) Service {
	if providerTimeout <= 0 {
		providerTimeout = 5 * time.Second
	}
	return &service{
		store:     st,
		providers: providers,
		events:    pub,
		timeout:   providerTimeout,
		now:       time.Now,
	}
}

func (s *service) Submit(ctx context.Context, user auth.Principal, externalID models.VenueID, businessName, notes string) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	if !user.IsOwner() {
		return models.Claim{}, models.ErrForbidden
	}

	name, _, ok := externalID.External()
	if !ok {
		return models.Claim{}, models.Invalid("restaurant_id", "only provider venues can be claimed")
	}
	if _, ok := s.providers.Get(name); !ok {
		return models.Claim{}, fmt.Errorf("%s: %w", name, provider.ErrUnknownProvider)
	}
	businessName = strings.TrimSpace(businessName)
	if businessName == "" {
		return models.Claim{}, models.Invalid("business_name", "is required")
	}

	claim, err := s.store.CreateClaim(ctx, models.Claim{
		UserID:            user.UserID,
		ExternalID:        externalID,
		BusinessName:      businessName,
		VerificationNotes: strings.TrimSpace(notes),
	})
	if err != nil {
		return models.Claim{}, err
	}
	s.emit(ctx, events.ClaimSubmitted, claim)
	return claim, nil
}

func (s *service) Approve(ctx context.Context, claimID uuid.UUID) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.Claim{}, err
	}
	if claim.Status != models.ClaimPending {
		return models.Claim{}, fmt.Errorf("claim %s is %s: %w", claim.ID, claim.Status, models.ErrConflict)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	venue, err := s.providers.Lookup(pctx, claim.ExternalID)
	cancel()
	if err != nil {
		return models.Claim{}, fmt.Errorf("fetch claimed venue %s: %w", claim.ExternalID, err)
	}

	ownerID := claim.UserID
	source := claim.ExternalID
	venue.ID = models.VenueID{}
	venue.OwnerID = &ownerID
	venue.SourceExternalID = &source
	venue.Verified = true
	venue.Specials = []models.Special{}
	venue.CreatedAt = time.Time{}

	decided, err := s.store.DecideClaim(ctx, claimID, models.ClaimApproved, s.now(), &venue)
	if err != nil {
		return models.Claim{}, err
	}
	s.emit(ctx, events.ClaimApproved, decided)
	return decided, nil
}

func (s *service) Reject(ctx context.Context, claimID uuid.UUID) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	decided, err := s.store.DecideClaim(ctx, claimID, models.ClaimRejected, s.now(), nil)
	if err != nil {
		return models.Claim{}, err
	}
	s.emit(ctx, events.ClaimRejected, decided)
	return decided, nil
}

func (s *service) List(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch status {
	case "", models.ClaimPending, models.ClaimApproved, models.ClaimRejected:
	default:
		return nil, models.Invalid("status", "unknown claim status %q", status)
	}
	return s.store.ListClaims(ctx, status)
}

// Authorize reports whether user may manage venue: either they own it
// directly or they hold the approved claim on the provider venue it was
// imported from.
func (s *service) Authorize(ctx context.Context, user auth.Principal, venue models.Venue) (bool, error) {
	if venue.OwnerID != nil && *venue.OwnerID == user.UserID {
		return true, nil
	}
	if venue.SourceExternalID == nil {
		return false, nil
	}
	approved, err := s.store.ClaimsByUser(ctx, user.UserID, models.ClaimApproved)
	if err != nil {
		return false, err
	}
	for _, c := range approved {
		if c.ExternalID == *venue.SourceExternalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) MyVenues(ctx context.Context, user auth.Principal) (OwnerVenues, error) {
	if err := ctx.Err(); err != nil {
		return OwnerVenues{}, err
	}
	if !user.IsOwner() {
		return OwnerVenues{}, models.ErrForbidden
	}

	claims, err := s.store.ClaimsByUser(ctx, user.UserID, "")
	if err != nil {
		return OwnerVenues{}, err
	}
	var (
		sources []string
		pending = []models.Claim{}
	)
	for _, c := range claims {
		switch c.Status {
		case models.ClaimApproved:
			sources = append(sources, c.ExternalID.String())
		case models.ClaimPending:
			pending = append(pending, c)
		}
	}

	venues, err := s.store.VenuesManagedBy(ctx, user.UserID, sources)
	if err != nil {
		return OwnerVenues{}, err
	}
	if venues == nil {
		venues = []models.Venue{}
	}
	return OwnerVenues{Venues: venues, PendingClaims: pending}, nil
}

// SearchClaimable searches every provider for venues an owner may claim.
// Provider failures are logged and contribute nothing.
func (s *service) SearchClaimable(ctx context.Context, user auth.Principal, q provider.Query) ([]ClaimableVenue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !user.IsOwner() {
		return nil, models.ErrForbidden
	}
	if err := q.Center.Validate(); err != nil {
		return nil, models.Invalid("location", "%v", err)
	}

	ps := s.providers.All()
	batches := make([][]models.Venue, len(ps))
	var wg sync.WaitGroup
	for i, p := range ps {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			venues, err := p.Search(pctx, q)
			if err != nil {
				logging.FromContext(ctx).Warn().Err(err).Str("provider", p.Name()).Msg("claimable search degraded")
				metrics.ProviderDegradedTotal.WithLabelValues(p.Name(), "claimable_search").Inc()
				return
			}
			batches[i] = venues
		}(i, p)
	}
	wg.Wait()

	var (
		found []models.Venue
		ids   []string
	)
	for _, b := range batches {
		for _, v := range b {
			found = append(found, v)
			ids = append(ids, v.ID.String())
		}
	}
	held, err := s.store.HoldingClaims(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ClaimableVenue, 0, len(found))
	for _, v := range found {
		cv := ClaimableVenue{Venue: v}
		if c, ok := held[v.ID.String()]; ok {
			cv.IsClaimed = true
			cv.ClaimStatus = c.Status
		}
		out = append(out, cv)
	}
	return out, nil
}

func (s *service) ListSpecials(ctx context.Context, user auth.Principal, venueID models.VenueID) ([]models.Special, error) {
	venue, err := s.managedVenue(ctx, user, venueID, nil)
	if err != nil {
		return nil, err
	}
	if venue.Specials == nil {
		return []models.Special{}, nil
	}
	return venue.Specials, nil
}

func (s *service) CreateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, sp models.Special) (models.Special, error) {
	venue, err := s.managedVenue(ctx, user, venueID, nil)
	if err != nil {
		return models.Special{}, err
	}
	sp = specials.Normalize(sp)
	if err := specials.Validate(sp); err != nil {
		return models.Special{}, err
	}
	sp.ID = uuid.New()
	sp.CreatedAt = s.now().UTC()

	id, _ := venue.ID.Internal()
	created, err := s.store.AddSpecial(ctx, id, sp)
	if err != nil {
		return models.Special{}, err
	}
	s.emitSpecial(ctx, events.SpecialCreated, user, venue.ID, created.ID)
	return created, nil
}

func (s *service) UpdateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID, sp models.Special) (models.Special, error) {
	venue, err := s.managedVenue(ctx, user, venueID, &specialID)
	if err != nil {
		return models.Special{}, err
	}
	sp = specials.Normalize(sp)
	if err := specials.Validate(sp); err != nil {
		return models.Special{}, err
	}
	sp.ID = specialID

	id, _ := venue.ID.Internal()
	updated, err := s.store.UpdateSpecial(ctx, id, sp)
	if err != nil {
		return models.Special{}, err
	}
	s.emitSpecial(ctx, events.SpecialUpdated, user, venue.ID, specialID)
	return updated, nil
}

func (s *service) DeleteSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID) error {
	venue, err := s.managedVenue(ctx, user, venueID, &specialID)
	if err != nil {
		return err
	}
	id, _ := venue.ID.Internal()
	if err := s.store.DeleteSpecial(ctx, id, specialID); err != nil {
		return err
	}
	s.emitSpecial(ctx, events.SpecialDeleted, user, venue.ID, specialID)
	return nil
}

// managedVenue loads the venue and, when specialID is set, checks the
// special exists before checking that user may manage the venue.
func (s *service) managedVenue(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID *uuid.UUID) (models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return models.Venue{}, err
	}
	id, ok := venueID.Internal()
	if !ok {
		// provider venues carry no specials until claimed and imported
		return models.Venue{}, fmt.Errorf("venue %s: %w", venueID, models.ErrNotFound)
	}
	venue, err := s.store.GetVenue(ctx, id)
	if err != nil {
		return models.Venue{}, err
	}
	if specialID != nil && venue.FindSpecial(*specialID) < 0 {
		return models.Venue{}, fmt.Errorf("special %s: %w", *specialID, models.ErrNotFound)
	}

	allowed, err := s.Authorize(ctx, user, venue)
	if err != nil {
		return models.Venue{}, err
	}
	if !allowed {
		return models.Venue{}, models.ErrForbidden
	}
	return venue, nil
}

func (s *service) emit(ctx context.Context, typ events.Type, c models.Claim) {
	events.Emit(ctx, s.events, events.Event{
		Type:    typ,
		ClaimID: c.ID.String(),
		VenueID: c.ExternalID.String(),
		UserID:  c.UserID.String(),
	})
}

func (s *service) emitSpecial(ctx context.Context, typ events.Type, user auth.Principal, venueID models.VenueID, specialID uuid.UUID) {
	events.Emit(ctx, s.events, events.Event{
		Type:      typ,
		VenueID:   venueID.String(),
		SpecialID: specialID.String(),
		UserID:    user.UserID.String(),
	})
}
