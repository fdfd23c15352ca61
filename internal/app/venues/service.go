package venues

import (
	"context"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/auth"
	"onthecheap/internal/events"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
	"onthecheap/internal/specials"
)

// Store captures the catalogue operations venue workflows need.
type Store interface {
	GetVenue(ctx context.Context, id uuid.UUID) (models.Venue, error)
	CreateVenue(ctx context.Context, v models.Venue) (models.Venue, error)
}

// Detail is a single venue with the specials running at the requested time.
type Detail struct {
	models.Venue
	ActiveSpecials     []models.Special `json:"active_specials"`
	HasCurrentSpecials bool             `json:"has_current_specials"`
	SpecialsMessage    string           `json:"specials_message"`
}

// CategoryOption is one entry of the special type list.
type CategoryOption struct {
	Value models.Category `json:"value"`
	Label string          `json:"label"`
}

// Service coordinates venue detail and creation.
type Service interface {
	Get(ctx context.Context, id models.VenueID, at time.Time) (Detail, error)
	Create(ctx context.Context, owner auth.Principal, v models.Venue) (models.Venue, error)
	SpecialTypes() []CategoryOption
}

type service struct {
	store     Store
	providers *provider.Registry
	events    events.Publisher
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
}

// New constructs a venues Service. External ids are resolved through
// providers, each lookup bounded by providerTimeout (zero means 5s); loc is
// the zone specials are evaluated in (nil means time.Local).
func New(st Store, providers *provider.Registry, pub events.Publisher, loc *time.Location, providerTimeout time.Duration) Service {
	if loc == nil {
		loc = time.Local
	}
	if providerTimeout <= 0 {
		providerTimeout = 5 * time.Second
	}
	return &service{store: st, providers: providers, events: pub, loc: loc, timeout: providerTimeout, now: time.Now}
}

func (s *service) Get(ctx context.Context, id models.VenueID, at time.Time) (Detail, error) {
	if err := ctx.Err(); err != nil {
		return Detail{}, err
	}

	if _, _, ok := id.External(); ok {
		lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
		v, err := s.providers.Lookup(lookupCtx, id)
		cancel()
		if err != nil {
			return Detail{}, err
		}
		return Detail{
			Venue:           v,
			ActiveSpecials:  []models.Special{},
			SpecialsMessage: specials.ComingSoonMessage,
		}, nil
	}

	internalID, ok := id.Internal()
	if !ok {
		return Detail{}, models.Invalid("venue id", "is required")
	}
	v, err := s.store.GetVenue(ctx, internalID)
	if err != nil {
		return Detail{}, err
	}

	if at.IsZero() {
		at = s.now()
	}
	active := specials.Active(v.Specials, specials.At(at.In(s.loc)))
	return Detail{
		Venue:              v,
		ActiveSpecials:     active,
		HasCurrentSpecials: len(active) > 0,
		SpecialsMessage:    specials.Message(len(active)),
	}, nil
}

func (s *service) Create(ctx context.Context, owner auth.Principal, v models.Venue) (models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return models.Venue{}, err
	}
	if !owner.IsOwner() {
		return models.Venue{}, models.ErrForbidden
	}
	if err := v.Validate(); err != nil {
		return models.Venue{}, err
	}

	ownerID := owner.UserID
	v.ID = models.VenueID{}
	v.OwnerID = &ownerID
	v.SourceExternalID = nil
	v.Verified = false
	v.Photos = nil

	for i, sp := range v.Specials {
		sp = specials.Normalize(sp)
		if err := specials.Validate(sp); err != nil {
			return models.Venue{}, err
		}
		sp.ID = uuid.New()
		sp.CreatedAt = s.now().UTC()
		v.Specials[i] = sp
	}

	created, err := s.store.CreateVenue(ctx, v)
	if err != nil {
		return models.Venue{}, err
	}
	events.Emit(ctx, s.events, events.Event{
		Type:    events.VenueCreated,
		VenueID: created.ID.String(),
		UserID:  ownerID.String(),
	})
	return created, nil
}

func (s *service) SpecialTypes() []CategoryOption {
	out := make([]CategoryOption, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, CategoryOption{Value: c, Label: c.Label()})
	}
	return out
}
