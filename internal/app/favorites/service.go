package favorites

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
)

// Store defines persistence operations required for favorites workflows.
type Store interface {
	AddFavorite(ctx context.Context, userID uuid.UUID, venueID string) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, venueID string) error
	Favorites(ctx context.Context, userID uuid.UUID) ([]string, error)
	GetVenues(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Venue, error)
}

// Service describes high level favorites operations used by HTTP handlers.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, rawID string) error
	Remove(ctx context.Context, userID uuid.UUID, rawID string) error
	List(ctx context.Context, userID uuid.UUID) ([]models.Venue, error)
}

type service struct {
	store     Store
	providers *provider.Registry
	timeout   time.Duration
}

// New constructs a favorites Service. External favorites are resolved
// through providers, each call bounded by providerTimeout (zero means 5s).
func New(st Store, providers *provider.Registry, providerTimeout time.Duration) Service {
	if providerTimeout <= 0 {
		providerTimeout = 5 * time.Second
	}
	return &service{store: st, providers: providers, timeout: providerTimeout}
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, rawID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := models.ParseVenueID(rawID)
	if err != nil {
		return err
	}
	return s.store.AddFavorite(ctx, userID, id.String())
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, rawID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := models.ParseVenueID(rawID)
	if err != nil {
		return err
	}
	return s.store.RemoveFavorite(ctx, userID, id.String())
}

// List resolves the user's favorites in stored order. Favorites that cannot
// be resolved right now are left out.
func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.store.Favorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	ids := make([]models.VenueID, len(raw))
	var internal []uuid.UUID
	for i, r := range raw {
		id, err := models.ParseVenueID(r)
		if err != nil {
			logger.Debug().Err(err).Str("favorite", r).Msg("skipping malformed favorite")
			continue
		}
		ids[i] = id
		if u, ok := id.Internal(); ok {
			internal = append(internal, u)
		}
	}

	catalogue := map[uuid.UUID]models.Venue{}
	if len(internal) > 0 {
		catalogue, err = s.store.GetVenues(ctx, internal)
		if err != nil {
			return nil, err
		}
	}

	resolved := make([]*models.Venue, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		if u, ok := id.Internal(); ok {
			if v, found := catalogue[u]; found {
				resolved[i] = &v
			} else {
				logger.Debug().Str("favorite", id.String()).Msg("favorite venue no longer in catalogue")
			}
			continue
		}
		if id.IsZero() {
			continue
		}

		wg.Add(1)
		go func(i int, id models.VenueID) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			v, err := s.providers.Lookup(pctx, id)
			if err != nil {
				logger.Debug().Err(err).Str("favorite", id.String()).Str("outcome", provider.Outcome(err)).Msg("favorite unresolved")
				name, _, _ := id.External()
				metrics.ProviderDegradedTotal.WithLabelValues(name, "favorites").Inc()
				return
			}
			resolved[i] = &v
		}(i, id)
	}
	wg.Wait()

	out := make([]models.Venue, 0, len(resolved))
	for _, v := range resolved {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}
