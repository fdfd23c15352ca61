// Package search merges the owner-managed catalogue with external venue
// providers and annotates each result with the specials running now.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"onthecheap/internal/geo"
	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
	"onthecheap/internal/specials"
)

const (
	MinRadius     = 100
	MaxRadius     = 80467
	DefaultRadius = 8047
	MaxLimit      = 50
	DefaultLimit  = 20

	// SourceOwnerManaged tags catalogue venues in results.
	SourceOwnerManaged = "owner_managed"
)

// Catalogue lists the internal venues.
type Catalogue interface {
	ListVenues(ctx context.Context) ([]models.Venue, error)
}

// Request describes a nearby search. Zero Radius and Limit take defaults;
// a zero At means now.
type Request struct {
	Center      geo.Coordinate
	RadiusM     int
	Query       string
	SpecialType models.Category
	Limit       int
	IncludeAll  bool
	At          time.Time
}

// Summary counts what the search saw, independent of truncation.
type Summary struct {
	WithSpecials        int `json:"with_specials"`
	NoSpecials          int `json:"no_specials"`
	ExternalRestaurants int `json:"external_restaurants"`
}

// AnnotatedVenue is a venue as presented in search results.
type AnnotatedVenue struct {
	models.Venue
	DistanceM          int              `json:"distance_meters"`
	Source             string           `json:"source"`
	ActiveSpecials     []models.Special `json:"active_specials"`
	HasCurrentSpecials bool             `json:"has_current_specials"`
	SpecialsMessage    string           `json:"specials_message"`

	distance float64
}

// Result is the ranked search response.
type Result struct {
	Venues  []AnnotatedVenue `json:"restaurants"`
	Total   int              `json:"total"`
	Summary Summary          `json:"summary"`
	Center  geo.Coordinate   `json:"search_location"`
	RadiusM int              `json:"radius_meters"`
}

// Service runs venue searches.
type Service interface {
	Search(ctx context.Context, req Request) (Result, error)
}

// Options tune a Service.
type Options struct {
	// ProviderTimeout bounds each provider call; zero means 5s.
	ProviderTimeout time.Duration
	// Location is the wall-clock zone specials are evaluated in; nil means time.Local.
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	catalogue Catalogue
	providers *provider.Registry
	timeout   time.Duration
	loc       *time.Location
	now       func() time.Time
}

// New constructs a search Service. providers may be nil or empty.
func New(catalogue Catalogue, providers *provider.Registry, opts Options) Service {
	s := &service{
		catalogue: catalogue,
		providers: providers,
		timeout:   opts.ProviderTimeout,
		loc:       opts.Location,
		now:       opts.Now,
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Normalize applies defaults to req and validates it. A zero radius or limit
// means the default.
func Normalize(req Request) (Request, error) {
	if req.RadiusM == 0 {
		req.RadiusM = DefaultRadius
	}
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	req.Query = strings.TrimSpace(req.Query)
	return req, Validate(req)
}

// Validate checks req as given, without applying defaults.
func Validate(req Request) error {
	if err := req.Center.Validate(); err != nil {
		return models.Invalid("location", "%v", err)
	}
	if req.RadiusM < MinRadius || req.RadiusM > MaxRadius {
		return models.Invalid("radius", "must be between %d and %d meters", MinRadius, MaxRadius)
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return models.Invalid("limit", "must be between 1 and %d", MaxLimit)
	}
	if req.SpecialType != "" && !req.SpecialType.Valid() {
		return models.Invalid("special_type", "unknown category %q", req.SpecialType)
	}
	return nil
}

func (s *service) Search(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	req, err := Normalize(req)
	if err != nil {
		return Result{}, err
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SearchDuration)

	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	instant := specials.At(at.In(s.loc))
	radius := float64(req.RadiusM)

	catalogue, err := s.catalogue.ListVenues(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		summary  Summary
		internal []AnnotatedVenue
		imported = make(map[string]bool)
	)
	for _, v := range catalogue {
		if v.SourceExternalID != nil {
			imported[v.SourceExternalID.String()] = true
		}
		d := geo.Distance(req.Center, v.Location)
		if d > radius || !v.MatchesText(req.Query) {
			continue
		}

		active := specials.Active(v.Specials, instant)
		if req.SpecialType != "" {
			active = specials.OfCategory(active, req.SpecialType)
		}
		if len(active) > 0 {
			summary.WithSpecials++
		} else {
			summary.NoSpecials++
			if !req.IncludeAll || req.SpecialType != "" {
				continue
			}
		}
		internal = append(internal, annotate(v, d, SourceOwnerManaged, active, specials.Message(len(active))))
	}

	var external []AnnotatedVenue
	if req.SpecialType == "" {
		for _, v := range s.searchProviders(ctx, req) {
			if imported[v.ID.String()] {
				continue
			}
			d := geo.Distance(req.Center, v.Location)
			if d > radius || !v.MatchesText(req.Query) {
				continue
			}
			name, _, _ := v.ID.External()
			external = append(external, annotate(v, d, name, []models.Special{}, specials.ComingSoonMessage))
		}
		summary.ExternalRestaurants = len(external)
	}

	venues := append(internal, external...)
	sort.SliceStable(venues, func(i, j int) bool {
		a, b := venues[i], venues[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.IsInternal() && !b.IsInternal()
	})
	if len(venues) > req.Limit {
		venues = venues[:req.Limit]
	}
	if venues == nil {
		venues = []AnnotatedVenue{}
	}

	metrics.SearchResults.WithLabelValues(SourceOwnerManaged).Observe(float64(len(internal)))
	metrics.SearchResults.WithLabelValues("external").Observe(float64(len(external)))

	return Result{
		Venues:  venues,
		Total:   len(venues),
		Summary: summary,
		Center:  req.Center,
		RadiusM: req.RadiusM,
	}, nil
}

// searchProviders queries every provider concurrently. Failures are logged
// and contribute nothing.
func (s *service) searchProviders(ctx context.Context, req Request) []models.Venue {
	ps := s.providers.All()
	if len(ps) == 0 {
		return nil
	}

	q := provider.Query{Center: req.Center, RadiusM: req.RadiusM, Text: req.Query, Limit: req.Limit}
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
				logging.FromContext(ctx).Warn().
					Err(err).
					Str("provider", p.Name()).
					Str("outcome", provider.Outcome(err)).
					Msg("provider search degraded")
				metrics.ProviderDegradedTotal.WithLabelValues(p.Name(), "search").Inc()
				return
			}
			batches[i] = venues
		}(i, p)
	}
	wg.Wait()

	var out []models.Venue
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func annotate(v models.Venue, distance float64, source string, active []models.Special, message string) AnnotatedVenue {
	return AnnotatedVenue{
		Venue:              v,
		DistanceM:          int(math.Round(distance)),
		Source:             source,
		ActiveSpecials:     active,
		HasCurrentSpecials: len(active) > 0,
		SpecialsMessage:    message,
		distance:           distance,
	}
}
