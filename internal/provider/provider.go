// Package provider wraps external venue-discovery services behind a uniform
// interface with response caching, request pacing and a shared error
// taxonomy.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onthecheap/internal/geo"
	"onthecheap/internal/models"
)

// Query describes a nearby search against a provider.
type Query struct {
	Center  geo.Coordinate
	RadiusM int
	Text    string
	Limit   int
}

// Provider is implemented by every external venue source. Returned venues
// carry External ids and never carry specials.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]models.Venue, error)
	Get(ctx context.Context, providerID string) (models.Venue, error)
}

var (
	// ErrNotFound is returned by Get when the provider does not know the id.
	ErrNotFound = fmt.Errorf("provider venue %w", models.ErrNotFound)
	// ErrMissingCredentials is returned when an adapter is built without an API key.
	ErrMissingCredentials = errors.New("provider credentials missing")
	// ErrUnknownProvider is returned when an id names a provider that is not configured.
	ErrUnknownProvider = fmt.Errorf("unknown provider: %w", models.ErrValidation)
)

// AuthError reports rejected credentials. Once an adapter sees one it fails
// every later call without contacting the provider.
type AuthError struct {
	Provider string
	Status   int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: credentials rejected (status %d)", e.Provider, e.Status)
}

// RateLimitedError reports that the provider asked us to back off.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// UnavailableError covers timeouts, network failures, server errors and
// undecodable responses.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Outcome classifies err for logs and metrics.
func Outcome(err error) string {
	var (
		authErr  *AuthError
		rateErr  *RateLimitedError
		availErr *UnavailableError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &availErr):
		return "unavailable"
	default:
		return "error"
	}
}

// Registry holds the configured providers by name in registration order.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry registers ps; later providers with a duplicate name replace
// earlier ones.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if p == nil {
			continue
		}
		if _, exists := r.providers[p.Name()]; !exists {
			r.order = append(r.order, p.Name())
		}
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Lookup resolves an external venue id through its provider.
func (r *Registry) Lookup(ctx context.Context, id models.VenueID) (models.Venue, error) {
	name, providerID, ok := id.External()
	if !ok {
		return models.Venue{}, models.Invalid("venue id", "%s is not an external id", id)
	}
	p, found := r.Get(name)
	if !found {
		return models.Venue{}, fmt.Errorf("%s: %w", name, ErrUnknownProvider)
	}
	return p.Get(ctx, providerID)
}
