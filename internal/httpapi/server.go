// Package httpapi exposes the venue search, owner portal and account
// workflows over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/app/claims"
	"onthecheap/internal/app/search"
	"onthecheap/internal/app/users"
	"onthecheap/internal/app/venues"
	"onthecheap/internal/auth"
	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
)

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Register(ctx context.Context, r users.Registration) (users.Session, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
	Me(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// VenueService describes venue detail and creation.
type VenueService interface {
	Get(ctx context.Context, id models.VenueID, at time.Time) (venues.Detail, error)
	Create(ctx context.Context, owner auth.Principal, v models.Venue) (models.Venue, error)
	SpecialTypes() []venues.CategoryOption
}

// SearchService runs nearby searches.
type SearchService interface {
	Search(ctx context.Context, req search.Request) (search.Result, error)
}

// FavoritesService coordinates favoriting workflows.
type FavoritesService interface {
	Add(ctx context.Context, userID uuid.UUID, rawID string) error
	Remove(ctx context.Context, userID uuid.UUID, rawID string) error
	List(ctx context.Context, userID uuid.UUID) ([]models.Venue, error)
}

// OwnerService covers the owner portal: claims and specials management.
type OwnerService interface {
	Submit(ctx context.Context, user auth.Principal, externalID models.VenueID, businessName, notes string) (models.Claim, error)
	MyVenues(ctx context.Context, user auth.Principal) (claims.OwnerVenues, error)
	SearchClaimable(ctx context.Context, user auth.Principal, q provider.Query) ([]claims.ClaimableVenue, error)
	ListSpecials(ctx context.Context, user auth.Principal, venueID models.VenueID) ([]models.Special, error)
	CreateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, sp models.Special) (models.Special, error)
	UpdateSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID, sp models.Special) (models.Special, error)
	DeleteSpecial(ctx context.Context, user auth.Principal, venueID models.VenueID, specialID uuid.UUID) error
}

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(raw string) (auth.Principal, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	users     UserService
	venues    VenueService
	search    SearchService
	favorites FavoritesService
	owners    OwnerService
	tokens    TokenParser
}

// New configures a Server with the given services.
func New(
	users UserService,
	venues VenueService,
	search SearchService,
	favorites FavoritesService,
	owners OwnerService,
	tokens TokenParser,
) *Server {
	return &Server{
		users:     users,
		venues:    venues,
		search:    search,
		favorites: favorites,
		owners:    owners,
		tokens:    tokens,
	}
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/{$}", s.handleRoot)
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/restaurants/search", s.handleSearch)
	mux.HandleFunc("GET /api/restaurants/{id}", s.handleVenue)
	mux.HandleFunc("POST /api/restaurants", s.requireOwner(s.handleCreateVenue))
	mux.HandleFunc("GET /api/specials/types", s.handleSpecialTypes)

	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)
	mux.HandleFunc("GET /api/users/me", s.requireUser(s.handleMe))
	mux.HandleFunc("GET /api/users/favorites", s.requireUser(s.handleListFavorites))
	mux.HandleFunc("POST /api/users/favorites/{id}", s.requireUser(s.handleAddFavorite))
	mux.HandleFunc("DELETE /api/users/favorites/{id}", s.requireUser(s.handleRemoveFavorite))

	mux.HandleFunc("GET /api/owner/my-restaurants", s.requireOwner(s.handleMyVenues))
	mux.HandleFunc("GET /api/owner/search-restaurants", s.requireOwner(s.handleSearchClaimable))
	mux.HandleFunc("POST /api/owner/claim-restaurant", s.requireOwner(s.handleClaim))
	mux.HandleFunc("GET /api/owner/restaurants/{id}/specials", s.requireOwner(s.handleListSpecials))
	mux.HandleFunc("POST /api/owner/restaurants/{id}/specials", s.requireOwner(s.handleCreateSpecial))
	mux.HandleFunc("PUT /api/owner/restaurants/{id}/specials/{specialID}", s.requireOwner(s.handleUpdateSpecial))
	mux.HandleFunc("DELETE /api/owner/restaurants/{id}/specials/{specialID}", s.requireOwner(s.handleDeleteSpecial))

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "On The Cheap API"})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

// requireUser rejects requests without a valid bearer token.
func (s *Server) requireUser(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization required"})
			return
		}
		p, err := s.tokens.Parse(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = logging.WithUserID(ctx, p.UserID.String())
		next(w, r.WithContext(ctx), p)
	}
}

// requireOwner additionally requires the owner role.
func (s *Server) requireOwner(next authedHandler) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		if !p.IsOwner() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "owner access required"})
			return
		}
		next(w, r, p)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	case http.StatusForbidden:
		msg = models.ErrForbidden.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.Invalid("body", "%v", err)
	}
	return nil
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
