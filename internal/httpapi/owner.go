package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"onthecheap/internal/app/search"
	"onthecheap/internal/auth"
	"onthecheap/internal/geo"
	"onthecheap/internal/models"
	"onthecheap/internal/provider"
)

// defaultOwnerSearchCenter is used when the owner portal searches by name
// only.
var defaultOwnerSearchCenter = geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194}

// GET /api/owner/my-restaurants
func (s *Server) handleMyVenues(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	mine, err := s.owners.MyVenues(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

// GET /api/owner/search-restaurants?query&latitude&longitude&radius
func (s *Server) handleSearchClaimable(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	q := r.URL.Query()
	center := defaultOwnerSearchCenter
	if q.Has("latitude") || q.Has("longitude") {
		c, err := parseCenter(q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		center = c
	}
	radius, err := intParam(q, "radius", search.DefaultRadius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if radius < search.MinRadius || radius > search.MaxRadius {
		writeError(w, r, models.Invalid("radius", "must be between %d and %d meters", search.MinRadius, search.MaxRadius))
		return
	}

	found, err := s.owners.SearchClaimable(r.Context(), p, provider.Query{
		Center:  center,
		RadiusM: radius,
		Text:    q.Get("query"),
		Limit:   20,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurants": found})
}

type claimRequest struct {
	RestaurantID      string `json:"restaurant_id"`
	BusinessName      string `json:"business_name"`
	VerificationNotes string `json:"verification_notes"`
}

// POST /api/owner/claim-restaurant
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := models.ParseVenueID(req.RestaurantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := s.owners.Submit(r.Context(), p, id, req.BusinessName, req.VerificationNotes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// GET /api/owner/restaurants/{id}/specials
func (s *Server) handleListSpecials(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	venueID, err := models.ParseVenueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.owners.ListSpecials(r.Context(), p, venueID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"specials": list})
}

// POST /api/owner/restaurants/{id}/specials
func (s *Server) handleCreateSpecial(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	venueID, err := models.ParseVenueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req specialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.owners.CreateSpecial(r.Context(), p, venueID, req.toModel())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// PUT /api/owner/restaurants/{id}/specials/{specialID}
func (s *Server) handleUpdateSpecial(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	venueID, specialID, err := specialPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req specialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.owners.UpdateSpecial(r.Context(), p, venueID, specialID, req.toModel())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/owner/restaurants/{id}/specials/{specialID}
func (s *Server) handleDeleteSpecial(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	venueID, specialID, err := specialPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.owners.DeleteSpecial(r.Context(), p, venueID, specialID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Special deleted"})
}

func specialPath(r *http.Request) (models.VenueID, uuid.UUID, error) {
	venueID, err := models.ParseVenueID(r.PathValue("id"))
	if err != nil {
		return models.VenueID{}, uuid.Nil, err
	}
	specialID, err := uuid.Parse(r.PathValue("specialID"))
	if err != nil {
		return models.VenueID{}, uuid.Nil, models.Invalid("special id", "must be a uuid")
	}
	return venueID, specialID, nil
}
