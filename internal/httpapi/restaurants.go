package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"onthecheap/internal/app/search"
	"onthecheap/internal/auth"
	"onthecheap/internal/geo"
	"onthecheap/internal/models"
)

// GET /api/restaurants/search?latitude&longitude&radius&query&special_type&limit&include_all&at
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	center, err := parseCenter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := search.Request{
		Center:      center,
		Query:       q.Get("query"),
		SpecialType: models.Category(q.Get("special_type")),
	}
	if req.RadiusM, err = intParam(q, "radius", search.DefaultRadius); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Limit, err = intParam(q, "limit", search.DefaultLimit); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("include_all"); raw != "" {
		if req.IncludeAll, err = strconv.ParseBool(raw); err != nil {
			writeError(w, r, models.Invalid("include_all", "must be a boolean"))
			return
		}
	}
	if req.At, err = timeParam(q); err != nil {
		writeError(w, r, err)
		return
	}
	if err := search.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.search.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/restaurants/{id}
func (s *Server) handleVenue(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseVenueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	at, err := timeParam(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.venues.Get(r.Context(), id, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type createVenueRequest struct {
	Name       string           `json:"name"`
	Address    string           `json:"address"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
	Phone      string           `json:"phone"`
	Website    string           `json:"website"`
	Cuisine    []string         `json:"cuisine_type"`
	Rating     *float64         `json:"rating"`
	PriceLevel *int             `json:"price_level"`
	Specials   []specialRequest `json:"specials"`
}

// POST /api/restaurants
func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req createVenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v := models.Venue{
		Name:       strings.TrimSpace(req.Name),
		Address:    strings.TrimSpace(req.Address),
		Location:   geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Phone:      req.Phone,
		Website:    req.Website,
		Cuisine:    req.Cuisine,
		Rating:     req.Rating,
		PriceLevel: req.PriceLevel,
	}
	for _, sp := range req.Specials {
		v.Specials = append(v.Specials, sp.toModel())
	}

	created, err := s.venues.Create(r.Context(), p, v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/specials/types
func (s *Server) handleSpecialTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"special_types": s.venues.SpecialTypes()})
}

type specialRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"special_type"`
	Price         *float64 `json:"price"`
	OriginalPrice *float64 `json:"original_price"`
	Days          []string `json:"days_available"`
	Start         string   `json:"time_start"`
	End           string   `json:"time_end"`
	IsActive      *bool    `json:"is_active"`
}

func (sr specialRequest) toModel() models.Special {
	active := true
	if sr.IsActive != nil {
		active = *sr.IsActive
	}
	return models.Special{
		Title:         sr.Title,
		Description:   sr.Description,
		Category:      models.Category(sr.Type),
		Price:         sr.Price,
		OriginalPrice: sr.OriginalPrice,
		DaysAvailable: sr.Days,
		TimeStart:     sr.Start,
		TimeEnd:       sr.End,
		IsActive:      active,
	}
}

func parseCenter(q url.Values) (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		return geo.Coordinate{}, models.Invalid("latitude", "is required and must be a number")
	}
	lng, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		return geo.Coordinate{}, models.Invalid("longitude", "is required and must be a number")
	}
	return geo.Coordinate{Latitude: lat, Longitude: lng}, nil
}

// intParam returns fallback only when the parameter is absent; an explicit
// value, zero included, is returned as given.
func intParam(q url.Values, name string, fallback int) (int, error) {
	if !q.Has(name) {
		return fallback, nil
	}
	raw := q.Get(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(name, "must be an integer")
	}
	return v, nil
}

// timeParam reads the optional RFC 3339 "at" parameter used to evaluate
// specials at a time other than now.
func timeParam(q url.Values) (time.Time, error) {
	raw := q.Get("at")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, models.Invalid("at", "must be an RFC 3339 timestamp")
	}
	return t, nil
}
