package httpapi

import (
	"net/http"

	"onthecheap/internal/app/users"
	"onthecheap/internal/auth"
)

// POST /api/users/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req users.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.users.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/users/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /api/users/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	user, err := s.users.Me(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /api/users/favorites
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	favorites, err := s.favorites.List(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

// POST /api/users/favorites/{id}
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.favorites.Add(r.Context(), p.UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Added to favorites"})
}

// DELETE /api/users/favorites/{id}
func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := s.favorites.Remove(r.Context(), p.UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Removed from favorites"})
}
