package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"onthecheap/internal/auth"
	"onthecheap/internal/models"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// Store describes the persistence operations required by the user service.
type Store interface {
	CreateUser(ctx context.Context, email, password, name string, role models.Role) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(user models.User) (auth.Token, error)
}

// Registration is the input to Register.
type Registration struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     models.Role `json:"user_type"`
}

// Session is returned by a successful registration or login.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Role        models.Role `json:"user_type"`
	User        models.User `json:"user"`
}

// Service exposes user-related workflows.
type Service interface {
	Register(ctx context.Context, r Registration) (Session, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Me(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type service struct {
	store  Store
	tokens TokenIssuer
}

// New wires a Service backed by the provided Store.
func New(store Store, tokens TokenIssuer) Service {
	return &service{store: store, tokens: tokens}
}

func (s *service) Register(ctx context.Context, r Registration) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	email := strings.TrimSpace(r.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, models.Invalid("email", "must be a valid address")
	}
	if len(r.Password) < MinPasswordLength {
		return Session{}, models.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Session{}, models.Invalid("name", "is required")
	}
	role := r.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return Session{}, models.Invalid("user_type", "must be customer or owner")
	}

	user, err := s.store.CreateUser(ctx, email, r.Password, name, role)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *service) Login(ctx context.Context, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	user, err := s.store.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	return s.store.GetUser(ctx, userID)
}

func (s *service) session(user models.User) (Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken: token.Value,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt,
		Role:        user.Role,
		User:        user,
	}, nil
}
