package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"onthecheap/internal/models"
)

var dummyPasswordHash = []byte("$2a$10$CwTycUXWue0Thq9StjUM0uJ8n4VWeNseyX2fA9DE.D7su7J6iYGTC")

const userColumns = `id, email, name, role, favorites, created_at`

// CreateUser registers a user with a bcrypt hash of password.
func (s *Store) CreateUser(ctx context.Context, email, password, name string, role models.Role) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, models.Invalid("email", "email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		Favorites: []string{},
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Email, hash, user.Name, string(user.Role)).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// Authenticate checks the credentials and returns the matching user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var hash []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash
		FROM users
		WHERE email = $1
	`, normalizeEmail(email)).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return s.userWhere(ctx, `email = $1`, normalizeEmail(email))
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.userWhere(ctx, `id = $1`, id)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (models.User, error) {
	var (
		u    models.User
		role string
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Email, &u.Name, &role, pq.Array(&u.Favorites), &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Role = models.Role(role)
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
