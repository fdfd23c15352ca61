package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"onthecheap/internal/models"
)

var (
	// ErrVenueNotFound signals a missing catalogue venue.
	ErrVenueNotFound = fmt.Errorf("venue %w", models.ErrNotFound)
	// ErrVenueExists signals an import of an already imported external venue.
	ErrVenueExists = fmt.Errorf("venue already imported: %w", models.ErrConflict)
	// ErrSpecialNotFound signals a missing special on an existing venue.
	ErrSpecialNotFound = fmt.Errorf("special %w", models.ErrNotFound)
	// ErrClaimNotFound signals a missing claim.
	ErrClaimNotFound = fmt.Errorf("claim %w", models.ErrNotFound)
	// ErrClaimConflict signals that the venue already has a pending or approved claim.
	ErrClaimConflict = fmt.Errorf("venue already has an active claim: %w", models.ErrConflict)
	// ErrUserNotFound signals a missing user.
	ErrUserNotFound = fmt.Errorf("user %w", models.ErrNotFound)
	// ErrUserExists signals the email is already registered.
	ErrUserExists = fmt.Errorf("user already exists: %w", models.ErrConflict)
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", models.ErrUnauthorized)
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx = nil
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
