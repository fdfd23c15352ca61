package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AddFavorite appends venueID to the user's favorites unless it is already
// there.
func (s *Store) AddFavorite(ctx context.Context, userID uuid.UUID, venueID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET favorites = array_append(favorites, $2)
		WHERE id = $1 AND NOT ($2 = ANY(favorites))
	`, userID, venueID)
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return s.requireUserUnlessChanged(ctx, result, userID)
}

// RemoveFavorite drops venueID from the user's favorites; removing an absent
// id is not an error.
func (s *Store) RemoveFavorite(ctx context.Context, userID uuid.UUID, venueID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET favorites = array_remove(favorites, $2)
		WHERE id = $1
	`, userID, venueID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return s.requireUserUnlessChanged(ctx, result, userID)
}

// Favorites returns the user's favorite venue ids in insertion order.
func (s *Store) Favorites(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var favorites []string
	err := s.db.QueryRowContext(ctx, `
		SELECT favorites
		FROM users
		WHERE id = $1
	`, userID).Scan(pq.Array(&favorites))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select favorites: %w", err)
	}
	if favorites == nil {
		favorites = []string{}
	}
	return favorites, nil
}

// requireUserUnlessChanged distinguishes a no-op update from a missing user.
func (s *Store) requireUserUnlessChanged(ctx context.Context, result sql.Result, userID uuid.UUID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}
