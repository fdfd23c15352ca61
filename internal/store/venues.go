package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onthecheap/internal/models"
)

// Venues are stored as JSONB documents keyed by uuid. owner_id and
// source_external_id are mirrored into columns for the owner lookups.

// CreateVenue inserts v, assigning an id and creation time when unset.
func (s *Store) CreateVenue(ctx context.Context, v models.Venue) (models.Venue, error) {
	if err := s.insertVenue(ctx, s.db, &v); err != nil {
		return models.Venue{}, err
	}
	return v, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertVenue(ctx context.Context, db execer, v *models.Venue) error {
	id, ok := v.ID.Internal()
	if !ok {
		id = uuid.New()
		v.ID = models.InternalID(id)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Specials == nil {
		v.Specials = []models.Special{}
	}
	if v.Cuisine == nil {
		v.Cuisine = []string{}
	}

	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode venue: %w", err)
	}

	var source *string
	if v.SourceExternalID != nil {
		src := v.SourceExternalID.String()
		source = &src
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO venues (id, owner_id, source_external_id, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, v.OwnerID, source, doc, v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVenueExists
		}
		return fmt.Errorf("insert venue: %w", err)
	}
	return nil
}

// GetVenue returns the catalogue venue with id.
func (s *Store) GetVenue(ctx context.Context, id uuid.UUID) (models.Venue, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc
		FROM venues
		WHERE id = $1
	`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Venue{}, ErrVenueNotFound
		}
		return models.Venue{}, fmt.Errorf("select venue: %w", err)
	}
	return decodeVenue(doc)
}

// GetVenues returns the venues among ids that exist, keyed by id.
func (s *Store) GetVenues(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Venue, error) {
	out := make(map[uuid.UUID]models.Venue, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	venues, err := s.queryVenues(ctx, `
		SELECT doc
		FROM venues
		WHERE id = ANY($1::uuid[])
	`, pq.Array(raw))
	if err != nil {
		return nil, err
	}
	for _, v := range venues {
		id, _ := v.ID.Internal()
		out[id] = v
	}
	return out, nil
}

// ListVenues returns the whole catalogue in creation order.
func (s *Store) ListVenues(ctx context.Context) ([]models.Venue, error) {
	return s.queryVenues(ctx, `
		SELECT doc
		FROM venues
		ORDER BY created_at ASC, id ASC
	`)
}

// VenuesManagedBy returns venues owned by ownerID or imported from one of
// sources.
func (s *Store) VenuesManagedBy(ctx context.Context, ownerID uuid.UUID, sources []string) ([]models.Venue, error) {
	if sources == nil {
		sources = []string{}
	}
	return s.queryVenues(ctx, `
		SELECT doc
		FROM venues
		WHERE owner_id = $1 OR source_external_id = ANY($2)
		ORDER BY created_at ASC, id ASC
	`, ownerID, pq.Array(sources))
}

// CountVenues returns the catalogue size.
func (s *Store) CountVenues(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM venues`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count venues: %w", err)
	}
	return n, nil
}

// AddSpecial appends sp to the venue's specials.
func (s *Store) AddSpecial(ctx context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error) {
	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	err := s.mutateVenue(ctx, venueID, func(v *models.Venue) error {
		v.Specials = append(v.Specials, sp)
		return nil
	})
	if err != nil {
		return models.Special{}, err
	}
	return sp, nil
}

// UpdateSpecial replaces the special with sp.ID, keeping its creation time.
func (s *Store) UpdateSpecial(ctx context.Context, venueID uuid.UUID, sp models.Special) (models.Special, error) {
	err := s.mutateVenue(ctx, venueID, func(v *models.Venue) error {
		i := v.FindSpecial(sp.ID)
		if i < 0 {
			return ErrSpecialNotFound
		}
		sp.CreatedAt = v.Specials[i].CreatedAt
		v.Specials[i] = sp
		return nil
	})
	if err != nil {
		return models.Special{}, err
	}
	return sp, nil
}

// DeleteSpecial removes the special with specialID.
func (s *Store) DeleteSpecial(ctx context.Context, venueID, specialID uuid.UUID) error {
	return s.mutateVenue(ctx, venueID, func(v *models.Venue) error {
		i := v.FindSpecial(specialID)
		if i < 0 {
			return ErrSpecialNotFound
		}
		v.Specials = append(v.Specials[:i], v.Specials[i+1:]...)
		return nil
	})
}

// mutateVenue applies fn to the venue document under a row lock.
func (s *Store) mutateVenue(ctx context.Context, id uuid.UUID, fn func(v *models.Venue) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var doc []byte
		err := tx.QueryRowContext(ctx, `
			SELECT doc
			FROM venues
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&doc)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVenueNotFound
			}
			return fmt.Errorf("lock venue: %w", err)
		}

		v, err := decodeVenue(doc)
		if err != nil {
			return err
		}
		if err := fn(&v); err != nil {
			return err
		}

		updated, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode venue: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE venues
			SET doc = $2
			WHERE id = $1
		`, id, updated); err != nil {
			return fmt.Errorf("update venue: %w", err)
		}
		return nil
	})
}

func (s *Store) queryVenues(ctx context.Context, query string, args ...any) ([]models.Venue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select venues: %w", err)
	}
	defer rows.Close()

	var venues []models.Venue
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		v, err := decodeVenue(doc)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate venues: %w", err)
	}
	return venues, nil
}

func decodeVenue(doc []byte) (models.Venue, error) {
	var v models.Venue
	if err := json.Unmarshal(doc, &v); err != nil {
		return models.Venue{}, fmt.Errorf("decode venue: %w", err)
	}
	if v.Specials == nil {
		v.Specials = []models.Special{}
	}
	return v, nil
}
