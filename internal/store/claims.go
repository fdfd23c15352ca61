package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onthecheap/internal/models"
)

const claimColumns = `id, user_id, external_id, business_name, verification_notes, status, created_at, decided_at`

// CreateClaim inserts a pending claim unless the same external venue already
// has a pending or approved one. Concurrent submissions for one venue are
// serialized by a transaction-scoped advisory lock on its id.
func (s *Store) CreateClaim(ctx context.Context, c models.Claim) (models.Claim, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Status = models.ClaimPending
	c.DecidedAt = nil
	externalID := c.ExternalID.String()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, externalID); err != nil {
			return fmt.Errorf("lock claim: %w", err)
		}

		var existing uuid.UUID
		err := tx.QueryRowContext(ctx, `
			SELECT id
			FROM claims
			WHERE external_id = $1 AND status IN ('pending', 'approved')
			LIMIT 1
		`, externalID).Scan(&existing)
		switch {
		case err == nil:
			return ErrClaimConflict
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check claims: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO claims (id, user_id, external_id, business_name, verification_notes, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, c.ID, c.UserID, externalID, c.BusinessName, c.VerificationNotes, string(c.Status)).Scan(&c.CreatedAt); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Claim{}, err
	}
	return c, nil
}

// GetClaim returns the claim with id.
func (s *Store) GetClaim(ctx context.Context, id uuid.UUID) (models.Claim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Claim{}, ErrClaimNotFound
		}
		return models.Claim{}, fmt.Errorf("select claim: %w", err)
	}
	return c, nil
}

// ListClaims returns claims in submission order, filtered by status when
// status is non-empty.
func (s *Store) ListClaims(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	return s.queryClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE $1::text = '' OR status = $1
		ORDER BY created_at ASC, id ASC
	`, string(status))
}

// ClaimsByUser returns the user's claims, filtered by status when status is
// non-empty.
func (s *Store) ClaimsByUser(ctx context.Context, userID uuid.UUID, status models.ClaimStatus) ([]models.Claim, error) {
	return s.queryClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE user_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at ASC, id ASC
	`, userID, string(status))
}

// HoldingClaims returns the pending or approved claim for each of the given
// external venue ids that has one, keyed by the id's canonical string.
func (s *Store) HoldingClaims(ctx context.Context, externalIDs []string) (map[string]models.Claim, error) {
	out := make(map[string]models.Claim, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	claims, err := s.queryClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE external_id = ANY($1) AND status IN ('pending', 'approved')
	`, pq.Array(externalIDs))
	if err != nil {
		return nil, err
	}
	for _, c := range claims {
		out[c.ExternalID.String()] = c
	}
	return out, nil
}

// DecideClaim moves a pending claim to status. When imported is non-nil it
// is inserted into the catalogue in the same transaction; an existing
// import of the same external venue is kept as is.
func (s *Store) DecideClaim(ctx context.Context, id uuid.UUID, status models.ClaimStatus, at time.Time, imported *models.Venue) (models.Claim, error) {
	var claim models.Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id)
		c, err := scanClaim(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrClaimNotFound
			}
			return fmt.Errorf("lock claim: %w", err)
		}

		if err := c.Transition(status, at.UTC()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE claims
			SET status = $2, decided_at = $3
			WHERE id = $1
		`, c.ID, string(c.Status), c.DecidedAt); err != nil {
			return fmt.Errorf("update claim: %w", err)
		}

		if imported != nil {
			if err := s.importVenue(ctx, tx, imported); err != nil {
				return err
			}
		}

		claim = c
		return nil
	})
	if err != nil {
		return models.Claim{}, err
	}
	return claim, nil
}

func (s *Store) importVenue(ctx context.Context, tx *sql.Tx, v *models.Venue) error {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT import_venue`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	err := s.insertVenue(ctx, tx, v)
	if errors.Is(err, ErrVenueExists) {
		_, err = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT import_venue`)
		if err != nil {
			return fmt.Errorf("rollback savepoint: %w", err)
		}
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (models.Claim, error) {
	var (
		c          models.Claim
		externalID string
		status     string
		decidedAt  sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.UserID, &externalID, &c.BusinessName, &c.VerificationNotes, &status, &c.CreatedAt, &decidedAt); err != nil {
		return models.Claim{}, err
	}
	id, err := models.ParseVenueID(externalID)
	if err != nil {
		return models.Claim{}, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	c.ExternalID = id
	c.Status = models.ClaimStatus(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	return c, nil
}

func (s *Store) queryClaims(ctx context.Context, query string, args ...any) ([]models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select claims: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}
