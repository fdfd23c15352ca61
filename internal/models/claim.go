package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the review state of an ownership claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// Holds reports whether a claim in this status blocks new claims for the
// same venue.
func (s ClaimStatus) Holds() bool {
	return s == ClaimPending || s == ClaimApproved
}

// Claim asserts that a user controls an externally sourced venue.
type Claim struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	ExternalID        VenueID     `json:"external_id"`
	BusinessName      string      `json:"business_name"`
	VerificationNotes string      `json:"verification_notes,omitempty"`
	Status            ClaimStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	DecidedAt         *time.Time  `json:"decided_at,omitempty"`
}

// Transition moves a pending claim to approved or rejected.
func (c *Claim) Transition(to ClaimStatus, at time.Time) error {
	if c.Status != ClaimPending {
		return fmt.Errorf("claim %s is %s: %w", c.ID, c.Status, ErrConflict)
	}
	if to != ClaimApproved && to != ClaimRejected {
		return Invalid("status", "cannot move a claim to %q", to)
	}
	c.Status = to
	c.DecidedAt = &at
	return nil
}
