// Package events publishes claim and specials changes so that downstream
// consumers (notifications, audit) can react without coupling to the API.
package events

import (
	"context"
	"time"

	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
)

// Type names a domain event.
type Type string

const (
	ClaimSubmitted Type = "claim.submitted"
	ClaimApproved  Type = "claim.approved"
	ClaimRejected  Type = "claim.rejected"
	VenueCreated   Type = "venue.created"
	SpecialCreated Type = "special.created"
	SpecialUpdated Type = "special.updated"
	SpecialDeleted Type = "special.deleted"
)

// Event is the message body published for every domain change. Ids are
// canonical strings; unset ids are omitted.
type Event struct {
	Type       Type      `json:"type"`
	ClaimID    string    `json:"claim_id,omitempty"`
	VenueID    string    `json:"venue_id,omitempty"`
	SpecialID  string    `json:"special_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher hands events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error {
	metrics.EventsPublishedTotal.WithLabelValues("none", "skipped").Inc()
	return nil
}

// Emit publishes ev and logs a failure instead of returning it; a broker
// outage never fails the request that produced the event.
func Emit(ctx context.Context, pub Publisher, ev Event) {
	if pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to publish event")
	}
}
