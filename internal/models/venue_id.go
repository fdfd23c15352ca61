package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// VenueKind discriminates the two venue id namespaces.
type VenueKind int

const (
	// KindInternal identifies venues owned by the catalogue.
	KindInternal VenueKind = iota + 1
	// KindExternal identifies venues reconstructed from a provider.
	KindExternal
)

const (
	internalPrefix = "internal"
	externalPrefix = "external"
)

// VenueID is either Internal(uuid) or External(provider, providerID).
// The zero value is neither and reports IsZero.
type VenueID struct {
	kind       VenueKind
	internal   uuid.UUID
	provider   string
	providerID string
}

// InternalID wraps a catalogue uuid.
func InternalID(id uuid.UUID) VenueID {
	return VenueID{kind: KindInternal, internal: id}
}

// ExternalID builds the id of a venue owned by provider.
func ExternalID(provider, providerID string) VenueID {
	return VenueID{kind: KindExternal, provider: provider, providerID: providerID}
}

// ParseVenueID parses the canonical forms "internal:<uuid>" and
// "external:<provider>:<provider-id>". The provider id may contain colons.
func ParseVenueID(raw string) (VenueID, error) {
	raw = strings.TrimSpace(raw)
	prefix, rest, ok := strings.Cut(raw, ":")
	if !ok || rest == "" {
		return VenueID{}, Invalid("venue id", "%q is not namespaced", raw)
	}

	switch prefix {
	case internalPrefix:
		id, err := uuid.Parse(rest)
		if err != nil {
			return VenueID{}, Invalid("venue id", "%q has a malformed uuid", raw)
		}
		return InternalID(id), nil
	case externalPrefix:
		provider, providerID, ok := strings.Cut(rest, ":")
		if !ok || provider == "" || providerID == "" {
			return VenueID{}, Invalid("venue id", "%q must be external:<provider>:<id>", raw)
		}
		return ExternalID(provider, providerID), nil
	default:
		return VenueID{}, Invalid("venue id", "unknown namespace %q", prefix)
	}
}

// Kind returns the namespace of the id.
func (v VenueID) Kind() VenueKind { return v.kind }

// IsZero reports whether the id is unset.
func (v VenueID) IsZero() bool { return v.kind == 0 }

// Internal returns the catalogue uuid when v is internal.
func (v VenueID) Internal() (uuid.UUID, bool) {
	return v.internal, v.kind == KindInternal
}

// External returns the provider and provider id when v is external.
func (v VenueID) External() (provider, providerID string, ok bool) {
	return v.provider, v.providerID, v.kind == KindExternal
}

func (v VenueID) String() string {
	switch v.kind {
	case KindInternal:
		return internalPrefix + ":" + v.internal.String()
	case KindExternal:
		return fmt.Sprintf("%s:%s:%s", externalPrefix, v.provider, v.providerID)
	default:
		return ""
	}
}

// MarshalText encodes the canonical string form.
func (v VenueID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the canonical string form; an empty string leaves the
// zero value.
func (v *VenueID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = VenueID{}
		return nil
	}
	parsed, err := ParseVenueID(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
