package capsule

import (
	"fmt"
	"strings"

	"github.com/hpungsan/memoreal/internal/identity"
)

// Type is the disclosure mode of a capsule.
type Type uint8

const (
	// TypeGeneral capsules disclose their contents unconditionally.
	TypeGeneral Type = 0
	// TypeTimeLocked capsules disclose only once the unlock time has passed.
	TypeTimeLocked Type = 1
)

// String returns the wire name of the type.
func (t Type) String() string {
	switch t {
	case TypeGeneral:
		return "general"
	case TypeTimeLocked:
		return "time_locked"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a known capsule type.
func (t Type) Valid() bool {
	return t == TypeGeneral || t == TypeTimeLocked
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown capsule type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses a capsule type name. Empty input means general.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general":
		return TypeGeneral, nil
	case "time_locked", "timelocked", "time-locked":
		return TypeTimeLocked, nil
	default:
		return 0, fmt.Errorf("unknown capsule type %q (want general or time_locked)", s)
	}
}

// Fields are the caller-supplied contents of a capsule.
type Fields struct {
	// Title is a short human-readable title
	Title string `json:"title"`

	// Recipient names who the capsule is for
	Recipient string `json:"recipient"`

	// Message is the capsule body
	Message string `json:"message"`

	// MediaReference points at attached media, e.g. an ipfs:// link
	MediaReference string `json:"media_reference"`

	// Type is the disclosure mode
	Type Type `json:"capsule_type"`

	// UnlockAt is the Unix time a time-locked capsule opens (ignored for general)
	UnlockAt *int64 `json:"unlock_at,omitempty"`

	// Location is an optional geofence tag
	Location *string `json:"location,omitempty"`
}

// Record is a persisted capsule. It is never modified after creation.
type Record struct {
	// Author is the identity that authorized creation
	Author identity.PublicKey `json:"author"`

	Fields

	// CreatedAt is the Unix timestamp stamped from the trusted clock
	CreatedAt int64 `json:"created_at"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.UnlockAt != nil {
		v := *r.UnlockAt
		c.UnlockAt = &v
	}
	if r.Location != nil {
		v := *r.Location
		c.Location = &v
	}
	return &c
}
