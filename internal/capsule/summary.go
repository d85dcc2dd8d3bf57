package capsule

import "github.com/hpungsan/memoreal/internal/identity"

// Summary represents a capsule's header without its disclosed contents.
// Used for browse operations (list, status) where the unlock gate has not run.
type Summary struct {
	// ID is the ULID handle of the capsule
	ID string `json:"id"`

	// Author is the creating identity
	Author identity.PublicKey `json:"author"`

	// Title is the capsule title
	Title string `json:"title"`

	// Recipient names who the capsule is for
	Recipient string `json:"recipient"`

	// Type is the disclosure mode
	Type Type `json:"capsule_type"`

	// UnlockAt is the unlock time, reported only for time-locked capsules
	UnlockAt *int64 `json:"unlock_at,omitempty"`

	// HasLocation reports whether a location tag is stored (the tag itself is not revealed)
	HasLocation bool `json:"has_location"`

	// CreatedAt is the Unix timestamp of creation
	CreatedAt int64 `json:"created_at"`
}

// ToSummary converts a Record to a Summary by stripping message, media and location.
func (r *Record) ToSummary(id string) Summary {
	s := Summary{
		ID:          id,
		Author:      r.Author,
		Title:       r.Title,
		Recipient:   r.Recipient,
		Type:        r.Type,
		HasLocation: r.Location != nil,
		CreatedAt:   r.CreatedAt,
	}
	if r.Type == TypeTimeLocked && r.UnlockAt != nil {
		v := *r.UnlockAt
		s.UnlockAt = &v
	}
	return s
}
