package capsule

import (
	"github.com/hpungsan/memoreal/internal/errors"
)

// IsUnlockable evaluates only the time gate. General capsules are always
// unlockable; a time-locked capsule without an unlock time never is.
func IsUnlockable(r *Record, now int64) bool {
	if r.Type == TypeGeneral {
		return true
	}
	return r.UnlockAt != nil && now >= *r.UnlockAt
}

// LocationMatches evaluates the location gate. The gate is enforced only when
// both a stored and a presented location exist.
func LocationMatches(stored, presented *string) bool {
	if stored == nil || presented == nil {
		return true
	}
	return *stored == *presented
}

// View runs the full disclosure chain and returns a copy of the record when
// both gates pass. The time gate is checked first: a locked capsule reports
// CAPSULE_LOCKED whatever location is presented.
func View(r *Record, now int64, presented *string) (*Record, error) {
	if r.Type == TypeGeneral {
		return r.Clone(), nil
	}
	if !IsUnlockable(r, now) {
		return nil, errors.NewCapsuleLocked(r.UnlockAt, now)
	}
	if !LocationMatches(r.Location, presented) {
		return nil, errors.NewLocationMismatch()
	}
	return r.Clone(), nil
}
