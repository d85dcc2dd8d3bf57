package ops

import (
	"crypto/rand"
	stderrors "errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ValidateID trims id and checks that it is a well-formed ULID handle.
func ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", errors.NewInvalidRequest("invalid capsule id: " + err.Error())
	}
	return id, nil
}

// validationError maps a codec validation failure to a structured error.
func validationError(err error) error {
	var tooLong *capsule.FieldTooLongError
	if stderrors.As(err, &tooLong) {
		return errors.NewValidation(tooLong.Field, tooLong.Max, tooLong.Actual, err)
	}
	if stderrors.Is(err, capsule.ErrUnknownType) {
		return errors.NewInvalidRequest(err.Error())
	}
	return errors.NewInternal(err)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
