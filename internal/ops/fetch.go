package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/db"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	ID             string `json:"id"`
	capsule.Record        // embedded (copy, not pointer)
}

// Fetch returns the stored record without running the unlock gates.
// Disclosure surfaces use View instead.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	return &FetchOutput{ID: id, Record: *rec.Clone()}, nil
}
