package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/db"
)

// ViewInput contains parameters for the View operation.
type ViewInput struct {
	ID       string
	Location *string // presented location; nil skips the location gate
}

// ViewOutput contains a disclosed capsule.
type ViewOutput struct {
	ID             string `json:"id"`
	capsule.Record        // embedded (copy, not pointer)
	Now            int64  `json:"now"`
}

// View discloses a capsule when its unlock gates pass at the clock's current time.
// Fails with CAPSULE_LOCKED or LOCATION_MISMATCH otherwise.
func View(ctx context.Context, database *sql.DB, clk clock.Clock, input ViewInput) (*ViewOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	now := clk.Now()
	disclosed, err := capsule.View(rec, now, input.Location)
	if err != nil {
		return nil, err
	}

	return &ViewOutput{ID: id, Record: *disclosed, Now: now}, nil
}
