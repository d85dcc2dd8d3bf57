package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/db"
)

// StatusInput contains parameters for the Status operation.
type StatusInput struct {
	ID string
}

// StatusOutput reports a capsule's header and whether its time gate is open.
type StatusOutput struct {
	capsule.Summary
	Unlockable  bool            `json:"unlockable"`
	Now         int64           `json:"now"`
	Collectible *db.Collectible `json:"collectible,omitempty"`
}

// Status evaluates the time gate without disclosing contents.
func Status(ctx context.Context, database *sql.DB, clk clock.Clock, input StatusInput) (*StatusOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	collectible, err := db.FindCollectible(ctx, database, id)
	if err != nil {
		return nil, err
	}

	now := clk.Now()
	return &StatusOutput{
		Summary:     rec.ToSummary(id),
		Unlockable:  capsule.IsUnlockable(rec, now),
		Now:         now,
		Collectible: collectible,
	}, nil
}
