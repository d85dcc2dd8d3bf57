package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/config"
	"github.com/hpungsan/memoreal/internal/db"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Authority      identity.Authority // required; becomes the author
	Title          string
	Recipient      string
	Message        string
	MediaReference string
	Type           string // "general" (default) or "time_locked"
	UnlockAt       *int64 // time-locked only; nil never unlocks
	Location       *string
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID        string             `json:"id"`
	Author    identity.PublicKey `json:"author"`
	CreatedAt int64              `json:"created_at"`
	Size      int                `json:"size_bytes"`
}

// Create validates, stamps and persists a new capsule record.
// Nothing is persisted if validation or storage reservation fails.
func Create(ctx context.Context, database *sql.DB, cfg *config.Config, clk clock.Clock, input CreateInput) (*CreateOutput, error) {
	if !input.Authority.Valid() {
		return nil, errors.NewInvalidRequest("authority is not authenticated")
	}

	typ, err := capsule.ParseType(input.Type)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	fields := capsule.Fields{
		Title:          input.Title,
		Recipient:      input.Recipient,
		Message:        input.Message,
		MediaReference: input.MediaReference,
		Type:           typ,
		UnlockAt:       input.UnlockAt,
		Location:       input.Location,
	}
	if err := capsule.Validate(fields); err != nil {
		return nil, validationError(err)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rec := &capsule.Record{
		Author:    input.Authority.PublicKey(),
		Fields:    fields,
		CreatedAt: clk.Now(),
	}

	var quota int64
	if cfg != nil {
		quota = cfg.AuthorQuotaBytes
	}
	if err := db.InsertCapsule(ctx, database, id, rec, quota); err != nil {
		return nil, err
	}

	return &CreateOutput{
		ID:        id,
		Author:    rec.Author,
		CreatedAt: rec.CreatedAt,
		Size:      capsule.Size(fields),
	}, nil
}
