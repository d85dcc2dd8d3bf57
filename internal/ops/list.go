package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/db"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Author string // optional base58 identity filter
	Type   string // optional "general" or "time_locked"
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []capsule.Summary `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Sort       string            `json:"sort"`
}

// List retrieves capsule summaries, newest first, with pagination.
// Summaries never include message, media or location.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	var filters db.ListFilters

	if author := strings.TrimSpace(input.Author); author != "" {
		key, err := identity.ParsePublicKey(author)
		if err != nil {
			return nil, errors.NewInvalidRequest("invalid author: " + err.Error())
		}
		filters.Author = &key
	}
	if typ := strings.TrimSpace(input.Type); typ != "" {
		t, err := capsule.ParseType(typ)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		filters.Type = &t
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)

	summaries, total, err := db.ListCapsules(ctx, database, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if summaries == nil {
		summaries = []capsule.Summary{}
	}

	return &ListOutput{
		Items: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
