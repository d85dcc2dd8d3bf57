package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/errors"
)

func TestList_FiltersAndPagination(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	alice := newAuthor(t)
	bob := newAuthor(t)

	for i := 0; i < 3; i++ {
		if _, err := Create(ctx, database, nil, clock.Fixed(int64(100+i)), CreateInput{
			Authority: alice.Authority(),
			Title:     fmt.Sprintf("alice-%d", i),
			Message:   "secret",
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := Create(ctx, database, nil, clock.Fixed(200), CreateInput{
		Authority: bob.Authority(),
		Title:     "bob",
		Type:      "time_locked",
		UnlockAt:  int64Ptr(300),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	all, err := List(ctx, database, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if all.Pagination.Total != 4 || len(all.Items) != 4 {
		t.Fatalf("Total = %d, items = %d; want 4", all.Pagination.Total, len(all.Items))
	}
	if all.Items[0].Title != "bob" {
		t.Errorf("first item = %q, want newest (bob)", all.Items[0].Title)
	}
	if all.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", all.Sort)
	}
	if all.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want default %d", all.Pagination.Limit, DefaultListLimit)
	}

	mine, err := List(ctx, database, ListInput{Author: alice.PublicKey().String(), Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if mine.Pagination.Total != 3 || len(mine.Items) != 2 || !mine.Pagination.HasMore {
		t.Errorf("author page = %+v", mine.Pagination)
	}
	if mine.Items[0].Title != "alice-2" {
		t.Errorf("first = %q, want alice-2", mine.Items[0].Title)
	}

	locked, err := List(ctx, database, ListInput{Type: "time_locked"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(locked.Items) != 1 || locked.Items[0].UnlockAt == nil || *locked.Items[0].UnlockAt != 300 {
		t.Errorf("type filter = %+v", locked.Items)
	}
}

func TestList_LimitBounds(t *testing.T) {
	database := newTestDB(t)

	out, err := List(context.Background(), database, ListInput{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, MaxListLimit)
	}
	if out.Pagination.Offset != 0 {
		t.Errorf("Offset = %d, want 0", out.Pagination.Offset)
	}
	if out.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}

func TestList_InvalidFilters(t *testing.T) {
	database := newTestDB(t)

	if _, err := List(context.Background(), database, ListInput{Author: "0OIl"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad author: expected INVALID_REQUEST, got %v", err)
	}
	if _, err := List(context.Background(), database, ListInput{Type: "secret"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad type: expected INVALID_REQUEST, got %v", err)
	}
}
