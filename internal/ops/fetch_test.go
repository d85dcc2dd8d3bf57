package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/errors"
)

func TestFetch_ReturnsLockedContent(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	out, err := Create(ctx, database, nil, clock.Fixed(1), CreateInput{
		Authority: newAuthor(t).Authority(),
		Message:   "sealed",
		Type:      "time_locked",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fetched, err := Fetch(ctx, database, FetchInput{ID: out.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.ID != out.ID || fetched.Message != "sealed" {
		t.Errorf("Fetch = %+v", fetched)
	}
}

func TestFetch_NotFound(t *testing.T) {
	database := newTestDB(t)
	id, err := generateULID()
	if err != nil {
		t.Fatalf("generateULID failed: %v", err)
	}

	_, err = Fetch(context.Background(), database, FetchInput{ID: id})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestFetch_InvalidID(t *testing.T) {
	database := newTestDB(t)

	_, err := Fetch(context.Background(), database, FetchInput{ID: "nope"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}
