package capsule

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hpungsan/memoreal/internal/errors"
)

func timeLocked(unlockAt *int64, location *string) *Record {
	return &Record{Fields: Fields{Type: TypeTimeLocked, UnlockAt: unlockAt, Location: location}}
}

func TestIsUnlockable(t *testing.T) {
	tests := []struct {
		name     string
		rec      *Record
		now      int64
		expected bool
	}{
		{"general", &Record{Fields: Fields{Type: TypeGeneral}}, 0, true},
		{"general ignores unlock_at", &Record{Fields: Fields{Type: TypeGeneral, UnlockAt: int64Ptr(9e18)}}, 0, true},
		{"time locked without unlock_at", timeLocked(nil, nil), 1 << 62, false},
		{"before unlock", timeLocked(int64Ptr(1700000000), nil), 1699999999, false},
		{"exactly at unlock", timeLocked(int64Ptr(1700000000), nil), 1700000000, true},
		{"after unlock", timeLocked(int64Ptr(1700000000), nil), 1700000001, true},
		{"location ignored", timeLocked(int64Ptr(10), stringPtr("Seoul")), 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnlockable(tt.rec, tt.now); got != tt.expected {
				t.Errorf("IsUnlockable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestView(t *testing.T) {
	seoul := stringPtr("Seoul")
	busan := stringPtr("Busan")

	tests := []struct {
		name      string
		rec       *Record
		now       int64
		presented *string
		wantCode  errors.ErrorCode // empty means success
	}{
		{"general any time", &Record{Fields: Fields{Type: TypeGeneral, Location: seoul}}, -1, busan, ""},
		{"locked before unlock", timeLocked(int64Ptr(1700000000), seoul), 1699999999, seoul, errors.ErrCapsuleLocked},
		{"locked regardless of location", timeLocked(int64Ptr(1700000000), seoul), 1699999999, busan, errors.ErrCapsuleLocked},
		{"never unlocks without unlock_at", timeLocked(nil, nil), 1 << 62, nil, errors.ErrCapsuleLocked},
		{"location mismatch", timeLocked(int64Ptr(1700000000), seoul), 1700000000, busan, errors.ErrLocationMismatch},
		{"location match", timeLocked(int64Ptr(1700000000), seoul), 1700000000, seoul, ""},
		{"no presented location", timeLocked(int64Ptr(1700000000), seoul), 1700000001, nil, ""},
		{"no stored location", timeLocked(int64Ptr(1700000000), nil), 1700000001, busan, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := View(tt.rec, tt.now, tt.presented)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("View() error = %v", err)
				}
				if got == tt.rec {
					t.Error("View() should return a copy, not the stored record")
				}
				if got.Type != tt.rec.Type {
					t.Errorf("View() type = %v, want %v", got.Type, tt.rec.Type)
				}
				return
			}
			if got != nil {
				t.Error("View() must not disclose content on failure")
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("View() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestView_CopyIsIndependent(t *testing.T) {
	rec := sampleRecord()
	got, err := View(rec, *rec.UnlockAt, nil)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	*got.Location = "Elsewhere"
	*got.UnlockAt = 0
	if *rec.Location != "Seoul" || *rec.UnlockAt != 1700000000 {
		t.Error("mutating the returned copy changed the stored record")
	}
}

func TestUnlock_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("general capsules are always unlockable", prop.ForAll(
		func(now int64) bool {
			return IsUnlockable(&Record{Fields: Fields{Type: TypeGeneral}}, now)
		},
		gen.Int64(),
	))

	properties.Property("time-locked without unlock_at is never unlockable", prop.ForAll(
		func(now int64) bool {
			return !IsUnlockable(timeLocked(nil, nil), now)
		},
		gen.Int64(),
	))

	properties.Property("time-locked unlockable iff now >= unlock_at", prop.ForAll(
		func(unlockAt, now int64) bool {
			return IsUnlockable(timeLocked(&unlockAt, nil), now) == (now >= unlockAt)
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.Property("view on general returns the record for any time and location", prop.ForAll(
		func(now int64, stored, presented string) bool {
			rec := &Record{Fields: Fields{Type: TypeGeneral, Location: &stored}}
			got, err := View(rec, now, &presented)
			return err == nil && got != nil
		},
		gen.Int64(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("view before unlock_at is always CAPSULE_LOCKED", prop.ForAll(
		func(unlockAt int64, delta int64, presented string) bool {
			now := unlockAt - delta
			if now >= unlockAt {
				return true
			}
			_, err := View(timeLocked(&unlockAt, stringPtr("Seoul")), now, &presented)
			return errors.Is(err, errors.ErrCapsuleLocked)
		},
		gen.Int64Range(-1<<40, 1<<40),
		gen.Int64Range(1, 1<<30),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
