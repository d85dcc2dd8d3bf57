package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
)

// InsertCapsule reserves capsule.RecordSize bytes against the author's quota
// and stores the encoded record, both inside one transaction.
// quota <= 0 means unlimited.
func InsertCapsule(ctx context.Context, db *sql.DB, id string, rec *capsule.Record, quota int64) error {
	blob, err := capsule.Encode(rec)
	if err != nil {
		return errors.NewInternal(err)
	}
	author := rec.Author.String()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewAllocation("failed to begin reservation", err)
	}
	defer tx.Rollback()

	if quota > 0 {
		reserved, err := reservedBytes(ctx, tx, author)
		if err != nil {
			return errors.NewAllocation("failed to read reserved bytes", err)
		}
		if reserved+int64(len(blob)) > quota {
			e := errors.NewAllocation(
				fmt.Sprintf("author quota exceeded: %d reserved + %d requested > %d", reserved, len(blob), quota), nil)
			e.Details = map[string]any{"reserved_bytes": reserved, "requested_bytes": len(blob), "quota_bytes": quota}
			return e
		}
	}

	var unlockAt sql.NullInt64
	if rec.Type == capsule.TypeTimeLocked && rec.UnlockAt != nil {
		unlockAt = sql.NullInt64{Int64: *rec.UnlockAt, Valid: true}
	}

	query := `
		INSERT INTO capsules (
			id, author, title, recipient, capsule_type, unlock_at,
			has_location, reserved_bytes, record, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		id, author, rec.Title, rec.Recipient, int(rec.Type), unlockAt,
		boolToInt(rec.Location != nil), len(blob), blob, rec.CreatedAt,
	)
	if err != nil {
		return errors.NewAllocation("failed to reserve record storage", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAllocation("failed to commit reservation", err)
	}
	return nil
}

// GetByID retrieves and decodes a capsule record by its ULID.
func GetByID(ctx context.Context, db *sql.DB, id string) (*capsule.Record, error) {
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT record FROM capsules WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rec, err := capsule.Decode(blob)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("capsule %s: %w", id, err))
	}
	return rec, nil
}

// ReservedBytes returns the total bytes reserved by an author's capsules.
func ReservedBytes(ctx context.Context, db *sql.DB, author identity.PublicKey) (int64, error) {
	n, err := reservedBytes(ctx, db, author.String())
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func reservedBytes(ctx context.Context, q queryer, author string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(reserved_bytes), 0) FROM capsules WHERE author = ?`, author,
	).Scan(&n)
	return n, err
}

// ListFilters narrows capsule listing.
type ListFilters struct {
	Author *identity.PublicKey
	Type   *capsule.Type
}

// ListCapsules returns summaries ordered newest first, plus the total matching count.
func ListCapsules(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int) ([]capsule.Summary, int, error) {
	var (
		where []string
		args  []any
	)
	if filters.Author != nil {
		where = append(where, "author = ?")
		args = append(args, filters.Author.String())
	}
	if filters.Type != nil {
		where = append(where, "capsule_type = ?")
		args = append(args, int(*filters.Type))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM capsules"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, author, title, recipient, capsule_type, unlock_at, has_location, created_at
		FROM capsules` + whereClause + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := []capsule.Summary{}
	for rows.Next() {
		var (
			s           capsule.Summary
			author      string
			typ         int
			unlockAt    sql.NullInt64
			hasLocation int
		)
		if err := rows.Scan(&s.ID, &author, &s.Title, &s.Recipient, &typ, &unlockAt, &hasLocation, &s.CreatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		if s.Author, err = identity.ParsePublicKey(author); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.Type = capsule.Type(typ)
		if unlockAt.Valid {
			s.UnlockAt = &unlockAt.Int64
		}
		s.HasLocation = hasLocation != 0
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
