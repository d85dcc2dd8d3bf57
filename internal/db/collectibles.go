package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memoreal/internal/errors"
)

// Collectible outcomes recorded per capsule.
const (
	OutcomePending        = "pending"
	OutcomeComplete       = "complete"
	OutcomeMetadataFailed = "metadata_failed"
	OutcomeMintFailed     = "mint_failed"
)

// Collectible is the recorded mint attempt for a capsule.
type Collectible struct {
	CapsuleID    string  `json:"capsule_id"`
	Outcome      string  `json:"outcome"`
	Mint         *string `json:"mint,omitempty"`
	TokenAccount *string `json:"token_account,omitempty"`
	Metadata     *string `json:"metadata,omitempty"`
	MintSig      *string `json:"mint_signature,omitempty"`
	MetadataSig  *string `json:"metadata_signature,omitempty"`
	Error        *string `json:"error,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// ClaimCollectible records a pending mint attempt for capsuleID.
// A capsule whose previous attempt minted nothing (mint_failed) may be claimed again;
// any other existing attempt fails with ALREADY_MINTED.
func ClaimCollectible(ctx context.Context, db *sql.DB, capsuleID string, now int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	var outcome string
	err = tx.QueryRowContext(ctx, `SELECT outcome FROM collectibles WHERE capsule_id = ?`, capsuleID).Scan(&outcome)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collectibles (capsule_id, outcome, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, capsuleID, OutcomePending, now, now)
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyMinted(capsuleID, OutcomePending)
		}
	case err != nil:
		return errors.NewInternal(err)
	case outcome == OutcomeMintFailed:
		_, err = tx.ExecContext(ctx, `
			UPDATE collectibles
			SET outcome = ?, mint = NULL, token_account = NULL, metadata = NULL,
				mint_sig = NULL, metadata_sig = NULL, error = NULL, updated_at = ?
			WHERE capsule_id = ? AND outcome = ?
		`, OutcomePending, now, capsuleID, OutcomeMintFailed)
	default:
		return errors.NewAlreadyMinted(capsuleID, outcome)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FinishCollectible stores the final outcome of a claimed attempt.
func FinishCollectible(ctx context.Context, db *sql.DB, c *Collectible) error {
	result, err := db.ExecContext(ctx, `
		UPDATE collectibles
		SET outcome = ?, mint = ?, token_account = ?, metadata = ?,
			mint_sig = ?, metadata_sig = ?, error = ?, updated_at = ?
		WHERE capsule_id = ?
	`,
		c.Outcome, toNullString(c.Mint), toNullString(c.TokenAccount), toNullString(c.Metadata),
		toNullString(c.MintSig), toNullString(c.MetadataSig), toNullString(c.Error), c.UpdatedAt,
		c.CapsuleID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(c.CapsuleID)
	}
	return nil
}

// FindCollectible returns the recorded mint attempt for capsuleID, or nil if none exists.
func FindCollectible(ctx context.Context, db *sql.DB, capsuleID string) (*Collectible, error) {
	var (
		c                                              Collectible
		mint, account, metadata, mintSig, metaSig, msg sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT capsule_id, outcome, mint, token_account, metadata,
			mint_sig, metadata_sig, error, created_at, updated_at
		FROM collectibles
		WHERE capsule_id = ?
	`, capsuleID).Scan(
		&c.CapsuleID, &c.Outcome, &mint, &account, &metadata,
		&mintSig, &metaSig, &msg, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	c.Mint = fromNullString(mint)
	c.TokenAccount = fromNullString(account)
	c.Metadata = fromNullString(metadata)
	c.MintSig = fromNullString(mintSig)
	c.MetadataSig = fromNullString(metaSig)
	c.Error = fromNullString(msg)
	return &c, nil
}
