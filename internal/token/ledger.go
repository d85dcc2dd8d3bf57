// Package token is a local SQLite-backed fungible-unit ledger and metadata
// registry. It implements the mint package collaborators so collectibles can
// be minted without an external network.
package token

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/identity"
	"github.com/hpungsan/memoreal/internal/mint"
)

var (
	// ErrUnknownMint is returned when a mint has not been created.
	ErrUnknownMint = mint.ErrUnknownMint

	// ErrMintExists is returned when creating a mint that already exists.
	ErrMintExists = errors.New("mint already exists")

	// ErrAuthorityMismatch is returned when the signer is not the mint's authority.
	ErrAuthorityMismatch = errors.New("signer is not the mint authority")

	// ErrUnauthenticated is returned for a request without a verified signer.
	ErrUnauthenticated = errors.New("request is not signed")

	// ErrAccountMismatch is returned when a token account belongs to another mint or owner.
	ErrAccountMismatch = errors.New("token account belongs to another mint or owner")

	// ErrMetadataExists is returned when a mint already has a metadata entry.
	ErrMetadataExists = errors.New("metadata already registered for mint")

	// ErrAddressMismatch is returned when a metadata address was not derived from its mint.
	ErrAddressMismatch = errors.New("metadata address does not match derivation")

	// ErrInvalidMetadata wraps a metadata limit violation.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// Ledger stores mints, token accounts and metadata entries in SQLite.
type Ledger struct {
	db      *sql.DB
	program identity.PublicKey
	clock   clock.Clock
	logger  *slog.Logger
}

// NewLedger creates a Ledger over an initialized database (see db.Init).
// program is the metadata registry namespace used to verify entry addresses.
func NewLedger(db *sql.DB, program identity.PublicKey, clk clock.Clock) *Ledger {
	return &Ledger{
		db:      db,
		program: program,
		clock:   clk,
		logger:  slog.Default().With("component", "token"),
	}
}

// Compile-time interface checks.
var (
	_ mint.Minter      = (*Ledger)(nil)
	_ mint.MintCreator = (*Ledger)(nil)
	_ mint.Registry    = (*Ledger)(nil)
)

// CreateMint creates a mint with the given authority and decimals.
func (l *Ledger) CreateMint(ctx context.Context, address identity.PublicKey, authority identity.Authority, decimals uint8) (string, error) {
	if !authority.Valid() {
		return "", ErrUnauthenticated
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO mints (address, authority, decimals, supply, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, address.String(), authority.PublicKey().String(), int(decimals), l.clock.Now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", ErrMintExists
		}
		return "", err
	}

	l.logger.InfoContext(ctx, "mint created", "mint", address.String(), "decimals", decimals)
	return newSignature(), nil
}

// MintOne mints exactly one unit of req.Mint into req.TargetAccount, creating
// the account for req.Owner on first use.
func (l *Ledger) MintOne(ctx context.Context, req mint.MintRequest) (*mint.MintReceipt, error) {
	if !req.Authority.Valid() {
		return nil, ErrUnauthenticated
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var authority string
	err = tx.QueryRowContext(ctx, `SELECT authority FROM mints WHERE address = ?`, req.Mint.String()).Scan(&authority)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMint, req.Mint)
	}
	if err != nil {
		return nil, err
	}
	if authority != req.Authority.PublicKey().String() {
		return nil, ErrAuthorityMismatch
	}

	var accountMint, owner string
	err = tx.QueryRowContext(ctx, `SELECT mint, owner FROM token_accounts WHERE address = ?`,
		req.TargetAccount.String()).Scan(&accountMint, &owner)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO token_accounts (address, mint, owner, amount) VALUES (?, ?, ?, 0)
		`, req.TargetAccount.String(), req.Mint.String(), req.Owner.String()); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case accountMint != req.Mint.String() || owner != req.Owner.String():
		return nil, ErrAccountMismatch
	}

	if _, err := tx.ExecContext(ctx, `UPDATE mints SET supply = supply + 1 WHERE address = ?`, req.Mint.String()); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE token_accounts SET amount = amount + 1 WHERE address = ?`, req.TargetAccount.String()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sig := newSignature()
	l.logger.InfoContext(ctx, "unit minted", "mint", req.Mint.String(), "account", req.TargetAccount.String(), "signature", sig)
	return &mint.MintReceipt{Signature: sig}, nil
}

// RegisterMetadata stores a metadata entry for req.Mint. Only the mint authority
// may register, once per mint, at the address derived from the mint.
func (l *Ledger) RegisterMetadata(ctx context.Context, req mint.MetadataRequest) (*mint.MetadataReceipt, error) {
	if !req.Authority.Valid() {
		return nil, ErrUnauthenticated
	}
	if err := mint.ValidateMetadata(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	want, err := mint.DeriveMetadataAddress(l.program, req.Mint)
	if err != nil {
		return nil, err
	}
	if want != req.Address {
		return nil, ErrAddressMismatch
	}

	var authority string
	err = l.db.QueryRowContext(ctx, `SELECT authority FROM mints WHERE address = ?`, req.Mint.String()).Scan(&authority)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMint, req.Mint)
	}
	if err != nil {
		return nil, err
	}
	if authority != req.Authority.PublicKey().String() {
		return nil, ErrAuthorityMismatch
	}

	creators, err := json.Marshal(req.Creators)
	if err != nil {
		return nil, err
	}
	var maxSupply sql.NullInt64
	if req.MaxPrintSupply != nil {
		maxSupply = sql.NullInt64{Int64: int64(*req.MaxPrintSupply), Valid: true}
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO metadata_entries (
			address, mint, update_authority, name, symbol, uri,
			creators_json, seller_fee_bps, is_mutable, max_supply, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.Address.String(), req.Mint.String(), authority, req.Name, req.Symbol, req.URI,
		string(creators), int(req.SellerFeeBasisPoints), boolToInt(req.Mutable), maxSupply, l.clock.Now(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrMetadataExists
		}
		return nil, err
	}

	sig := newSignature()
	l.logger.InfoContext(ctx, "metadata registered", "mint", req.Mint.String(), "address", req.Address.String())
	return &mint.MetadataReceipt{Address: req.Address, Signature: sig}, nil
}

// MintInfo is the stored state of a mint.
type MintInfo struct {
	Address   identity.PublicKey `json:"address"`
	Authority identity.PublicKey `json:"authority"`
	Decimals  uint8              `json:"decimals"`
	Supply    uint64             `json:"supply"`
	CreatedAt int64              `json:"created_at"`
}

// GetMint returns the stored state of a mint.
func (l *Ledger) GetMint(ctx context.Context, address identity.PublicKey) (*MintInfo, error) {
	var (
		info      MintInfo
		authority string
		decimals  int
		supply    int64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT authority, decimals, supply, created_at FROM mints WHERE address = ?
	`, address.String()).Scan(&authority, &decimals, &supply, &info.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMint, address)
	}
	if err != nil {
		return nil, err
	}
	if info.Authority, err = identity.ParsePublicKey(authority); err != nil {
		return nil, err
	}
	info.Address = address
	info.Decimals = uint8(decimals)
	info.Supply = uint64(supply)
	return &info, nil
}

// MintAuthority returns the authority recorded on a mint.
func (l *Ledger) MintAuthority(ctx context.Context, address identity.PublicKey) (identity.PublicKey, error) {
	info, err := l.GetMint(ctx, address)
	if err != nil {
		return identity.PublicKey{}, err
	}
	return info.Authority, nil
}

// Supply returns the number of units minted from address.
func (l *Ledger) Supply(ctx context.Context, address identity.PublicKey) (uint64, error) {
	info, err := l.GetMint(ctx, address)
	if err != nil {
		return 0, err
	}
	return info.Supply, nil
}

// Balance returns the unit count held by a token account. Unknown accounts hold zero.
func (l *Ledger) Balance(ctx context.Context, account identity.PublicKey) (uint64, error) {
	var amount int64
	err := l.db.QueryRowContext(ctx, `SELECT amount FROM token_accounts WHERE address = ?`, account.String()).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(amount), nil
}

// Metadata is a stored metadata entry.
type Metadata struct {
	Address              identity.PublicKey `json:"address"`
	Mint                 identity.PublicKey `json:"mint"`
	UpdateAuthority      identity.PublicKey `json:"update_authority"`
	Name                 string             `json:"name"`
	Symbol               string             `json:"symbol"`
	URI                  string             `json:"uri"`
	Creators             []mint.Creator     `json:"creators"`
	SellerFeeBasisPoints uint16             `json:"seller_fee_basis_points"`
	Mutable              bool               `json:"is_mutable"`
	MaxSupply            *uint64            `json:"max_supply,omitempty"`
	CreatedAt            int64              `json:"created_at"`
}

// GetMetadata returns the metadata entry registered for a mint, or nil if none exists.
func (l *Ledger) GetMetadata(ctx context.Context, mintAddr identity.PublicKey) (*Metadata, error) {
	var (
		m                  Metadata
		address, authority string
		creators           string
		fee, mutable       int
		maxSupply          sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT address, update_authority, name, symbol, uri, creators_json,
			seller_fee_bps, is_mutable, max_supply, created_at
		FROM metadata_entries
		WHERE mint = ?
	`, mintAddr.String()).Scan(
		&address, &authority, &m.Name, &m.Symbol, &m.URI, &creators,
		&fee, &mutable, &maxSupply, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if m.Address, err = identity.ParsePublicKey(address); err != nil {
		return nil, err
	}
	if m.UpdateAuthority, err = identity.ParsePublicKey(authority); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(creators), &m.Creators); err != nil {
		return nil, err
	}
	m.Mint = mintAddr
	m.SellerFeeBasisPoints = uint16(fee)
	m.Mutable = mutable != 0
	if maxSupply.Valid {
		v := uint64(maxSupply.Int64)
		m.MaxSupply = &v
	}
	return &m, nil
}

// newSignature returns a unique transaction reference.
func newSignature() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
