package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/config"
	"github.com/hpungsan/memoreal/internal/db"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
	"github.com/hpungsan/memoreal/internal/mint"
)

// DefaultCollectibleName is used when a capsule has no title.
const DefaultCollectibleName = "Time Capsule"

// MintInput contains parameters for the Mint operation.
type MintInput struct {
	ID      string
	Invoker identity.Authority // required; must be the capsule author

	// Mint is an existing unit id whose recorded authority must be Invoker.
	// nil creates a new one owned by Invoker.
	Mint *identity.PublicKey

	// TargetAccount receives the unit. Defaults to the author's derived account.
	TargetAccount *identity.PublicKey

	Name   *string // default: capsule title
	Symbol *string // default: config mint_symbol
	URI    *string // default: capsule media reference
}

// MintOutput reports a mint attempt for a capsule.
type MintOutput struct {
	CapsuleID       string             `json:"capsule_id"`
	MetadataProgram identity.PublicKey `json:"metadata_program"`
	*mint.MintResult
}

// Mint turns a capsule into a collectible: one unit minted to the author plus
// a metadata entry. Each capsule gets at most one attempt that minted a unit;
// a second call fails with ALREADY_MINTED. The attempt's outcome is recorded
// even when it fails part-way, and on failure the output is returned along with
// the error.
func Mint(ctx context.Context, database *sql.DB, cfg *config.Config, clk clock.Clock, orch *mint.Orchestrator, input MintInput) (*MintOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	// A new mint is created with Invoker as its authority
	if input.Mint != nil {
		err = orch.Authorize(ctx, input.Invoker, rec.Author, *input.Mint)
	} else {
		err = mint.CheckAuthority(input.Invoker, rec.Author, input.Invoker.PublicKey())
	}
	if err != nil {
		return nil, err
	}

	name := mint.TruncateName(strings.TrimSpace(rec.Title))
	if name == "" {
		name = DefaultCollectibleName
	}
	if input.Name != nil {
		name = *input.Name
	}
	symbol := config.DefaultMintSymbol
	if cfg != nil && cfg.MintSymbol != "" {
		symbol = cfg.MintSymbol
	}
	if input.Symbol != nil {
		symbol = *input.Symbol
	}
	uri := rec.MediaReference
	if input.URI != nil {
		uri = *input.URI
	}
	if err := validateMetadataFields(name, symbol, uri); err != nil {
		return nil, err
	}

	if err := db.ClaimCollectible(ctx, database, id, clk.Now()); err != nil {
		return nil, err
	}

	mintAddr := input.Mint
	if mintAddr == nil {
		created, err := orch.NewUnit(ctx, input.Invoker)
		if err != nil {
			return nil, finish(ctx, database, clk, id, &mint.MintResult{Outcome: mint.OutcomeMintFailed}, err)
		}
		mintAddr = &created
	}

	result, mintErr := orch.MintCollectible(ctx, rec, mint.MintContext{
		Invoker:       input.Invoker,
		Mint:          *mintAddr,
		TargetAccount: input.TargetAccount,
		Name:          name,
		Symbol:        symbol,
		URI:           uri,
	})
	if result == nil {
		// Authority was rechecked and refused; nothing was minted.
		result = &mint.MintResult{Outcome: mint.OutcomeMintFailed, Mint: *mintAddr}
	}

	out := &MintOutput{CapsuleID: id, MetadataProgram: orch.Program(), MintResult: result}
	return out, finish(ctx, database, clk, id, result, mintErr)
}

// finish records the attempt and returns attemptErr, or the recording error if
// the attempt itself succeeded.
func finish(ctx context.Context, database *sql.DB, clk clock.Clock, id string, result *mint.MintResult, attemptErr error) error {
	c := &db.Collectible{
		CapsuleID: id,
		Outcome:   string(result.Outcome),
		UpdatedAt: clk.Now(),
	}
	if !result.Mint.IsZero() {
		c.Mint = stringPtr(result.Mint.String())
	}
	if !result.TokenAccount.IsZero() {
		c.TokenAccount = stringPtr(result.TokenAccount.String())
	}
	if result.Metadata != nil {
		c.Metadata = stringPtr(result.Metadata.String())
	}
	if result.MintSignature != "" {
		c.MintSig = stringPtr(result.MintSignature)
	}
	if result.MetadataSignature != "" {
		c.MetadataSig = stringPtr(result.MetadataSignature)
	}
	if attemptErr != nil {
		c.Error = stringPtr(attemptErr.Error())
	}

	if err := db.FinishCollectible(ctx, database, c); err != nil {
		if attemptErr != nil {
			return attemptErr
		}
		return err
	}
	return attemptErr
}

func validateMetadataFields(name, symbol, uri string) error {
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"name", name, mint.MaxNameLen},
		{"symbol", symbol, mint.MaxSymbolLen},
		{"uri", uri, mint.MaxURILen},
	}
	for _, l := range limits {
		if len(l.value) > l.max {
			return errors.NewValidation(l.field, l.max, len(l.value), nil)
		}
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
