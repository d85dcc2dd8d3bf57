// Package mint turns a capsule into a one-of-a-kind collectible: one fungible
// unit minted to the author, then a metadata entry registered for that unit.
// The two steps are not atomic; the result reports how far the attempt got.
package mint

import (
	"context"
	stderrors "errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hpungsan/memoreal/internal/capsule"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
)

// Outcome tags how far a mint attempt got.
type Outcome string

const (
	OutcomeComplete       Outcome = "complete"
	OutcomeMetadataFailed Outcome = "metadata_failed"
	OutcomeMintFailed     Outcome = "mint_failed"
)

// MintContext carries the invocation parameters for MintCollectible.
type MintContext struct {
	// Invoker is the authenticated caller
	Invoker identity.Authority

	// Mint is the unit id to mint from
	Mint identity.PublicKey

	// TargetAccount receives the unit; nil derives the author's token account
	TargetAccount *identity.PublicKey

	Name   string
	Symbol string
	URI    string
}

// MintResult reports the identifiers produced by an attempt.
type MintResult struct {
	Outcome           Outcome             `json:"outcome"`
	Mint              identity.PublicKey  `json:"mint"`
	TokenAccount      identity.PublicKey  `json:"token_account"`
	Metadata          *identity.PublicKey `json:"metadata,omitempty"`
	MintSignature     string              `json:"mint_signature,omitempty"`
	MetadataSignature string              `json:"metadata_signature,omitempty"`
}

// Orchestrator sequences the unit mint and the metadata registration.
type Orchestrator struct {
	minter   Minter
	registry Registry
	program  identity.PublicKey
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an Orchestrator. program is the metadata registry namespace.
func NewOrchestrator(minter Minter, registry Registry, program identity.PublicKey) *Orchestrator {
	return &Orchestrator{
		minter:   minter,
		registry: registry,
		program:  program,
		logger:   slog.Default().With("component", "mint"),
		tracer:   otel.Tracer("github.com/hpungsan/memoreal/internal/mint"),
	}
}

// Program returns the metadata registry namespace.
func (o *Orchestrator) Program() identity.PublicKey {
	return o.program
}

// Authorize verifies that invoker is authenticated, is the capsule author,
// and holds the authority recorded on mint. The recorded authority is read
// from the minter; no state-changing call is made.
func (o *Orchestrator) Authorize(ctx context.Context, invoker identity.Authority, author, mint identity.PublicKey) error {
	if err := CheckAuthority(invoker, author, invoker.PublicKey()); err != nil {
		return err
	}
	recorded, err := o.minter.MintAuthority(ctx, mint)
	if stderrors.Is(err, ErrUnknownMint) {
		return errors.NewInvalidMintAuthority("mint " + mint.String() + " does not exist")
	}
	if err != nil {
		return errors.NewMintFailed(err)
	}
	return CheckAuthority(invoker, author, recorded)
}

// CheckAuthority verifies that invoker is authenticated, is the capsule author,
// and is mintAuthority.
func CheckAuthority(invoker identity.Authority, author, mintAuthority identity.PublicKey) error {
	switch {
	case !invoker.Valid():
		return errors.NewInvalidMintAuthority("invoker is not authenticated")
	case invoker.PublicKey() != author:
		return errors.NewInvalidMintAuthority("invoker is not the capsule author")
	case invoker.PublicKey() != mintAuthority:
		return errors.NewInvalidMintAuthority("invoker is not the mint authority")
	}
	return nil
}

// NewUnit generates a fresh mint address. When the minter can create mints,
// the mint is created with authority and zero decimals.
func (o *Orchestrator) NewUnit(ctx context.Context, authority identity.Authority) (identity.PublicKey, error) {
	kp, err := identity.GenerateKeypair()
	if err != nil {
		return identity.PublicKey{}, errors.NewMintFailed(err)
	}
	mint := kp.PublicKey()

	if creator, ok := o.minter.(MintCreator); ok {
		if _, err := creator.CreateMint(ctx, mint, authority, 0); err != nil {
			o.logger.WarnContext(ctx, "create mint failed", "mint", mint.String(), "error", err)
			return identity.PublicKey{}, errors.NewMintFailed(err)
		}
		o.logger.InfoContext(ctx, "mint created", "mint", mint.String(), "authority", authority.String())
	}
	return mint, nil
}

// MintCollectible mints one unit of mc.Mint to the author and registers its metadata.
// On failure the returned error is MINT_FAILED or METADATA_FAILED wrapping the
// collaborator error, and the result carries the outcome and identifiers produced.
// An authority failure returns INVALID_MINT_AUTHORITY before MintOne or
// RegisterMetadata is called.
func (o *Orchestrator) MintCollectible(ctx context.Context, rec *capsule.Record, mc MintContext) (*MintResult, error) {
	if err := o.Authorize(ctx, mc.Invoker, rec.Author, mc.Mint); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "mint.MintCollectible",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mint.address", mc.Mint.String()),
			attribute.String("mint.author", rec.Author.String()),
		),
	)
	defer span.End()

	target := mc.TargetAccount
	if target == nil {
		derived, err := DeriveTokenAccount(rec.Author, mc.Mint)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "derive token account")
			return &MintResult{Outcome: OutcomeMintFailed, Mint: mc.Mint}, errors.NewMintFailed(err)
		}
		target = &derived
	}

	result := &MintResult{Mint: mc.Mint, TokenAccount: *target}

	// Step 1: exactly one unit
	receipt, err := o.mintOne(ctx, MintRequest{
		Mint:          mc.Mint,
		TargetAccount: *target,
		Owner:         rec.Author,
		Authority:     mc.Invoker,
	})
	if err != nil {
		result.Outcome = OutcomeMintFailed
		span.SetAttributes(attribute.String("mint.outcome", string(result.Outcome)))
		span.SetStatus(codes.Error, "mint failed")
		o.logger.WarnContext(ctx, "unit mint failed", "mint", mc.Mint.String(), "error", err)
		return result, errors.NewMintFailed(err)
	}
	result.MintSignature = receipt.Signature

	// Step 2: metadata entry
	metaReceipt, err := o.register(ctx, rec, mc)
	if err != nil {
		result.Outcome = OutcomeMetadataFailed
		span.SetAttributes(attribute.String("mint.outcome", string(result.Outcome)))
		span.SetStatus(codes.Error, "metadata failed")
		o.logger.ErrorContext(ctx, "unit minted without metadata",
			"mint", mc.Mint.String(), "token_account", target.String(), "error", err)
		return result, errors.NewMetadataFailed(mc.Mint.String(), err)
	}

	addr := metaReceipt.Address
	result.Metadata = &addr
	result.MetadataSignature = metaReceipt.Signature
	result.Outcome = OutcomeComplete
	span.SetAttributes(attribute.String("mint.outcome", string(result.Outcome)))
	o.logger.InfoContext(ctx, "collectible minted",
		"mint", mc.Mint.String(), "metadata", addr.String())
	return result, nil
}

func (o *Orchestrator) mintOne(ctx context.Context, req MintRequest) (*MintReceipt, error) {
	ctx, span := o.tracer.Start(ctx, "mint.MintOne")
	defer span.End()

	receipt, err := o.minter.MintOne(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return receipt, nil
}

func (o *Orchestrator) register(ctx context.Context, rec *capsule.Record, mc MintContext) (*MetadataReceipt, error) {
	ctx, span := o.tracer.Start(ctx, "mint.RegisterMetadata")
	defer span.End()

	addr, err := DeriveMetadataAddress(o.program, mc.Mint)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("metadata.address", addr.String()))

	var noPrints uint64
	receipt, err := o.registry.RegisterMetadata(ctx, MetadataRequest{
		Address:   addr,
		Mint:      mc.Mint,
		Authority: mc.Invoker,
		Name:      mc.Name,
		Symbol:    mc.Symbol,
		URI:       mc.URI,
		Creators: []Creator{
			{Address: rec.Author, Verified: true, Share: MaxCreatorSum},
		},
		SellerFeeBasisPoints: 0,
		Mutable:              true,
		MaxPrintSupply:       &noPrints,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return receipt, nil
}
