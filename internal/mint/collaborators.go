package mint

import (
	"context"
	"errors"

	"github.com/hpungsan/memoreal/internal/identity"
)

// MintRequest asks a Minter for exactly one fungible unit.
type MintRequest struct {
	// Mint is the unit id (mint address)
	Mint identity.PublicKey

	// TargetAccount receives the unit
	TargetAccount identity.PublicKey

	// Owner owns TargetAccount
	Owner identity.PublicKey

	// Authority signs for the mint
	Authority identity.Authority
}

// MintReceipt is returned by a successful MintOne.
type MintReceipt struct {
	Signature string `json:"signature"`
}

// ErrUnknownMint is returned by MintAuthority for a mint that does not exist.
var ErrUnknownMint = errors.New("unknown mint")

// Minter mints fungible units. MintOne is not idempotent. MintAuthority is a
// read and must not change state.
type Minter interface {
	MintOne(ctx context.Context, req MintRequest) (*MintReceipt, error)
	MintAuthority(ctx context.Context, mint identity.PublicKey) (identity.PublicKey, error)
}

// MintCreator is implemented by minters that can create a new mint with the
// given authority before the first unit is minted.
type MintCreator interface {
	CreateMint(ctx context.Context, mint identity.PublicKey, authority identity.Authority, decimals uint8) (string, error)
}

// MetadataReceipt is returned by a successful RegisterMetadata.
type MetadataReceipt struct {
	Address   identity.PublicKey `json:"address"`
	Signature string             `json:"signature"`
}

// Registry registers descriptive metadata for a mint.
type Registry interface {
	RegisterMetadata(ctx context.Context, req MetadataRequest) (*MetadataReceipt, error)
}
