package mint

import (
	"fmt"

	"github.com/hpungsan/memoreal/internal/identity"
)

// Registry limits.
const (
	MaxNameLen     = 32
	MaxSymbolLen   = 10
	MaxURILen      = 200
	MaxCreators    = 5
	MaxCreatorSum  = 100
	metadataPrefix = "metadata"
)

// DefaultMetadataProgram is the namespace id of the built-in metadata registry.
var DefaultMetadataProgram = identity.NamespaceKey("memoreal:metadata-registry")

// TokenAccountProgram is the namespace id used to derive token accounts.
var TokenAccountProgram = identity.NamespaceKey("memoreal:token-account")

// Creator is a credited creator on a metadata entry.
type Creator struct {
	Address  identity.PublicKey `json:"address"`
	Verified bool               `json:"verified"`
	Share    uint8              `json:"share"`
}

// MetadataRequest describes the metadata entry to register for a mint.
type MetadataRequest struct {
	Address              identity.PublicKey `json:"address"`
	Mint                 identity.PublicKey `json:"mint"`
	Authority            identity.Authority `json:"-"`
	Name                 string             `json:"name"`
	Symbol               string             `json:"symbol"`
	URI                  string             `json:"uri"`
	Creators             []Creator          `json:"creators"`
	SellerFeeBasisPoints uint16             `json:"seller_fee_basis_points"`
	Mutable              bool               `json:"is_mutable"`
	// MaxPrintSupply nil means unlimited prints; 0 means no prints.
	MaxPrintSupply *uint64 `json:"max_supply,omitempty"`
}

// DeriveMetadataAddress derives the registry entry address for mint.
// Seeds: "metadata", program id, mint.
func DeriveMetadataAddress(program, mint identity.PublicKey) (identity.PublicKey, error) {
	addr, _, err := identity.FindProgramAddress(
		[][]byte{[]byte(metadataPrefix), program.Bytes(), mint.Bytes()},
		program,
	)
	return addr, err
}

// DeriveTokenAccount derives the token account holding owner's units of mint.
func DeriveTokenAccount(owner, mint identity.PublicKey) (identity.PublicKey, error) {
	addr, _, err := identity.FindProgramAddress(
		[][]byte{owner.Bytes(), TokenAccountProgram.Bytes(), mint.Bytes()},
		TokenAccountProgram,
	)
	return addr, err
}

// ValidateMetadata checks a request against the registry limits.
func ValidateMetadata(req MetadataRequest) error {
	if len(req.Name) > MaxNameLen {
		return fmt.Errorf("name too long: %d bytes (max %d)", len(req.Name), MaxNameLen)
	}
	if len(req.Symbol) > MaxSymbolLen {
		return fmt.Errorf("symbol too long: %d bytes (max %d)", len(req.Symbol), MaxSymbolLen)
	}
	if len(req.URI) > MaxURILen {
		return fmt.Errorf("uri too long: %d bytes (max %d)", len(req.URI), MaxURILen)
	}
	if req.SellerFeeBasisPoints > 10000 {
		return fmt.Errorf("seller fee %d basis points exceeds 10000", req.SellerFeeBasisPoints)
	}
	if len(req.Creators) > MaxCreators {
		return fmt.Errorf("too many creators: %d (max %d)", len(req.Creators), MaxCreators)
	}
	if len(req.Creators) > 0 {
		sum := 0
		seen := make(map[identity.PublicKey]bool, len(req.Creators))
		for _, c := range req.Creators {
			if seen[c.Address] {
				return fmt.Errorf("duplicate creator %s", c.Address)
			}
			seen[c.Address] = true
			sum += int(c.Share)
		}
		if sum != MaxCreatorSum {
			return fmt.Errorf("creator shares sum to %d, want %d", sum, MaxCreatorSum)
		}
	}
	return nil
}

// TruncateName shortens s to at most MaxNameLen bytes without splitting a UTF-8 sequence.
func TruncateName(s string) string {
	if len(s) <= MaxNameLen {
		return s
	}
	cut := MaxNameLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
