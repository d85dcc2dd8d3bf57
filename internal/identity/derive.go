package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Derivation limits for program addresses.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// programAddressMarker is appended to every derivation hash input.
const programAddressMarker = "ProgramDerivedAddress"

// ErrOnCurve is returned when a candidate address is a valid curve point and
// so could have a private key.
var ErrOnCurve = errors.New("derived address is on the ed25519 curve")

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("no viable bump seed for program address")

// CreateProgramAddress hashes seeds, program and the marker into an address
// that no keypair controls.
func CreateProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, error) {
	var addr PublicKey
	if len(seeds) > MaxSeeds {
		return addr, fmt.Errorf("too many seeds: %d (max %d)", len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return addr, fmt.Errorf("seed %d too long: %d bytes (max %d)", i, len(seed), MaxSeedLen)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(programAddressMarker))
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr) {
		return PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether k decodes to a point on the ed25519 curve.
func IsOnCurve(k PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(k[:])
	return err == nil
}

// NamespaceKey derives a fixed, well-known identity from a namespace tag.
// Used for program ids of collaborators that have no real deployment.
func NamespaceKey(tag string) PublicKey {
	return PublicKey(sha256.Sum256([]byte(tag)))
}
