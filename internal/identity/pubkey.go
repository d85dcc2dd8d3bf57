package identity

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// PublicKeyLen is the size of a raw public identity in bytes.
const PublicKeyLen = 32

// PublicKey is a fixed-size public identity. Its text form is base58.
type PublicKey [PublicKeyLen]byte

// String returns the base58 encoding of the key.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// IsZero reports whether every byte of the key is zero.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLen)
	copy(b, k[:])
	return b
}

// MarshalText implements encoding.TextMarshaler so keys appear as base58 in JSON.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePublicKey decodes a base58 string into a PublicKey.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	s = strings.TrimSpace(s)
	if s == "" {
		return k, fmt.Errorf("public key is empty")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return k, fmt.Errorf("invalid base58 public key: %w", err)
	}
	if len(raw) != PublicKeyLen {
		return k, fmt.Errorf("invalid public key length: %d (want %d)", len(raw), PublicKeyLen)
	}
	copy(k[:], raw)
	return k, nil
}

// PublicKeyFromBytes copies a raw 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != PublicKeyLen {
		return k, fmt.Errorf("invalid public key length: %d (want %d)", len(b), PublicKeyLen)
	}
	copy(k[:], b)
	return k, nil
}
