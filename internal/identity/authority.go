package identity

import (
	"crypto/ed25519"
	"fmt"
)

// Authority is an authenticated identity: one whose holder has proven control
// of the private key. The zero value is not authenticated.
type Authority struct {
	key      PublicKey
	verified bool
}

// PublicKey returns the authenticated identity.
func (a Authority) PublicKey() PublicKey {
	return a.key
}

// Valid reports whether the authority was produced by a key proof.
func (a Authority) Valid() bool {
	return a.verified
}

// String returns the base58 identity, or "<unauthenticated>".
func (a Authority) String() string {
	if !a.verified {
		return "<unauthenticated>"
	}
	return a.key.String()
}

// VerifySignature authenticates pub by checking an ed25519 signature over message.
func VerifySignature(pub PublicKey, message, signature []byte) (Authority, error) {
	if len(signature) != ed25519.SignatureSize {
		return Authority{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), message, signature) {
		return Authority{}, fmt.Errorf("signature verification failed for %s", pub)
	}
	return Authority{key: pub, verified: true}, nil
}
