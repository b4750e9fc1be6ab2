// Package crypto provides the signature primitives the policy modules delegate to.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Verifier checks a signature over a digest against a raw public key.
// Malformed keys or signatures verify as false.
type Verifier interface {
	Verify(digest, signature, pubKey []byte) bool
}

// Sha256 returns the fixed-width digest used for recovery challenges.
func Sha256(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}

// Secp256k1Verifier verifies 64-byte compact (r || s) ECDSA signatures over a 32-byte
// digest. High-S signatures are rejected to rule out malleated duplicates.
type Secp256k1Verifier struct{}

func (Secp256k1Verifier) Verify(digest, signature, pubKey []byte) bool {
	if len(digest) != sha256.Size || len(signature) != 64 {
		return false
	}
	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
		return false
	}
	if s.IsOverHalfOrder() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(digest, pk)
}

// Ed25519Verifier verifies Ed25519 signatures where the digest is the signed message.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(digest, signature, pubKey []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), digest, signature)
}

// SchemeVerifier dispatches on the public key encoding: 33/65-byte keys are secp256k1,
// 32-byte keys are Ed25519.
type SchemeVerifier struct {
	secp Secp256k1Verifier
	ed   Ed25519Verifier
}

// NewSchemeVerifier returns the verifier the host API uses by default.
func NewSchemeVerifier() *SchemeVerifier {
	return &SchemeVerifier{}
}

func (v *SchemeVerifier) Verify(digest, signature, pubKey []byte) bool {
	switch len(pubKey) {
	case secp256k1.PubKeyBytesLenCompressed, secp256k1.PubKeyBytesLenUncompressed:
		return v.secp.Verify(digest, signature, pubKey)
	case ed25519.PublicKeySize:
		return v.ed.Verify(digest, signature, pubKey)
	default:
		return false
	}
}

// KeyType names the scheme of a raw public key.
func KeyType(pubKey []byte) (string, error) {
	switch len(pubKey) {
	case secp256k1.PubKeyBytesLenCompressed, secp256k1.PubKeyBytesLenUncompressed:
		if _, err := secp256k1.ParsePubKey(pubKey); err != nil {
			return "", fmt.Errorf("invalid secp256k1 public key: %w", err)
		}
		return "secp256k1", nil
	case ed25519.PublicKeySize:
		return "ed25519", nil
	default:
		return "", fmt.Errorf("invalid public key size: %d", len(pubKey))
	}
}
