package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer produces signatures the matching Verifier accepts.
type Signer interface {
	SignDigest(digest []byte) ([]byte, error)
	PublicKeyBytes() []byte
}

// Secp256k1Signer signs digests with a secp256k1 key (RFC 6979, low-S).
type Secp256k1Signer struct {
	priv *secp256k1.PrivateKey
}

func GenerateSecp256k1Signer() (*Secp256k1Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Secp256k1Signer{priv: priv}, nil
}

// NewSecp256k1SignerFromHex loads a 32-byte private key.
func NewSecp256k1SignerFromHex(privHex string) (*Secp256k1Signer, error) {
	b, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(b) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key size: %d", len(b))
	}
	return &Secp256k1Signer{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

// SignDigest returns the 64-byte compact r || s encoding.
func (s *Secp256k1Signer) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig := ecdsa.Sign(s.priv, digest)
	r, ss := sig.R(), sig.S()
	rb, sb := r.Bytes(), ss.Bytes()
	out := make([]byte, 0, 64)
	out = append(out, rb[:]...)
	return append(out, sb[:]...), nil
}

// PublicKeyBytes returns the 33-byte compressed public key.
func (s *Secp256k1Signer) PublicKeyBytes() []byte {
	return s.priv.PubKey().SerializeCompressed()
}

func (s *Secp256k1Signer) PrivateKeyHex() string {
	return hex.EncodeToString(s.priv.Serialize())
}

// Ed25519Signer signs digests with Ed25519.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

func GenerateEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub}, nil
}

func (s *Ed25519Signer) SignDigest(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, digest), nil
}

func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}
