// Package host defines what a policy module consumes from the ledger runtime it is
// embedded in: balance queries, address validation and signature verification.
package host

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/crypto"
)

// Input errors reported by API.Verify. A well-formed signature that does not verify is
// not an error.
var (
	ErrInvalidHashFormat      = errors.New("invalid hash format")
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrInvalidPubkeyFormat    = errors.New("invalid public key format")
)

// Querier answers read-only ledger queries.
type Querier interface {
	AllBalances(ctx context.Context, address string) (coin.Coins, error)
}

// QuerierFunc adapts a function to Querier.
type QuerierFunc func(ctx context.Context, address string) (coin.Coins, error)

func (f QuerierFunc) AllBalances(ctx context.Context, address string) (coin.Coins, error) {
	return f(ctx, address)
}

// API exposes the host's address and crypto primitives.
type API interface {
	// AddrValidate returns the normalized address or an error.
	AddrValidate(addr string) (string, error)
	// Verify checks signature over digest under pubKey. Malformed input is an error;
	// a signature that does not match returns false.
	Verify(digest, signature, pubKey []byte) (bool, error)
	// Prefix is the bech32 human-readable part of account addresses.
	Prefix() string
}

// Bech32API validates bech32 addresses with a fixed prefix and verifies signatures
// with an injected Verifier.
type Bech32API struct {
	prefix   string
	verifier crypto.Verifier
}

// NewAPI returns an API for prefix. A nil verifier selects the key-length dispatching
// verifier.
func NewAPI(prefix string, verifier crypto.Verifier) *Bech32API {
	if verifier == nil {
		verifier = crypto.NewSchemeVerifier()
	}
	return &Bech32API{prefix: prefix, verifier: verifier}
}

func (a *Bech32API) Prefix() string { return a.prefix }

func (a *Bech32API) AddrValidate(addr string) (string, error) {
	if addr == "" {
		return "", errors.New("empty address")
	}
	if _, err := crypto.DecodeAddress(a.prefix, addr); err != nil {
		return "", err
	}
	return addr, nil
}

func (a *Bech32API) Verify(digest, signature, pubKey []byte) (bool, error) {
	if len(digest) != sha256.Size {
		return false, fmt.Errorf("%w: %d bytes", ErrInvalidHashFormat, len(digest))
	}
	if len(signature) != 64 {
		return false, fmt.Errorf("%w: %d bytes", ErrInvalidSignatureFormat, len(signature))
	}
	if _, err := crypto.KeyType(pubKey); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPubkeyFormat, err)
	}
	return a.verifier.Verify(digest, signature, pubKey), nil
}
