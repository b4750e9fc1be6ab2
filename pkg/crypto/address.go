package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address derivation is fixed by the ledger
)

// AddressFromPubKey derives the bech32 account address of a public key:
// ripemd160(sha256(pk)) for secp256k1, the first 20 bytes of sha256(pk) for Ed25519.
func AddressFromPubKey(prefix string, pubKey []byte) (string, error) {
	kind, err := KeyType(pubKey)
	if err != nil {
		return "", err
	}
	sum := Sha256(pubKey)
	var raw []byte
	if kind == "secp256k1" {
		h := ripemd160.New()
		h.Write(sum)
		raw = h.Sum(nil)
	} else {
		raw = sum[:20]
	}
	return EncodeAddress(prefix, raw)
}

// EncodeAddress bech32-encodes raw address bytes.
func EncodeAddress(prefix string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("address conversion failed: %w", err)
	}
	return bech32.Encode(prefix, conv)
}

// DecodeAddress validates a bech32 address with the expected prefix and returns its bytes.
// Only the normalized lowercase form is accepted.
func DecodeAddress(prefix, addr string) ([]byte, error) {
	if addr != strings.ToLower(addr) {
		return nil, fmt.Errorf("address not normalized: %s", addr)
	}
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if hrp != prefix {
		return nil, fmt.Errorf("invalid address prefix: expected %s, got %s", prefix, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return nil, fmt.Errorf("invalid address length: %d", len(raw))
	}
	return raw, nil
}

// ContractAddress derives a 32-byte account address from a label, the way module
// accounts are derived.
func ContractAddress(prefix, label string) (string, error) {
	return EncodeAddress(prefix, Sha256([]byte("module:"+label)))
}
