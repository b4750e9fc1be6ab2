package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/aura-nw/smart-account-sample/pkg/config"
	"github.com/aura-nw/smart-account-sample/pkg/crypto"
	"github.com/aura-nw/smart-account-sample/pkg/policy"
)

type keyOutput struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"`
}

// runKeygenCmd implements `smartaccount keygen`.
//
// Exit codes:
//
//	0 = key generated
//	2 = usage or runtime error
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		prefix     string
		jsonOutput bool
	)
	cmd.StringVar(&prefix, "prefix", config.Load().AddressPrefix, "Bech32 address prefix")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	addr, err := crypto.AddressFromPubKey(prefix, signer.PublicKeyBytes())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	out := keyOutput{
		PrivateKey: signer.PrivateKeyHex(),
		PublicKey:  hex.EncodeToString(signer.PublicKeyBytes()),
		Address:    addr,
	}
	if jsonOutput {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "private_key: %s\npublic_key:  %s\naddress:     %s\n", out.PrivateKey, out.PublicKey, out.Address)
	return 0
}

// runSignRecoveryCmd implements `smartaccount sign-recovery`. It prints the base64
// credentials that authorize installing --pubkey on an account recoverable by --key.
func runSignRecoveryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sign-recovery", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var keyHex, pubKeyHex string
	cmd.StringVar(&keyHex, "key", "", "Recovery private key, hex (REQUIRED)")
	cmd.StringVar(&pubKeyHex, "pubkey", "", "New public key, hex (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if keyHex == "" || pubKeyHex == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --key and --pubkey are required")
		return 2
	}

	signer, err := crypto.NewSecp256k1SignerFromHex(keyHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid --key: %v\n", err)
		return 2
	}
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid --pubkey: %v\n", err)
		return 2
	}
	if _, err := crypto.KeyType(pubKey); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid --pubkey: %v\n", err)
		return 2
	}

	sig, err := signer.SignDigest(crypto.Sha256(pubKey))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	blob, err := policy.Credentials{Signature: sig}.Encode()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, blob)
	return 0
}
