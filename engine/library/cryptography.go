package library

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// DerivePublicKey returns the x-only public key for a hex private key.
func DerivePublicKey(privateKey string) (Account, error) {
	keyb, err := hex.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("error decoding key from hex: %w", err)
	}
	if len(keyb) != 32 {
		return "", fmt.Errorf("private key must be 32 bytes, got %d", len(keyb))
	}
	_, pubkey := btcec.PrivKeyFromBytes(keyb)
	return fmt.Sprintf("%064x", pubkey.X()), nil
}

// KeypairFrom derives the public half for a hex private key.
func KeypairFrom(privateKey string) (Keypair, error) {
	pub, err := DerivePublicKey(privateKey)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{PrivateKey: privateKey, PublicKey: pub}, nil
}
