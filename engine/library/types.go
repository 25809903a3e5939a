package library

// Account is a hex-encoded schnorr public key.
type Account = string

// Sha256 is a hex-encoded sha256 digest, used for nostr event identifiers.
type Sha256 = string

// Sha1 is a hex-encoded sha1 digest, used for git object identifiers.
type Sha1 = string

// Keypair holds a signing key and its derived public key, both hex encoded.
// The private key only ever lives in memory; the vault persists it encrypted.
type Keypair struct {
	PrivateKey string
	PublicKey  Account
}
