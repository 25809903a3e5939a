package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nbd-wtf/go-nostr/nip06"
	"github.com/nbd-wtf/go-nostr/nip19"
	"golang.org/x/crypto/chacha20poly1305"
	"forgestr/engine/library"
)

var (
	ErrInvalidKey       = errors.New("secret is not a valid nsec or hex private key")
	ErrNoActiveAccount  = errors.New("no active account, please login first")
	ErrDecryptionFailed = errors.New("wrong password or account not found")
)

// Domain separation constant mixed into the password hash so the derived key
// can't be reused against anything else that hashes the same password.
const encryptionContext = "forgestr-account-encryption"

// StoredAccount is one identity at rest. The private key is only ever stored
// as AEAD ciphertext.
type StoredAccount struct {
	Npub          string `json:"npub"`
	EncryptedNsec []byte `json:"encrypted_nsec"`
	Nonce         []byte `json:"nonce"`
}

// Vault is the on-disk account store. All mutating methods rewrite the whole
// file; there is no partial write.
type Vault struct {
	Accounts   []StoredAccount `json:"accounts"`
	ActiveNpub string          `json:"active_npub"`

	path string
}

// Load reads the vault at path. A missing file is an empty vault, not an
// error.
func Load(path string) (*Vault, error) {
	v := &Vault{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account storage %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to parse account storage %s: %w", path, err)
	}
	return v, nil
}

func (v *Vault) Save() error {
	if err := library.CreateDirectoryIfNotExists(filepath.Dir(v.path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(v.path, data, 0600)
}

// ParseSecret accepts an nsec bech32 string or a raw hex private key.
func ParseSecret(secret string) (library.Keypair, error) {
	var privHex string
	if prefix, value, err := nip19.Decode(secret); err == nil && prefix == "nsec" {
		privHex = value.(string)
	} else if b, err := hex.DecodeString(secret); err == nil && len(b) == 32 {
		privHex = secret
	} else {
		return library.Keypair{}, ErrInvalidKey
	}
	keys, err := library.KeypairFrom(privHex)
	if err != nil {
		return library.Keypair{}, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	return keys, nil
}

func deriveKey(password string) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte(encryptionContext))
	return h.Sum(nil)
}

// Login parses the secret, encrypts it under the password and upserts it into
// the vault as the active account. Returns the account's npub.
func (v *Vault) Login(secret, password string) (string, error) {
	keys, err := ParseSecret(secret)
	if err != nil {
		return "", err
	}
	npub, err := nip19.EncodePublicKey(keys.PublicKey)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(deriveKey(password))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	plaintext, err := hex.DecodeString(keys.PrivateKey)
	if err != nil {
		return "", err
	}
	encrypted := aead.Seal(nil, nonce, plaintext, nil)

	updated := false
	for i, account := range v.Accounts {
		if account.Npub == npub {
			v.Accounts[i].EncryptedNsec = encrypted
			v.Accounts[i].Nonce = nonce
			updated = true
			break
		}
	}
	if !updated {
		v.Accounts = append(v.Accounts, StoredAccount{
			Npub:          npub,
			EncryptedNsec: encrypted,
			Nonce:         nonce,
		})
	}
	v.ActiveNpub = npub
	return npub, v.Save()
}

// Logout clears the active pointer. The identity itself is never deleted.
func (v *Vault) Logout() (string, error) {
	if v.ActiveNpub == "" {
		return "", ErrNoActiveAccount
	}
	npub := v.ActiveNpub
	v.ActiveNpub = ""
	return npub, v.Save()
}

// ActiveKeys decrypts the active account's private key. A wrong password and
// a missing account are deliberately indistinguishable to the caller.
func (v *Vault) ActiveKeys(password string) (library.Keypair, error) {
	if v.ActiveNpub == "" {
		return library.Keypair{}, ErrNoActiveAccount
	}
	var account *StoredAccount
	for i := range v.Accounts {
		if v.Accounts[i].Npub == v.ActiveNpub {
			account = &v.Accounts[i]
			break
		}
	}
	if account == nil {
		return library.Keypair{}, ErrDecryptionFailed
	}
	aead, err := chacha20poly1305.New(deriveKey(password))
	if err != nil {
		return library.Keypair{}, err
	}
	plaintext, err := aead.Open(nil, account.Nonce, account.EncryptedNsec, nil)
	if err != nil {
		return library.Keypair{}, ErrDecryptionFailed
	}
	return library.KeypairFrom(hex.EncodeToString(plaintext))
}

// Export returns the active account's private key as an nsec string.
func (v *Vault) Export(password string) (string, error) {
	keys, err := v.ActiveKeys(password)
	if err != nil {
		return "", err
	}
	return nip19.EncodePrivateKey(keys.PrivateKey)
}

// AccountInfo is one row of List.
type AccountInfo struct {
	Npub   string
	Active bool
}

func (v *Vault) List() (accounts []AccountInfo) {
	for _, account := range v.Accounts {
		accounts = append(accounts, AccountInfo{
			Npub:   account.Npub,
			Active: account.Npub == v.ActiveNpub,
		})
	}
	return
}

// GenerateSecret makes a fresh private key from nip06 seed words. The caller
// is expected to show the seed words to the user exactly once.
func GenerateSecret() (seedWords string, privateKey string, err error) {
	seedWords, err = nip06.GenerateSeedWords()
	if err != nil {
		return "", "", err
	}
	seed := nip06.SeedFromWords(seedWords)
	privateKey, err = nip06.PrivateKeyFromSeed(seed)
	if err != nil {
		return "", "", err
	}
	return seedWords, privateKey, nil
}
