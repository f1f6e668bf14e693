// Package keyvault seals provider API keys at rest. Keys are encrypted with
// AES-256-GCM under a key derived from an installation secret and a per-entry
// random salt (scrypt). A vault opened with a different secret fails to
// decrypt: keys are bound to this installation.
package keyvault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/superfill/sfc/memstore"
)

// ErrNoKey is returned when no key is stored for a provider.
var ErrNoKey = errors.New("keyvault: no key stored")

const saltLen = 16

// scrypt parameters: interactive-strength, the vault is opened at most a few
// times per browsing session.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Vault seals and opens provider API keys backed by memstore.
type Vault struct {
	store  *memstore.Store
	secret []byte
}

// New creates a Vault bound to an installation secret.
func New(store *memstore.Store, secret []byte) (*Vault, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("keyvault: installation secret is required")
	}
	return &Vault{store: store, secret: secret}, nil
}

// StoreKey seals and persists an API key for a provider, replacing any
// existing one.
func (v *Vault) StoreKey(ctx context.Context, provider, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("keyvault: empty API key")
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("keyvault: salt: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("keyvault: nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(apiKey), []byte(provider))

	return v.store.SetProviderKey(ctx, provider, memstore.SealedKey{
		Ciphertext: sealed,
		Salt:       salt,
	})
}

// GetKey opens the sealed key for a provider. Returns ErrNoKey when none is
// stored; a decryption failure (wrong installation secret, tampered blob) is
// reported as an error, never as a silent empty key.
func (v *Vault) GetKey(ctx context.Context, provider string) (string, error) {
	sealed, err := v.store.GetProviderKey(ctx, provider)
	if errors.Is(err, memstore.ErrNotFound) {
		return "", ErrNoKey
	}
	if err != nil {
		return "", err
	}

	gcm, err := v.aead(sealed.Salt)
	if err != nil {
		return "", err
	}
	if len(sealed.Ciphertext) < gcm.NonceSize() {
		return "", fmt.Errorf("keyvault: ciphertext too short")
	}
	nonce := sealed.Ciphertext[:gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, sealed.Ciphertext[gcm.NonceSize():], []byte(provider))
	if err != nil {
		return "", fmt.Errorf("keyvault: open: %w", err)
	}
	return string(plain), nil
}

// DeleteKey removes the sealed key for a provider.
func (v *Vault) DeleteKey(ctx context.Context, provider string) error {
	err := v.store.DeleteProviderKey(ctx, provider)
	if errors.Is(err, memstore.ErrNotFound) {
		return ErrNoKey
	}
	return err
}

// HasKey reports whether a key is stored for a provider without opening it.
func (v *Vault) HasKey(ctx context.Context, provider string) bool {
	_, err := v.store.GetProviderKey(ctx, provider)
	return err == nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(v.secret, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("keyvault: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyvault: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: gcm: %w", err)
	}
	return gcm, nil
}
