package memstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SealedKey is an encrypted provider API key plus the KDF salt used to seal
// it. The crypto lives in keyvault; memstore only persists opaque blobs.
type SealedKey struct {
	Ciphertext []byte
	Salt       []byte
}

// SetProviderKey stores (or replaces) the sealed key for a provider.
func (s *Store) SetProviderKey(ctx context.Context, provider string, key SealedKey) error {
	if provider == "" {
		return fmt.Errorf("memstore: provider is required")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO provider_keys (provider, ciphertext, salt, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(provider) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			salt = excluded.salt,
			updated_at = excluded.updated_at`,
		provider, key.Ciphertext, key.Salt, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("memstore: set provider key: %w", err)
	}
	return nil
}

// GetProviderKey fetches the sealed key for a provider.
func (s *Store) GetProviderKey(ctx context.Context, provider string) (SealedKey, error) {
	var key SealedKey
	err := s.DB.QueryRowContext(ctx, `
		SELECT ciphertext, salt FROM provider_keys WHERE provider = ?`, provider).
		Scan(&key.Ciphertext, &key.Salt)
	if errors.Is(err, sql.ErrNoRows) {
		return key, ErrNotFound
	}
	if err != nil {
		return key, fmt.Errorf("memstore: get provider key: %w", err)
	}
	return key, nil
}

// DeleteProviderKey removes the sealed key for a provider.
func (s *Store) DeleteProviderKey(ctx context.Context, provider string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM provider_keys WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("memstore: delete provider key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
