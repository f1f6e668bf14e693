package memstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserSettings is the single-row configuration the popup edits: which AI
// provider assists complex-field matching and how eager auto-fill is.
type UserSettings struct {
	Provider            string  `json:"selectedProvider"`
	AutoFillEnabled     bool    `json:"autoFillEnabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() UserSettings {
	return UserSettings{
		Provider:            "openai",
		AutoFillEnabled:     true,
		ConfidenceThreshold: 0.75,
	}
}

// GetSettings reads the settings row, falling back to defaults when the row
// has never been written.
func (s *Store) GetSettings(ctx context.Context) (UserSettings, error) {
	var out UserSettings
	var autoFill int
	err := s.DB.QueryRowContext(ctx, `
		SELECT provider, auto_fill_enabled, confidence_threshold
		FROM settings WHERE id = 1`).
		Scan(&out.Provider, &autoFill, &out.ConfidenceThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return out, fmt.Errorf("memstore: get settings: %w", err)
	}
	out.AutoFillEnabled = autoFill != 0
	return out, nil
}

// SaveSettings upserts the settings row atomically.
func (s *Store) SaveSettings(ctx context.Context, cfg UserSettings) error {
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return fmt.Errorf("memstore: confidence threshold %v out of [0,1]", cfg.ConfidenceThreshold)
	}
	autoFill := 0
	if cfg.AutoFillEnabled {
		autoFill = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (id, provider, auto_fill_enabled, confidence_threshold, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			auto_fill_enabled = excluded.auto_fill_enabled,
			confidence_threshold = excluded.confidence_threshold,
			updated_at = excluded.updated_at`,
		cfg.Provider, autoFill, cfg.ConfidenceThreshold, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("memstore: save settings: %w", err)
	}
	return nil
}
