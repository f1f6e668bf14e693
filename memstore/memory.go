package memstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/superfill/sfc/dbopen"
)

// ErrNotFound is returned when a memory ID does not exist.
var ErrNotFound = errors.New("memstore: not found")

// Source identifies how an entry was created.
const (
	SourceManual = "manual"
	SourceImport = "import"
)

// MemoryEntry is one stored answer. Lifecycle: created by the user, read
// many times by the matching engine, updated on edit and on each successful
// autofill (usage count), deleted by user action.
type MemoryEntry struct {
	ID         string     `json:"id"`
	Question   string     `json:"question,omitempty"`
	Answer     string     `json:"answer"`
	Category   string     `json:"category"`
	Tags       []string   `json:"tags"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
	UsageCount int        `json:"usageCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	LastUsed   *time.Time `json:"lastUsed,omitempty"`
}

// Validate reports whether the entry is storable.
func (m *MemoryEntry) Validate() error {
	if m.Answer == "" {
		return fmt.Errorf("memstore: answer is required")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("memstore: confidence %v out of [0,1]", m.Confidence)
	}
	switch m.Source {
	case "", SourceManual, SourceImport:
	default:
		return fmt.Errorf("memstore: unknown source %q", m.Source)
	}
	return nil
}

// Insert stores a new entry. A missing ID is generated; timestamps are set.
func (s *Store) Insert(ctx context.Context, m *MemoryEntry) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.Source == "" {
		m.Source = SourceManual
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	tags, err := json.Marshal(emptyIfNil(m.Tags))
	if err != nil {
		return fmt.Errorf("memstore: marshal tags: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO memories (id, question, answer, category, tags, confidence,
			source, usage_count, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,0,?,?)`,
		m.ID, m.Question, m.Answer, m.Category, string(tags), m.Confidence,
		m.Source, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("memstore: insert: %w", err)
	}
	return nil
}

// Update rewrites the editable columns of an existing entry.
func (s *Store) Update(ctx context.Context, m *MemoryEntry) error {
	if err := m.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(emptyIfNil(m.Tags))
	if err != nil {
		return fmt.Errorf("memstore: marshal tags: %w", err)
	}
	now := time.Now().UTC()

	res, err := s.DB.ExecContext(ctx, `
		UPDATE memories SET question=?, answer=?, category=?, tags=?,
			confidence=?, updated_at=?
		WHERE id=?`,
		m.Question, m.Answer, m.Category, string(tags), m.Confidence,
		now.Unix(), m.ID)
	if err != nil {
		return fmt.Errorf("memstore: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	m.UpdatedAt = now
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("memstore: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*MemoryEntry, error) {
	row := s.DB.QueryRowContext(ctx, selectCols+` WHERE id=?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListRecent returns up to limit entries, most recently updated first. This
// is the feed the matching engine consumes: the memory cap is applied here,
// not by the scorer.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*MemoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx,
		selectCols+` ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memstore: list: %w", err)
	}
	defer rows.Close()

	var out []*MemoryEntry
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("memstore: count: %w", err)
	}
	return n, nil
}

// RecordUsage increments the usage counter after a successful fill. Fills
// race with popup edits on the same database, so this write retries on BUSY.
func (s *Store) RecordUsage(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, s.DB, `
		UPDATE memories SET usage_count = usage_count + 1, last_used = ?
		WHERE id = ?`, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("memstore: record usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectCols = `SELECT id, question, answer, category, tags, confidence,
	source, usage_count, created_at, updated_at, last_used FROM memories`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*MemoryEntry, error) {
	var m MemoryEntry
	var tagsJSON string
	var created, updated int64
	var lastUsed sql.NullInt64

	err := row.Scan(&m.ID, &m.Question, &m.Answer, &m.Category, &tagsJSON,
		&m.Confidence, &m.Source, &m.UsageCount, &created, &updated, &lastUsed)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		m.Tags = nil
	}
	m.CreatedAt = time.Unix(created, 0).UTC()
	m.UpdatedAt = time.Unix(updated, 0).UTC()
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0).UTC()
		m.LastUsed = &t
	}
	return &m, nil
}

func emptyIfNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
