// Package preview renders proposed fills for user review and applies the
// accepted ones to the live page. It consumes the serialised hand-off from
// the matching engine and re-resolves every opid through a fresh detection
// cache at apply time: an element that disappeared since detection is a
// skip, never an error.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/superfill/sfc/browser"
	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/match"
)

// SidebarPayload is the sole hand-off between the matching engine and the
// review surface. It carries no DOM references.
type SidebarPayload struct {
	Forms          []formscan.DetectedFormSnapshot `json:"forms"`
	Mappings       []match.FieldMapping            `json:"mappings"`
	ProcessingTime int64                           `json:"processingTime"` // milliseconds
}

// NewSidebarPayload builds the payload from a detection pass and its
// mappings.
func NewSidebarPayload(forms []*formscan.DetectedForm, mappings []match.FieldMapping, elapsed time.Duration) SidebarPayload {
	return SidebarPayload{
		Forms:          formscan.Snapshots(forms),
		Mappings:       mappings,
		ProcessingTime: elapsed.Milliseconds(),
	}
}

// Injector writes values into live page controls addressed by document-order
// index. *browser.Session implements it.
type Injector interface {
	SetControlValue(ctx context.Context, index int, value string, kind browser.ControlKind) (bool, error)
	HighlightControl(ctx context.Context, index int, on bool) error
}

// UsageRecorder bumps a memory's usage statistics after a successful fill.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, memoryID string) error
}

// Manager owns the preview lifecycle for one page session. The cache and
// document must come from a detection pass over the same session the
// injector writes to.
type Manager struct {
	cache  *formscan.Cache
	doc    *fieldmeta.Document
	inj    Injector
	usage  UsageRecorder
	logger *slog.Logger

	open        bool
	highlighted []int
}

// Option configures a Manager.
type Option func(*Manager)

// WithUsageRecorder enables usage bookkeeping on applied fills.
func WithUsageRecorder(u UsageRecorder) Option {
	return func(m *Manager) { m.usage = u }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a preview Manager over one detection pass.
func NewManager(cache *formscan.Cache, doc *fieldmeta.Document, inj Injector, opts ...Option) *Manager {
	m := &Manager{cache: cache, doc: doc, inj: inj, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Show opens the preview: mapped controls get highlighted on the page.
// Returns false when the payload holds nothing to show.
func (m *Manager) Show(ctx context.Context, payload SidebarPayload) bool {
	if len(payload.Mappings) == 0 {
		return false
	}
	for _, mapping := range payload.Mappings {
		if mapping.MemoryID == nil {
			continue
		}
		idx, ok := m.controlIndex(mapping.FieldOpid)
		if !ok {
			continue
		}
		if err := m.inj.HighlightControl(ctx, idx, true); err != nil {
			m.logger.Debug("preview: highlight failed", "opid", mapping.FieldOpid, "error", err)
			continue
		}
		m.highlighted = append(m.highlighted, idx)
	}
	m.open = true
	return true
}

// Close clears highlights and closes the preview. Returns false when no
// preview was open.
func (m *Manager) Close(ctx context.Context) bool {
	if !m.open {
		return false
	}
	for _, idx := range m.highlighted {
		if err := m.inj.HighlightControl(ctx, idx, false); err != nil {
			m.logger.Debug("preview: unhighlight failed", "index", idx, "error", err)
		}
	}
	m.highlighted = nil
	m.open = false
	return true
}

// ApplyResult summarises one apply pass.
type ApplyResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Apply writes the accepted mappings into the page. accepted lists the field
// opids the user confirmed; nil means every mapping that carries a value.
// Each opid is re-resolved through the cache; misses and vanished elements
// are counted as skips.
func (m *Manager) Apply(ctx context.Context, payload SidebarPayload, accepted []string) ApplyResult {
	var wanted map[string]bool
	if accepted != nil {
		wanted = make(map[string]bool, len(accepted))
		for _, opid := range accepted {
			wanted[opid] = true
		}
	}

	var res ApplyResult
	for _, mapping := range payload.Mappings {
		if mapping.Value == nil {
			continue
		}
		if wanted != nil && !wanted[mapping.FieldOpid] {
			continue
		}

		field := m.cache.Field(mapping.FieldOpid)
		if field == nil {
			m.logger.Debug("preview: field not in cache", "opid", mapping.FieldOpid)
			res.Skipped++
			continue
		}
		idx, ok := m.doc.ControlIndex(field.Element)
		if !ok {
			res.Skipped++
			continue
		}

		value, kind := injectionFor(&field.Metadata, *mapping.Value)
		applied, err := m.inj.SetControlValue(ctx, idx, value, kind)
		if err != nil {
			m.logger.Warn("preview: injection failed", "opid", mapping.FieldOpid, "error", err)
			res.Skipped++
			continue
		}
		if !applied {
			res.Skipped++
			continue
		}
		res.Applied++

		if m.usage != nil && mapping.MemoryID != nil {
			if err := m.usage.RecordUsage(ctx, *mapping.MemoryID); err != nil {
				m.logger.Warn("preview: record usage failed", "memoryId", *mapping.MemoryID, "error", err)
			}
		}
	}
	return res
}

// DisplayLabel resolves the label shown next to a mapping, in the fixed
// priority order label sources, placeholder, name, id, raw type.
func DisplayLabel(snap *formscan.DetectedFieldSnapshot) string {
	return snap.Metadata.BestLabel()
}

// MappingFor finds the mapping for a field opid in a payload.
func (p *SidebarPayload) MappingFor(opid string) (match.FieldMapping, bool) {
	for _, m := range p.Mappings {
		if m.FieldOpid == opid {
			return m, true
		}
	}
	return match.FieldMapping{}, false
}

// injectionFor picks the injection strategy and normalised value for a
// control. Checkbox and radio values go through boolean coercion; selects
// match options case-insensitively in the page.
func injectionFor(meta *fieldmeta.Metadata, value string) (string, browser.ControlKind) {
	switch meta.FieldType {
	case fieldmeta.TypeCheckbox, fieldmeta.TypeRadio:
		if coerceBool(value) {
			return "true", browser.KindCheckbox
		}
		return "false", browser.KindCheckbox
	case fieldmeta.TypeSelect:
		return value, browser.KindSelect
	default:
		return value, browser.KindText
	}
}

// coerceBool interprets a stored answer as a checkbox state.
func coerceBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func (m *Manager) controlIndex(opid string) (int, bool) {
	field := m.cache.Field(opid)
	if field == nil {
		return 0, false
	}
	return m.doc.ControlIndex(field.Element)
}

var _ Injector = (*browser.Session)(nil)

// String implements fmt.Stringer for log readability.
func (r ApplyResult) String() string {
	return fmt.Sprintf("applied=%d skipped=%d", r.Applied, r.Skipped)
}
