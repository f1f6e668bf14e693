package match

import (
	"context"
	"log/slog"

	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/memstore"
)

// noMemoriesReasoning is emitted on every mapping when the store is empty.
const noMemoriesReasoning = "No stored memories available"

// Telemetry events emitted through the hook installed by WithEventHook.
const (
	EventFallbackUsed    = "fallback_used"
	EventCapacityDropped = "capacity_dropped"
)

// EventHook receives engine telemetry events. Hooks run inline on the
// matching path and must not block.
type EventHook func(ctx context.Context, event string)

// AIMatcher is the external AI collaborator. It must return one mapping per
// input field opid; any error from it triggers the local fallback.
type AIMatcher interface {
	MatchFields(ctx context.Context, fields []CompressedFieldData, memories []CompressedMemoryData) ([]FieldMapping, error)
}

// Engine matches detected fields against stored memories.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	ai     AIMatcher
	hook   EventHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default weights, thresholds and caps.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAIMatcher enables the AI-assisted path for complex fields. The local
// scorer remains the drop-in replacement on any error from it.
func WithAIMatcher(ai AIMatcher) Option {
	return func(e *Engine) { e.ai = ai }
}

// WithEventHook installs a telemetry hook, called whenever the engine drops
// input at a capacity cap or substitutes the local scorer for the AI matcher.
func WithEventHook(hook EventHook) Option {
	return func(e *Engine) { e.hook = hook }
}

// New returns an Engine with the default configuration.
func New(opts ...Option) *Engine {
	e := &Engine{cfg: DefaultConfig(), logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MatchFields maps every eligible field to its best memory candidate. The
// result contains exactly one mapping per eligible field, in input order;
// fields are never silently dropped below the caps. Password fields are
// excluded before any scoring. When no AI matcher is configured the call is
// fully local and deterministic.
func (e *Engine) MatchFields(ctx context.Context, fields []*formscan.DetectedField, memories []memstore.MemoryEntry) []FieldMapping {
	eligible := make([]CompressedFieldData, 0, len(fields))
	for _, f := range fields {
		if f == nil || f.Opid == "" {
			e.logger.Warn("match: skipping field without opid")
			continue
		}
		if f.Metadata.FieldType == fieldmeta.TypePassword {
			e.logger.Warn("match: excluding password field", "opid", f.Opid)
			continue
		}
		eligible = append(eligible, compressField(f))
	}
	if len(eligible) > e.cfg.MaxFields {
		e.logger.Warn("match: field capacity exceeded, truncating",
			"fields", len(eligible), "cap", e.cfg.MaxFields)
		e.emit(ctx, EventCapacityDropped)
		eligible = eligible[:e.cfg.MaxFields]
	}

	pool := make([]CompressedMemoryData, 0, len(memories))
	for i := range memories {
		m := &memories[i]
		if m.ID == "" || m.Answer == "" {
			e.logger.Warn("match: skipping malformed memory", "id", m.ID)
			continue
		}
		pool = append(pool, compressMemory(m))
	}
	if len(pool) > e.cfg.MaxMemories {
		e.logger.Warn("match: memory capacity exceeded, truncating",
			"memories", len(pool), "cap", e.cfg.MaxMemories)
		e.emit(ctx, EventCapacityDropped)
		pool = pool[:e.cfg.MaxMemories]
	}

	if len(pool) == 0 {
		out := make([]FieldMapping, len(eligible))
		for i, f := range eligible {
			out[i] = FieldMapping{FieldOpid: f.Opid, Reasoning: noMemoriesReasoning}
		}
		return out
	}

	// Partition by purpose: simple fields take the validator path, the rest
	// go to the AI matcher (when configured) or the local scorer.
	byOpid := make(map[string]FieldMapping, len(eligible))
	complexFields := make([]CompressedFieldData, 0, len(eligible))
	for _, f := range eligible {
		if fieldmeta.SimplePurposes[fieldmeta.FieldPurpose(f.Purpose)] {
			if mapping, ok := e.simpleMatch(f, pool); ok {
				byOpid[f.Opid] = mapping
				continue
			}
		}
		complexFields = append(complexFields, f)
	}

	if len(complexFields) > 0 {
		for _, mapping := range e.matchComplex(ctx, complexFields, pool) {
			byOpid[mapping.FieldOpid] = mapping
		}
	}

	out := make([]FieldMapping, 0, len(eligible))
	for _, f := range eligible {
		mapping, ok := byOpid[f.Opid]
		if !ok {
			// Unreachable unless a matcher dropped an opid; keep the field
			// visible regardless.
			mapping = FieldMapping{FieldOpid: f.Opid, Reasoning: "No match produced"}
		}
		out = append(out, mapping)
	}
	return out
}

// matchComplex runs the AI path when available and falls back to the local
// scorer on any error or contract violation. The fallback is mandatory:
// complex matching never fails outward.
func (e *Engine) matchComplex(ctx context.Context, fields []CompressedFieldData, memories []CompressedMemoryData) []FieldMapping {
	if e.ai != nil {
		mappings, err := e.ai.MatchFields(ctx, fields, memories)
		if err != nil {
			e.logger.Warn("match: AI matcher failed, using local scorer", "error", err)
			e.emit(ctx, EventFallbackUsed)
		} else if err := validateAIMappings(fields, mappings); err != nil {
			e.logger.Warn("match: AI matcher broke contract, using local scorer", "error", err)
			e.emit(ctx, EventFallbackUsed)
		} else {
			return mappings
		}
	}
	out := make([]FieldMapping, len(fields))
	for i, f := range fields {
		out[i] = e.fallbackMatch(f, memories)
	}
	return out
}

func (e *Engine) emit(ctx context.Context, event string) {
	if e.hook != nil {
		e.hook(ctx, event)
	}
}
