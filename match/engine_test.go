package match

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/memstore"
)

func field(opid string, purpose fieldmeta.FieldPurpose, label string) *formscan.DetectedField {
	return &formscan.DetectedField{
		Opid:     opid,
		FormOpid: "sf-form-0",
		Metadata: fieldmeta.Metadata{
			FieldType:    fieldmeta.TypeText,
			FieldPurpose: purpose,
			LabelTag:     label,
		},
	}
}

func memory(id, answer, category string, tags ...string) memstore.MemoryEntry {
	return memstore.MemoryEntry{ID: id, Answer: answer, Category: category, Tags: tags}
}

func quietEngine(opts ...Option) *Engine {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}
	return New(append(base, opts...)...)
}

func TestEmailScenario(t *testing.T) {
	e := quietEngine()
	fields := []*formscan.DetectedField{field("sf-field-0", fieldmeta.PurposeEmail, "Email")}
	memories := []memstore.MemoryEntry{memory("m1", "user@example.com", "contact")}

	got := e.MatchFields(context.Background(), fields, memories)
	if len(got) != 1 {
		t.Fatalf("mappings: got %d, want 1", len(got))
	}
	m := got[0]
	if m.MemoryID == nil || *m.MemoryID != "m1" {
		t.Fatalf("memoryId: got %v, want m1", m.MemoryID)
	}
	if m.Value == nil || *m.Value != "user@example.com" {
		t.Errorf("value: got %v", m.Value)
	}
	if m.Confidence < 0.8 {
		t.Errorf("confidence: got %v, want >= 0.8", m.Confidence)
	}
	if !m.AutoFill {
		t.Error("autoFill: got false, want true")
	}
}

func TestEmptyMemories(t *testing.T) {
	e := quietEngine()
	fields := []*formscan.DetectedField{
		field("sf-field-0", fieldmeta.PurposeEmail, "Email"),
		field("sf-field-1", fieldmeta.PurposeCity, "City"),
		field("sf-field-2", fieldmeta.PurposeUnknown, "Anything"),
	}

	got := e.MatchFields(context.Background(), fields, nil)
	if len(got) != 3 {
		t.Fatalf("mappings: got %d, want 3", len(got))
	}
	for i, m := range got {
		if m.MemoryID != nil {
			t.Errorf("mapping %d: memoryId not nil", i)
		}
		if m.AutoFill {
			t.Errorf("mapping %d: autoFill true", i)
		}
		if m.Reasoning != "No stored memories available" {
			t.Errorf("mapping %d: reasoning %q", i, m.Reasoning)
		}
	}
}

func TestIdempotence(t *testing.T) {
	e := quietEngine()
	fields := []*formscan.DetectedField{
		field("sf-field-0", fieldmeta.PurposeEmail, "Email"),
		field("sf-field-1", fieldmeta.PurposeCity, "City"),
		field("sf-field-2", fieldmeta.PurposeUnknown, "Notes"),
	}
	memories := []memstore.MemoryEntry{
		memory("m1", "user@example.com", "contact", "email"),
		memory("m2", "Portland", "address", "city"),
		memory("m3", "Some longer free-form answer", "misc"),
	}

	first := e.MatchFields(context.Background(), fields, memories)
	second := e.MatchFields(context.Background(), fields, memories)

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("runs differ:\n%s\n%s", a, b)
	}
}

func TestPasswordNeverMapped(t *testing.T) {
	e := quietEngine()
	pw := field("sf-field-1", fieldmeta.PurposeUnknown, "Password")
	pw.Metadata.FieldType = fieldmeta.TypePassword
	fields := []*formscan.DetectedField{
		field("sf-field-0", fieldmeta.PurposeEmail, "Email"),
		pw,
	}
	memories := []memstore.MemoryEntry{memory("m1", "user@example.com", "contact")}

	got := e.MatchFields(context.Background(), fields, memories)
	if len(got) != 1 {
		t.Fatalf("mappings: got %d, want 1", len(got))
	}
	for _, m := range got {
		if m.FieldOpid == "sf-field-1" {
			t.Error("password field appeared in output")
		}
	}
}

func TestFieldCapTruncates(t *testing.T) {
	var logs bytes.Buffer
	e := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	fields := make([]*formscan.DetectedField, 150)
	for i := range fields {
		fields[i] = field(fmt.Sprintf("sf-field-%d", i), fieldmeta.PurposeUnknown, "Notes")
	}
	memories := []memstore.MemoryEntry{memory("m1", "something", "misc")}

	got := e.MatchFields(context.Background(), fields, memories)
	if len(got) != 100 {
		t.Fatalf("mappings: got %d, want 100", len(got))
	}
	for i, m := range got {
		want := fmt.Sprintf("sf-field-%d", i)
		if m.FieldOpid != want {
			t.Fatalf("mapping %d: opid %q, want %q", i, m.FieldOpid, want)
		}
	}
	if !strings.Contains(logs.String(), "capacity exceeded") {
		t.Error("truncation was not logged")
	}
}

func TestThresholdLaw(t *testing.T) {
	e := quietEngine()

	t.Run("above autofill threshold", func(t *testing.T) {
		f := field("sf-field-0", fieldmeta.PurposeCity, "City")
		f.Metadata.Name = "city"
		memories := []memstore.MemoryEntry{
			memory("m1", "Portland", "address", "city"),
		}
		got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
		m := got[0]
		if m.MemoryID == nil || *m.MemoryID != "m1" {
			t.Fatalf("memoryId: got %v, want m1", m.MemoryID)
		}
		if m.Confidence < e.cfg.AutoFillThreshold {
			t.Fatalf("confidence %v below autofill threshold", m.Confidence)
		}
		if !m.AutoFill {
			t.Error("autoFill: got false, want true")
		}
	})

	t.Run("below match threshold", func(t *testing.T) {
		f := field("sf-field-0", fieldmeta.PurposeUnknown, "Favorite dinosaur")
		memories := []memstore.MemoryEntry{
			memory("m1", "Portland", "address", "city"),
		}
		got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
		m := got[0]
		if m.Confidence >= e.cfg.MatchThreshold {
			t.Fatalf("confidence %v not below match threshold", m.Confidence)
		}
		if m.MemoryID != nil {
			t.Errorf("memoryId: got %q, want nil", *m.MemoryID)
		}
		if m.AutoFill {
			t.Error("autoFill: got true, want false")
		}
		if m.Reasoning == "" {
			t.Error("reasoning empty for below-threshold mapping")
		}
	})
}

func TestAlternativesExcludePrimary(t *testing.T) {
	e := quietEngine()
	f := field("sf-field-0", fieldmeta.PurposeEmail, "Email")
	memories := []memstore.MemoryEntry{
		memory("m1", "a@example.com", "contact", "email"),
		memory("m2", "b@example.com", "contact", "email"),
		memory("m3", "c@example.com", "contact", "email"),
		memory("m4", "d@example.com", "contact", "email"),
		memory("m5", "e@example.com", "contact", "email"),
		memory("m6", "f@example.com", "contact", "email"),
	}

	got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
	m := got[0]
	if m.MemoryID == nil || *m.MemoryID != "m1" {
		t.Fatalf("primary: got %v, want m1", m.MemoryID)
	}
	if len(m.AlternativeMatches) != 3 {
		t.Fatalf("alternatives: got %d, want 3", len(m.AlternativeMatches))
	}
	for _, alt := range m.AlternativeMatches {
		if alt.MemoryID == *m.MemoryID {
			t.Errorf("alternative %q duplicates primary", alt.MemoryID)
		}
	}
}

func TestConfidenceRange(t *testing.T) {
	e := quietEngine()
	fields := []*formscan.DetectedField{
		field("sf-field-0", fieldmeta.PurposeEmail, "Email"),
		field("sf-field-1", fieldmeta.PurposePhone, "Phone"),
		field("sf-field-2", fieldmeta.PurposeUnknown, "Notes"),
	}
	memories := []memstore.MemoryEntry{
		memory("m1", "user@example.com", "contact", "email"),
		memory("m2", "+1 503 555 0100", "contact", "phone"),
		memory("m3", "free text", "misc"),
	}

	for _, m := range e.MatchFields(context.Background(), fields, memories) {
		if m.Confidence < 0 || m.Confidence > 1 {
			t.Errorf("%s: confidence %v out of range", m.FieldOpid, m.Confidence)
		}
		if len(m.AlternativeMatches) > 3 {
			t.Errorf("%s: %d alternatives", m.FieldOpid, len(m.AlternativeMatches))
		}
	}
}

type stubAI struct {
	mappings []FieldMapping
	err      error
	calls    int
}

func (s *stubAI) MatchFields(ctx context.Context, fields []CompressedFieldData, memories []CompressedMemoryData) ([]FieldMapping, error) {
	s.calls++
	return s.mappings, s.err
}

func TestAIFailureFallsBack(t *testing.T) {
	ai := &stubAI{err: errors.New("timeout")}
	e := quietEngine(WithAIMatcher(ai))

	f := field("sf-field-0", fieldmeta.PurposeCity, "City")
	f.Metadata.Name = "city"
	memories := []memstore.MemoryEntry{memory("m1", "Portland", "address", "city")}

	got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
	if ai.calls != 1 {
		t.Fatalf("AI calls: got %d, want 1", ai.calls)
	}
	if len(got) != 1 {
		t.Fatalf("mappings: got %d, want 1", len(got))
	}
	if got[0].MemoryID == nil || *got[0].MemoryID != "m1" {
		t.Errorf("fallback did not produce local match: %v", got[0].MemoryID)
	}
}

func TestAIContractViolationFallsBack(t *testing.T) {
	// Response for an opid that was never sent.
	bogus := "m9"
	ai := &stubAI{mappings: []FieldMapping{{FieldOpid: "sf-field-99", MemoryID: &bogus}}}
	e := quietEngine(WithAIMatcher(ai))

	f := field("sf-field-0", fieldmeta.PurposeCity, "City")
	f.Metadata.Name = "city"
	memories := []memstore.MemoryEntry{memory("m1", "Portland", "address", "city")}

	got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
	if len(got) != 1 || got[0].FieldOpid != "sf-field-0" {
		t.Fatalf("unexpected mappings: %+v", got)
	}
	if got[0].MemoryID == nil || *got[0].MemoryID != "m1" {
		t.Errorf("fallback did not produce local match: %v", got[0].MemoryID)
	}
}

func TestAISuccessIsUsed(t *testing.T) {
	id := "m1"
	val := "Portland"
	ai := &stubAI{mappings: []FieldMapping{{
		FieldOpid:  "sf-field-0",
		MemoryID:   &id,
		Value:      &val,
		Confidence: 0.914,
		Reasoning:  "model picked it",
		AutoFill:   true,
	}}}
	e := quietEngine(WithAIMatcher(ai))

	f := field("sf-field-0", fieldmeta.PurposeUnknown, "Where do you live?")
	memories := []memstore.MemoryEntry{memory("m1", "Portland", "address", "city")}

	got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
	m := got[0]
	if m.Reasoning != "model picked it" {
		t.Errorf("reasoning: got %q", m.Reasoning)
	}
	if m.Confidence != 0.91 {
		t.Errorf("confidence not rounded: got %v", m.Confidence)
	}
}

func TestNameFieldRequiresPurposeReference(t *testing.T) {
	e := quietEngine()
	f := field("sf-field-0", fieldmeta.PurposeName, "Full name")

	t.Run("unreferenced memories never format-match", func(t *testing.T) {
		// Both answers pass the name plausibility check; neither memory has
		// anything to do with names.
		memories := []memstore.MemoryEntry{
			memory("m1", "Portland", "address", "city"),
			memory("m2", "Acme Corp", "work", "employer"),
		}
		got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
		m := got[0]
		if m.AutoFill {
			t.Error("autoFill: got true, want false")
		}
		if m.MemoryID != nil {
			t.Errorf("memoryId: got %q, want nil", *m.MemoryID)
		}
		if m.Confidence >= e.cfg.MatchThreshold {
			t.Errorf("confidence %v at match level for unrelated memories", m.Confidence)
		}
	})

	t.Run("referencing memory still matches", func(t *testing.T) {
		memories := []memstore.MemoryEntry{
			memory("m1", "Ada Lovelace", "personal", "full name"),
		}
		got := e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)
		m := got[0]
		if m.MemoryID == nil || *m.MemoryID != "m1" {
			t.Fatalf("memoryId: got %v, want m1", m.MemoryID)
		}
		if !m.AutoFill {
			t.Error("autoFill: got false, want true")
		}
	})
}

func TestEventHookReportsFallback(t *testing.T) {
	var events []string
	ai := &stubAI{err: errors.New("timeout")}
	e := quietEngine(WithAIMatcher(ai), WithEventHook(func(ctx context.Context, event string) {
		events = append(events, event)
	}))

	f := field("sf-field-0", fieldmeta.PurposeCity, "City")
	memories := []memstore.MemoryEntry{memory("m1", "Portland", "address", "city")}
	e.MatchFields(context.Background(), []*formscan.DetectedField{f}, memories)

	if len(events) != 1 || events[0] != EventFallbackUsed {
		t.Fatalf("events: got %v, want [%s]", events, EventFallbackUsed)
	}
}

func TestEventHookReportsCapacityDrop(t *testing.T) {
	var events []string
	e := quietEngine(WithEventHook(func(ctx context.Context, event string) {
		events = append(events, event)
	}))

	fields := make([]*formscan.DetectedField, 150)
	for i := range fields {
		fields[i] = field(fmt.Sprintf("sf-field-%d", i), fieldmeta.PurposeUnknown, "Notes")
	}
	memories := []memstore.MemoryEntry{memory("m1", "something", "misc")}
	e.MatchFields(context.Background(), fields, memories)

	if len(events) != 1 || events[0] != EventCapacityDropped {
		t.Fatalf("events: got %v, want [%s]", events, EventCapacityDropped)
	}
}

func TestSimpleFieldSkipsAI(t *testing.T) {
	ai := &stubAI{err: errors.New("should not be called")}
	e := quietEngine(WithAIMatcher(ai))

	fields := []*formscan.DetectedField{field("sf-field-0", fieldmeta.PurposeEmail, "Email")}
	memories := []memstore.MemoryEntry{memory("m1", "user@example.com", "contact")}

	got := e.MatchFields(context.Background(), fields, memories)
	if ai.calls != 0 {
		t.Errorf("AI calls: got %d, want 0", ai.calls)
	}
	if got[0].MemoryID == nil {
		t.Error("simple path produced no match")
	}
}
