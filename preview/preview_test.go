package preview

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/superfill/sfc/browser"
	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/match"
)

const page = `<html><body><form>
<label for="email">Email</label><input type="email" id="email" name="email">
<input type="checkbox" id="news" name="newsletter">
<select id="country" name="country"><option>Portugal</option><option>Spain</option></select>
</form></body></html>`

type fakeInjector struct {
	sets       map[int]struct {
		value string
		kind  browser.ControlKind
	}
	highlights map[int]bool
	missing    map[int]bool
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{
		sets: make(map[int]struct {
			value string
			kind  browser.ControlKind
		}),
		highlights: make(map[int]bool),
		missing:    make(map[int]bool),
	}
}

func (f *fakeInjector) SetControlValue(ctx context.Context, index int, value string, kind browser.ControlKind) (bool, error) {
	if f.missing[index] {
		return false, nil
	}
	f.sets[index] = struct {
		value string
		kind  browser.ControlKind
	}{value, kind}
	return true, nil
}

func (f *fakeInjector) HighlightControl(ctx context.Context, index int, on bool) error {
	f.highlights[index] = on
	return nil
}

type fakeUsage struct{ recorded []string }

func (f *fakeUsage) RecordUsage(ctx context.Context, memoryID string) error {
	f.recorded = append(f.recorded, memoryID)
	return nil
}

func detect(t *testing.T) (*formscan.Cache, *fieldmeta.Document, []*formscan.DetectedForm) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc := fieldmeta.NewDocument(root)
	forms := formscan.New(doc).DetectAll()
	cache := formscan.NewCache()
	cache.Update(forms)
	return cache, doc, forms
}

func mappingFor(opid, memID, value string) match.FieldMapping {
	return match.FieldMapping{
		FieldOpid:  opid,
		MemoryID:   &memID,
		Value:      &value,
		Confidence: 0.9,
		AutoFill:   true,
	}
}

func TestApplyTextCheckboxSelect(t *testing.T) {
	cache, doc, forms := detect(t)
	if len(forms) != 1 || len(forms[0].Fields) != 3 {
		t.Fatalf("detection: %d forms", len(forms))
	}
	fields := forms[0].Fields

	inj := newFakeInjector()
	usage := &fakeUsage{}
	m := NewManager(cache, doc, inj, WithUsageRecorder(usage))

	payload := SidebarPayload{
		Forms: formscan.Snapshots(forms),
		Mappings: []match.FieldMapping{
			mappingFor(fields[0].Opid, "m1", "user@example.com"),
			mappingFor(fields[1].Opid, "m2", "yes"),
			mappingFor(fields[2].Opid, "m3", "portugal"),
		},
	}

	res := m.Apply(context.Background(), payload, nil)
	if res.Applied != 3 || res.Skipped != 0 {
		t.Fatalf("apply: %s", res)
	}

	if got := inj.sets[0]; got.value != "user@example.com" || got.kind != browser.KindText {
		t.Errorf("text injection: %+v", got)
	}
	if got := inj.sets[1]; got.value != "true" || got.kind != browser.KindCheckbox {
		t.Errorf("checkbox injection: %+v", got)
	}
	if got := inj.sets[2]; got.value != "portugal" || got.kind != browser.KindSelect {
		t.Errorf("select injection: %+v", got)
	}
	if len(usage.recorded) != 3 {
		t.Errorf("usage recorded: %v", usage.recorded)
	}
}

func TestApplyAcceptedSubset(t *testing.T) {
	cache, doc, forms := detect(t)
	fields := forms[0].Fields

	inj := newFakeInjector()
	m := NewManager(cache, doc, inj)

	payload := SidebarPayload{
		Mappings: []match.FieldMapping{
			mappingFor(fields[0].Opid, "m1", "user@example.com"),
			mappingFor(fields[1].Opid, "m2", "yes"),
		},
	}
	res := m.Apply(context.Background(), payload, []string{fields[0].Opid})
	if res.Applied != 1 {
		t.Fatalf("apply: %s", res)
	}
	if _, ok := inj.sets[1]; ok {
		t.Error("unaccepted mapping was applied")
	}
}

func TestApplySkipsVanishedElement(t *testing.T) {
	cache, doc, forms := detect(t)
	fields := forms[0].Fields

	inj := newFakeInjector()
	inj.missing[0] = true
	m := NewManager(cache, doc, inj)

	payload := SidebarPayload{
		Mappings: []match.FieldMapping{
			mappingFor(fields[0].Opid, "m1", "user@example.com"),
			mappingFor("sf-field-99", "m2", "ghost"),
		},
	}
	res := m.Apply(context.Background(), payload, nil)
	if res.Applied != 0 || res.Skipped != 2 {
		t.Errorf("apply: %s", res)
	}
}

func TestApplySkipsNilValue(t *testing.T) {
	cache, doc, forms := detect(t)
	fields := forms[0].Fields

	inj := newFakeInjector()
	m := NewManager(cache, doc, inj)

	payload := SidebarPayload{
		Mappings: []match.FieldMapping{
			{FieldOpid: fields[0].Opid, Reasoning: "No stored memories available"},
		},
	}
	res := m.Apply(context.Background(), payload, nil)
	if res.Applied != 0 || res.Skipped != 0 || len(inj.sets) != 0 {
		t.Errorf("nil-value mapping was applied: %s", res)
	}
}

func TestShowClose(t *testing.T) {
	cache, doc, forms := detect(t)
	fields := forms[0].Fields

	inj := newFakeInjector()
	m := NewManager(cache, doc, inj)

	if m.Close(context.Background()) {
		t.Error("close before show returned true")
	}
	if m.Show(context.Background(), SidebarPayload{}) {
		t.Error("show with empty payload returned true")
	}

	payload := SidebarPayload{
		Mappings: []match.FieldMapping{mappingFor(fields[0].Opid, "m1", "v")},
	}
	if !m.Show(context.Background(), payload) {
		t.Fatal("show returned false")
	}
	if !inj.highlights[0] {
		t.Error("mapped control not highlighted")
	}
	if !m.Close(context.Background()) {
		t.Fatal("close returned false")
	}
	if inj.highlights[0] {
		t.Error("highlight not cleared on close")
	}
}

func TestCoerceBool(t *testing.T) {
	for _, v := range []string{"true", "On", "1", "YES", " yes "} {
		if !coerceBool(v) {
			t.Errorf("coerceBool(%q): got false", v)
		}
	}
	for _, v := range []string{"false", "off", "0", "no", "", "maybe"} {
		if coerceBool(v) {
			t.Errorf("coerceBool(%q): got true", v)
		}
	}
}

func TestDisplayLabel(t *testing.T) {
	_, _, forms := detect(t)
	snap := forms[0].Fields[0].Snapshot()
	if got := DisplayLabel(&snap); got != "Email" {
		t.Errorf("display label: got %q", got)
	}
}
