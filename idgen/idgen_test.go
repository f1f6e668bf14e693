package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
	}
}

func TestNanoIDLength(t *testing.T) {
	gen := NanoID(12)
	id := gen()
	if len(id) != 12 {
		t.Errorf("length: got %d, want 12", len(id))
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("mem_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "mem_") {
		t.Errorf("prefix: got %q, want mem_ prefix", id)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("Parse should reject malformed input")
	}
}
