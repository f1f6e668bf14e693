package match

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"splits and lowercases", "First-Name (Required)", 0, "first name required"},
		{"drops stopwords", "Please enter your email address", 0, "email address"},
		{"drops single letters keeps digits", "x 5 ab", 0, "5 ab"},
		{"caps token count", "one two three four", 2, "one two"},
		{"empty", "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(tokenize(tt.in, tt.max), " ")
			if got != tt.want {
				t.Errorf("tokenize(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	a := tokenSet(0, "city name")
	b := tokenSet(0, "city of portland")
	if got := overlap(a, b); got != 0.5 {
		t.Errorf("overlap: got %v, want 0.5", got)
	}
	if got := overlap(a, map[string]bool{}); got != 0 {
		t.Errorf("overlap with empty: got %v, want 0", got)
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) bool
		in    string
		valid bool
	}{
		{"email ok", ValidEmail, "user@example.com", true},
		{"email no domain", ValidEmail, "user@", false},
		{"email plain text", ValidEmail, "not an email", false},
		{"phone e164", ValidPhone, "+15035550100", true},
		{"phone punctuated", ValidPhone, "(503) 555-0100", true},
		{"phone too short", ValidPhone, "12345", false},
		{"phone letters", ValidPhone, "call me", false},
		{"zip five", validZip, "97201", true},
		{"zip plus four", validZip, "97201-1234", true},
		{"zip canadian", validZip, "V6B 1A1", true},
		{"zip junk", validZip, "abcde", false},
		{"url ok", validURL, "https://example.com/path", true},
		{"url no scheme", validURL, "example.com", false},
		{"name ok", plausibleName, "Ada Lovelace", true},
		{"name digits only", plausibleName, "12345", false},
		{"name too short", plausibleName, "A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.valid {
				t.Errorf("%q: got %v, want %v", tt.in, got, tt.valid)
			}
		})
	}
}
