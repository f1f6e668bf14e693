package match

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/superfill/sfc/fieldmeta"
)

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	zipRe   = regexp.MustCompile(`^\d{5}(-\d{4})?$|^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`)
)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidPhone accepts E.164-like numbers: an optional leading +, then 7 to 15
// digits after stripping common punctuation.
func ValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// validZip accepts US ZIP and ZIP+4, plus Canadian postal codes.
func validZip(s string) bool {
	return zipRe.MatchString(strings.TrimSpace(s))
}

// validURL accepts absolute http(s) URLs.
func validURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// plausibleName: 2-100 characters containing at least one letter.
func plausibleName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 100 {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// plausibleValue is the generic length-bounded check used where no
// purpose-specific validator exists.
func plausibleValue(s string) bool {
	n := len(strings.TrimSpace(s))
	return n >= 1 && n <= 500
}

// formatScore rates how well an answer's shape fits a field purpose. Purposes
// with schema validators give boolean-strength evidence; the rest fall back
// to generic plausibility.
func formatScore(purpose fieldmeta.FieldPurpose, answer string) float64 {
	switch purpose {
	case fieldmeta.PurposeEmail:
		if ValidEmail(answer) {
			return 1
		}
		return 0
	case fieldmeta.PurposePhone:
		if ValidPhone(answer) {
			return 1
		}
		return 0
	case fieldmeta.PurposeZip:
		if validZip(answer) {
			return 1
		}
		return 0
	case fieldmeta.PurposeName:
		if plausibleName(answer) {
			return 1
		}
		return 0
	default:
		if validURL(answer) || plausibleValue(answer) {
			return 1
		}
		return 0
	}
}
