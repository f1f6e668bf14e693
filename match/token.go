package match

import "strings"

// stopwords are dropped during tokenization. Filler vocabulary common in
// field labels and placeholder copy.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "enter": true,
	"field": true, "for": true, "from": true, "if": true, "in": true,
	"is": true, "it": true, "its": true, "my": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "please": true,
	"the": true, "this": true, "to": true, "we": true, "with": true,
	"you": true, "your": true,
}

// tokenize lowercases, splits on non-alphanumeric runs, drops stopwords and
// single-character non-digit tokens, and caps the result at max tokens.
func tokenize(text string, max int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) == 1 && (tok[0] < '0' || tok[0] > '9') {
			continue
		}
		if stopwords[tok] {
			continue
		}
		out = append(out, tok)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// tokenSet tokenizes each block independently (the per-block cap applies to
// each) and unions the results.
func tokenSet(max int, blocks ...string) map[string]bool {
	set := make(map[string]bool)
	for _, b := range blocks {
		for _, tok := range tokenize(b, max) {
			set[tok] = true
		}
	}
	return set
}

// overlap scores the intersection of two token sets against the smaller set,
// yielding a value in [0,1]. Empty sets score 0.
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	n := 0
	for tok := range small {
		if large[tok] {
			n++
		}
	}
	return float64(n) / float64(len(small))
}
