package fieldmeta

import "strings"

// FieldPurpose is the semantic classification of a form field.
type FieldPurpose string

const (
	PurposeName    FieldPurpose = "name"
	PurposeEmail   FieldPurpose = "email"
	PurposePhone   FieldPurpose = "phone"
	PurposeAddress FieldPurpose = "address"
	PurposeCity    FieldPurpose = "city"
	PurposeState   FieldPurpose = "state"
	PurposeZip     FieldPurpose = "zip"
	PurposeCountry FieldPurpose = "country"
	PurposeCompany FieldPurpose = "company"
	PurposeTitle   FieldPurpose = "title"
	PurposeUnknown FieldPurpose = "unknown"
)

// Purposes lists every known purpose in table declaration order. Ties in
// classification are broken by this order.
var Purposes = []FieldPurpose{
	PurposeName, PurposeEmail, PurposePhone, PurposeAddress, PurposeCity,
	PurposeState, PurposeZip, PurposeCountry, PurposeCompany, PurposeTitle,
}

// autocompletepurposes maps WHATWG autocomplete tokens directly to purposes.
// These are authoritative: a matching token short-circuits keyword scanning.
var autocompletePurposes = map[string]FieldPurpose{
	"name":             PurposeName,
	"given-name":       PurposeName,
	"family-name":      PurposeName,
	"additional-name":  PurposeName,
	"email":            PurposeEmail,
	"tel":              PurposePhone,
	"tel-national":     PurposePhone,
	"street-address":   PurposeAddress,
	"address-line1":    PurposeAddress,
	"address-line2":    PurposeAddress,
	"address-level2":   PurposeCity,
	"address-level1":   PurposeState,
	"postal-code":      PurposeZip,
	"country":          PurposeCountry,
	"country-name":     PurposeCountry,
	"organization":     PurposeCompany,
	"organization-title": PurposeTitle,
}

// purposeKeywords is the fixed purpose→keyword table. Scanning walks the
// table in declaration order and the first matching purpose wins, so more
// specific vocabularies (email) must come before ones they contain
// (address ⊂ "email address").
var purposeKeywords = []struct {
	purpose  FieldPurpose
	keywords []string
}{
	{PurposeEmail, []string{"email", "e-mail", "e_mail", "emailaddress"}},
	{PurposePhone, []string{"phone", "telephone", "mobile", "cellphone", "cell phone", "tel number"}},
	{PurposeZip, []string{"zip", "postal code", "postalcode", "postcode", "postal_code"}},
	{PurposeCity, []string{"city", "town", "locality"}},
	{PurposeState, []string{"state", "province", "region"}},
	{PurposeCountry, []string{"country", "nation"}},
	{PurposeCompany, []string{"company", "organization", "organisation", "employer", "business name"}},
	{PurposeTitle, []string{"job title", "jobtitle", "job_title", "position", "occupation", "designation", "role"}},
	{PurposeAddress, []string{"address", "street", "addr1", "addr2", "address line", "addressline"}},
	{PurposeName, []string{
		"first name", "firstname", "first_name", "last name", "lastname",
		"last_name", "full name", "fullname", "full_name", "middle name",
		"given name", "family name", "surname", "your name", "name",
	}},
}

// nameExclusions stop the generic "name" keyword from swallowing
// account-identifier fields.
var nameExclusions = []string{"username", "user name", "user_name", "login", "nickname", "screen name", "hostname", "filename", "file name"}

// ClassifyPurpose classifies a field from its metadata: autocomplete token
// first, then a keyword scan over name, id, and every resolved label.
// Deterministic for a fixed metadata record. No match yields PurposeUnknown.
func ClassifyPurpose(m *Metadata) FieldPurpose {
	if p, ok := autocompletePurposes[m.Autocomplete]; ok {
		return p
	}

	haystack := strings.ToLower(strings.Join([]string{
		m.Name, m.ID, m.Autocomplete,
		m.LabelTag, m.LabelAria, m.LabelData,
		m.LabelLeft, m.LabelRight, m.LabelTop,
		m.Placeholder,
	}, " "))
	if strings.TrimSpace(haystack) == "" {
		return PurposeUnknown
	}

	for _, entry := range purposeKeywords {
		for _, kw := range entry.keywords {
			if !strings.Contains(haystack, kw) {
				continue
			}
			if entry.purpose == PurposeName && excludedNameMatch(haystack, kw) {
				continue
			}
			return entry.purpose
		}
	}
	return PurposeUnknown
}

// excludedNameMatch reports whether a "name" keyword hit is really an
// account-identifier field. Only the generic keywords are guarded; explicit
// ones like "first name" always win.
func excludedNameMatch(haystack, kw string) bool {
	if kw != "name" && kw != "your name" {
		return false
	}
	for _, ex := range nameExclusions {
		if strings.Contains(haystack, ex) {
			return true
		}
	}
	return false
}

// KeywordsFor returns the keyword vocabulary associated with a purpose, nil
// for PurposeUnknown. The slice is shared; callers must not mutate it.
func KeywordsFor(p FieldPurpose) []string {
	for _, entry := range purposeKeywords {
		if entry.purpose == p {
			return entry.keywords
		}
	}
	return nil
}

// SimplePurposes are the purposes with reliable format validators, matched by
// the cheap deterministic path instead of token heuristics.
var SimplePurposes = map[FieldPurpose]bool{
	PurposeName:  true,
	PurposeEmail: true,
	PurposePhone: true,
}
