// Package fieldmeta analyses a single form control and extracts a structured
// metadata record: labels from multiple sources, placeholder, type, current
// value, and geometry. It also classifies the field's semantic purpose.
//
// Analysis is a pure function of one node plus its ambient Document context
// (label lookup, geometry). It never mutates the tree and never caches:
// metadata is a snapshot, re-derived on every detection pass.
package fieldmeta

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FieldType is the input type taxonomy of a form control.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypeTel      FieldType = "tel"
	TypeURL      FieldType = "url"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypePassword FieldType = "password"
	TypeCheckbox FieldType = "checkbox"
	TypeRadio    FieldType = "radio"
	TypeSearch   FieldType = "search"
	TypeSelect   FieldType = "select"
	TypeTextarea FieldType = "textarea"
	TypeHidden   FieldType = "hidden"
	TypeSubmit   FieldType = "submit"
	TypeButton   FieldType = "button"
	TypeReset    FieldType = "reset"
	TypeImage    FieldType = "image"
	TypeFile     FieldType = "file"
)

// Rect is the bounding rectangle of a control at analysis time. It may be
// stale if the page reflows after detection; detection is re-run on demand,
// not continuously observed.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Metadata is the snapshot record extracted for one form control.
// All label sources are resolved independently and all stored, because
// different matchers weight different sources.
type Metadata struct {
	FieldType    FieldType    `json:"fieldType"`
	FieldPurpose FieldPurpose `json:"fieldPurpose"`

	LabelTag   string `json:"labelTag,omitempty"`
	LabelAria  string `json:"labelAria,omitempty"`
	LabelData  string `json:"labelData,omitempty"`
	LabelLeft  string `json:"labelLeft,omitempty"`
	LabelRight string `json:"labelRight,omitempty"`
	LabelTop   string `json:"labelTop,omitempty"`

	Placeholder  string `json:"placeholder,omitempty"`
	HelperText   string `json:"helperText,omitempty"`
	Name         string `json:"name,omitempty"`
	ID           string `json:"id,omitempty"`
	ClassName    string `json:"className,omitempty"`
	Autocomplete string `json:"autocomplete,omitempty"`
	CurrentValue string `json:"currentValue,omitempty"`

	Disabled  bool `json:"disabled"`
	Readonly  bool `json:"readonly"`
	Required  bool `json:"required"`
	MaxLength int  `json:"maxLength,omitempty"`

	Rect    Rect `json:"rect"`
	HasRect bool `json:"hasRect"`
}

// HasLabel reports whether any label source or the placeholder carries text.
// The detector's noise filter uses this.
func (m *Metadata) HasLabel() bool {
	return m.LabelTag != "" || m.LabelAria != "" || m.LabelData != "" ||
		m.LabelLeft != "" || m.LabelRight != "" || m.LabelTop != "" ||
		m.Placeholder != ""
}

// BestLabel returns the primary display label in fixed priority order:
// label sources, then placeholder, then name, then id, then the raw type.
func (m *Metadata) BestLabel() string {
	for _, s := range []string{
		m.LabelTag, m.LabelAria, m.LabelData,
		m.LabelLeft, m.LabelTop, m.LabelRight,
		m.Placeholder, m.Name, m.ID,
	} {
		if s != "" {
			return s
		}
	}
	return string(m.FieldType)
}

// Analyze extracts the metadata snapshot for one form control. The node must
// belong to doc; callers (formscan) are responsible for excluding disallowed
// control types and disconnected nodes.
func Analyze(doc *Document, n *html.Node) Metadata {
	m := Metadata{
		FieldType:    TypeOf(n),
		Name:         getAttr(n, "name"),
		ID:           getAttr(n, "id"),
		ClassName:    getAttr(n, "class"),
		Autocomplete: strings.ToLower(strings.TrimSpace(getAttr(n, "autocomplete"))),
		Placeholder:  cleanText(getAttr(n, "placeholder")),
		CurrentValue: currentValue(n),
		Disabled:     hasAttr(n, "disabled"),
		Readonly:     hasAttr(n, "readonly"),
		Required:     hasAttr(n, "required"),
	}

	if v := getAttr(n, "maxlength"); v != "" {
		if max, err := strconv.Atoi(v); err == nil && max > 0 {
			m.MaxLength = max
		}
	}

	m.LabelTag = doc.labelTag(n)
	m.LabelAria = doc.labelAria(n)
	m.LabelData = labelData(n)
	m.LabelLeft = doc.labelLeft(n)
	m.LabelRight = doc.labelRight(n)
	m.LabelTop = doc.labelTop(n)
	m.HelperText = doc.helperText(n)

	if r, ok := doc.rectOf(n); ok {
		m.Rect = r
		m.HasRect = true
	}

	m.FieldPurpose = ClassifyPurpose(&m)
	return m
}

// TypeOf derives the FieldType from the tag and type attribute.
func TypeOf(n *html.Node) FieldType {
	switch n.DataAtom {
	case atom.Select:
		return TypeSelect
	case atom.Textarea:
		return TypeTextarea
	}
	t := strings.ToLower(strings.TrimSpace(getAttr(n, "type")))
	if t == "" {
		return TypeText
	}
	return FieldType(t)
}

// currentValue reads the control's present value: the value attribute for
// inputs, the selected option for selects, and the text content for textareas.
func currentValue(n *html.Node) string {
	switch n.DataAtom {
	case atom.Textarea:
		return cleanText(collectText(n))
	case atom.Select:
		var first, selected string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.DataAtom != atom.Option {
				continue
			}
			v := getAttr(c, "value")
			if v == "" {
				v = cleanText(collectText(c))
			}
			if first == "" {
				first = v
			}
			if hasAttr(c, "selected") && selected == "" {
				selected = v
			}
		}
		if selected != "" {
			return selected
		}
		return first
	default:
		return getAttr(n, "value")
	}
}
