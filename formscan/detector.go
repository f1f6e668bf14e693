// Package formscan walks a parsed page, groups form controls into logical
// forms (including controls outside <form> tags), filters noise, and produces
// DetectedForm records keyed by stable synthetic identifiers ("opids").
//
// Detection is a synchronous single pass over the current document state.
// Nothing is cached across page mutations: callers re-run DetectAll on demand
// and opids are deterministic, so an unchanged document yields identical
// results. No network or storage access; purely document-read.
package formscan

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/superfill/sfc/fieldmeta"
)

// OrphanFormOpid is the opid of the single synthetic form that groups every
// control living outside any <form> element. One global group keeps opids
// deterministic; per-container grouping would depend on layout wrappers that
// frameworks churn on every render.
const OrphanFormOpid = "sf-form-orphans"

// disallowedTypes are control types excluded from detection output.
// Password is a hard security invariant, not a heuristic; the matching
// engine guards against it a second time.
var disallowedTypes = map[fieldmeta.FieldType]bool{
	fieldmeta.TypeHidden:   true,
	fieldmeta.TypeSubmit:   true,
	fieldmeta.TypeButton:   true,
	fieldmeta.TypeReset:    true,
	fieldmeta.TypeImage:    true,
	fieldmeta.TypeFile:     true,
	fieldmeta.TypePassword: true,
}

// hiddenStylePatterns mark controls hidden via inline style. A control the
// user cannot see is either honeypot bait or template debris; filling it
// would betray automation.
var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\.0+)?\s*(;|$)`),
}

// Detector performs one detection pass over a Document.
type Detector struct {
	doc    *fieldmeta.Document
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a Detector for one parsed document.
func New(doc *fieldmeta.Document, opts ...Option) *Detector {
	d := &Detector{doc: doc, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// formGroup pairs a logical form with its backing <form> node (nil for the
// synthetic orphan group).
type formGroup struct {
	form *DetectedForm
	node *html.Node
}

// DetectAll enumerates every form control, groups controls into logical
// forms, and applies the noise filter. Field and form opids are ordinals in
// document order: unique within the pass and identical across re-runs on an
// unchanged document.
func (d *Detector) DetectAll() []*DetectedForm {
	var groups []*formGroup
	byFormNode := make(map[*html.Node]*formGroup)
	var orphans *formGroup

	formSeq := 0
	fieldSeq := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Form {
			g := &formGroup{
				form: &DetectedForm{
					Opid:   fmt.Sprintf("sf-form-%d", formSeq),
					Action: attr(n, "action"),
					Method: strings.ToLower(defaultStr(attr(n, "method"), "get")),
					Name:   defaultStr(attr(n, "name"), attr(n, "id")),
				},
				node: n,
			}
			formSeq++
			groups = append(groups, g)
			byFormNode[n] = g
		}

		if isControl(n) && d.includeControl(n) {
			g := d.owningGroup(n, byFormNode)
			if g == nil {
				if orphans == nil {
					orphans = &formGroup{form: &DetectedForm{Opid: OrphanFormOpid}}
					groups = append(groups, orphans)
				}
				g = orphans
			}
			field := &DetectedField{
				Opid:     fmt.Sprintf("sf-field-%d", fieldSeq),
				FormOpid: g.form.Opid,
				Element:  n,
				Metadata: fieldmeta.Analyze(d.doc, n),
			}
			fieldSeq++
			g.form.Fields = append(g.form.Fields, field)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.doc.Root)

	var out []*DetectedForm
	for _, g := range groups {
		if isNoise(g.form) {
			d.logger.Debug("formscan: dropped noise form",
				"opid", g.form.Opid, "fields", len(g.form.Fields))
			continue
		}
		out = append(out, g.form)
	}
	return out
}

// owningGroup resolves the logical form of a control: an explicit form=""
// attribute referencing a <form> id wins, then the nearest <form> ancestor.
// Returns nil for formless controls.
func (d *Detector) owningGroup(n *html.Node, byFormNode map[*html.Node]*formGroup) *formGroup {
	if formID := attr(n, "form"); formID != "" {
		if ref := d.doc.ByID(formID); ref != nil {
			if g, ok := byFormNode[ref]; ok {
				return g
			}
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			if g, ok := byFormNode[p]; ok {
				return g
			}
		}
	}
	return nil
}

// includeControl applies the per-control exclusion rules.
func (d *Detector) includeControl(n *html.Node) bool {
	if disallowedTypes[fieldmeta.TypeOf(n)] {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if style := attr(cur, "style"); style != "" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(style) {
					return false
				}
			}
		}
		if attr(cur, "aria-hidden") == "true" {
			return false
		}
	}
	return true
}

// isNoise implements the heuristic noise filter: a form with zero fields, or
// exactly one field that is both unlabeled and of unknown purpose, carries no
// semantic signal worth matching.
func isNoise(f *DetectedForm) bool {
	if len(f.Fields) == 0 {
		return true
	}
	if len(f.Fields) == 1 {
		m := &f.Fields[0].Metadata
		if !m.HasLabel() && m.FieldPurpose == fieldmeta.PurposeUnknown {
			return true
		}
	}
	return false
}

func isControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
