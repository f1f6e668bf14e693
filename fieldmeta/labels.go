package fieldmeta

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// labelTag resolves <label for=id> first, then a wrapping <label> ancestor.
func (d *Document) labelTag(n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		if lbl := d.labelFor[id]; lbl != nil {
			return nodeText(lbl)
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return nodeText(p)
		}
	}
	return ""
}

// labelAria resolves aria-label, then aria-labelledby references.
func (d *Document) labelAria(n *html.Node) string {
	if v := cleanText(getAttr(n, "aria-label")); v != "" {
		return v
	}
	ids := strings.Fields(getAttr(n, "aria-labelledby"))
	if len(ids) == 0 {
		return ""
	}
	var parts []string
	for _, id := range ids {
		if ref := d.byID[id]; ref != nil {
			if text := nodeText(ref); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return cleanText(strings.Join(parts, " "))
}

// dataLabelKeys are checked in order before falling back to any data-* key
// containing "label". Fixed order keeps classification deterministic.
var dataLabelKeys = []string{"data-label", "data-field-label", "data-title"}

// labelData resolves data-* hint attributes.
func labelData(n *html.Node) string {
	for _, key := range dataLabelKeys {
		if v := cleanText(getAttr(n, key)); v != "" {
			return v
		}
	}
	for _, attr := range n.Attr {
		if strings.HasPrefix(attr.Key, "data-") && strings.Contains(attr.Key, "label") {
			if v := cleanText(attr.Val); v != "" {
				return v
			}
		}
	}
	return ""
}

// labelLeft is the nearest preceding text run in document order.
func (d *Document) labelLeft(n *html.Node) string {
	if r, ok := d.runBefore(n); ok {
		return r.text
	}
	return ""
}

// labelRight is the nearest following text run in document order.
func (d *Document) labelRight(n *html.Node) string {
	if r, ok := d.runAfter(n); ok {
		return r.text
	}
	return ""
}

// labelTop finds the nearest text above the control in the visual layout.
// When geometry is available for both the control and label candidates it is
// purely geometric; otherwise it approximates "above" with the nearest
// preceding block-level element that carries text and no other control.
func (d *Document) labelTop(n *html.Node) string {
	if ctrl, ok := d.rectOf(n); ok {
		if text := d.labelTopGeometric(n, ctrl); text != "" {
			return text
		}
	}
	return d.labelTopBlock(n)
}

func (d *Document) labelTopGeometric(n *html.Node, ctrl Rect) string {
	const tolerance = 4.0
	best := ""
	bestBottom := -1.0
	bestOrder := -1
	target := d.orderOf[n]

	for _, r := range d.runs {
		if r.order == target {
			continue
		}
		parent := r.node.Parent
		if parent == nil {
			continue
		}
		rect, ok := d.rectOf(parent)
		if !ok {
			continue
		}
		bottom := rect.Y + rect.Height
		if bottom > ctrl.Y+tolerance {
			continue // not above
		}
		if rect.X >= ctrl.X+ctrl.Width || rect.X+rect.Width <= ctrl.X {
			continue // no horizontal overlap
		}
		// Nearest above wins; ties broken by document order.
		if bottom > bestBottom || (bottom == bestBottom && r.order < bestOrder) {
			best = r.text
			bestBottom = bottom
			bestOrder = r.order
		}
	}
	return best
}

// blockAtoms are element types treated as visual line boundaries.
var blockAtoms = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.Td: true, atom.Th: true,
	atom.Li: true, atom.Section: true, atom.Fieldset: true, atom.Legend: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Dt: true, atom.Dd: true,
}

func (d *Document) labelTopBlock(n *html.Node) string {
	// Walk up from the control looking for a preceding block sibling with
	// text and no form controls of its own.
	for cur := n; cur != nil && cur.DataAtom != atom.Body; cur = cur.Parent {
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type != html.ElementNode || !blockAtoms[sib.DataAtom] {
				continue
			}
			if containsControl(sib) {
				return ""
			}
			if text := nodeText(sib); text != "" {
				return text
			}
		}
	}
	return ""
}

func containsControl(n *html.Node) bool {
	if isFormControl(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsControl(c) {
			return true
		}
	}
	return false
}

// helperHints mark sibling elements that carry helper/description copy.
var helperHints = []string{"help", "hint", "description", "desc", "note"}

// helperText resolves aria-describedby first, then a following sibling whose
// class names suggest helper copy.
func (d *Document) helperText(n *html.Node) string {
	ids := strings.Fields(getAttr(n, "aria-describedby"))
	var parts []string
	for _, id := range ids {
		if ref := d.byID[id]; ref != nil {
			if text := nodeText(ref); text != "" {
				parts = append(parts, text)
			}
		}
	}
	if len(parts) > 0 {
		return cleanText(strings.Join(parts, " "))
	}

	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		class := strings.ToLower(getAttr(sib, "class"))
		for _, hint := range helperHints {
			if strings.Contains(class, hint) {
				return nodeText(sib)
			}
		}
		break // only the immediate element sibling counts
	}
	return ""
}
