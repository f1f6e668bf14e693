package fieldmeta

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the ambient context for analysing controls of one parsed page:
// id and label-for indexes, document-order text runs, and optional geometry.
// Build one per detection pass and discard it; it holds live node references
// and must never outlive the parsed tree.
type Document struct {
	Root *html.Node

	byID     map[string]*html.Node
	labelFor map[string]*html.Node
	orderOf  map[*html.Node]int
	runs     []textRun
	rects    map[*html.Node]Rect
	controls []*html.Node
}

// textRun is one non-empty text node in document order, excluding text inside
// script/style/option/button subtrees.
type textRun struct {
	order int
	text  string
	node  *html.Node
}

// NewDocument indexes a parsed tree for analysis.
func NewDocument(root *html.Node) *Document {
	d := &Document{
		Root:     root,
		byID:     make(map[string]*html.Node),
		labelFor: make(map[string]*html.Node),
		orderOf:  make(map[*html.Node]int),
		rects:    make(map[*html.Node]Rect),
	}
	d.index()
	return d
}

// SetRect attaches a bounding rectangle to a node. The browser path supplies
// rects for controls (and optionally label candidates); the static-HTML path
// supplies none and geometry-dependent inference falls back to document order.
func (d *Document) SetRect(n *html.Node, r Rect) {
	d.rects[n] = r
}

func (d *Document) rectOf(n *html.Node) (Rect, bool) {
	r, ok := d.rects[n]
	return r, ok
}

// ByID resolves an element by its id attribute.
func (d *Document) ByID(id string) *html.Node {
	return d.byID[id]
}

// Controls returns every input/select/textarea in document order. The live
// browser path harvests rects with the same enumeration, so index i here
// corresponds to index i there.
func (d *Document) Controls() []*html.Node {
	return d.controls
}

// ControlIndex returns the document-order control index of a node, used to
// address the matching live element in the page.
func (d *Document) ControlIndex(n *html.Node) (int, bool) {
	for i, c := range d.controls {
		if c == n {
			return i, true
		}
	}
	return 0, false
}

func (d *Document) index() {
	order := 0
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, suppressText bool) {
		d.orderOf[n] = order
		order++

		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				if _, dup := d.byID[id]; !dup {
					d.byID[id] = n
				}
			}
			switch n.DataAtom {
			case atom.Label:
				if forID := getAttr(n, "for"); forID != "" {
					if _, dup := d.labelFor[forID]; !dup {
						d.labelFor[forID] = n
					}
				}
			case atom.Script, atom.Style, atom.Noscript, atom.Option, atom.Button, atom.Template:
				suppressText = true
			}
			if isFormControl(n) {
				d.controls = append(d.controls, n)
			}
		}

		if n.Type == html.TextNode && !suppressText {
			if text := cleanText(n.Data); text != "" {
				d.runs = append(d.runs, textRun{order: d.orderOf[n], text: text, node: n})
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, suppressText)
		}
	}
	walk(d.Root, false)
}

// runBefore returns the nearest text run strictly before the node in document
// order, skipping runs inside the node's own subtree.
func (d *Document) runBefore(n *html.Node) (textRun, bool) {
	target, ok := d.orderOf[n]
	if !ok {
		return textRun{}, false
	}
	for i := len(d.runs) - 1; i >= 0; i-- {
		if d.runs[i].order < target {
			return d.runs[i], true
		}
	}
	return textRun{}, false
}

// runAfter returns the nearest text run after the node and its subtree.
func (d *Document) runAfter(n *html.Node) (textRun, bool) {
	target, ok := d.orderOf[n]
	if !ok {
		return textRun{}, false
	}
	end := subtreeEnd(d, n)
	for _, r := range d.runs {
		if r.order > target && r.order >= end {
			return r, true
		}
	}
	return textRun{}, false
}

// subtreeEnd returns the first order index past n's subtree.
func subtreeEnd(d *Document, n *html.Node) int {
	last := d.orderOf[n]
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if o, ok := d.orderOf[c]; ok && o > last {
			last = o
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return last + 1
}
