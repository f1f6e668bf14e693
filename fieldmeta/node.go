package fieldmeta

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripPolicy removes every tag from harvested rich text. Pages put markup
// inside labels and aria-labelledby targets; only the text survives into
// metadata.
var stripPolicy = bluemonday.StrictPolicy()

// getAttr returns the value of an attribute on a node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// hasAttr checks if a node has a specific attribute.
func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// collectText extracts the concatenated text content of a subtree,
// skipping script/style.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// nodeText renders a subtree and strips all markup. Compared to collectText
// this also drops entities and any text bluemonday considers unsafe, which is
// what we want for text harvested from adversarial pages.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return cleanText(collectText(n))
	}
	return cleanText(html.UnescapeString(stripPolicy.Sanitize(sb.String())))
}

// cleanText collapses whitespace runs and trims the result. Labels longer
// than maxLabelLen are cut: anything beyond that is page copy, not a label.
func cleanText(s string) string {
	const maxLabelLen = 120
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	out = strings.Trim(out, " :*")
	if len(out) > maxLabelLen {
		out = out[:maxLabelLen]
	}
	return out
}

// isFormControl reports whether the node is an input/select/textarea element.
func isFormControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}
