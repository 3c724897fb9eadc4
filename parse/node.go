package parse

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hasClass reports whether an element node carries the given class.
func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// hasAnyClass reports whether n carries any of the given classes.
func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if hasClass(n, c) {
			return true
		}
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

// headingLevel returns 1..6 for h1..h6, 0 otherwise.
func headingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// isBlock reports whether n starts a block-level boundary for comment
// extent computation.
func isBlock(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Li, atom.Dd, atom.Dt, atom.Div, atom.Td, atom.Th,
		atom.Blockquote, atom.Section, atom.Table, atom.Center, atom.Pre,
		atom.Ul, atom.Ol, atom.Dl:
		return true
	}
	return headingLevel(n) > 0
}

// listMarker maps a list container element to its wikitext indentation
// marker: dl → ':', ul → '*', ol → '#'.
func listMarker(n *html.Node) (byte, bool) {
	if n == nil || n.Type != html.ElementNode {
		return 0, false
	}
	switch n.DataAtom {
	case atom.Dl:
		return ':', true
	case atom.Ul:
		return '*', true
	case atom.Ol:
		return '#', true
	}
	return 0, false
}

// nodeText collects the text of a subtree, skipping subtrees for which
// skip returns true.
func nodeText(n *html.Node, skip func(*html.Node) bool) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if skip != nil && skip(n) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// hasAncestor reports whether a is an ancestor of n (or n itself).
func hasAncestor(n, a *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// orderIndex assigns every node in the tree its document-order position.
func orderIndex(root *html.Node) map[*html.Node]int {
	idx := make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		idx[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return idx
}

// containerOf ascends from n to the nearest block-level ancestor, or the
// root when none exists.
func containerOf(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if isBlock(p) {
			return p
		}
	}
	return n.Parent
}
