package parse

import (
	"strings"

	"golang.org/x/net/html"
)

// Section is one heading-delimited part of the page.
type Section struct {
	// Headline is the heading text.
	Headline string
	// Level is the heading depth, 1..6.
	Level int
	// Index is the section's position among all sections in document order.
	Index int

	Parent   *Section
	Children []*Section
	// Comments are the section's own top-level comments; replies hang off
	// the comment tree, not the section.
	Comments []*Comment
	// OldestCommentID identifies the oldest dated comment anywhere in the
	// section, used for cross-parse fuzzy matching.
	OldestCommentID string

	// Heading is the heading element node.
	Heading *html.Node
}

// Key is the content-addressable descriptor used to find the same section
// again after a reparse. Headline text alone is not unique and indices
// shift, so resolution scores several signals together.
type Key struct {
	Headline        string   `json:"headline"`
	Ancestors       []string `json:"ancestors,omitempty"`
	Index           int      `json:"index"`
	OldestCommentID string   `json:"oldest_comment_id,omitempty"`
}

// Key returns the section's descriptor for later fuzzy lookup.
func (s *Section) Key() Key {
	var anc []string
	for p := s.Parent; p != nil; p = p.Parent {
		anc = append(anc, p.Headline)
	}
	return Key{
		Headline:        s.Headline,
		Ancestors:       anc,
		Index:           s.Index,
		OldestCommentID: s.OldestCommentID,
	}
}

// buildSections locates headings in document order and assembles the
// section hierarchy.
func (s *Session) buildSections(root *html.Node) []*Section {
	var sections []*Section

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if lvl := headingLevel(n); lvl > 0 {
			sections = append(sections, &Section{
				Headline: headlineText(n),
				Level:    lvl,
				Index:    len(sections),
				Heading:  n,
			})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	// Parent: nearest preceding section with a smaller level.
	var stack []*Section
	for _, sec := range sections {
		for len(stack) > 0 && stack[len(stack)-1].Level >= sec.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			sec.Parent = stack[len(stack)-1]
			sec.Parent.Children = append(sec.Parent.Children, sec)
		}
		stack = append(stack, sec)
	}
	return sections
}

// headlineText extracts the heading text, preferring the headline span
// MediaWiki emits over raw heading content (which includes edit links).
func headlineText(h *html.Node) string {
	var span *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if span != nil {
			return
		}
		if hasClass(n, "mw-headline") {
			span = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(h)
	src := h
	if span != nil {
		src = span
	}
	return strings.TrimSpace(nodeText(src, func(n *html.Node) bool {
		return hasClass(n, "mw-editsection")
	}))
}

// assignSections attaches each comment to the section whose heading most
// recently precedes it in document order, then records each section's
// top-level comments and oldest comment.
func (s *Session) assignSections(comments []*Comment, sections []*Section, order map[*html.Node]int) {
	for _, c := range comments {
		if len(c.Nodes) == 0 {
			continue
		}
		pos := order[c.Nodes[0]]
		var owner *Section
		for _, sec := range sections {
			if order[sec.Heading] < pos {
				owner = sec
			} else {
				break
			}
		}
		c.Section = owner
	}

	for _, sec := range sections {
		sec.OldestCommentID = oldestCommentID(comments, sec)
	}
}

func oldestCommentID(comments []*Comment, sec *Section) string {
	var oldest *Comment
	for _, c := range comments {
		if c.Section != sec || c.Date == nil {
			continue
		}
		if oldest == nil || c.Date.Before(*oldest.Date) {
			oldest = c
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.ID
}

// FindSection resolves a Key against a freshly parsed section list. It
// scores headline, ancestor chain, oldest-comment identity, and index
// proximity, so a renamed section still resolves when its other signals
// agree. Returns nil when nothing scores above the acceptance floor.
func FindSection(sections []*Section, key Key) *Section {
	const floor = 1.0

	var best *Section
	bestScore := floor
	for _, sec := range sections {
		score := 0.0
		if sec.Headline == key.Headline {
			score++
		}
		if key.OldestCommentID != "" && sec.OldestCommentID == key.OldestCommentID {
			score += 1.5
		}
		if ancestorsEqual(sec.Key().Ancestors, key.Ancestors) {
			score += 0.5
		}
		if n := len(sections); n > 0 {
			d := key.Index - sec.Index
			if d < 0 {
				d = -d
			}
			score += 0.5 * (1 - float64(d)/float64(n))
		}
		if score > bestScore {
			best = sec
			bestScore = score
		}
	}
	return best
}

func ancestorsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
