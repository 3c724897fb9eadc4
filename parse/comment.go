package parse

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jwbth/talkpage/wiki"
)

// Comment is one discussion comment located on the page. Identity fields
// (Author, Date, DedupIndex, ID) are never mutated after construction;
// IsNew and IsSeen are set by visit classification afterwards.
type Comment struct {
	// Author is the signing username.
	Author string
	// Date is the signature timestamp at whole-minute resolution, nil when
	// the signature carried no parseable timestamp.
	Date *time.Time
	// DedupIndex disambiguates comments sharing author and timestamp:
	// 0 for the first in document order, then 1, 2, ...
	DedupIndex int
	// ID is the stable identity string derived from author, timestamp and
	// DedupIndex. Identical across reparses of the same logical content.
	ID string

	// Level is the nesting depth from list indentation markup, 0 for
	// top-level comments.
	Level int
	// IndentMarkers are the markers as found, outermost first (":*" for a
	// dd inside a ul inside a dl is "::*"... as rendered).
	IndentMarkers string
	// NormalizedMarkers are IndentMarkers after the wiki's indentation
	// policy is applied: with unify, mixed markers at one depth collapse
	// to the preferred one; with mimic they are untouched.
	NormalizedMarkers string

	// Text is the extracted comment text without the signature. Empty for
	// comments whose whole content sits in quote or moved-discussion
	// wrappers; such comments still participate in the tree.
	Text string

	// Unsigned marks authorship recovered from an unsigned template.
	Unsigned bool
	// IsOwn is true when the current viewer authored the comment.
	IsOwn bool
	// IsToMe is true when the viewer is linked or @-mentioned in the body.
	IsToMe bool

	// IsNew and IsSeen are produced by visit classification.
	IsNew  bool
	IsSeen bool

	// Index is the comment's position among all comments in document order.
	Index int

	Parent   *Comment
	Children []*Comment
	Section  *Section

	// Signature is the located signature this comment was built from.
	Signature *Signature
	// Nodes is the highlightable extent, the signature's block last.
	Nodes []*html.Node

	// resumeAfter is the preceding signature when this comment shares its
	// block with another; extraction starts after that signature's end.
	resumeAfter *Signature
}

// buildComments turns located signatures into Comments with extent, level
// and text. A signature whose extent cannot be computed is skipped; one bad
// signature never aborts the rest of the page.
func (s *Session) buildComments(sigs []*Signature) []*Comment {
	// Every signature's block, to stop extent walks at neighbours.
	sigBlocks := make(map[*html.Node]int)
	for _, sig := range sigs {
		b := containerOf(sig.TextNode)
		if b != nil {
			sigBlocks[b]++
		}
	}

	var comments []*Comment
	prevInBlock := make(map[*html.Node]*Signature)
	for _, sig := range sigs {
		block := containerOf(sig.TextNode)
		c := s.buildComment(sig, sigBlocks, prevInBlock[block])
		if block != nil {
			prevInBlock[block] = sig
		}
		if c == nil {
			s.Logger.Warn("parse: comment extent failed, skipping signature",
				"author", sig.Author)
			continue
		}
		c.Index = len(comments)
		comments = append(comments, c)
	}

	s.normalizeMarkers(comments)
	return comments
}

func (s *Session) buildComment(sig *Signature, sigBlocks map[*html.Node]int, prev *Signature) *Comment {
	block := containerOf(sig.TextNode)
	if block == nil {
		return nil
	}

	markers := s.indentMarkers(block)

	c := &Comment{
		Author:        sig.Author,
		Unsigned:      sig.Unsigned,
		Level:         len(markers),
		IndentMarkers: markers,
		Signature:     sig,
		resumeAfter:   prev,
	}
	if sig.Timestamp != nil {
		d := sig.Timestamp.Time
		c.Date = &d
	}

	// Extent: the signature block plus preceding siblings that belong to
	// the same comment. Stop at headings, closed wrappers, other comments'
	// blocks, and anything containing another signature.
	nodes := []*html.Node{block}
	if sigBlocks[block] == 1 {
		for prev := block.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.TextNode {
				if strings.TrimSpace(prev.Data) == "" {
					continue
				}
				break
			}
			if prev.Type != html.ElementNode {
				continue
			}
			if headingLevel(prev) > 0 ||
				hasAnyClass(prev, s.Config.ClosedDiscussionClasses) ||
				hasAnyClass(prev, s.Config.ClosedStartClasses) ||
				hasAnyClass(prev, s.Config.ClosedEndClasses) ||
				s.containsSignatureBlock(prev, sigBlocks) {
				break
			}
			nodes = append([]*html.Node{prev}, nodes...)
		}
	}
	c.Nodes = nodes

	c.Text = s.extractText(c)
	c.IsOwn = s.Viewer != "" && c.Author == s.Viewer
	c.IsToMe = s.Viewer != "" && !c.IsOwn && s.mentionsViewer(c)
	return c
}

// containsSignatureBlock reports whether any signature block sits in n's
// subtree.
func (s *Session) containsSignatureBlock(n *html.Node, sigBlocks map[*html.Node]int) bool {
	for b := range sigBlocks {
		if hasAncestor(b, n) {
			return true
		}
	}
	return false
}

// indentMarkers collects the list markers enclosing block, outermost first.
func (s *Session) indentMarkers(block *html.Node) string {
	var rev []byte
	for p := block; p != nil; p = p.Parent {
		if m, ok := listMarker(p); ok {
			rev = append(rev, m)
		}
	}
	// Reverse to outermost-first.
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return string(rev)
}

// extractText collects the comment body, excluding the signature and any
// quoted material. In a block shared with a preceding comment, content up
// to and including that comment's signature is skipped.
func (s *Session) extractText(c *Comment) string {
	sig := c.Signature
	start := sig.startNode()
	stopped := false
	skipping := c.resumeAfter != nil
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if stopped {
			return
		}
		if n == start || n == sig.AuthorLink || n == sig.TextNode {
			stopped = true
			return
		}
		if skipping {
			if n == c.resumeAfter.TextNode {
				skipping = false
				if m := c.resumeAfter.Timestamp; m != nil &&
					n.Type == html.TextNode && m.End <= len(n.Data) {
					b.WriteString(n.Data[m.End:])
				}
				return
			}
			for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
				walk(ch)
			}
			return
		}
		if n.Type == html.ElementNode && hasAnyClass(n, s.Config.QuoteClasses) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	for _, n := range c.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}

// mentionsViewer reports whether the comment body links or @-mentions the
// current viewer.
func (s *Session) mentionsViewer(c *Comment) bool {
	if strings.Contains(c.Text, "@"+s.Viewer) {
		return true
	}
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found || n == c.Signature.AuthorLink {
			return
		}
		if n.Type == html.ElementNode && s.isUserLink(n) &&
			s.authorFromLink(n) == s.Viewer {
			found = true
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	for _, n := range c.Nodes {
		walk(n)
	}
	return found
}

// normalizeMarkers applies the indentation policy across the whole page:
// with unify, the markers seen at each depth are collapsed to the preferred
// one; with mimic, markers stay exactly as found.
func (s *Session) normalizeMarkers(comments []*Comment) {
	if s.Config.IndentationPolicy == wiki.IndentMimic {
		for _, c := range comments {
			c.NormalizedMarkers = c.IndentMarkers
		}
		return
	}

	// Marker sets per depth, page-wide.
	var seen []map[byte]bool
	for _, c := range comments {
		for d := 0; d < len(c.IndentMarkers); d++ {
			for len(seen) <= d {
				seen = append(seen, map[byte]bool{})
			}
			seen[d][c.IndentMarkers[d]] = true
		}
	}

	preferred := make([]byte, len(seen))
	for d, set := range seen {
		var chars []byte
		for ch := range set {
			chars = append(chars, ch)
		}
		preferred[d] = s.Config.UnifyMarker(string(chars))
	}

	for _, c := range comments {
		norm := make([]byte, len(c.IndentMarkers))
		for d := range norm {
			norm[d] = preferred[d]
		}
		c.NormalizedMarkers = string(norm)
	}
}
