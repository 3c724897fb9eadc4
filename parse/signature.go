package parse

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwbth/talkpage/timestamp"
)

// signatureScanLimit is how far back (in runes of rendered text) the author
// link may sit from its timestamp. Signatures are short; a link further away
// belongs to the comment body, not the signature.
const signatureScanLimit = 100

// Signature is one located author+timestamp pattern.
type Signature struct {
	// Author is the username the signature resolves to.
	Author string
	// AuthorLink is the user link element, nil for unsigned markers whose
	// wrapper carried no link (such signatures are dropped).
	AuthorLink *html.Node
	// StartNode is the first node of the signature run. In a
	// "Name (talk) timestamp" signature the nearest user link is the talk
	// link; StartNode is the user-page link before it, so text extraction
	// excludes the whole signature, not just its tail.
	StartNode *html.Node
	// TextNode holds the matched timestamp text; for unsigned markers it is
	// the wrapper element instead.
	TextNode *html.Node
	// Timestamp is nil when no timestamp could be parsed (possible for
	// unsigned markers only).
	Timestamp *timestamp.Match
	// Unsigned is true when the author came from an unsigned-comment
	// template rather than a wikitext signature. Lower confidence.
	Unsigned bool
}

// startNode is where text extraction stops: the run start when known,
// otherwise the author link, otherwise the timestamp node.
func (sig *Signature) startNode() *html.Node {
	if sig.StartNode != nil {
		return sig.StartNode
	}
	if sig.AuthorLink != nil {
		return sig.AuthorLink
	}
	return sig.TextNode
}

// findSignatures scans the content tree in document order and returns
// signatures, skipping denylisted wrappers and closed discussions.
func (s *Session) findSignatures(root *html.Node) []*Signature {
	var sigs []*Signature
	closedDepth := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasAnyClass(n, s.Config.NoSignatureClasses),
				s.Config.RejectNode(n):
				return
			case hasAnyClass(n, s.Config.ClosedStartClasses):
				closedDepth++
				return
			case hasAnyClass(n, s.Config.ClosedEndClasses):
				if closedDepth > 0 {
					closedDepth--
				}
				return
			case hasAnyClass(n, s.Config.ClosedDiscussionClasses):
				// Whole-subtree wrapper; content is excluded unless the
				// caller asked to recurse into closed sub-discussions.
				if !s.RecurseClosed {
					return
				}
			case hasAnyClass(n, s.Config.UnsignedClasses):
				if closedDepth == 0 {
					if sig := s.unsignedSignature(n); sig != nil {
						sigs = append(sigs, sig)
					}
				}
				return
			}
		}

		if n.Type == html.TextNode && closedDepth == 0 {
			sigs = append(sigs, s.textNodeSignatures(n)...)
			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return dedupeOverlapping(sigs)
}

// textNodeSignatures finds timestamp matches in one text node and pairs
// each with the nearest preceding author link within the scan limit.
func (s *Session) textNodeSignatures(n *html.Node) []*Signature {
	matches := s.Timestamps.FindAll(n.Data)
	if len(matches) == 0 {
		return nil
	}

	var out []*Signature
	prevEnd := -1
	for i := range matches {
		m := &matches[i]
		link, start := s.authorLinkBefore(n, m.Start, prevEnd)
		prevEnd = m.End
		if link == nil {
			continue
		}
		author := s.authorFromLink(link)
		if author == "" || s.Config.IsBotName(author) {
			continue
		}
		out = append(out, &Signature{
			Author:     author,
			AuthorLink: link,
			StartNode:  start,
			TextNode:   n,
			Timestamp:  m,
		})
	}
	return out
}

// sigItem is one flattened inline piece of a signature line.
type sigItem struct {
	node *html.Node
	text string // text length contribution for distance
	link bool
}

// authorLinkBefore walks backward from the timestamp position through the
// inline content of the enclosing block, looking for a user link within
// signatureScanLimit runes. prevEnd bounds the scan at the previous
// timestamp match in the same text node, so two adjacent signatures never
// share an author link. The second return is the first node of the
// signature run.
func (s *Session) authorLinkBefore(tsNode *html.Node, tsStart, prevEnd int) (*html.Node, *html.Node) {
	container := containerOf(tsNode)
	if container == nil {
		return nil, nil
	}

	var items []sigItem
	var flatten func(*html.Node)
	flatten = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			items = append(items, sigItem{node: n, text: nodeText(n, nil), link: true})
			return
		}
		if n.Type == html.TextNode {
			items = append(items, sigItem{node: n, text: n.Data})
			return
		}
		if isBlock(n) && n != container {
			// A nested block resets the signature line.
			items = append(items, sigItem{node: n})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			flatten(c)
		}
	}
	flatten(container)

	// Locate our text node, then scan backward.
	pos := -1
	for i, it := range items {
		if it.node == tsNode {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil, nil
	}

	if prevEnd >= 0 {
		// An earlier signature ends in this same text node; any link
		// further back belongs to that signature, not this match.
		return nil, nil
	}
	dist := len([]rune(items[pos].text[:min(tsStart, len(items[pos].text))]))

	for i := pos - 1; i >= 0 && dist <= signatureScanLimit; i-- {
		it := items[i]
		if it.node.Type == html.ElementNode && it.node.DataAtom != atom.A {
			// Nested block boundary.
			return nil, nil
		}
		if it.link && s.isUserLink(it.node) {
			author := s.authorFromLink(it.node)
			return it.node, s.extendSignatureRun(items, i, author, dist)
		}
		dist += len([]rune(it.text))
	}
	return nil, nil
}

// extendSignatureRun walks further back from the first user link of a
// signature over additional links to the same user and the separator text
// between them ("Name (talk)" renders as link, "(", link, ")"), returning
// the run's first node. Separator text alone never moves the start; a
// confirming same-user link must precede it, so a user mention ending the
// body ("thanks Bob. Alice 15:00...") stays in the comment text.
func (s *Session) extendSignatureRun(items []sigItem, linkPos int, author string, dist int) *html.Node {
	start := items[linkPos].node
	dist += len([]rune(items[linkPos].text))
	for i := linkPos - 1; i >= 0 && dist <= signatureScanLimit; i-- {
		it := items[i]
		switch {
		case it.link && s.isUserLink(it.node) && s.authorFromLink(it.node) == author:
			start = it.node
		case it.node.Type == html.TextNode && isSeparatorText(it.text):
			// Provisional; only a further same-user link extends the run.
		default:
			return start
		}
		dist += len([]rune(it.text))
	}
	return start
}

// isSeparatorText reports whether text holds no letters or digits.
func isSeparatorText(t string) bool {
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// unsignedSignature extracts author (and timestamp, when present) from a
// rendered unsigned-comment template wrapper.
func (s *Session) unsignedSignature(wrapper *html.Node) *Signature {
	var link *html.Node
	var findLink func(*html.Node)
	findLink = func(n *html.Node) {
		if link != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A && s.isUserLink(n) {
			link = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findLink(c)
		}
	}
	findLink(wrapper)
	if link == nil {
		return nil
	}

	author := s.authorFromLink(link)
	if author == "" || s.Config.IsBotName(author) {
		return nil
	}

	sig := &Signature{
		Author:     author,
		AuthorLink: link,
		TextNode:   wrapper,
		Unsigned:   true,
	}
	if m, ok := s.Timestamps.Parse(nodeText(wrapper, nil)); ok {
		sig.Timestamp = &m
	}
	return sig
}

// isUserLink reports whether the anchor targets a user page or the
// contributions page.
func (s *Session) isUserLink(a *html.Node) bool {
	href := attr(a, "href")
	for _, p := range s.userPrefixes {
		if strings.HasPrefix(href, p) {
			return true
		}
	}
	return false
}

// authorFromLink derives the username from a user link href.
func (s *Session) authorFromLink(a *html.Node) string {
	href := attr(a, "href")
	for _, p := range s.userPrefixes {
		if !strings.HasPrefix(href, p) {
			continue
		}
		name := strings.TrimPrefix(href, p)
		if i := strings.IndexAny(name, "?#"); i != -1 {
			name = name[:i]
		}
		// Subpage links ("User:Alice/sandbox") are not signatures.
		if i := strings.IndexByte(name, '/'); i != -1 {
			name = name[:i]
		}
		if dec, err := url.PathUnescape(name); err == nil {
			name = dec
		}
		return strings.ReplaceAll(name, "_", " ")
	}
	return ""
}

// dedupeOverlapping drops signatures whose timestamp spans overlap within
// one text node, keeping the longer match.
func dedupeOverlapping(sigs []*Signature) []*Signature {
	out := sigs[:0]
	for _, sig := range sigs {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.TextNode == sig.TextNode &&
				prev.Timestamp != nil && sig.Timestamp != nil &&
				sig.Timestamp.Start < prev.Timestamp.End {
				if sig.Timestamp.End-sig.Timestamp.Start > prev.Timestamp.End-prev.Timestamp.Start {
					out[len(out)-1] = sig
				}
				continue
			}
		}
		out = append(out, sig)
	}
	return out
}
