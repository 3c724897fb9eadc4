package parse

import (
	"fmt"
	"strings"
)

// Thread is a collapsible subtree of the reply tree, rooted at a comment
// with at least one reply. Threads carry UI collapse state only; identity
// lives on comments.
type Thread struct {
	Root *Comment
	// Size counts the comments in the subtree, root included.
	Size int
}

// assignIdentity gives every comment its deterministic ID. Dated comments
// get author + timestamp-to-the-minute plus a disambiguator counting
// earlier comments with the same pair in document order. Undated comments
// are keyed by author plus their ordinal among that author's undated
// comments, so they stay linkable too.
func (s *Session) assignIdentity(comments []*Comment) {
	dated := make(map[string]int)
	undated := make(map[string]int)

	for _, c := range comments {
		if c.Date == nil {
			ord := undated[c.Author]
			undated[c.Author]++
			c.DedupIndex = ord
			c.ID = fmt.Sprintf("%s_d%d", sanitizeID(c.Author), ord)
			continue
		}
		key := c.Author + "/" + c.Date.Format("200601021504")
		c.DedupIndex = dated[key]
		dated[key]++
		c.ID = c.Date.Format("20060102T1504") + "_" + sanitizeID(c.Author)
		if c.DedupIndex > 0 {
			c.ID += fmt.Sprintf("_%d", c.DedupIndex+1)
		}
	}
}

func sanitizeID(author string) string {
	return strings.ReplaceAll(author, " ", "_")
}

// buildTree infers parent/child links and threads. A comment's parent is
// the nearest preceding comment in its section with a strictly smaller
// level; with none, the comment is top-level. Indentation is a heuristic,
// not a structural reply marker, so misattribution on manually malformed
// pages is accepted.
func (s *Session) buildTree(comments []*Comment) []*Thread {
	var open []*Comment // candidates, ascending level
	var prevSection *Section

	for _, c := range comments {
		if c.Section != prevSection {
			// Parents never cross section boundaries.
			open = open[:0]
			prevSection = c.Section
		}

		for len(open) > 0 && open[len(open)-1].Level >= c.Level {
			open = open[:len(open)-1]
		}
		if len(open) > 0 {
			c.Parent = open[len(open)-1]
			c.Parent.Children = append(c.Parent.Children, c)
		}
		open = append(open, c)
	}

	// Section top-level comments, now that parents are known.
	for _, c := range comments {
		if c.Parent == nil && c.Section != nil {
			c.Section.Comments = append(c.Section.Comments, c)
		}
	}

	var threads []*Thread
	for _, c := range comments {
		if len(c.Children) > 0 {
			threads = append(threads, &Thread{Root: c, Size: subtreeSize(c)})
		}
	}
	return threads
}

func subtreeSize(c *Comment) int {
	n := 1
	for _, ch := range c.Children {
		n += subtreeSize(ch)
	}
	return n
}

// FindComment resolves a comment ID against a parsed comment list.
func FindComment(comments []*Comment, id string) *Comment {
	for _, c := range comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}
