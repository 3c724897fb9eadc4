// Package parse turns rendered talk-page HTML into a structured model of
// comments, sections, and reply threads.
//
// The pipeline walks the content tree once per page: locate signatures
// (author link + timestamp), grow each into a comment with extent and
// nesting level, assign deterministic identities, build the section
// hierarchy, and infer the reply tree. All state lives on a Session
// constructed per parse; the same code runs identically wherever the
// content tree came from.
package parse

import (
	"io"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/jwbth/talkpage/timestamp"
	"github.com/jwbth/talkpage/wiki"
)

// Session carries everything one parse needs: wiki configuration, the
// timestamp matcher, the current viewer, and event hooks. Create one per
// page parse; a Session is not safe for concurrent use.
type Session struct {
	Config     *wiki.Config
	Timestamps *timestamp.Parser
	// Viewer is the current user's name; it drives IsOwn and IsToMe.
	Viewer string
	// RecurseClosed makes the signature scan descend into closed
	// discussion wrappers instead of excluding their content.
	RecurseClosed bool
	Logger        *slog.Logger
	Events        *Events

	userPrefixes []string
}

// Option customises a Session.
type Option func(*Session)

// WithViewer sets the current user's name.
func WithViewer(name string) Option { return func(s *Session) { s.Viewer = name } }

// WithRecurseClosed includes closed sub-discussions in the signature scan.
func WithRecurseClosed() Option { return func(s *Session) { s.RecurseClosed = true } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.Logger = l } }

// NewSession builds a parse session for one wiki.
func NewSession(cfg *wiki.Config, opts ...Option) (*Session, error) {
	ts, err := cfg.TimestampParser()
	if err != nil {
		return nil, err
	}
	s := &Session{
		Config:       cfg,
		Timestamps:   ts,
		Logger:       slog.Default(),
		Events:       &Events{},
		userPrefixes: cfg.UserLinkPrefixes(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Result is the structured model of one parsed page.
type Result struct {
	Comments []*Comment
	Sections []*Section
	Threads  []*Thread
}

// Parse runs the full pipeline over a parsed HTML document or fragment.
func (s *Session) Parse(doc *html.Node) (*Result, error) {
	root := contentRoot(doc)
	if root == nil {
		return nil, ErrNoContent
	}

	sigs := s.findSignatures(root)
	comments := s.buildComments(sigs)
	s.assignIdentity(comments)

	res := &Result{Comments: comments}
	s.Events.fireCommentsBuilt(res)

	order := orderIndex(root)
	res.Sections = s.buildSections(root)
	s.assignSections(comments, res.Sections, order)
	res.Threads = s.buildTree(comments)
	s.Events.fireSectionsBuilt(res)

	s.Logger.Debug("parse: page parsed",
		"comments", len(comments),
		"sections", len(res.Sections),
		"threads", len(res.Threads))
	return res, nil
}

// ParseHTML parses raw rendered HTML and runs the pipeline.
func (s *Session) ParseHTML(r io.Reader) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return s.Parse(doc)
}

// contentRoot finds the rendered content container, falling back to the
// document itself for fragments.
func contentRoot(doc *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if hasClass(n, "mw-parser-output") {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if found != nil {
		return found
	}
	return doc
}
