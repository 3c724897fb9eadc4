// Package wiki holds the per-wiki configuration the discussion engine is
// parameterized by: the timestamp grammar, user namespace aliases,
// indentation policy, template and class tables, and a small set of
// strategy hooks with fixed signatures. A Config is built once at startup
// and injected into every parse; nothing in the engine reads global state.
package wiki

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/jwbth/talkpage/timestamp"
)

// IndentationPolicy says how mixed indentation markers at one logical depth
// are treated when comment levels are computed.
type IndentationPolicy string

const (
	// IndentUnify normalizes mixed markers per the preference order.
	IndentUnify IndentationPolicy = "unify"
	// IndentMimic preserves markers exactly as found.
	IndentMimic IndentationPolicy = "mimic"
)

// Hooks are the per-wiki strategy functions. All are optional; nil means
// the default behaviour. They are plain functions injected at startup,
// never patched in at runtime.
type Hooks struct {
	// RejectNode vetoes signature detection under a node the class tables
	// cannot describe (e.g. structural quirks of one wiki's templates).
	RejectNode func(n *html.Node) bool
	// AreNewTopicsOnTop reports whether new sections are prepended rather
	// than appended on this page.
	AreNewTopicsOnTop func(pageTitle string) bool
	// TransformSummary rewrites an edit summary before it is submitted.
	TransformSummary func(summary string) string
}

// Config is the full per-wiki parameter table.
type Config struct {
	Name string `yaml:"name"`

	// UserNamespaces are the namespace aliases whose links identify an
	// author ("User", "User talk", localized forms).
	UserNamespaces []string `yaml:"user_namespaces"`
	// ContribsPage identifies the contributions special page, which links
	// to unregistered authors ("Special:Contributions").
	ContribsPage string `yaml:"contribs_page"`

	Timestamp timestamp.Config `yaml:"timestamp"`

	// IndentationChars are the wikitext indentation markers in use.
	IndentationChars string `yaml:"indentation_chars"`
	// IndentationPolicy selects unify or mimic handling.
	IndentationPolicy IndentationPolicy `yaml:"indentation_policy"`
	// IndentationPreference orders markers for the unify policy; earlier
	// wins (":*#" means ":" beats "*" beats "#").
	IndentationPreference string `yaml:"indentation_preference"`

	// UnsignedClasses mark rendered unsigned-comment templates; the author
	// is read from the first user link inside, at lower confidence.
	UnsignedClasses []string `yaml:"unsigned_classes"`
	// ClosedDiscussionClasses wrap closed or archived discussions whose
	// content is excluded from top-level signature search.
	ClosedDiscussionClasses []string `yaml:"closed_discussion_classes"`
	// ClosedStartClasses and ClosedEndClasses mark templates that come in
	// open/close pairs rendered as sibling elements. Content between a
	// start marker and its matching end marker (nesting tracked by depth)
	// is treated like a closed discussion.
	ClosedStartClasses []string `yaml:"closed_start_classes"`
	ClosedEndClasses   []string `yaml:"closed_end_classes"`
	// NoSignatureClasses is the denylist of wrappers (navboxes, metadata
	// banners) whose content never contains real signatures.
	NoSignatureClasses []string `yaml:"no_signature_classes"`
	// QuoteClasses wrap quoted material; text inside belongs to the quoted
	// comment, not the quoting one.
	QuoteClasses []string `yaml:"quote_classes"`

	// BotAntipatterns suppress signatures of decorative bot links.
	BotAntipatterns []string `yaml:"bot_antipatterns"`
	// ArchivePrefixes identify archive subpages by title prefix.
	ArchivePrefixes []string `yaml:"archive_prefixes"`

	// NewTopicsOnTop is the static default when the hook is nil.
	NewTopicsOnTop bool `yaml:"new_topics_on_top"`

	Hooks Hooks `yaml:"-"`

	botRes      []*regexp.Regexp
	botCompiled bool
}

// Default returns a Config approximating an English-language wiki.
func Default() *Config {
	cfg := &Config{
		Name:           "en",
		UserNamespaces: []string{"User", "User talk"},
		ContribsPage:   "Special:Contributions",
		Timestamp: timestamp.Config{
			Format: "H:i, j F Y (T)",
			Months: []string{
				"January", "February", "March", "April", "May", "June",
				"July", "August", "September", "October", "November", "December",
			},
			TimezoneOffsets: map[string]int{"UTC": 0},
		},
		IndentationChars:      ":*#",
		IndentationPolicy:     IndentUnify,
		IndentationPreference: ":*#",
		UnsignedClasses:       []string{"autosigned", "unsigned"},
		ClosedDiscussionClasses: []string{
			"boilerplate", "archived", "cd-closed",
		},
		ClosedStartClasses: []string{"cd-closed-start"},
		ClosedEndClasses:   []string{"cd-closed-end"},
		NoSignatureClasses: []string{
			"navbox", "metadata", "mw-references-wrap", "reference-text", "cd-no-signature",
		},
		QuoteClasses:    []string{"talkquote", "quotebox"},
		BotAntipatterns: []string{`(?i)bot\b`},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML config file and fills gaps from Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("wiki: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IndentationChars == "" {
		c.IndentationChars = ":*#"
	}
	if c.IndentationPolicy == "" {
		c.IndentationPolicy = IndentUnify
	}
	if c.IndentationPreference == "" {
		c.IndentationPreference = c.IndentationChars
	}
	if c.ContribsPage == "" {
		c.ContribsPage = "Special:Contributions"
	}
}

func (c *Config) compile() error {
	c.botRes = c.botRes[:0]
	c.botCompiled = true
	var firstErr error
	for _, p := range c.BotAntipatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("wiki: bot antipattern %q: %w", p, err)
			}
			continue
		}
		c.botRes = append(c.botRes, re)
	}
	return firstErr
}

// TimestampParser builds the timestamp parser for this wiki.
func (c *Config) TimestampParser() (*timestamp.Parser, error) {
	return timestamp.New(c.Timestamp)
}

// IsBotName reports whether a username matches a bot antipattern. On a
// hand-built Config the patterns compile lazily; a bad pattern is logged
// and skipped, the remaining patterns still apply.
func (c *Config) IsBotName(name string) bool {
	if !c.botCompiled {
		if err := c.compile(); err != nil {
			slog.Warn("wiki: bot antipatterns", "error", err)
		}
	}
	for _, re := range c.botRes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// RejectNode applies the hook; nil hook rejects nothing.
func (c *Config) RejectNode(n *html.Node) bool {
	return c.Hooks.RejectNode != nil && c.Hooks.RejectNode(n)
}

// AreNewTopicsOnTop applies the hook, falling back to the static default.
func (c *Config) AreNewTopicsOnTop(pageTitle string) bool {
	if c.Hooks.AreNewTopicsOnTop != nil {
		return c.Hooks.AreNewTopicsOnTop(pageTitle)
	}
	return c.NewTopicsOnTop
}

// TransformSummary applies the hook; nil hook is the identity.
func (c *Config) TransformSummary(summary string) string {
	if c.Hooks.TransformSummary != nil {
		return c.Hooks.TransformSummary(summary)
	}
	return summary
}

// IsArchiveTitle reports whether the page title matches an archive prefix.
func (c *Config) IsArchiveTitle(title string) bool {
	for _, p := range c.ArchivePrefixes {
		if strings.HasPrefix(title, p) {
			return true
		}
	}
	return false
}

// UserLinkPrefixes lists the wiki-relative href prefixes that identify an
// author link, namespace forms first, contributions page last.
func (c *Config) UserLinkPrefixes() []string {
	var out []string
	for _, ns := range c.UserNamespaces {
		out = append(out, "/wiki/"+strings.ReplaceAll(ns, " ", "_")+":")
	}
	out = append(out, "/wiki/"+strings.ReplaceAll(c.ContribsPage, " ", "_")+"/")
	return out
}

// UnifyMarker returns the preferred marker for a set of indentation markers
// seen at one logical depth, per the preference order.
func (c *Config) UnifyMarker(seen string) byte {
	for i := 0; i < len(c.IndentationPreference); i++ {
		ch := c.IndentationPreference[i]
		if strings.IndexByte(seen, ch) != -1 {
			return ch
		}
	}
	if seen != "" {
		return seen[0]
	}
	return ':'
}
