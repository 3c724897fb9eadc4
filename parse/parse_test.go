package parse

import (
	"strings"
	"testing"

	"github.com/jwbth/talkpage/wiki"
)

const pageHTML = `<div class="mw-parser-output">
<h2><span class="mw-headline">Topic one</span></h2>
<p>Opening remarks. <a href="/wiki/User:Alice">Alice</a> (<a href="/wiki/User_talk:Alice">talk</a>) 14:02, 1 January 2024 (UTC)</p>
<dl><dd>First reply. <a href="/wiki/User:Bob">Bob</a> 14:30, 1 January 2024 (UTC)
<dl><dd>Nested reply to <a href="/wiki/User:Bob">Bob</a>. <a href="/wiki/User:Alice">Alice</a> 15:00, 1 January 2024 (UTC)</dd></dl>
</dd></dl>
<ul><li>Bulleted reply. <a href="/wiki/User:Carol">Carol</a> 15:10, 1 January 2024 (UTC)</li></ul>
<h2><span class="mw-headline">Topic two</span></h2>
<p>Another topic. <a href="/wiki/User:Bob">Bob</a> 16:00, 1 January 2024 (UTC)</p>
</div>`

func testSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(wiki.Default(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func parsePage(t *testing.T, s *Session, page string) *Result {
	t.Helper()
	res, err := s.ParseHTML(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestParseBasicPage(t *testing.T) {
	s := testSession(t, WithViewer("Bob"))
	res := parsePage(t, s, pageHTML)

	if len(res.Comments) != 5 {
		t.Fatalf("comments = %d, want 5", len(res.Comments))
	}
	if len(res.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(res.Sections))
	}

	c := res.Comments[0]
	if c.Author != "Alice" {
		t.Errorf("author = %q", c.Author)
	}
	if c.Date == nil || c.Date.Format("2006-01-02 15:04") != "2024-01-01 14:02" {
		t.Errorf("date = %v", c.Date)
	}
	if c.Level != 0 {
		t.Errorf("level = %d, want 0", c.Level)
	}
	if c.Text != "Opening remarks." {
		t.Errorf("text = %q", c.Text)
	}

	if res.Comments[1].Level != 1 || res.Comments[2].Level != 2 {
		t.Errorf("reply levels = %d, %d, want 1, 2",
			res.Comments[1].Level, res.Comments[2].Level)
	}
}

func TestIdentityStability(t *testing.T) {
	ids := func() []string {
		s := testSession(t)
		res := parsePage(t, s, pageHTML)
		var out []string
		for _, c := range res.Comments {
			out = append(out, c.ID)
		}
		return out
	}

	first, second := ids(), ids()
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("id[%d] differs: %q vs %q", i, first[i], second[i])
		}
	}
	if first[0] != "20240101T1402_Alice" {
		t.Errorf("id = %q", first[0])
	}
}

func TestDedupIndexOrdering(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>First. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<p>Second. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<p>Third. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 3 {
		t.Fatalf("comments = %d, want 3", len(res.Comments))
	}
	for i, c := range res.Comments {
		if c.DedupIndex != i {
			t.Errorf("dedupIndex[%d] = %d, want %d", i, c.DedupIndex, i)
		}
	}
	if res.Comments[0].ID == res.Comments[1].ID ||
		res.Comments[1].ID == res.Comments[2].ID {
		t.Error("colliding comments must get distinct IDs")
	}
}

func TestParentInference(t *testing.T) {
	s := testSession(t)
	res := parsePage(t, s, pageHTML)

	alice, bob, nested, carol, bob2 :=
		res.Comments[0], res.Comments[1], res.Comments[2], res.Comments[3], res.Comments[4]

	if bob.Parent != alice {
		t.Error("first reply's parent should be the opening comment")
	}
	if nested.Parent != bob {
		t.Error("nested reply's parent should be the first reply")
	}
	if carol.Parent != alice {
		t.Error("sibling reply's parent should be the opening comment")
	}
	if bob2.Parent != nil {
		t.Error("new topic's comment must be top-level")
	}

	if len(res.Threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(res.Threads))
	}
	if res.Threads[0].Root != alice || res.Threads[0].Size != 4 {
		t.Errorf("thread[0] root=%s size=%d", res.Threads[0].Root.Author, res.Threads[0].Size)
	}
	if res.Threads[1].Root != bob || res.Threads[1].Size != 2 {
		t.Errorf("thread[1] root=%s size=%d", res.Threads[1].Root.Author, res.Threads[1].Size)
	}
}

func TestSectionAssignment(t *testing.T) {
	s := testSession(t)
	res := parsePage(t, s, pageHTML)

	one, two := res.Sections[0], res.Sections[1]
	if one.Headline != "Topic one" || two.Headline != "Topic two" {
		t.Fatalf("headlines = %q, %q", one.Headline, two.Headline)
	}
	if len(one.Comments) != 1 || one.Comments[0].Author != "Alice" {
		t.Errorf("topic one top-level comments wrong: %v", one.Comments)
	}
	if len(two.Comments) != 1 || two.Comments[0].Author != "Bob" {
		t.Errorf("topic two top-level comments wrong: %v", two.Comments)
	}
	if one.OldestCommentID != "20240101T1402_Alice" {
		t.Errorf("oldest = %q", one.OldestCommentID)
	}
	for _, c := range res.Comments[:4] {
		if c.Section != one {
			t.Errorf("comment %s in wrong section", c.Author)
		}
	}
}

func TestSectionFuzzyMatchSurvivesRename(t *testing.T) {
	s := testSession(t)
	res := parsePage(t, s, pageHTML)

	key := res.Sections[0].Key()
	key.Headline = "Topic one (clarified)"

	if got := FindSection(res.Sections, key); got != res.Sections[0] {
		t.Fatalf("renamed section did not resolve, got %v", got)
	}
}

func TestFindSectionNoMatch(t *testing.T) {
	s := testSession(t)
	res := parsePage(t, s, pageHTML)

	key := Key{Headline: "Completely different", Index: 40, OldestCommentID: "nope"}
	if got := FindSection(res.Sections, key); got != nil {
		t.Fatalf("expected no match, got %q", got.Headline)
	}
}

func TestUnifyNormalizesMixedMarkers(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Opening. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<dl><dd>Colon reply. <a href="/wiki/User:Bob">Bob</a> 14:10, 1 January 2024 (UTC)</dd></dl>
<ul><li>Star reply. <a href="/wiki/User:Carol">Carol</a> 14:20, 1 January 2024 (UTC)</li></ul>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 3 {
		t.Fatalf("comments = %d, want 3", len(res.Comments))
	}
	colon, star := res.Comments[1], res.Comments[2]
	if colon.IndentMarkers != ":" || star.IndentMarkers != "*" {
		t.Fatalf("raw markers = %q, %q", colon.IndentMarkers, star.IndentMarkers)
	}
	if colon.NormalizedMarkers != ":" || star.NormalizedMarkers != ":" {
		t.Errorf("normalized = %q, %q, want both %q",
			colon.NormalizedMarkers, star.NormalizedMarkers, ":")
	}
	if colon.Level != star.Level {
		t.Errorf("levels differ: %d vs %d", colon.Level, star.Level)
	}
}

func TestMimicPreservesMarkers(t *testing.T) {
	cfg := wiki.Default()
	cfg.IndentationPolicy = wiki.IndentMimic
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	page := `<div class="mw-parser-output">
<ul><li>Star reply. <a href="/wiki/User:Carol">Carol</a> 14:20, 1 January 2024 (UTC)</li></ul>
</div>`
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 {
		t.Fatalf("comments = %d", len(res.Comments))
	}
	if res.Comments[0].NormalizedMarkers != "*" {
		t.Errorf("mimic should keep %q, got %q", "*", res.Comments[0].NormalizedMarkers)
	}
}

func TestEmptyCommentSurvives(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Opening. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<dl><dd><div class="talkquote">moved from elsewhere</div> <a href="/wiki/User:Dan">Dan</a> 17:00, 1 January 2024 (UTC)</dd></dl>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(res.Comments))
	}
	empty := res.Comments[1]
	if empty.Text != "" {
		t.Errorf("text = %q, want empty", empty.Text)
	}
	if empty.ID == "" {
		t.Error("empty comment still needs an identity")
	}
	if empty.Parent != res.Comments[0] {
		t.Error("empty comment still participates in the tree")
	}
}

func TestUnsignedTemplate(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Some words without a signature. <span class="autosigned">&#8212; Preceding unsigned comment added by <a href="/wiki/User:Eve">Eve</a> 12:00, 1 January 2024 (UTC)</span></p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(res.Comments))
	}
	c := res.Comments[0]
	if c.Author != "Eve" || !c.Unsigned {
		t.Errorf("author = %q, unsigned = %v", c.Author, c.Unsigned)
	}
	if c.Date == nil {
		t.Error("timestamp inside the template should parse")
	}
	if c.Text != "Some words without a signature." {
		t.Errorf("text = %q", c.Text)
	}
}

func TestUndatedCommentLinkable(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>No date here. <span class="autosigned">unsigned comment by <a href="/wiki/User:Eve">Eve</a></span></p>
<p>Also none. <span class="autosigned">unsigned comment by <a href="/wiki/User:Eve">Eve</a></span></p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(res.Comments))
	}
	a, b := res.Comments[0], res.Comments[1]
	if a.Date != nil || b.Date != nil {
		t.Fatal("expected undated comments")
	}
	if a.ID == b.ID || a.ID == "" {
		t.Errorf("undated ids must be distinct and non-empty: %q, %q", a.ID, b.ID)
	}
}

func TestDenylistedClassSkipped(t *testing.T) {
	page := `<div class="mw-parser-output">
<div class="navbox">Box content <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</div>
<p>Real comment. <a href="/wiki/User:Bob">Bob</a> 15:00, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 1 || res.Comments[0].Author != "Bob" {
		t.Fatalf("want only Bob's comment, got %d", len(res.Comments))
	}
}

func TestClosedDiscussionWrapperExcluded(t *testing.T) {
	page := `<div class="mw-parser-output">
<div class="boilerplate">Closed. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</div>
<p>Open comment. <a href="/wiki/User:Bob">Bob</a> 15:00, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 || res.Comments[0].Author != "Bob" {
		t.Fatalf("closed content leaked: %d comments", len(res.Comments))
	}

	// Recursing is an explicit opt-in.
	s2 := testSession(t, WithRecurseClosed())
	res2 := parsePage(t, s2, page)
	if len(res2.Comments) != 2 {
		t.Fatalf("recurse-closed should find both, got %d", len(res2.Comments))
	}
}

func TestPairedClosedMarkers(t *testing.T) {
	page := `<div class="mw-parser-output">
<p class="cd-closed-start"></p>
<p>Inside closed. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<p class="cd-closed-start"></p>
<p>Nested closed. <a href="/wiki/User:Dan">Dan</a> 14:05, 1 January 2024 (UTC)</p>
<p class="cd-closed-end"></p>
<p>Still closed. <a href="/wiki/User:Carol">Carol</a> 14:10, 1 January 2024 (UTC)</p>
<p class="cd-closed-end"></p>
<p>Open again. <a href="/wiki/User:Bob">Bob</a> 15:00, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 || res.Comments[0].Author != "Bob" {
		t.Fatalf("paired markers not honoured: %d comments", len(res.Comments))
	}
}

func TestBotSignatureSuppressed(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Automated notice. <a href="/wiki/User:ArchiveBot">ArchiveBot</a> 13:00, 1 January 2024 (UTC)</p>
<p>Human comment. <a href="/wiki/User:Bob">Bob</a> 15:00, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 || res.Comments[0].Author != "Bob" {
		t.Fatalf("bot signature not suppressed: %d comments", len(res.Comments))
	}
}

func TestIsOwnAndIsToMe(t *testing.T) {
	s := testSession(t, WithViewer("Bob"))
	res := parsePage(t, s, pageHTML)

	if !res.Comments[1].IsOwn {
		t.Error("Bob's reply should be own")
	}
	if res.Comments[0].IsOwn {
		t.Error("Alice's comment is not Bob's")
	}
	if !res.Comments[2].IsToMe {
		t.Error("nested reply links Bob, should be to-me")
	}
	if res.Comments[2].IsOwn {
		t.Error("nested reply is Alice's, not Bob's")
	}
}

func TestContribsLinkAuthor(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Anon remark. <a href="/wiki/Special:Contributions/203.0.113.7">203.0.113.7</a> 14:02, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 || res.Comments[0].Author != "203.0.113.7" {
		t.Fatalf("contribs author not extracted: %+v", res.Comments)
	}
}

func TestEventsFireInOrder(t *testing.T) {
	s := testSession(t)
	var order []string
	s.Events.OnCommentsBuilt(func(r *Result) {
		order = append(order, "comments")
		if len(r.Comments) == 0 {
			t.Error("comments hook fired before comments existed")
		}
	})
	s.Events.OnSectionsBuilt(func(r *Result) {
		order = append(order, "sections")
		if len(r.Sections) == 0 {
			t.Error("sections hook fired before sections existed")
		}
	})
	s.Events.OnClassified(func(r *Result) { order = append(order, "classified") })

	res := parsePage(t, s, pageHTML)
	s.Events.FireClassified(res)

	want := []string{"comments", "sections", "classified"}
	if len(order) != 3 {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}

func TestMultiParagraphExtent(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>First paragraph of a long comment.</p>
<p>Second paragraph. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 1 {
		t.Fatalf("comments = %d", len(res.Comments))
	}
	c := res.Comments[0]
	if len(c.Nodes) != 2 {
		t.Fatalf("extent nodes = %d, want 2", len(c.Nodes))
	}
	if !strings.Contains(c.Text, "First paragraph") ||
		!strings.Contains(c.Text, "Second paragraph.") {
		t.Errorf("text = %q", c.Text)
	}
}

func TestExtentStopsAtPreviousComment(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Older comment. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC)</p>
<p>Newer comment. <a href="/wiki/User:Bob">Bob</a> 15:00, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)
	if len(res.Comments) != 2 {
		t.Fatalf("comments = %d", len(res.Comments))
	}
	if strings.Contains(res.Comments[1].Text, "Older") {
		t.Errorf("newer comment swallowed the older one: %q", res.Comments[1].Text)
	}
}

func TestSignatureRunExcludedFromText(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>Remarks. <a href="/wiki/User:Alice">Alice</a> (<a href="/wiki/User_talk:Alice">talk</a> &#183; <a href="/wiki/Special:Contributions/Alice">contribs</a>) 14:02, 1 January 2024 (UTC)</p>
<dl><dd>Thanks <a href="/wiki/User:Bob">Bob</a>. <a href="/wiki/User:Alice">Alice</a> 15:00, 1 January 2024 (UTC)</dd></dl>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(res.Comments))
	}
	// The whole "Name (talk · contribs)" run is signature, not body.
	if res.Comments[0].Text != "Remarks." {
		t.Errorf("text = %q, want %q", res.Comments[0].Text, "Remarks.")
	}
	// A user mention ending the body stays in the text.
	if res.Comments[1].Text != "Thanks Bob." {
		t.Errorf("text = %q, want %q", res.Comments[1].Text, "Thanks Bob.")
	}
}

func TestSharedBlockTextSplit(t *testing.T) {
	page := `<div class="mw-parser-output">
<p>First body. <a href="/wiki/User:Alice">Alice</a> 14:02, 1 January 2024 (UTC) Second body. <a href="/wiki/User:Bob">Bob</a> 14:30, 1 January 2024 (UTC)</p>
</div>`
	s := testSession(t)
	res := parsePage(t, s, page)

	if len(res.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(res.Comments))
	}
	if res.Comments[0].Text != "First body." {
		t.Errorf("first text = %q", res.Comments[0].Text)
	}
	if res.Comments[1].Text != "Second body." {
		t.Errorf("second text = %q", res.Comments[1].Text)
	}
}
