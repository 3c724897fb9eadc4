package store

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/jwbth/talkpage/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return &Store{DB: db}
}

func TestPageUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Page{Title: "Talk:Alpha", PageID: 42, RevID: 100, LastChecked: 1700000000}
	if err := s.UpsertPage(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.RevID = 101
	if err := s.UpsertPage(ctx, p); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	got, err := s.GetPage(ctx, "Talk:Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.RevID != 101 {
		t.Errorf("page: %+v", got)
	}

	missing, err := s.GetPage(ctx, "Talk:Nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("unknown page: %+v", missing)
	}

	pages, err := s.ListPages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Errorf("pages: %d", len(pages))
	}
}

func TestVisitsReplaceAndLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.ReplaceVisits(ctx, "Talk:Alpha", []int64{100, 200, 300}); err != nil {
		t.Fatal(err)
	}
	// Replace drops the old log entirely.
	if err := s.ReplaceVisits(ctx, "Talk:Alpha", []int64{200, 300, 400}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Visits(ctx, "Talk:Alpha")
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{200, 300, 400}
	if len(got) != len(want) {
		t.Fatalf("visits: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visits: %v, want %v", got, want)
		}
	}
}

func TestAllVisits(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.ReplaceVisits(ctx, "Talk:Alpha", []int64{100, 200}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceVisits(ctx, "Talk:Beta", []int64{300}); err != nil {
		t.Fatal(err)
	}

	all, err := s.AllVisits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("pages: %v", all)
	}
	if got := all["Talk:Alpha"]; len(got) != 2 || got[0] != 100 || got[1] != 200 {
		t.Errorf("alpha visits: %v", got)
	}
	if got := all["Talk:Beta"]; len(got) != 1 || got[0] != 300 {
		t.Errorf("beta visits: %v", got)
	}
}

func TestSeenMarkAndPrune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.MarkSeen(ctx, "c1", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSeen(ctx, "c2", 900); err != nil {
		t.Fatal(err)
	}
	if err := s.PruneSeen(ctx, 500); err != nil {
		t.Fatal(err)
	}

	seen, err := s.Seen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := seen["c1"]; ok {
		t.Error("c1 should be pruned")
	}
	if seen["c2"] != 900 {
		t.Errorf("c2: %v", seen)
	}
}

func TestCommentIndex(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ts := int64(1700000000)
	c := &Comment{
		Page:      "Talk:Alpha",
		CommentID: "20240101T1200_Alice",
		Author:    "Alice",
		Section:   "Naming",
		CommentTS: &ts,
		IsNew:     true,
		Snippet:   "I think we should rename this.",
		FirstSeen: 1700000100,
	}
	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := s.HasComment(ctx, "Talk:Alpha", "20240101T1200_Alice")
	if err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}
	ok, err = s.HasComment(ctx, "Talk:Alpha", "nope")
	if err != nil || ok {
		t.Fatalf("has missing: %v %v", ok, err)
	}

	// Reclassification keeps first_seen.
	c.IsNew = false
	c.FirstSeen = 9999999999
	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, err := s.CommentsForPage(ctx, "Talk:Alpha", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("comments: %d", len(got))
	}
	if got[0].IsNew {
		t.Error("reclassification not applied")
	}
	if got[0].FirstSeen != 1700000100 {
		t.Errorf("first_seen overwritten: %d", got[0].FirstSeen)
	}

	onlyNew, err := s.CommentsForPage(ctx, "Talk:Alpha", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyNew) != 0 {
		t.Errorf("only-new: %d", len(onlyNew))
	}
}

func TestSearchComments(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ts1, ts2 := int64(100), int64(200)
	for _, c := range []*Comment{
		{Page: "Talk:Alpha", CommentID: "a", Author: "Alice", Snippet: "renaming proposal", CommentTS: &ts1, FirstSeen: 1},
		{Page: "Talk:Beta", CommentID: "b", Author: "Bob", Snippet: "merge discussion", CommentTS: &ts2, FirstSeen: 2},
	} {
		if err := s.UpsertComment(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SearchComments(ctx, "renam", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CommentID != "a" {
		t.Errorf("search: %+v", got)
	}

	got, err = s.SearchComments(ctx, "Bob", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CommentID != "b" {
		t.Errorf("search author: %+v", got)
	}
}
