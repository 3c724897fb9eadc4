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

func TestEntryUpsertAndLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := &Entry{
		ID:          "e1",
		Page:        "Talk:Alpha",
		Mode:        "reply",
		Target:      `{"commentId":"20240101T1200_Alice"}`,
		CommentText: "draft text",
		Summary:     "re",
		Watch:       true,
		SavedAt:     1700000000,
	}
	if err := s.UpsertEntry(ctx, e); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Upsert again with updated text.
	e.CommentText = "draft text, continued"
	e.SavedAt = 1700000060
	if err := s.UpsertEntry(ctx, e); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	got, err := s.EntriesForPage(ctx, "Talk:Alpha")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries: got %d, want 1", len(got))
	}
	if got[0].CommentText != "draft text, continued" {
		t.Errorf("CommentText: got %q", got[0].CommentText)
	}
	if !got[0].Watch {
		t.Error("Watch: got false, want true")
	}
	if got[0].SavedAt != 1700000060 {
		t.Errorf("SavedAt: got %d", got[0].SavedAt)
	}
}

func TestEntriesForPageScoping(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, e := range []*Entry{
		{ID: "a", Page: "Talk:Alpha", Mode: "reply", SavedAt: 2},
		{ID: "b", Page: "Talk:Alpha", Mode: "edit", SavedAt: 1},
		{ID: "c", Page: "Talk:Beta", Mode: "reply", SavedAt: 3},
	} {
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}

	got, err := s.EntriesForPage(ctx, "Talk:Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}
	// Oldest first.
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order: got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertEntry(ctx, &Entry{ID: "x", Page: "p", Mode: "reply", SavedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEntry(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	got, err := s.EntriesForPage(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("entries after delete: %d", len(got))
	}
}

func TestPruneBefore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, e := range []*Entry{
		{ID: "old", Page: "p", Mode: "reply", SavedAt: 100},
		{ID: "new", Page: "p", Mode: "reply", SavedAt: 200},
	} {
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.PruneBefore(ctx, 150)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned: got %d, want 1", n)
	}
	got, err := s.EntriesForPage(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("remaining: %+v", got)
	}
}
