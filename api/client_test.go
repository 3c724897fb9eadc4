package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "parse" {
			t.Errorf("action = %q", got)
		}
		w.Write([]byte(`{"parse":{"title":"Talk:Alpha","pageid":42,"revid":1234,
			"text":"<div class=\"mw-parser-output\"><p>hi</p></div>"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	page, err := c.FetchParse(context.Background(), "Talk:Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Talk:Alpha" || page.PageID != 42 || page.RevID != 1234 {
		t.Errorf("page = %+v", page)
	}
	if !strings.Contains(page.HTML, "mw-parser-output") {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestFetchParseSuperseded(t *testing.T) {
	c := NewClient("http://unused.invalid")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A newer request for the same title lands while this response
		// is still being produced.
		c.latest.begin("parse:Talk:Alpha")
		w.Write([]byte(`{"parse":{"title":"Talk:Alpha","pageid":1,"revid":1,"text":""}}`))
	}))
	defer srv.Close()
	c.endpoint = srv.URL

	_, err := c.FetchParse(context.Background(), "Talk:Alpha")
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
}

func TestAPIRejectionClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchParse(context.Background(), "Talk:Nope")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if ae.Code != "missingtitle" {
		t.Errorf("code = %q", ae.Code)
	}
	if IsTransport(err) {
		t.Error("API rejection misclassified as transport")
	}
}

func TestTransportErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchParse(context.Background(), "Talk:Alpha")
	if !IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestFetchUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"userinfo":{"id":7,"name":"Alice","options":{
			"userjs-talkpage-visits":"packedvisits",
			"userjs-talkpage-seen":"packedseen",
			"userjs-talkpage-watched":"[\"Alpha\",\"Beta\"]"}}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ui, err := c.FetchUserInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ui.Name != "Alice" || ui.ID != 7 {
		t.Errorf("user = %+v", ui)
	}
	if ui.VisitsPacked != "packedvisits" || ui.SeenPacked != "packedseen" {
		t.Errorf("options = %q, %q", ui.VisitsPacked, ui.SeenPacked)
	}
	if len(ui.WatchedSections) != 2 || ui.WatchedSections[0] != "Alpha" {
		t.Errorf("watched = %v", ui.WatchedSections)
	}
}

func TestFetchPageExistence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{
			"normalized":[{"from":"talk:alpha","to":"Talk:Alpha"}],
			"pages":[
				{"title":"Talk:Alpha"},
				{"title":"Talk:Gone","missing":true}
			]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.FetchPageExistence(context.Background(), []string{"talk:alpha", "Talk:Gone"})
	if err != nil {
		t.Fatal(err)
	}
	// Keyed by the caller's spelling, not the normalized one.
	if !got["talk:alpha"] {
		t.Error("talk:alpha should exist")
	}
	if got["Talk:Gone"] {
		t.Error("Talk:Gone should be missing")
	}
}

func TestFetchPageExistenceEmpty(t *testing.T) {
	c := NewClient("http://unused.invalid")
	got, err := c.FetchPageExistence(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestSaveOption(t *testing.T) {
	var gotName, gotValue string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotName = r.PostForm.Get("optionname")
		gotValue = r.PostForm.Get("optionvalue")
		w.Write([]byte(`{"options":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.SaveOption(context.Background(), VisitsOptionName, "payload"); err != nil {
		t.Fatal(err)
	}
	if gotName != VisitsOptionName || gotValue != "payload" {
		t.Errorf("posted %q=%q", gotName, gotValue)
	}
}

func TestSaveOptionTooLargeLocally(t *testing.T) {
	c := NewClient("http://unused.invalid")
	big := strings.Repeat("x", OptionSizeLimit+1)
	err := c.SaveOption(context.Background(), VisitsOptionName, big)
	if !errors.Is(err, ErrOptionTooLarge) {
		t.Fatalf("err = %v, want ErrOptionTooLarge", err)
	}
}

func TestSaveOptionTooLargeFromWiki(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"toolong","info":"The value is too long."}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SaveOption(context.Background(), VisitsOptionName, "v")
	if !errors.Is(err, ErrOptionTooLarge) {
		t.Fatalf("err = %v, want ErrOptionTooLarge", err)
	}
}
