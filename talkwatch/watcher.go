// Package talkwatch is the talk-page observation daemon. It polls
// configured wiki pages through the action API, parses the rendered
// HTML into comment and section trees, classifies what is new since the
// previous visit, persists the visit log and comment index in SQLite,
// and emits new-comment events to sinks (stdout, webhook, callback).
package talkwatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jwbth/talkpage/api"
	"github.com/jwbth/talkpage/idgen"
	"github.com/jwbth/talkpage/parse"
	"github.com/jwbth/talkpage/talkwatch/event"
	"github.com/jwbth/talkpage/talkwatch/internal/sink"
	"github.com/jwbth/talkpage/talkwatch/internal/store"
	"github.com/jwbth/talkpage/visits"
	"github.com/jwbth/talkpage/wiki"
)

// Watcher is the top-level orchestrator: one per daemon instance.
type Watcher struct {
	cfg       *Config
	wiki      *wiki.Config
	session   *parse.Session
	client    *api.Client
	st        *store.Store
	sinkR     *sink.Router
	sanitizer *bluemonday.Policy
	logger    *slog.Logger

	// One page check at a time; the parse session and the visit log
	// read-modify-write are not concurrency safe.
	mu sync.Mutex
}

// New creates a Watcher from configuration, opening its database.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) (*Watcher, error) {
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("talkwatch: open store: %w", err)
	}
	w, err := assemble(cfg, st, logger, sinks...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return w, nil
}

func assemble(cfg *Config, st *store.Store, logger *slog.Logger, sinks ...Sink) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	wcfg := wiki.Default()
	if cfg.WikiConfig != "" {
		var err error
		wcfg, err = wiki.LoadFile(cfg.WikiConfig)
		if err != nil {
			return nil, fmt.Errorf("talkwatch: load wiki config: %w", err)
		}
	}

	session, err := parse.NewSession(wcfg,
		parse.WithViewer(cfg.Viewer),
		parse.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("talkwatch: parse session: %w", err)
	}

	apiOpts := []api.Option{api.WithLogger(logger)}
	if cfg.API.UserAgent != "" {
		apiOpts = append(apiOpts, api.WithUserAgent(cfg.API.UserAgent))
	}

	return &Watcher{
		cfg:       cfg,
		wiki:      wcfg,
		session:   session,
		client:    api.NewClient(cfg.API.Endpoint, apiOpts...),
		st:        st,
		sinkR:     sink.NewRouter(logger, sinks...),
		sanitizer: newSanitizer(),
		logger:    logger,
	}, nil
}

// newSanitizer builds the policy applied to fetched page HTML before
// parsing. The parser needs class attributes (content root, closed
// discussions, unsigned markers) and user-link hrefs, so those survive;
// scripts, styles and event handlers do not.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("div", "span", "section", "center")
	p.AllowAttrs("class", "id").Globally()
	return p
}

// Events exposes the parse hooks so embedders can subscribe before the
// first check runs.
func (w *Watcher) Events() *parse.Events {
	return w.session.Events
}

// Start runs an immediate check of all configured pages, then polls on
// the configured interval until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("talkwatch: starting",
		"pages", len(w.cfg.Pages), "poll", w.cfg.Poll, "viewer", w.cfg.Viewer)

	w.CheckAll(ctx)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	t := time.NewTicker(w.cfg.Poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.CheckAll(ctx)
		}
	}
}

// CheckAll checks every configured page. Failures are reported to sinks
// as page_error events and do not stop the sweep.
func (w *Watcher) CheckAll(ctx context.Context) {
	for _, title := range w.cfg.Pages {
		if _, err := w.CheckPage(ctx, title); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("talkwatch: check failed", "page", title, "error", err)
			w.sinkR.Send(ctx, event.Event{
				ID:         idgen.New(),
				Type:       event.TypePageError,
				Page:       title,
				Error:      err.Error(),
				ObservedAt: time.Now().Unix(),
			})
		}
	}
}

// Report summarizes one page check.
type Report struct {
	Page     string `json:"page"`
	RevID    int64  `json:"rev_id"`
	Comments int    `json:"comments"`
	Sections int    `json:"sections"`
	New      int    `json:"new"`
}

// CheckPage fetches, parses and classifies a single page, persisting
// the updated visit log and comment index and emitting an event for
// each comment that became new since the last check.
func (w *Watcher) CheckPage(ctx context.Context, title string) (*Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.wiki.IsArchiveTitle(title) {
		w.logger.Debug("talkwatch: page looks like an archive", "page", title)
	}

	pg, err := w.client.FetchParse(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("talkwatch: fetch %q: %w", title, err)
	}

	clean := w.sanitizer.Sanitize(pg.HTML)
	res, err := w.session.ParseHTML(strings.NewReader(clean))
	if err != nil {
		return nil, fmt.Errorf("talkwatch: parse %q: %w", title, err)
	}

	now := time.Now()

	prior, err := w.st.Visits(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("talkwatch: load visits: %w", err)
	}
	log := visits.NewLog()
	for _, ts := range prior {
		log.Record(title, ts)
	}
	seenRaw, err := w.st.Seen(ctx)
	if err != nil {
		return nil, fmt.Errorf("talkwatch: load seen set: %w", err)
	}
	seen := visits.Seen(seenRaw)

	cl := visits.Classifier{MarkAllRead: w.cfg.MarkAllRead, Logger: w.logger}
	cl.Classify(log, title, now, res.Comments, seen)
	w.session.Events.FireClassified(res)

	if err := w.st.ReplaceVisits(ctx, title, log.Visits(title)); err != nil {
		return nil, fmt.Errorf("talkwatch: save visits: %w", err)
	}
	if w.cfg.SyncVisits {
		if err := w.syncVisits(ctx); err != nil {
			w.logger.Warn("talkwatch: sync visits option", "error", err)
		}
	}
	if err := w.st.PruneSeen(ctx, now.Add(-visits.SeenRetention).Unix()); err != nil {
		w.logger.Warn("talkwatch: prune seen set", "error", err)
	}

	newCount := 0
	for _, c := range res.Comments {
		known, err := w.st.HasComment(ctx, title, c.ID)
		if err != nil {
			return nil, fmt.Errorf("talkwatch: comment lookup: %w", err)
		}

		row := &store.Comment{
			Page:      title,
			CommentID: c.ID,
			Author:    c.Author,
			IsNew:     c.IsNew,
			Snippet:   w.snippet(c),
			FirstSeen: now.Unix(),
		}
		if c.Date != nil {
			ts := c.Date.Unix()
			row.CommentTS = &ts
		}
		if c.Section != nil {
			row.Section = c.Section.Headline
		}
		if err := w.st.UpsertComment(ctx, row); err != nil {
			return nil, fmt.Errorf("talkwatch: index comment: %w", err)
		}

		if c.IsNew {
			newCount++
		}
		if c.IsNew && !known {
			ev := event.Event{
				ID:         idgen.New(),
				Type:       event.TypeNewComment,
				Page:       title,
				CommentID:  c.ID,
				Author:     c.Author,
				Section:    row.Section,
				Date:       c.Date,
				Snippet:    row.Snippet,
				ObservedAt: now.Unix(),
			}
			if err := w.sinkR.Send(ctx, ev); err != nil {
				w.logger.Warn("talkwatch: sink delivery", "comment", c.ID, "error", err)
			}
		}
	}

	if err := w.st.UpsertPage(ctx, &store.Page{
		Title:       title,
		PageID:      pg.PageID,
		RevID:       pg.RevID,
		LastChecked: now.Unix(),
	}); err != nil {
		return nil, fmt.Errorf("talkwatch: save page: %w", err)
	}

	w.logger.Info("talkwatch: page checked",
		"page", title, "rev", pg.RevID,
		"comments", len(res.Comments), "sections", len(res.Sections), "new", newCount)

	return &Report{
		Page:     title,
		RevID:    pg.RevID,
		Comments: len(res.Comments),
		Sections: len(res.Sections),
		New:      newCount,
	}, nil
}

// syncVisits mirrors the full local visit log to the wiki user option.
func (w *Watcher) syncVisits(ctx context.Context) error {
	all, err := w.st.AllVisits(ctx)
	if err != nil {
		return fmt.Errorf("talkwatch: load visit log: %w", err)
	}
	log := visits.NewLog()
	for page, entries := range all {
		for _, ts := range entries {
			log.Record(page, ts)
		}
	}
	return SaveVisits(ctx, w.client, log)
}

// SaveVisits packs a visit log into the bounded user-option payload and
// stores it on the wiki. The oldest entries are pruned until the packed
// form fits the option size ceiling.
func SaveVisits(ctx context.Context, client *api.Client, log *visits.Log) error {
	packed, err := log.PackWithin(api.OptionSizeLimit)
	if err != nil {
		return fmt.Errorf("talkwatch: pack visits: %w", err)
	}
	if err := client.SaveOption(ctx, api.VisitsOptionName, packed); err != nil {
		return fmt.Errorf("talkwatch: save visits option: %w", err)
	}
	return nil
}

// MarkSeen records that the viewer has read a comment.
func (w *Watcher) MarkSeen(ctx context.Context, commentID string) error {
	return w.st.MarkSeen(ctx, commentID, time.Now().Unix())
}

// Stop releases the sinks and the database.
func (w *Watcher) Stop() {
	w.sinkR.Close()
	w.st.Close()
	w.logger.Info("talkwatch: stopped")
}
