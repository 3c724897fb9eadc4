// Package forms persists in-progress comment forms across page loads.
//
// Each open form is saved with a content-addressable target descriptor
// (a comment ID or a section key), never a node reference or raw index,
// so the target can be re-resolved against a freshly parsed page even
// when the page structure changed in between. Saves are debounced;
// restoration routes unresolvable entries to a rescue list instead of
// dropping the user's text.
package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwbth/talkpage/forms/internal/store"
	"github.com/jwbth/talkpage/idgen"
	"github.com/jwbth/talkpage/parse"
)

// Mode identifies what a form was opened for.
type Mode string

const (
	ModeReply         Mode = "reply"
	ModeEdit          Mode = "edit"
	ModeAddSection    Mode = "addSection"
	ModeAddSubsection Mode = "addSubsection"
)

// Retention is how long a saved form survives without being touched.
const Retention = 60 * 24 * time.Hour

// DefaultSaveInterval is the minimum spacing between debounced saves.
const DefaultSaveInterval = 5 * time.Second

// Target is the content-addressable reference to what a form is attached
// to. Exactly one of the fields is set for reply/edit (CommentID) and
// addSubsection (Section); addSection needs neither.
type Target struct {
	CommentID string     `json:"commentId,omitempty"`
	Section   *parse.Key `json:"section,omitempty"`
}

// Entry is one in-progress comment form.
type Entry struct {
	ID            string `json:"id"`
	Page          string `json:"page"`
	Mode          Mode   `json:"mode"`
	Target        Target `json:"target"`
	CommentText   string `json:"commentText"`
	Headline      string `json:"headline,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Minor         bool   `json:"minor"`
	Watch         bool   `json:"watch"`
	OmitSignature bool   `json:"omitSignature"`
	SavedAt       int64  `json:"savedAt"`
}

// Resolved is a restored form whose target was found in the new parse.
// For ModeAddSection both Comment and Section are nil.
type Resolved struct {
	Entry   *Entry
	Comment *parse.Comment
	Section *parse.Section
}

// Rescue carries a form whose target could not be resolved. The text
// fields are intact; the caller surfaces them for manual recovery.
type Rescue struct {
	Entry  *Entry
	Reason string
}

// Manager owns the session store and the debounced save loop.
type Manager struct {
	st       *store.Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newID    idgen.Generator

	mu    sync.Mutex
	dirty map[string]*Entry
	timer *time.Timer
}

// Option configures a Manager.
type Option func(*Manager)

// WithSaveInterval overrides the debounce interval.
func WithSaveInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides the entry ID strategy.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(m *Manager) { m.newID = gen }
}

// NewManager wraps an open session store.
func NewManager(st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		st:       st,
		interval: DefaultSaveInterval,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    idgen.Default,
		dirty:    make(map[string]*Entry),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewEntry creates an entry with a fresh ID for an opened form.
func (m *Manager) NewEntry(page string, mode Mode, target Target) *Entry {
	return &Entry{
		ID:     m.newID(),
		Page:   page,
		Mode:   mode,
		Target: target,
	}
}

// Update records the entry's current state and schedules a debounced
// save. Call it on every edit; at most one write per interval hits the
// store unless Flush forces it.
func (m *Manager) Update(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.dirty[e.ID] = &cp
	if m.timer == nil {
		m.timer = time.AfterFunc(m.interval, func() {
			if err := m.Flush(context.Background()); err != nil {
				m.logger.Error("forms: debounced save failed", "error", err)
			}
		})
	}
}

// Flush writes all pending entries immediately. Call it before the
// process (or page) goes away.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.dirty
	m.dirty = make(map[string]*Entry)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	now := m.now().Unix()
	for _, e := range pending {
		e.SavedAt = now
		if err := m.st.UpsertEntry(ctx, toRow(e)); err != nil {
			return fmt.Errorf("forms: save entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Discard removes a form from the pending set and the store. Call it
// when the form is submitted or deliberately closed.
func (m *Manager) Discard(ctx context.Context, entryID string) error {
	m.mu.Lock()
	delete(m.dirty, entryID)
	m.mu.Unlock()

	if err := m.st.DeleteEntry(ctx, entryID); err != nil {
		return fmt.Errorf("forms: discard entry %s: %w", entryID, err)
	}
	return nil
}

// Restore loads the page's saved forms, prunes stale ones, and resolves
// each target against the given parse result. Entries whose target
// vanished come back as rescues with their text intact.
func (m *Manager) Restore(ctx context.Context, page string, res *parse.Result) ([]Resolved, []Rescue, error) {
	cutoff := m.now().Add(-Retention).Unix()
	if n, err := m.st.PruneBefore(ctx, cutoff); err != nil {
		return nil, nil, fmt.Errorf("forms: prune: %w", err)
	} else if n > 0 {
		m.logger.Debug("forms: pruned stale entries", "count", n)
	}

	rows, err := m.st.EntriesForPage(ctx, page)
	if err != nil {
		return nil, nil, fmt.Errorf("forms: load page %q: %w", page, err)
	}

	var resolved []Resolved
	var rescues []Rescue
	for _, row := range rows {
		e, err := fromRow(row)
		if err != nil {
			// The text fields survived the decode failure; rescue them.
			rescues = append(rescues, Rescue{Entry: e, Reason: err.Error()})
			continue
		}
		r, reason := resolve(e, res)
		if reason != "" {
			m.logger.Info("forms: target unresolved",
				"entry", e.ID, "mode", e.Mode, "reason", reason)
			rescues = append(rescues, Rescue{Entry: e, Reason: reason})
			continue
		}
		resolved = append(resolved, r)
	}
	return resolved, rescues, nil
}

func resolve(e *Entry, res *parse.Result) (Resolved, string) {
	switch e.Mode {
	case ModeAddSection:
		return Resolved{Entry: e}, ""

	case ModeReply, ModeEdit:
		if e.Target.CommentID == "" {
			return Resolved{}, "entry has no comment target"
		}
		c := parse.FindComment(res.Comments, e.Target.CommentID)
		if c == nil {
			return Resolved{}, fmt.Sprintf("comment %q not found", e.Target.CommentID)
		}
		return Resolved{Entry: e, Comment: c, Section: c.Section}, ""

	case ModeAddSubsection:
		if e.Target.Section == nil {
			return Resolved{}, "entry has no section target"
		}
		s := parse.FindSection(res.Sections, *e.Target.Section)
		if s == nil {
			return Resolved{}, fmt.Sprintf("section %q not found", e.Target.Section.Headline)
		}
		return Resolved{Entry: e, Section: s}, ""

	default:
		return Resolved{}, fmt.Sprintf("unknown mode %q", e.Mode)
	}
}

func toRow(e *Entry) *store.Entry {
	target, _ := json.Marshal(e.Target)
	return &store.Entry{
		ID:            e.ID,
		Page:          e.Page,
		Mode:          string(e.Mode),
		Target:        string(target),
		CommentText:   e.CommentText,
		Headline:      e.Headline,
		Summary:       e.Summary,
		Minor:         e.Minor,
		Watch:         e.Watch,
		OmitSignature: e.OmitSignature,
		SavedAt:       e.SavedAt,
	}
}

func fromRow(row *store.Entry) (*Entry, error) {
	e := &Entry{
		ID:            row.ID,
		Page:          row.Page,
		Mode:          Mode(row.Mode),
		CommentText:   row.CommentText,
		Headline:      row.Headline,
		Summary:       row.Summary,
		Minor:         row.Minor,
		Watch:         row.Watch,
		OmitSignature: row.OmitSignature,
		SavedAt:       row.SavedAt,
	}
	if err := json.Unmarshal([]byte(row.Target), &e.Target); err != nil {
		return e, fmt.Errorf("forms: decode target of %s: %w", row.ID, err)
	}
	return e, nil
}
