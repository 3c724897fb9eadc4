// Package visits tracks page visit history and classifies parsed comments
// as new or seen. The log maps page IDs to ascending unix-second visit
// timestamps; classification always compares against strictly prior visits,
// appending the current visit only afterwards.
package visits

import (
	"log/slog"
	"sort"
	"time"

	"github.com/jwbth/talkpage/parse"
)

// DefaultHighlightWindow bounds how far back a comment can be highlighted
// as new. Visit entries older than this stop mattering and get pruned.
const DefaultHighlightWindow = 30 * 24 * time.Hour

// SeenRetention bounds how long a "seen" mark is kept.
const SeenRetention = 60 * 24 * time.Hour

// Log is the persisted visit history, one timestamp list per page.
type Log struct {
	Pages map[string][]int64 `json:"pages"`
}

// NewLog returns an empty visit log.
func NewLog() *Log {
	return &Log{Pages: map[string][]int64{}}
}

// Visits returns the sorted visit timestamps for a page.
func (l *Log) Visits(pageID string) []int64 {
	return l.Pages[pageID]
}

// Record appends a visit entry, keeping the list sorted.
func (l *Log) Record(pageID string, entry int64) {
	v := append(l.Pages[pageID], entry)
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	l.Pages[pageID] = v
}

// Seen is the set of comment IDs the user has read, with the unix time
// each mark was made (for retention pruning).
type Seen map[string]int64

// Mark records a comment as seen at time now.
func (s Seen) Mark(id string, now time.Time) { s[id] = now.Unix() }

// Has reports whether a comment has been seen.
func (s Seen) Has(id string) bool { _, ok := s[id]; return ok }

// Prune drops marks older than SeenRetention.
func (s Seen) Prune(now time.Time) {
	cutoff := now.Add(-SeenRetention).Unix()
	for id, at := range s {
		if at < cutoff {
			delete(s, id)
		}
	}
}

// Classifier applies visit history to a parsed comment list.
type Classifier struct {
	// Window is the highlight window; zero means DefaultHighlightWindow.
	Window time.Duration
	// MarkAllRead drops all but the newest visit entry when pruning,
	// per the user preference of the same name.
	MarkAllRead bool
	Logger      *slog.Logger
}

func (c *Classifier) window() time.Duration {
	if c.Window <= 0 {
		return DefaultHighlightWindow
	}
	return c.Window
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Classify sets IsNew and IsSeen on every dated comment, then records the
// current visit in the log and prunes stale entries. Undated comments are
// conservatively never new. The comparison uses only visits that existed
// before this call.
//
// Timestamp resolution is whole minutes, so a comment posted in the same
// minute as this visit would collide with the new log entry; in that case
// the entry is bumped forward by 60 seconds so the comment is not silently
// swallowed by clock rounding.
func (c *Classifier) Classify(log *Log, pageID string, now time.Time, comments []*parse.Comment, seen Seen) {
	prior := log.Visits(pageID)
	var lastPrior int64
	if len(prior) > 0 {
		lastPrior = prior[len(prior)-1]
	}

	newCount := 0
	nowMinute := now.Unix() / 60
	bump := false
	for _, cm := range comments {
		if cm.Date == nil {
			cm.IsNew = false
			cm.IsSeen = seen.Has(cm.ID)
			continue
		}
		ts := cm.Date.Unix()
		cm.IsNew = len(prior) > 0 && ts > lastPrior
		cm.IsSeen = seen.Has(cm.ID)
		if cm.IsNew {
			newCount++
		}
		if ts/60 == nowMinute {
			bump = true
		}
	}

	entry := now.Unix()
	if bump {
		entry += 60
	}
	log.Record(pageID, entry)
	c.prune(log, pageID, now)

	c.logger().Debug("visits: classified",
		"page", pageID, "comments", len(comments), "new", newCount, "bumped", bump)
}

// prune drops entries older than the window, but only while a newer entry
// remains to confirm they are stale. With MarkAllRead everything but the
// newest goes immediately.
func (c *Classifier) prune(log *Log, pageID string, now time.Time) {
	v := log.Pages[pageID]
	if len(v) == 0 {
		return
	}
	if c.MarkAllRead {
		log.Pages[pageID] = v[len(v)-1:]
		return
	}
	cutoff := now.Add(-c.window()).Unix()
	i := 0
	for i < len(v)-1 && v[i] < cutoff {
		i++
	}
	log.Pages[pageID] = v[i:]
}
