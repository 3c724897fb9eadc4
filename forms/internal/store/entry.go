package store

import (
	"context"
)

// Entry is the persisted row for one in-progress comment form.
type Entry struct {
	ID            string
	Page          string
	Mode          string
	Target        string // JSON descriptor
	CommentText   string
	Headline      string
	Summary       string
	Minor         bool
	Watch         bool
	OmitSignature bool
	SavedAt       int64
}

// UpsertEntry inserts or replaces a form entry.
func (s *Store) UpsertEntry(ctx context.Context, e *Entry) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO form_entries
			(id, page, mode, target, comment_text, headline, summary,
			 minor, watch, omit_signature, saved_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			page=excluded.page, mode=excluded.mode, target=excluded.target,
			comment_text=excluded.comment_text, headline=excluded.headline,
			summary=excluded.summary, minor=excluded.minor,
			watch=excluded.watch, omit_signature=excluded.omit_signature,
			saved_at=excluded.saved_at`,
		e.ID, e.Page, e.Mode, e.Target, e.CommentText, e.Headline, e.Summary,
		boolInt(e.Minor), boolInt(e.Watch), boolInt(e.OmitSignature), e.SavedAt,
	)
	return err
}

// DeleteEntry removes a form entry by ID.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM form_entries WHERE id = ?`, id)
	return err
}

// EntriesForPage returns all saved entries for a page, oldest first.
func (s *Store) EntriesForPage(ctx context.Context, page string) ([]*Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, page, mode, target, comment_text, headline, summary,
		       minor, watch, omit_signature, saved_at
		FROM form_entries WHERE page = ? ORDER BY saved_at ASC`, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var minor, watch, omitSig int
		if err := rows.Scan(
			&e.ID, &e.Page, &e.Mode, &e.Target, &e.CommentText, &e.Headline,
			&e.Summary, &minor, &watch, &omitSig, &e.SavedAt,
		); err != nil {
			return nil, err
		}
		e.Minor = minor != 0
		e.Watch = watch != 0
		e.OmitSignature = omitSig != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneBefore deletes entries last saved before cutoff (unix seconds) and
// reports how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM form_entries WHERE saved_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
