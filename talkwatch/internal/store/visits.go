package store

import (
	"context"
	"database/sql"

	"github.com/jwbth/talkpage/dbopen"
)

// Visits returns the recorded visit timestamps for a page, oldest first.
func (s *Store) Visits(ctx context.Context, page string) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT ts FROM visits WHERE page = ? ORDER BY ts`, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// AllVisits returns every page's visit timestamps, oldest first per page.
func (s *Store) AllVisits(ctx context.Context) (map[string][]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT page, ts FROM visits ORDER BY page, ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]int64)
	for rows.Next() {
		var page string
		var ts int64
		if err := rows.Scan(&page, &ts); err != nil {
			return nil, err
		}
		out[page] = append(out[page], ts)
	}
	return out, rows.Err()
}

// ReplaceVisits overwrites a page's visit log with the given entries.
// Classification both appends a new entry and prunes stale ones, so the
// whole list is swapped in one transaction.
func (s *Store) ReplaceVisits(ctx context.Context, page string, entries []int64) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM visits WHERE page = ?`, page); err != nil {
			return err
		}
		for _, ts := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO visits (page, ts) VALUES (?,?)`, page, ts); err != nil {
				return err
			}
		}
		return nil
	})
}

// Seen returns the full seen set: comment ID to unix mark time.
func (s *Store) Seen(ctx context.Context) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT comment_id, marked_at FROM seen`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var at int64
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at
	}
	return out, rows.Err()
}

// MarkSeen inserts or refreshes a seen mark.
func (s *Store) MarkSeen(ctx context.Context, commentID string, at int64) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO seen (comment_id, marked_at) VALUES (?,?)
		ON CONFLICT(comment_id) DO UPDATE SET marked_at=excluded.marked_at`,
		commentID, at)
	return err
}

// PruneSeen drops marks older than cutoff.
func (s *Store) PruneSeen(ctx context.Context, cutoff int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM seen WHERE marked_at < ?`, cutoff)
	return err
}
