package store

import (
	"context"
	"database/sql"
	"errors"
)

// Page is one watched page row.
type Page struct {
	Title       string `json:"title"`
	PageID      int64  `json:"page_id"`
	RevID       int64  `json:"rev_id"`
	LastChecked int64  `json:"last_checked"`
}

// UpsertPage records a page and the revision last processed.
func (s *Store) UpsertPage(ctx context.Context, p *Page) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pages (title, page_id, rev_id, last_checked)
		VALUES (?,?,?,?)
		ON CONFLICT(title) DO UPDATE SET
			page_id=excluded.page_id, rev_id=excluded.rev_id,
			last_checked=excluded.last_checked`,
		p.Title, p.PageID, p.RevID, p.LastChecked,
	)
	return err
}

// GetPage returns a page row, or nil when unknown.
func (s *Store) GetPage(ctx context.Context, title string) (*Page, error) {
	p := &Page{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT title, page_id, rev_id, last_checked
		FROM pages WHERE title = ?`, title).Scan(
		&p.Title, &p.PageID, &p.RevID, &p.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPages returns all watched pages, alphabetically.
func (s *Store) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT title, page_id, rev_id, last_checked
		FROM pages ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p := &Page{}
		if err := rows.Scan(&p.Title, &p.PageID, &p.RevID, &p.LastChecked); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
