package store

import (
	"context"
	"database/sql"
	"errors"
)

// Comment is one indexed comment row.
type Comment struct {
	Page      string `json:"page"`
	CommentID string `json:"comment_id"`
	Author    string `json:"author"`
	Section   string `json:"section,omitempty"`
	CommentTS *int64 `json:"comment_ts,omitempty"`
	IsNew     bool   `json:"is_new"`
	Snippet   string `json:"snippet,omitempty"`
	FirstSeen int64  `json:"first_seen"`
}

// UpsertComment inserts a comment or refreshes its classification.
// first_seen is kept from the original insert.
func (s *Store) UpsertComment(ctx context.Context, c *Comment) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO comments
			(page, comment_id, author, section, comment_ts, is_new, snippet, first_seen)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(page, comment_id) DO UPDATE SET
			author=excluded.author, section=excluded.section,
			comment_ts=excluded.comment_ts, is_new=excluded.is_new,
			snippet=excluded.snippet`,
		c.Page, c.CommentID, c.Author, c.Section, c.CommentTS,
		boolInt(c.IsNew), c.Snippet, c.FirstSeen,
	)
	return err
}

// HasComment reports whether a comment has been indexed before.
func (s *Store) HasComment(ctx context.Context, page, commentID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM comments WHERE page = ? AND comment_id = ?`,
		page, commentID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// CommentsForPage returns a page's indexed comments, newest first.
// With onlyNew, only comments still classified as new are returned.
func (s *Store) CommentsForPage(ctx context.Context, page string, onlyNew bool) ([]*Comment, error) {
	query := `
		SELECT page, comment_id, author, section, comment_ts, is_new, snippet, first_seen
		FROM comments WHERE page = ?`
	if onlyNew {
		query += ` AND is_new = 1`
	}
	query += ` ORDER BY comment_ts DESC, comment_id`

	rows, err := s.DB.QueryContext(ctx, query, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		c := &Comment{}
		var isNew int
		if err := rows.Scan(&c.Page, &c.CommentID, &c.Author, &c.Section,
			&c.CommentTS, &isNew, &c.Snippet, &c.FirstSeen); err != nil {
			return nil, err
		}
		c.IsNew = isNew != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchComments matches author, snippet, or section text across all
// pages, newest first.
func (s *Store) SearchComments(ctx context.Context, query string, limit int) ([]*Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := s.DB.QueryContext(ctx, `
		SELECT page, comment_id, author, section, comment_ts, is_new, snippet, first_seen
		FROM comments
		WHERE author LIKE ? OR snippet LIKE ? OR section LIKE ?
		ORDER BY comment_ts DESC LIMIT ?`,
		like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		c := &Comment{}
		var isNew int
		if err := rows.Scan(&c.Page, &c.CommentID, &c.Author, &c.Section,
			&c.CommentTS, &isNew, &c.Snippet, &c.FirstSeen); err != nil {
			return nil, err
		}
		c.IsNew = isNew != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
