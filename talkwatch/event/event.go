// Package event defines the records talkwatch emits to sinks.
package event

import "time"

// Type discriminates event payloads.
const (
	TypeNewComment = "new_comment"
	TypePageError  = "page_error"
)

// Event is one observation on a watched page.
type Event struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Page       string     `json:"page"`
	CommentID  string     `json:"comment_id,omitempty"`
	Author     string     `json:"author,omitempty"`
	Section    string     `json:"section,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Snippet    string     `json:"snippet,omitempty"`
	Error      string     `json:"error,omitempty"`
	ObservedAt int64      `json:"observed_at"`
}
