package domain

import "time"

// CommentVisibility controls who may read a comment.
type CommentVisibility string

const (
	CommentVisibilityPublic   CommentVisibility = "public"
	CommentVisibilityInternal CommentVisibility = "internal"
)

// Comment is an append-only note on a ticket. Comments are never edited
// or deleted.
type Comment struct {
	ID          int64
	TicketID    int64
	Message     string
	Visibility  CommentVisibility
	AuthorEmail string
	CreatedAt   time.Time
}
