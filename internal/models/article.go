package models

import "time"

// Article is a published, publicly addressable piece of content.
type Article struct {
	ID           string  `db:"id" json:"id"`
	SubmissionID *string `db:"submission_id" json:"submission_id,omitempty"`
	Title        string  `db:"title" json:"title"`
	Slug         string  `db:"slug" json:"slug"`
	Body         *string `db:"body" json:"body,omitempty"`
	AuthorName   string  `db:"author_name" json:"author_name"`
	AuthorEmail  string  `db:"author_email" json:"author_email"`
	Category     string  `db:"category" json:"category"`
	Attachment
	ViewCount   int64     `db:"view_count" json:"view_count"`
	Claps       int64     `db:"claps" json:"claps"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
}

// ArticleCounter names a monotonically increasing article counter.
type ArticleCounter string

const (
	ArticleCounterViews ArticleCounter = "views"
	ArticleCounterClaps ArticleCounter = "claps"
)

// Valid reports whether the counter is known.
func (c ArticleCounter) Valid() bool {
	return c == ArticleCounterViews || c == ArticleCounterClaps
}

// ArticleCounters is the state of both counters after an increment.
type ArticleCounters struct {
	ArticleID string `db:"id" json:"article_id"`
	ViewCount int64  `db:"view_count" json:"view_count"`
	Claps     int64  `db:"claps" json:"claps"`
}

// Value returns the value of the named counter.
func (c ArticleCounters) Value(counter ArticleCounter) int64 {
	if counter == ArticleCounterClaps {
		return c.Claps
	}
	return c.ViewCount
}

// ArticleFilter constrains published article listings.
type ArticleFilter struct {
	Category string
	Search   string
	Page     int
	PageSize int
}
