package models

import "time"

// Post is a single blog entry
type Post struct {
	ID      string    `json:"id"`
	Title   string    `json:"title,omitempty"`
	Body    string    `json:"body,omitempty"`
	Image   string    `json:"image,omitempty"`
	Created time.Time `json:"created"`
}

// PostFields is the editable part of a post as submitted under the "blog" form key.
// A nil field was not submitted at all.
type PostFields struct {
	Title   *string
	Body    *string
	Image   *string
	Created *time.Time
}

// Empty reports whether no editable field was submitted
func (f PostFields) Empty() bool {
	return f.Title == nil && f.Body == nil && f.Image == nil
}

// Apply copies the submitted fields onto p. Created is left alone.
func (f PostFields) Apply(p *Post) {
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Body != nil {
		p.Body = *f.Body
	}
	if f.Image != nil {
		p.Image = *f.Image
	}
}

// String returns a pointer to s, for building PostFields
func String(s string) *string {
	return &s
}
