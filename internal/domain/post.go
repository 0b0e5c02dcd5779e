package domain

import (
	"fmt"
	"time"

	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
)

type (
	PostId  = int64
	BoardId = string
)

const DefaultName = "Anonymous"

// Post is a row of the posts table. Threads and replies share it: a post with
// Parent == 0 is a thread root.
type Post struct {
	Id        PostId  `db:"id"`
	Board     BoardId `db:"board"`
	Parent    PostId  `db:"parent"`
	Name      string  `db:"name"`
	Subject   string  `db:"subject"`
	Message   string  `db:"message"`
	Image     string  `db:"image"`
	Thumb     string  `db:"thumb"`
	Timestamp int64   `db:"timestamp"`
	Bumped    int64   `db:"bumped"`
}

func (p *Post) IsThread() bool {
	return p.Parent == 0
}

// ThreadId is the id of the thread root the post belongs to.
func (p *Post) ThreadId() PostId {
	if p.IsThread() {
		return p.Id
	}
	return p.Parent
}

func (p *Post) CreatedAt() time.Time {
	return time.Unix(p.Timestamp, 0)
}

func (p *Post) BumpedAt() time.Time {
	return time.Unix(p.Bumped, 0)
}

// PostForm holds the raw submitted fields before validation.
type PostForm struct {
	Parent  PostId
	Board   BoardId
	Name    string
	Subject string
	Message string
}

// to iterate thru layers: handler -> service -> storage
type PostCreationData struct {
	Board     BoardId
	Parent    PostId
	Name      string
	Subject   string
	Message   string
	CreatedAt time.Time
}

func (d *PostCreationData) IsThread() bool {
	return d.Parent == 0
}

// Check enforces the row invariants the store relies on at insert time.
func (d *PostCreationData) Check() error {
	if d.Message == "" {
		return internal_errors.NewValidationError(internal_errors.ErrEmptyMessage)
	}
	if d.Board == "" {
		return internal_errors.NewValidationError(internal_errors.ErrUnknownBoard)
	}
	if d.Parent < 0 {
		return internal_errors.ErrParentNotFound
	}
	if d.Parent == 0 && d.Subject == "" {
		return internal_errors.NewValidationError(internal_errors.ErrMissingSubject)
	}
	if d.Parent != 0 && d.Subject != "" {
		return fmt.Errorf("reply to %d carries a subject", d.Parent)
	}
	return nil
}

// Media names the files attached to a post, relative to the media directory.
type Media struct {
	Image string
	Thumb string
}

func (m Media) IsZero() bool {
	return m.Image == "" && m.Thumb == ""
}

// AttachFunc receives the id of a freshly inserted post and returns the media
// stored for it. It runs inside the insert transaction.
type AttachFunc func(id PostId) (Media, error)

// ThreadSummary is a thread root as listed on a board index.
type ThreadSummary struct {
	Post
	ReplyCount int `db:"reply_count"`
}

type Thread struct {
	Op      *Post
	Replies []*Post
}

type SubmitResult struct {
	PostId   PostId
	Board    BoardId
	ThreadId PostId
	IsThread bool
}
