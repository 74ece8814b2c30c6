package domain

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

var (
	// ErrAuthentication marks failures caused by missing or rejected credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrReadOnly is returned by sources that cannot mutate content.
	ErrReadOnly = errors.New("source is read-only")
)

// Kind selects which listing of a user's history is walked.
type Kind string

const (
	Comments Kind = "comments"
	Posts    Kind = "posts"
)

// ParseKind accepts the listing names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "comments", "comment":
		return Comments, nil
	case "posts", "post", "submissions":
		return Posts, nil
	default:
		return "", fmt.Errorf("unknown kind %q (use 'comments' or 'posts')", s)
	}
}

// ContentItem is a snapshot of one comment or post as seen by a single pull.
// Score and ReplyCount may have changed by the time the item is mutated.
type ContentItem struct {
	ID         string    `json:"id"` // full name, e.g. t1_abc123
	Kind       Kind      `json:"kind"`
	Body       string    `json:"body"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Score      int       `json:"score"`
	ReplyCount int       `json:"reply_count"`
	Subreddit  string    `json:"subreddit"`
	// Editable is false for link posts, which have no text to overwrite.
	Editable bool `json:"editable"`
}

// Age returns how old the item is relative to now.
func (c ContentItem) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// Text is the human-meaningful payload: the body, or the title for link posts.
func (c ContentItem) Text() string {
	if c.Body == "" {
		return c.Title
	}
	return c.Body
}

// Decision is the outcome of evaluating a retention policy.
type Decision int

const (
	Keep Decision = iota
	Remove
)

func (d Decision) String() string {
	if d == Remove {
		return "remove"
	}
	return "keep"
}

// RemovalRecord is written once for every successfully removed item.
type RemovalRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	Body      string    `json:"body"`

	ItemID    string `json:"item_id"`
	Kind      Kind   `json:"kind"`
	Subreddit string `json:"subreddit"`
	Policy    string `json:"policy"`
	SessionID string `json:"session_id"`
}

// Lister streams a user's content, newest first. Every call starts a fresh
// pagination; a sequence cannot be resumed once abandoned.
type Lister interface {
	Stream(ctx context.Context, kind Kind, owner string) iter.Seq2[ContentItem, error]
}

// Mutator rewrites and removes content on the platform.
type Mutator interface {
	Redact(ctx context.Context, item ContentItem, placeholder string) error
	Delete(ctx context.Context, item ContentItem) error
}

// Source is a Lister that can also mutate what it lists.
type Source interface {
	Lister
	Mutator
}

// Verifier confirms credentials and reports the authenticated account name.
type Verifier interface {
	Verify(ctx context.Context) (string, error)
}

// Recorder persists removal records.
type Recorder interface {
	Record(ctx context.Context, rec RemovalRecord) error
}
