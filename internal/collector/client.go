package collector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/oauth2"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// PageSize is the listing page size; Reddit caps it at 100.
const PageSize = 100

// classify marks credential failures with domain.ErrAuthentication so the
// session can tell them apart from per-item API errors.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrAuthentication) {
		return err
	}
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	var resp *reddit.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil && resp.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	// the password grant reports bad credentials as a token without access_token
	if strings.Contains(err.Error(), "oauth2:") {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	return err
}

func timeOf(ts *reddit.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.Time.UTC()
}

func fromComment(c *reddit.Comment) domain.ContentItem {
	id := c.FullID
	if id == "" {
		id = "t1_" + c.ID
	}
	replies := len(c.Replies.Comments)
	if c.Replies.More != nil {
		replies += c.Replies.More.Count
	}
	return domain.ContentItem{
		ID:         id,
		Kind:       domain.Comments,
		Body:       c.Body,
		CreatedAt:  timeOf(c.Created),
		Score:      c.Score,
		ReplyCount: replies,
		Subreddit:  c.SubredditName,
		Editable:   true,
	}
}

func fromPost(p *reddit.Post) domain.ContentItem {
	id := p.FullID
	if id == "" {
		id = "t3_" + p.ID
	}
	return domain.ContentItem{
		ID:         id,
		Kind:       domain.Posts,
		Body:       p.Body,
		Title:      p.Title,
		CreatedAt:  timeOf(p.Created),
		Score:      p.Score,
		ReplyCount: p.NumberOfComments,
		Subreddit:  p.SubredditName,
		Editable:   p.IsSelfPost,
	}
}
