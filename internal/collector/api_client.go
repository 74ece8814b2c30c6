package collector

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// APIClient reads and mutates the authenticated user's content through the
// OAuth API.
type APIClient struct {
	client  *reddit.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAPIClient builds a password-grant client. Credentials are only
// checked on the first request; call Verify to fail early.
func NewAPIClient(id, secret, user, pass, userAgent string, opts ...reddit.Opt) (*APIClient, error) {
	creds := reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}

	opts = append([]reddit.Opt{reddit.WithUserAgent(userAgent)}, opts...)
	client, err := reddit.NewClient(creds, opts...)
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return &APIClient{
		client:  client,
		limiter: limiter,
		logger:  slog.Default().With("component", "collector.api"),
	}, nil
}

// Verify fetches the authenticated account and returns its name.
func (ac *APIClient) Verify(ctx context.Context) (string, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return "", err
	}
	user, _, err := ac.client.Account.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("verify credentials: %w", classify(err))
	}
	return user.Name, nil
}

// Stream pages through owner's listing, newest first.
func (ac *APIClient) Stream(ctx context.Context, kind domain.Kind, owner string) iter.Seq2[domain.ContentItem, error] {
	return func(yield func(domain.ContentItem, error) bool) {
		opts := &reddit.ListUserOverviewOptions{
			ListOptions: reddit.ListOptions{Limit: PageSize},
			Sort:        "new",
		}
		for page := 1; ; page++ {
			if err := ac.limiter.Wait(ctx); err != nil {
				yield(domain.ContentItem{}, err)
				return
			}

			items, after, err := ac.fetchPage(ctx, kind, owner, opts)
			if err != nil {
				yield(domain.ContentItem{}, fmt.Errorf("authenticated api error: %w", classify(err)))
				return
			}
			ac.logger.Debug("page fetched", "kind", kind, "page", page, "items", len(items))

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if after == "" || len(items) == 0 {
				return
			}
			opts.After = after
		}
	}
}

func (ac *APIClient) fetchPage(ctx context.Context, kind domain.Kind, owner string, opts *reddit.ListUserOverviewOptions) ([]domain.ContentItem, string, error) {
	switch kind {
	case domain.Comments:
		comments, resp, err := ac.client.User.CommentsOf(ctx, owner, opts)
		if err != nil {
			return nil, "", err
		}
		items := make([]domain.ContentItem, 0, len(comments))
		for _, c := range comments {
			items = append(items, fromComment(c))
		}
		return items, resp.After, nil
	case domain.Posts:
		posts, resp, err := ac.client.User.PostsOf(ctx, owner, opts)
		if err != nil {
			return nil, "", err
		}
		items := make([]domain.ContentItem, 0, len(posts))
		for _, p := range posts {
			items = append(items, fromPost(p))
		}
		return items, resp.After, nil
	default:
		return nil, "", fmt.Errorf("unsupported kind %q", kind)
	}
}

// Redact overwrites the item's text with placeholder.
func (ac *APIClient) Redact(ctx context.Context, item domain.ContentItem, placeholder string) error {
	if err := ac.limiter.Wait(ctx); err != nil {
		return err
	}
	var err error
	switch item.Kind {
	case domain.Posts:
		_, _, err = ac.client.Post.Edit(ctx, item.ID, placeholder)
	default:
		_, _, err = ac.client.Comment.Edit(ctx, item.ID, placeholder)
	}
	return classify(err)
}

// Delete removes the item from the user's history.
func (ac *APIClient) Delete(ctx context.Context, item domain.ContentItem) error {
	if err := ac.limiter.Wait(ctx); err != nil {
		return err
	}
	var err error
	switch item.Kind {
	case domain.Posts:
		_, err = ac.client.Post.Delete(ctx, item.ID)
	default:
		_, err = ac.client.Comment.Delete(ctx, item.ID)
	}
	return classify(err)
}
