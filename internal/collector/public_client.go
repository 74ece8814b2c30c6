package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// PublicClient lists a user's public history without credentials. It
// cannot mutate anything and is meant for dry runs.
type PublicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
}

type redditJSONResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Name        string  `json:"name"`
				Body        string  `json:"body"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				IsSelf      bool    `json:"is_self"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func NewPublicClient(userAgent string) (*PublicClient, error) {
	return &PublicClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Public JSON Limit: 1 req / 2 seconds (Stricter)
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		userAgent: userAgent,
		baseURL:   "https://www.reddit.com",
	}, nil
}

func (pc *PublicClient) Stream(ctx context.Context, kind domain.Kind, owner string) iter.Seq2[domain.ContentItem, error] {
	return func(yield func(domain.ContentItem, error) bool) {
		after := ""
		for {
			if err := pc.limiter.Wait(ctx); err != nil {
				yield(domain.ContentItem{}, err)
				return
			}
			items, next, err := pc.fetchPage(ctx, kind, owner, after)
			if err != nil {
				yield(domain.ContentItem{}, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" || len(items) == 0 {
				return
			}
			after = next
		}
	}
}

func (pc *PublicClient) fetchPage(ctx context.Context, kind domain.Kind, owner, after string) ([]domain.ContentItem, string, error) {
	listing := "comments"
	if kind == domain.Posts {
		listing = "submitted"
	}
	q := url.Values{"limit": {fmt.Sprint(PageSize)}, "sort": {"new"}, "raw_json": {"1"}}
	if after != "" {
		q.Set("after", after)
	}
	u := fmt.Sprintf("%s/user/%s/%s.json?%s", pc.baseURL, url.PathEscape(owner), listing, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", pc.userAgent)

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("reddit public access status: %d", resp.StatusCode)
	}

	var rResp redditJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, "", err
	}

	items := make([]domain.ContentItem, 0, len(rResp.Data.Children))
	for _, child := range rResp.Data.Children {
		d := child.Data
		item := domain.ContentItem{
			ID:        d.Name,
			Score:     d.Score,
			Subreddit: d.Subreddit,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		}
		switch child.Kind {
		case "t1":
			item.Kind = domain.Comments
			item.Body = d.Body
			item.Editable = true
		case "t3":
			item.Kind = domain.Posts
			item.Body = d.Selftext
			item.Title = d.Title
			item.ReplyCount = d.NumComments
			item.Editable = d.IsSelf
		default:
			continue
		}
		items = append(items, item)
	}
	return items, rResp.Data.After, nil
}

func (pc *PublicClient) Redact(context.Context, domain.ContentItem, string) error {
	return domain.ErrReadOnly
}

func (pc *PublicClient) Delete(context.Context, domain.ContentItem) error {
	return domain.ErrReadOnly
}
