package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/policy"
)

func collect(t *testing.T, l domain.Lister, kind domain.Kind) ([]domain.ContentItem, error) {
	t.Helper()
	var items []domain.ContentItem
	for item, err := range l.Stream(context.Background(), kind, "someone") {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// fakeReddit serves the few OAuth endpoints the APIClient touches.
type fakeReddit struct {
	mu       sync.Mutex
	calls    []string
	listCode int
}

func (f *fakeReddit) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600,"scope":"*"}`)
	})
	mux.HandleFunc("/user/someone/comments", func(w http.ResponseWriter, r *http.Request) {
		f.record("list after=" + r.URL.Query().Get("after"))
		if f.listCode != 0 {
			w.WriteHeader(f.listCode)
			fmt.Fprint(w, `{"message":"Unauthorized","error":401}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"kind":"Listing","data":{"after":"t1_b","children":[
				{"kind":"t1","data":{"id":"a","name":"t1_a","body":"first","created_utc":1700000000,"score":-2,"subreddit":"golang","replies":""}},
				{"kind":"t1","data":{"id":"b","name":"t1_b","body":"second","created_utc":1690000000,"score":3,"subreddit":"pics","replies":""}}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"kind":"Listing","data":{"after":null,"children":[
			{"kind":"t1","data":{"id":"c","name":"t1_c","body":"third","created_utc":1680000000,"score":0,"subreddit":"golang","replies":""}}
		]}}`)
	})
	mux.HandleFunc("/api/editusertext", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.record("edit " + r.Form.Get("thing_id") + " " + r.Form.Get("text"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/api/del", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.record("del " + r.Form.Get("id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	return mux
}

func (f *fakeReddit) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeReddit) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestAPIClient(t *testing.T, f *fakeReddit) *APIClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	ac, err := NewAPIClient("id", "secret", "someone", "pw", "test-agent",
		reddit.WithBaseURL(srv.URL+"/"),
		reddit.WithTokenURL(srv.URL+"/api/v1/access_token"),
	)
	require.NoError(t, err)
	ac.limiter = rate.NewLimiter(rate.Inf, 1)
	return ac
}

func TestAPIClient_StreamPaginates(t *testing.T) {
	f := &fakeReddit{}
	ac := newTestAPIClient(t, f)

	items, err := collect(t, ac, domain.Comments)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "t1_a", items[0].ID)
	assert.Equal(t, "first", items[0].Body)
	assert.Equal(t, -2, items[0].Score)
	assert.Equal(t, "golang", items[0].Subreddit)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), items[0].CreatedAt)
	assert.True(t, items[0].Editable)
	assert.Equal(t, "t1_c", items[2].ID)
	assert.Equal(t, []string{"list after=", "list after=t1_b"}, f.seen())
}

func TestAPIClient_StreamStopsWhenConsumerStops(t *testing.T) {
	f := &fakeReddit{}
	ac := newTestAPIClient(t, f)

	for range ac.Stream(context.Background(), domain.Comments, "someone") {
		break
	}
	assert.Len(t, f.seen(), 1, "second page never requested")
}

func TestAPIClient_UnauthorizedIsAuthenticationError(t *testing.T) {
	f := &fakeReddit{listCode: http.StatusUnauthorized}
	ac := newTestAPIClient(t, f)

	_, err := collect(t, ac, domain.Comments)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestAPIClient_RedactAndDelete(t *testing.T) {
	f := &fakeReddit{}
	ac := newTestAPIClient(t, f)
	item := domain.ContentItem{ID: "t1_a", Kind: domain.Comments}

	require.NoError(t, ac.Redact(context.Background(), item, "."))
	require.NoError(t, ac.Delete(context.Background(), item))
	assert.Equal(t, []string{"edit t1_a .", "del t1_a"}, f.seen())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classify(plain))

	retrieve := &oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}}
	assert.ErrorIs(t, classify(fmt.Errorf("post: %w", retrieve)), domain.ErrAuthentication)

	missing := errors.New("oauth2: server response missing access_token")
	assert.ErrorIs(t, classify(missing), domain.ErrAuthentication)

	forbidden := &reddit.ErrorResponse{Response: &http.Response{StatusCode: http.StatusForbidden, Request: &http.Request{}}}
	assert.NotErrorIs(t, classify(forbidden), domain.ErrAuthentication)
}

func TestFromCommentAndPost(t *testing.T) {
	created := &reddit.Timestamp{Time: time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)}

	c := fromComment(&reddit.Comment{
		ID: "x", Body: "hi", Created: created, Score: 4, SubredditName: "golang",
		Replies: reddit.Replies{Comments: []*reddit.Comment{{ID: "y"}}, More: &reddit.More{Count: 2}},
	})
	assert.Equal(t, "t1_x", c.ID)
	assert.Equal(t, 3, c.ReplyCount)
	assert.Equal(t, created.Time, c.CreatedAt)

	link := fromPost(&reddit.Post{ID: "p", FullID: "t3_p", Title: "a link", NumberOfComments: 9, IsSelfPost: false})
	assert.Equal(t, "t3_p", link.ID)
	assert.False(t, link.Editable)
	assert.Equal(t, "a link", link.Text())
	assert.Equal(t, 9, link.ReplyCount)
	assert.True(t, fromPost(&reddit.Post{ID: "q", IsSelfPost: true}).Editable)
}

func TestFromComment_MissingCreatedIsZero(t *testing.T) {
	c := fromComment(&reddit.Comment{ID: "x", Body: "hi"})
	assert.True(t, c.CreatedAt.IsZero())
	assert.Equal(t, domain.Keep, policy.AgeThreshold{MaxAgeDays: 1}.Evaluate(c, time.Now()))
}

func TestPublicClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cleaner-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "/user/someone/submitted.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"after":null,"children":[
			{"kind":"t3","data":{"name":"t3_a","title":"my post","selftext":"","is_self":false,"score":12,"num_comments":4,"subreddit":"pics","created_utc":1700000000.0}}
		]}}`)
	}))
	defer srv.Close()

	pc, err := NewPublicClient("cleaner-test/1.0")
	require.NoError(t, err)
	pc.baseURL = srv.URL
	pc.limiter = rate.NewLimiter(rate.Inf, 1)

	items, err := collect(t, pc, domain.Posts)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.Posts, items[0].Kind)
	assert.Equal(t, "my post", items[0].Title)
	assert.Equal(t, 4, items[0].ReplyCount)
	assert.False(t, items[0].Editable)

	assert.ErrorIs(t, pc.Delete(context.Background(), items[0]), domain.ErrReadOnly)
	assert.ErrorIs(t, pc.Redact(context.Background(), items[0], "."), domain.ErrReadOnly)
}

func TestPublicClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pc, _ := NewPublicClient("ua")
	pc.baseURL = srv.URL
	pc.limiter = rate.NewLimiter(rate.Inf, 1)

	_, err := collect(t, pc, domain.Comments)
	assert.ErrorContains(t, err, "404")
}

func TestMockClient(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMockClientFrom([]domain.ContentItem{
		{ID: "t1_old", Kind: domain.Comments, Body: "old", CreatedAt: now.Add(-48 * time.Hour), Editable: true},
		{ID: "t1_new", Kind: domain.Comments, Body: "new", CreatedAt: now.Add(-time.Hour), Editable: true},
		{ID: "t3_p", Kind: domain.Posts, Title: "post", CreatedAt: now},
	})

	items, err := collect(t, mc, domain.Comments)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t1_new", items[0].ID, "newest first")

	require.NoError(t, mc.Redact(context.Background(), items[1], "."))
	require.NoError(t, mc.Delete(context.Background(), items[1]))
	assert.Error(t, mc.Delete(context.Background(), items[1]))
	assert.Equal(t, 2, mc.Len())

	items, err = collect(t, mc, domain.Comments)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	name, err := mc.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock_user", name)
}

func TestNewMockClient_Generates(t *testing.T) {
	mc := NewMockClient(40, time.Now())
	assert.Equal(t, 50, mc.Len())
}

func TestNewCollector(t *testing.T) {
	cfg := config.Default()

	cfg.Mode = config.ModeMock
	src, err := NewCollector(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, src)

	cfg.Mode = config.ModePublic
	src, err = NewCollector(cfg)
	require.NoError(t, err)
	assert.IsType(t, &PublicClient{}, src)

	cfg.Mode = config.ModeAPI
	_, err = NewCollector(cfg)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	cfg.Credentials = config.Credentials{ID: "a", Secret: "b", Username: "c", Password: "d"}
	src, err = NewCollector(cfg)
	require.NoError(t, err)
	assert.IsType(t, &APIClient{}, src)

	cfg.Mode = "smoke-signals"
	_, err = NewCollector(cfg)
	assert.Error(t, err)
}
