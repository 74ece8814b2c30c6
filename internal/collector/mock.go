package collector

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// MockClient implements domain.Source over an in-memory history. Redacted
// items keep their new text; deleted items disappear from later streams.
type MockClient struct {
	mu    sync.Mutex
	items []domain.ContentItem
}

// NewMockClient generates n fake comments and n/4 fake posts created before now.
func NewMockClient(n int, now time.Time) *MockClient {
	rng := rand.New(rand.NewSource(1))
	subs := []string{"golang", "AskHistorians", "pics", "programming", "homelab"}

	var items []domain.ContentItem
	for i := 0; i < n; i++ {
		items = append(items, domain.ContentItem{
			ID:         fmt.Sprintf("t1_mock%d", i),
			Kind:       domain.Comments,
			Body:       fmt.Sprintf("Simulated comment #%d", i),
			CreatedAt:  now.Add(-time.Duration(rng.Intn(400*24)) * time.Hour),
			Score:      rng.Intn(40) - 5,
			ReplyCount: rng.Intn(3),
			Subreddit:  subs[rng.Intn(len(subs))],
			Editable:   true,
		})
	}
	for i := 0; i < n/4; i++ {
		self := rng.Intn(2) == 0
		items = append(items, domain.ContentItem{
			ID:         fmt.Sprintf("t3_mock%d", i),
			Kind:       domain.Posts,
			Title:      fmt.Sprintf("Simulated post #%d", i),
			CreatedAt:  now.Add(-time.Duration(rng.Intn(400*24)) * time.Hour),
			Score:      rng.Intn(200) - 10,
			ReplyCount: rng.Intn(20),
			Subreddit:  subs[rng.Intn(len(subs))],
			Editable:   self,
		})
	}
	return NewMockClientFrom(items)
}

// NewMockClientFrom serves exactly the given items.
func NewMockClientFrom(items []domain.ContentItem) *MockClient {
	cp := append([]domain.ContentItem(nil), items...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].CreatedAt.After(cp[j].CreatedAt) })
	return &MockClient{items: cp}
}

func (mc *MockClient) Verify(context.Context) (string, error) {
	return "mock_user", nil
}

// Stream yields a snapshot of the current history, newest first.
func (mc *MockClient) Stream(ctx context.Context, kind domain.Kind, _ string) iter.Seq2[domain.ContentItem, error] {
	return func(yield func(domain.ContentItem, error) bool) {
		mc.mu.Lock()
		var snapshot []domain.ContentItem
		for _, it := range mc.items {
			if it.Kind == kind {
				snapshot = append(snapshot, it)
			}
		}
		mc.mu.Unlock()

		for _, it := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(domain.ContentItem{}, err)
				return
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

func (mc *MockClient) Redact(_ context.Context, item domain.ContentItem, placeholder string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for i := range mc.items {
		if mc.items[i].ID == item.ID {
			mc.items[i].Body = placeholder
			return nil
		}
	}
	return fmt.Errorf("mock: %s not found", item.ID)
}

func (mc *MockClient) Delete(_ context.Context, item domain.ContentItem) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for i := range mc.items {
		if mc.items[i].ID == item.ID {
			mc.items = append(mc.items[:i], mc.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("mock: %s not found", item.ID)
}

// Len returns how many items remain.
func (mc *MockClient) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}
