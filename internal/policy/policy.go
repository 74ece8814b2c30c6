package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

const day = 24 * time.Hour

// StaleAfter is the minimum age before low-engagement content is considered stale.
const StaleAfter = 7 * day

// Policy decides whether a single item is kept or removed.
// Implementations must be pure: the same item and now always yield the same decision.
type Policy interface {
	Name() string
	Evaluate(item domain.ContentItem, now time.Time) domain.Decision
}

// Func adapts a plain predicate to a Policy.
type Func struct {
	Label string
	Fn    func(item domain.ContentItem, now time.Time) bool
}

func (f Func) Name() string { return f.Label }

func (f Func) Evaluate(item domain.ContentItem, now time.Time) domain.Decision {
	return decide(f.Fn(item, now))
}

func decide(remove bool) domain.Decision {
	if remove {
		return domain.Remove
	}
	return domain.Keep
}

// maxDays is the largest day count a time.Duration can hold.
const maxDays = int64(math.MaxInt64 / int64(day))

// AgeThreshold removes items strictly older than MaxAgeDays. Items with an
// unknown creation time are kept.
type AgeThreshold struct {
	MaxAgeDays int
}

func (p AgeThreshold) Name() string { return fmt.Sprintf("age>%dd", p.MaxAgeDays) }

func (p AgeThreshold) Evaluate(item domain.ContentItem, now time.Time) domain.Decision {
	if item.CreatedAt.IsZero() {
		return domain.Keep
	}
	return decide(item.Age(now) > p.limit())
}

// limit saturates instead of overflowing for thresholds beyond ~292 years.
func (p AgeThreshold) limit() time.Duration {
	if int64(p.MaxAgeDays) > maxDays {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(p.MaxAgeDays) * day
}

// NegativeScore removes items whose score is zero or below.
type NegativeScore struct{}

func (NegativeScore) Name() string { return "negative-score" }

func (NegativeScore) Evaluate(item domain.ContentItem, _ time.Time) domain.Decision {
	return decide(item.Score <= 0)
}

// StaleLowEngagement removes week-old items nobody replied to and that scored at most 1.
// Items with an unknown creation time are kept.
type StaleLowEngagement struct{}

func (StaleLowEngagement) Name() string { return "stale-low-engagement" }

func (StaleLowEngagement) Evaluate(item domain.ContentItem, now time.Time) domain.Decision {
	if item.CreatedAt.IsZero() {
		return domain.Keep
	}
	return decide(item.Score <= 1 && item.ReplyCount == 0 && item.Age(now) > StaleAfter)
}

// Protect wraps a policy so items in the given subreddits are always kept.
func Protect(p Policy, subreddits []string) Policy {
	if len(subreddits) == 0 {
		return p
	}
	set := make(map[string]struct{}, len(subreddits))
	for _, s := range subreddits {
		set[normalizeSubreddit(s)] = struct{}{}
	}
	return protected{inner: p, subs: set}
}

type protected struct {
	inner Policy
	subs  map[string]struct{}
}

func (p protected) Name() string { return p.inner.Name() }

func (p protected) Evaluate(item domain.ContentItem, now time.Time) domain.Decision {
	if _, ok := p.subs[normalizeSubreddit(item.Subreddit)]; ok {
		return domain.Keep
	}
	return p.inner.Evaluate(item, now)
}

func normalizeSubreddit(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "/")
	return strings.TrimPrefix(s, "r/")
}

// Choice names one of the built-in policies.
type Choice string

const (
	ChoiceAge      Choice = "age"
	ChoiceNegative Choice = "negative"
	ChoiceStale    Choice = "stale"
)

// Choices lists the built-in policies in their recommended run order.
var Choices = []Choice{ChoiceAge, ChoiceNegative, ChoiceStale}

// MalformedInputError reports caller input rejected before any network activity.
type MalformedInputError struct {
	Field string
	Value string
	Cause error
}

func (e *MalformedInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *MalformedInputError) Unwrap() error { return e.Cause }

// ParseMaxAgeDays parses a day count typed by a user. Only positive integers are accepted.
func ParseMaxAgeDays(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &MalformedInputError{Field: "max age days", Value: s, Cause: err}
	}
	if n <= 0 {
		return 0, &MalformedInputError{Field: "max age days", Value: s, Cause: fmt.Errorf("must be a positive integer")}
	}
	return n, nil
}

// Build returns the built-in policy for choice. maxAgeDays is only read for ChoiceAge.
func Build(choice Choice, maxAgeDays int) (Policy, error) {
	switch Choice(strings.ToLower(string(choice))) {
	case ChoiceAge, "old", "age-threshold":
		if maxAgeDays <= 0 {
			return nil, &MalformedInputError{Field: "max age days", Value: strconv.Itoa(maxAgeDays), Cause: fmt.Errorf("must be a positive integer")}
		}
		return AgeThreshold{MaxAgeDays: maxAgeDays}, nil
	case ChoiceNegative, "negative-score":
		return NegativeScore{}, nil
	case ChoiceStale, "stale-low-engagement":
		return StaleLowEngagement{}, nil
	default:
		return nil, &MalformedInputError{Field: "policy", Value: string(choice)}
	}
}
