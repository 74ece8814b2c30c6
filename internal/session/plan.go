package session

import (
	"context"

	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/policy"
)

// Plan is an ordered list of passes: every policy is run against every kind,
// policies in the outer loop.
type Plan struct {
	Owner    string
	Kinds    []domain.Kind
	Policies []policy.Policy
}

// Requests expands the plan into the passes it runs, in order.
func (p Plan) Requests() []Request {
	reqs := make([]Request, 0, len(p.Kinds)*len(p.Policies))
	for _, pol := range p.Policies {
		for _, kind := range p.Kinds {
			reqs = append(reqs, Request{Kind: kind, Owner: p.Owner, Policy: pol})
		}
	}
	return reqs
}

// RunPlan runs each pass of plan in sequence on s. It stops at the first
// pass that returns an error and returns the summaries gathered so far.
func RunPlan(ctx context.Context, s *Session, plan Plan) ([]Summary, error) {
	var sums []Summary
	for _, req := range plan.Requests() {
		sum, err := s.Run(ctx, req)
		sums = append(sums, sum)
		if err != nil {
			return sums, err
		}
	}
	return sums, nil
}

// TotalRemoved adds up the removals of several passes.
func TotalRemoved(sums []Summary) int {
	n := 0
	for _, s := range sums {
		n += s.Removed
	}
	return n
}
