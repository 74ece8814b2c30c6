package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// DefaultPlaceholder replaces an item's text before it is deleted.
const DefaultPlaceholder = "."

// Step identifies which half of a removal failed.
type Step string

const (
	StepRedact Step = "redact"
	StepDelete Step = "delete"
)

// MutationError reports a per-item failure. The item was not removed and
// may have been left redacted.
type MutationError struct {
	ItemID string
	Step   Step
	Cause  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.ItemID, e.Cause)
}

func (e *MutationError) Unwrap() error { return e.Cause }

// Executor removes items by redacting and then deleting them.
type Executor struct {
	mutator     domain.Mutator
	placeholder string
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPlaceholder sets the text written over an item before deletion.
func WithPlaceholder(text string) Option {
	return func(e *Executor) {
		if text != "" {
			e.placeholder = text
		}
	}
}

// New creates an Executor mutating through m.
func New(m domain.Mutator, opts ...Option) *Executor {
	e := &Executor{
		mutator:     m,
		placeholder: DefaultPlaceholder,
		logger:      slog.Default().With("component", "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply redacts then deletes item. Both steps run in order; the first failure
// is returned as a *MutationError and nothing is retried. Items that cannot be
// edited (link posts) are deleted directly.
func (e *Executor) Apply(ctx context.Context, item domain.ContentItem) error {
	if item.Editable {
		if err := e.mutator.Redact(ctx, item, e.placeholder); err != nil {
			return &MutationError{ItemID: item.ID, Step: StepRedact, Cause: err}
		}
	}
	if err := e.mutator.Delete(ctx, item); err != nil {
		return &MutationError{ItemID: item.ID, Step: StepDelete, Cause: err}
	}

	e.logger.Debug("item removed", "id", item.ID, "kind", item.Kind)
	return nil
}

// IsAuthFailure reports whether a mutation failed because credentials were rejected.
func IsAuthFailure(err error) bool {
	return errors.Is(err, domain.ErrAuthentication)
}
