package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/executor"
	"github.com/qepting91/reddit-cleaner/internal/metrics"
	"github.com/qepting91/reddit-cleaner/internal/policy"
)

// State is a step of one enforcement pass.
type State int

const (
	Idle State = iota
	Scanning
	Evaluating
	Skipping
	Removing
	Summarizing
)

var stateNames = [...]string{"idle", "scanning", "evaluating", "skipping", "removing", "summarizing"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mutator applies a removal to one item.
type Mutator interface {
	Apply(ctx context.Context, item domain.ContentItem) error
}

// Throttle delays the session after each successful removal.
type Throttle interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Request describes one pass.
type Request struct {
	Kind   domain.Kind
	Owner  string
	Policy policy.Policy
}

// Summary reports the counters of a finished pass.
type Summary struct {
	SessionID string
	Kind      domain.Kind
	Policy    string
	DryRun    bool

	Scanned int
	Matched int
	Removed int
	Failed  int

	// Interrupted is set when the stream failed or the context was
	// cancelled after at least one item was read.
	Interrupted bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Session walks a content stream, applies one policy per item and removes
// what the policy rejects. A Session runs one pass at a time.
type Session struct {
	lister   domain.Lister
	mutator  Mutator
	recorder domain.Recorder
	throttle Throttle

	clock    func() time.Time
	metrics  *metrics.Metrics
	progress io.Writer
	observer func(State)
	dryRun   bool
	logger   *slog.Logger

	mu    sync.Mutex
	state atomic.Int32
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the source of the reference time used for age comparisons.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithMetrics records activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithProgress sets where human-readable progress lines are printed.
func WithProgress(w io.Writer) Option {
	return func(s *Session) { s.progress = w }
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithDryRun evaluates and counts matches without mutating anything.
func WithDryRun(dry bool) Option {
	return func(s *Session) { s.dryRun = dry }
}

// New creates a Session. recorder and throttle may be nil.
func New(lister domain.Lister, mutator Mutator, recorder domain.Recorder, throttle Throttle, opts ...Option) *Session {
	s := &Session{
		lister:   lister,
		mutator:  mutator,
		recorder: recorder,
		throttle: throttle,
		clock:    time.Now,
		progress: io.Discard,
		logger:   slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) transition(to State) {
	s.state.Store(int32(to))
	if s.observer != nil {
		s.observer(to)
	}
}

// Run executes one full pass and returns its summary. Item-level failures
// are reported and skipped. Run returns an error when credentials are
// rejected, when the stream fails before producing any item, or when ctx
// is cancelled; the summary then holds whatever was done so far.
func (s *Session) Run(ctx context.Context, req Request) (Summary, error) {
	if req.Policy == nil {
		return Summary{}, errors.New("session: no policy")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	sum := Summary{
		SessionID: uuid.NewString(),
		Kind:      req.Kind,
		Policy:    req.Policy.Name(),
		DryRun:    s.dryRun,
		StartedAt: now,
	}
	log := s.logger.With("session", sum.SessionID, "kind", req.Kind, "policy", sum.Policy)
	log.Info("session started", "owner", req.Owner, "dry_run", s.dryRun)
	fmt.Fprintf(s.progress, "Working (%s on %s)...\n", sum.Policy, req.Kind)

	s.transition(Scanning)
	err := s.scan(ctx, req, now, &sum, log)
	return s.summarize(sum, err, log)
}

func (s *Session) scan(ctx context.Context, req Request, now time.Time, sum *Summary, log *slog.Logger) error {
	for item, err := range s.lister.Stream(ctx, req.Kind, req.Owner) {
		if err != nil {
			if errors.Is(err, domain.ErrAuthentication) || sum.Scanned == 0 {
				return fmt.Errorf("stream %s: %w", req.Kind, err)
			}
			log.Warn("stream ended early", "error", err, "scanned", sum.Scanned)
			fmt.Fprintf(s.progress, "Stopped after %d items: %v\n", sum.Scanned, err)
			sum.Interrupted = true
			return nil
		}
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			return err
		}
		if err := s.process(ctx, req, item, now, sum, log); err != nil {
			return err
		}
		s.transition(Scanning)
	}
	return nil
}

func (s *Session) process(ctx context.Context, req Request, item domain.ContentItem, now time.Time, sum *Summary, log *slog.Logger) error {
	s.transition(Evaluating)
	sum.Scanned++
	s.metrics.ItemScanned(string(req.Kind), sum.Policy)

	if req.Policy.Evaluate(item, now) == domain.Keep {
		s.transition(Skipping)
		return nil
	}
	sum.Matched++

	if s.dryRun {
		s.transition(Skipping)
		fmt.Fprintf(s.progress, "Would remove %s in r/%s (score %d)\n", item.ID, item.Subreddit, item.Score)
		return nil
	}

	// item is a value; its Body still holds the text as it was before redaction.
	if err := s.mutator.Apply(ctx, item); err != nil {
		s.transition(Skipping)
		sum.Failed++
		step := "unknown"
		var merr *executor.MutationError
		if errors.As(err, &merr) {
			step = string(merr.Step)
		}
		s.metrics.MutationFailed(string(req.Kind), step)
		if executor.IsAuthFailure(err) {
			return fmt.Errorf("mutate %s: %w", item.ID, err)
		}
		log.Warn("item skipped", "id", item.ID, "error", err)
		fmt.Fprintf(s.progress, "Error removing %s: %v\n", item.ID, err)
		return nil
	}

	s.transition(Removing)
	sum.Removed++
	s.metrics.ItemRemoved(string(req.Kind), sum.Policy)
	fmt.Fprintf(s.progress, "Deleted %s in r/%s (score %d)\n", item.ID, item.Subreddit, item.Score)

	if s.recorder != nil {
		rec := domain.RemovalRecord{
			Timestamp: s.clock().UTC(),
			Score:     item.Score,
			Body:      item.Text(),
			ItemID:    item.ID,
			Kind:      item.Kind,
			Subreddit: item.Subreddit,
			Policy:    sum.Policy,
			SessionID: sum.SessionID,
		}
		if err := s.recorder.Record(ctx, rec); err != nil {
			// the item is already gone; losing the record must not undo the count
			log.Error("failed to record removal", "id", item.ID, "error", err)
		}
	}

	if s.throttle != nil {
		d, err := s.throttle.Wait(ctx)
		s.metrics.Throttled(d)
		if err != nil {
			sum.Interrupted = true
			return err
		}
	}
	return nil
}

func (s *Session) summarize(sum Summary, err error, log *slog.Logger) (Summary, error) {
	s.transition(Summarizing)
	sum.FinishedAt = s.clock()

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case sum.Interrupted:
		outcome = "interrupted"
	}
	s.metrics.SessionFinished(outcome, sum.FinishedAt)

	if err != nil {
		log.Error("session aborted", "error", err, "removed", sum.Removed)
	} else {
		log.Info("session finished",
			"scanned", sum.Scanned,
			"matched", sum.Matched,
			"removed", sum.Removed,
			"failed", sum.Failed,
			"interrupted", sum.Interrupted,
		)
	}
	fmt.Fprintln(s.progress, sum.Line())

	s.transition(Idle)
	return sum, err
}

// Line renders the summary as the one-line report shown to the user.
func (sum Summary) Line() string {
	noun := string(sum.Kind)
	if sum.DryRun {
		if sum.Matched == 0 {
			return fmt.Sprintf("There were no %s to delete.", noun)
		}
		return fmt.Sprintf("Dry run: %d of %d %s would be deleted.", sum.Matched, sum.Scanned, noun)
	}
	if sum.Removed == 0 && sum.Failed > 0 {
		return fmt.Sprintf("No %s were deleted; %d could not be removed.", noun, sum.Failed)
	}
	if sum.Removed == 0 {
		return fmt.Sprintf("There were no %s to delete.", noun)
	}
	line := fmt.Sprintf("The script ran successfully and deleted %d %s.", sum.Removed, noun)
	if sum.Failed > 0 {
		line += fmt.Sprintf(" %d could not be removed.", sum.Failed)
	}
	return line
}
