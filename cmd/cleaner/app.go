package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/qepting91/reddit-cleaner/internal/collector"
	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/executor"
	"github.com/qepting91/reddit-cleaner/internal/ingest"
	"github.com/qepting91/reddit-cleaner/internal/metrics"
	"github.com/qepting91/reddit-cleaner/internal/policy"
	"github.com/qepting91/reddit-cleaner/internal/session"
	"github.com/qepting91/reddit-cleaner/internal/storage"
	"github.com/qepting91/reddit-cleaner/internal/throttle"
)

// profileFlags override the loaded profile for one invocation.
type profileFlags struct {
	policies []string
	days     int
	kind     string
	dryRun   bool
}

// apply writes the flag overrides into cfg.
func (f profileFlags) apply(cfg *config.Config) {
	if f.kind != "" {
		cfg.Kinds = []string{f.kind}
	}
	if len(f.policies) > 0 {
		specs := make([]config.PolicySpec, 0, len(f.policies))
		for _, name := range f.policies {
			specs = append(specs, config.PolicySpec{Name: name, MaxAgeDays: f.days})
		}
		cfg.Policies = specs
	} else if f.days > 0 {
		for i := range cfg.Policies {
			if cfg.Policies[i].Name == string(policy.ChoiceAge) {
				cfg.Policies[i].MaxAgeDays = f.days
			}
		}
	}
}

// app is the wired object graph behind every command.
type app struct {
	cfg       *config.Config
	session   *session.Session
	ledger    *storage.Ledger
	owner     string
	protected []string
	logger    *slog.Logger
}

// newApp validates cfg and wires collector, executor, throttle, recorders
// and session. In api mode the credentials are checked before returning.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer, dryRun bool, m *metrics.Metrics) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == config.ModePublic && !dryRun {
		return nil, fmt.Errorf("public mode is read-only; add --dry-run")
	}
	logger := slog.Default().With("component", "cli")

	src, err := collector.NewCollector(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Collector initialized", "mode", cfg.Mode)

	owner := cfg.OwnerName()
	if v, ok := src.(domain.Verifier); ok {
		name, err := v.Verify(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(out, "Authenticated successfully.")
		if owner == "" {
			owner = name
		}
	}

	protected, err := ingest.LoadProtected(cfg.ProtectedFile)
	if err != nil {
		return nil, fmt.Errorf("load protected subreddits: %w", err)
	}

	jitter, err := throttle.New(cfg.Throttle.Min, cfg.Throttle.Max)
	if err != nil {
		return nil, err
	}

	audit, err := storage.NewAuditLog(cfg.AuditLog)
	if err != nil {
		return nil, err
	}
	recorders := storage.Multi{audit}

	a := &app{cfg: cfg, owner: owner, protected: protected, logger: logger}
	if cfg.Ledger != "" {
		a.ledger, err = storage.OpenLedger(cfg.Ledger)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, a.ledger)
	}

	exec := executor.New(src, executor.WithPlaceholder(cfg.Placeholder))
	a.session = session.New(src, exec, recorders, jitter,
		session.WithProgress(out),
		session.WithMetrics(m),
		session.WithDryRun(dryRun),
	)
	return a, nil
}

// Close releases the ledger, if any.
func (a *app) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

// plan resolves the profile into the ordered passes to run.
func (a *app) plan() (session.Plan, error) {
	policies, err := a.cfg.PolicyList()
	if err != nil {
		return session.Plan{}, err
	}
	return a.planFor(policies)
}

// planFor runs policies over the configured kinds, honouring protected subreddits.
func (a *app) planFor(policies []policy.Policy) (session.Plan, error) {
	kinds, err := a.cfg.KindList()
	if err != nil {
		return session.Plan{}, err
	}
	wrapped := make([]policy.Policy, len(policies))
	for i, p := range policies {
		wrapped[i] = policy.Protect(p, a.protected)
	}
	return session.Plan{Owner: a.owner, Kinds: kinds, Policies: wrapped}, nil
}

// runPlan executes every pass of plan and logs the total.
func (a *app) runPlan(ctx context.Context, plan session.Plan) (int, error) {
	sums, err := session.RunPlan(ctx, a.session, plan)
	removed := session.TotalRemoved(sums)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return removed, fmt.Errorf("could not authenticate with the provided credentials: %w", err)
		}
		return removed, err
	}
	a.logger.Info("profile complete", "passes", len(sums), "removed", removed)
	return removed, nil
}
