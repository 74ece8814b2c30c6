package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/metrics"
	"github.com/qepting91/reddit-cleaner/internal/scheduler"
)

var watchFlags struct {
	profileFlags
	schedule string
	now      bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the retention profile on a cron schedule",
	Long: `Run the configured profile on a cron schedule until interrupted, serving
Prometheus metrics on the configured address.

Common schedules:
  "0 3 * * *"    - Daily at 3 AM
  "0 */6 * * *"  - Every 6 hours
  "@every 12h"   - Every 12 hours from start`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		watchFlags.apply(cfg)
		if watchFlags.schedule != "" {
			cfg.Schedule = watchFlags.schedule
		}
		if cfg.Schedule == "" {
			return fmt.Errorf("watch needs a schedule")
		}
		return watch(cmd.Context(), cfg, cmd)
	},
}

func watch(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	m := metrics.New(prometheus.NewRegistry())
	a, err := newApp(ctx, cfg, cmd.OutOrStdout(), watchFlags.dryRun, m)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.plan()
	if err != nil {
		return err
	}
	job := func(ctx context.Context) (int, error) { return a.runPlan(ctx, plan) }

	srv := startMetricsServer(cfg.MetricsAddr, m)
	if srv != nil {
		defer srv.Close()
	}

	sched := scheduler.New(cfg.Schedule, job)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	if next := sched.NextRun(); next != nil {
		a.logger.Info("waiting for next run", "at", next.Format(time.RFC3339))
	}
	if watchFlags.now {
		sched.RunOnce(ctx)
	}

	<-ctx.Done()
	sched.Stop()
	a.logger.Info("Shutdown signal received")
	return nil
}

// startMetricsServer serves /metrics on addr in the background. An empty
// addr disables it.
func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := slog.Default().With("component", "metrics")
	go func() {
		logger.Info("Starting metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	return srv
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVarP(&watchFlags.policies, "policy", "p", nil, "policy to run, repeatable, in order (age, negative, stale)")
	watchCmd.Flags().IntVarP(&watchFlags.days, "days", "d", 0, "maximum age in days for the age policy")
	watchCmd.Flags().StringVarP(&watchFlags.kind, "kind", "k", "", "content kind (comments, posts, all)")
	watchCmd.Flags().BoolVar(&watchFlags.dryRun, "dry-run", false, "count matches without redacting or deleting")
	watchCmd.Flags().StringVar(&watchFlags.schedule, "schedule", "", "cron schedule (overrides the profile)")
	watchCmd.Flags().BoolVar(&watchFlags.now, "now", false, "also run once immediately")
}
