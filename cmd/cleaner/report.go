package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/dashboard"
	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/storage"
)

var reportFlags struct {
	out   string
	serve string
	days  int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Chart past removals as an HTML page",
	Long: `Render removals recorded in the ledger (or, without a ledger, the audit log)
as an HTML report: removals by subreddit, per day and by policy.

Examples:
  cleaner report --out removals.html
  cleaner report --serve :8080 --days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		load := reportLoader(cfg, reportFlags.days)

		if reportFlags.serve != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Serving report on %s\n", reportFlags.serve)
			return dashboard.StartServer(cmd.Context(), reportFlags.serve, load)
		}

		recs, err := load(cmd.Context())
		if err != nil {
			return err
		}
		f, err := os.Create(reportFlags.out)
		if err != nil {
			return err
		}
		if err := dashboard.Render(f, recs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d removals to %s\n", len(recs), reportFlags.out)
		return nil
	},
}

// reportLoader reads from the ledger when one is configured and present,
// otherwise from the audit log. days > 0 limits the window.
func reportLoader(cfg *config.Config, days int) dashboard.Loader {
	return func(ctx context.Context) ([]domain.RemovalRecord, error) {
		var since time.Time
		if days > 0 {
			since = time.Now().AddDate(0, 0, -days)
		}

		if cfg.Ledger != "" {
			if _, err := os.Stat(cfg.Ledger); err == nil {
				ledger, err := storage.OpenLedger(cfg.Ledger)
				if err != nil {
					return nil, err
				}
				defer ledger.Close()
				return ledger.List(ctx, since)
			}
		}

		recs, err := storage.ReadAuditLog(cfg.AuditLog)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		filtered := recs[:0]
		for _, r := range recs {
			if !r.Timestamp.Before(since) {
				filtered = append(filtered, r)
			}
		}
		return filtered, nil
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportFlags.out, "out", "o", "report.html", "output file")
	reportCmd.Flags().StringVar(&reportFlags.serve, "serve", "", "serve the report on this address instead of writing a file")
	reportCmd.Flags().IntVarP(&reportFlags.days, "days", "d", 0, "only include the last N days (0 for everything)")
}
