package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// Loader returns the removals to chart.
type Loader func(ctx context.Context) ([]domain.RemovalRecord, error)

const unknownSubreddit = "(unknown)"

// Render writes an HTML report of recs to w.
func Render(w io.Writer, recs []domain.RemovalRecord) error {
	page := components.NewPage()
	page.SetPageTitle("Removal Report")
	page.AddCharts(subredditPie(recs), dailyBar(recs), policyBar(recs))
	return page.Render(w)
}

// 1. Where removals came from
func subredditPie(recs []domain.RemovalRecord) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Removals by Subreddit"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	counts := make(map[string]int)
	for _, r := range recs {
		sub := r.Subreddit
		if sub == "" {
			sub = unknownSubreddit
		}
		counts[sub]++
	}

	var items []opts.PieData
	for _, k := range sortedKeys(counts) {
		items = append(items, opts.PieData{Name: k, Value: counts[k]})
	}
	pie.AddSeries("Removals", items)
	return pie
}

// 2. Removals per UTC day
func dailyBar(recs []domain.RemovalRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Removals per Day"}))

	counts := make(map[string]int)
	for _, r := range recs {
		counts[r.Timestamp.UTC().Format(time.DateOnly)]++
	}

	days := sortedKeys(counts)
	y := make([]opts.BarData, 0, len(days))
	for _, d := range days {
		y = append(y, opts.BarData{Value: counts[d]})
	}
	bar.SetXAxis(days).AddSeries("Removed", y)
	return bar
}

// 3. Which policy matched
func policyBar(recs []domain.RemovalRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Removals by Policy"}))

	counts := make(map[string]int)
	for _, r := range recs {
		p := r.Policy
		if p == "" {
			p = "(unrecorded)"
		}
		counts[p]++
	}

	names := sortedKeys(counts)
	y := make([]opts.BarData, 0, len(names))
	for _, n := range names {
		y = append(y, opts.BarData{Value: counts[n]})
	}
	bar.SetXAxis(names).AddSeries("Removed", y)
	return bar
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler serves a freshly rendered report on every request.
func Handler(load Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recs, err := load(r.Context())
		if err != nil {
			slog.Error("report load failed", "err", err)
			http.Error(w, "could not load removals", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := Render(w, recs); err != nil {
			slog.Error("report render failed", "err", err)
		}
	})
}

// StartServer serves the report on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, load Loader) error {
	mux := http.NewServeMux()
	mux.Handle("/", Handler(load))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
