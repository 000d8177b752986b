// Package cli prints headless progress and summaries for load runs.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"apiscope/internal/runner"
	"apiscope/internal/storage"
	"apiscope/internal/tui/app"
)

// Start runs r to completion while drawing a progress line on out, then
// prints the summary.
func Start(ctx context.Context, r *runner.Runner, out io.Writer) runner.Summary {
	printHeader(out, r.Cfg)

	done := make(chan runner.Summary, 1)
	go func() { done <- r.Run(ctx) }()

	startTime := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond) // Faster updates for progress bar
	defer ticker.Stop()

	for {
		select {
		case <-r.Updates:
			// Drain updates
		case sum := <-done:
			printProgress(out, r.Snapshot(), time.Since(startTime))
			printSummary(out, r, sum)
			return sum
		case <-ticker.C:
			printProgress(out, r.Snapshot(), time.Since(startTime))
		}
	}
}

func printProgress(out io.Writer, snap runner.StatsSnapshot, elapsed time.Duration) {
	pct := 0.0
	if snap.Total > 0 {
		pct = float64(snap.Completed) / float64(snap.Total)
	}
	var ok, fail uint64
	for _, ps := range snap.Protocols {
		ok += ps.Success
		fail += ps.Fail
	}
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(snap.Completed) / elapsed.Seconds()
	}

	fmt.Fprintf(out, "\r%s %3.0f%% | %d/%d | %s | Inf: %3d | RPS: %.1f | OK: %d | Err: %d",
		progressBar(pct, 20), pct*100,
		snap.Completed, snap.Total,
		elapsed.Round(time.Second),
		snap.Inflight,
		rps,
		ok,
		fail,
	)
}

func printHeader(out io.Writer, cfg runner.Config) {
	fmt.Fprintf(out, "\n🚀 STARTING APISCOPE LOAD RUN\n")
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Target     : %s\n", cfg.Target)
	for _, p := range cfg.Protocols() {
		fmt.Fprintf(out, "%-11s: %s\n", strings.ToUpper(string(p))+" URL", cfg.URL(p))
	}
	fmt.Fprintf(out, "Workers    : %d (%d per protocol)\n", cfg.Workers(), cfg.Concurrency)
	fmt.Fprintf(out, "Requests   : %d per worker, %d total\n", cfg.RequestsPerWorker, cfg.TotalRequests())
	if cfg.RPS > 0 {
		fmt.Fprintf(out, "Rate cap   : %.1f req/s\n", cfg.RPS)
	}
	fmt.Fprintf(out, "Timeout    : %ds\n", cfg.TimeoutSec)
	fmt.Fprintf(out, "======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(out io.Writer, r *runner.Runner, sum runner.Summary) {
	rps := 0.0
	if sum.Elapsed > 0 {
		rps = float64(sum.Requests) / sum.Elapsed.Seconds()
	}

	fmt.Fprintf(out, "\n\n📊 LOAD RUN RESULTS\n")
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Total Duration : %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Workers        : %d\n", sum.Workers)
	fmt.Fprintf(out, "Requests Sent  : %d\n", sum.Requests)
	fmt.Fprintf(out, "Success        : %d\n", sum.Success)
	fmt.Fprintf(out, "Failures       : %d\n", sum.Fail)
	fmt.Fprintf(out, "Actual RPS     : %.2f\n", rps)

	for _, p := range r.Cfg.Protocols() {
		stats := r.Stats[p]
		fmt.Fprintf(out, "\n⏱️  %s RESPONSE TIMES (ms)\n", strings.ToUpper(string(p)))
		fmt.Fprintf(out, "   P50 : %.2f\n", stats.GetP50Service())
		fmt.Fprintf(out, "   P90 : %.2f\n", stats.GetP90Service())
		fmt.Fprintf(out, "   P95 : %.2f\n", stats.GetP95Service())
		fmt.Fprintf(out, "   P99 : %.2f\n", stats.GetP99Service())
		fmt.Fprintf(out, "   Max : %d\n", stats.ServiceTime.Max()/1000)

		errCounts := stats.GetErrorCounts()
		if len(errCounts) > 0 {
			fmt.Fprintf(out, "\n❌ %s FAILURE SUMMARY\n", strings.ToUpper(string(p)))
			for _, ec := range errCounts {
				fmt.Fprintf(out, "   %d x %s\n", ec.Count, ec.Reason)
			}
		}
	}
	fmt.Fprintf(out, "======================================================================\n")
}

// Report writes the run to <prefix>.{json,csv} when prefix is set.
func Report(out io.Writer, item storage.HistoryItem, prefix string) error {
	if prefix == "" {
		return nil
	}
	fmt.Fprintf(out, "\n💾 Generating reports with prefix: %s\n", prefix)
	if err := app.ExportRun(item, prefix); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Reports saved to %s.{json,csv}\n", prefix)
	return nil
}
