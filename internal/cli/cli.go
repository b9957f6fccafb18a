package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"leakcheck/internal/analyzer"
	"leakcheck/internal/orchestrator"
	"leakcheck/internal/runner"
)

type Options struct {
	Output string // "text" or "json"
	Logger *zap.Logger

	// Out receives reports, Progress the live status line. nil means stdout,
	// except Progress in json mode which is discarded.
	Out      io.Writer
	Progress io.Writer
}

// Start runs the isolation test headless and prints the reports.
func Start(ctx context.Context, cfg runner.Config, opts Options) (*orchestrator.Comparison, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	progress := opts.Progress
	if progress == nil {
		progress = os.Stdout
		if opts.Output == "json" {
			progress = io.Discard
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &console{
		out:      out,
		progress: progress,
		text:     opts.Output != "json",
		total:    runner.TotalDuration(runner.BuildSchedule(cfg.DurationSec, cfg.PeakRPS)),
	}

	if c.text {
		printHeader(out, cfg)
	}

	orch := orchestrator.New(cfg, opts.Logger, c)
	cmp, err := orch.Run(ctx)
	c.stopMonitor()
	if err != nil {
		return nil, err
	}

	if c.text {
		printResults(out, cmp)
		return cmp, nil
	}
	if err := PrintJSON(out, cmp); err != nil {
		return nil, fmt.Errorf("writing json: %w", err)
	}
	return cmp, nil
}

// console prints a progress line while a path runs and its report when done.
type console struct {
	out      io.Writer
	progress io.Writer
	text     bool
	total    time.Duration

	stop chan struct{}
	done chan struct{}
}

func (c *console) PathStarted(label, path string, r *runner.Runner) {
	if c.text {
		printSection(c.out, fmt.Sprintf("%s: %s", label, path))
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.monitor(r, c.stop, c.done)
}

func (c *console) PathFinished(label string, report analyzer.Report) {
	c.stopMonitor()
	if c.text {
		fmt.Fprint(c.out, FormatReport(report))
	}
}

func (c *console) stopMonitor() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	fmt.Fprint(c.progress, "\n")
}

func (c *console) monitor(r *runner.Runner, stop, done chan struct{}) {
	defer close(done)
	startTime := time.Now()

	for {
		select {
		case <-stop:
			c.printProgress(r.Snapshot(), time.Since(startTime))
			return
		case snap := <-r.Updates:
			c.printProgress(snap, time.Since(startTime))
		}
	}
}

func (c *console) printProgress(s runner.StatsSnapshot, elapsed time.Duration) {
	pct := elapsed.Seconds() / c.total.Seconds()
	if pct > 1.0 {
		pct = 1.0
	}

	if s.Phase == "drain" {
		fmt.Fprintf(c.progress, "\r%s %3.0f%% | %s/%s | Draining: %d requests...              ",
			progressBar(1.0, 20), 100.0,
			elapsed.Round(time.Second), c.total,
			s.Inflight)
		return
	}

	fmt.Fprintf(c.progress, "\r%s %3.0f%% | %-7s %3d rps | %s/%s | Inf: %3d | OK: %d | Err: %s",
		progressBar(pct, 20), pct*100,
		s.Phase, s.TargetRPS,
		elapsed.Round(time.Second), c.total,
		s.Inflight,
		s.Success,
		errorColumn(s),
	)
}

func errorColumn(s runner.StatsSnapshot) string {
	if s.Fail == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%s)", s.Fail, s.FailureSummary())
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
