// Package orchestrator runs the isolation test: the safe path first, then the
// unsafe path, and compares both reports against what each path should show.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"leakcheck/internal/analyzer"
	"leakcheck/internal/runner"
)

// ErrUnreachable is returned when the preflight request cannot reach the target.
var ErrUnreachable = errors.New("target unreachable")

const preflightTimeout = 10 * time.Second

// Observer follows the run. Methods are called from the orchestrating goroutine.
type Observer interface {
	PathStarted(label, path string, r *runner.Runner)
	PathFinished(label string, report analyzer.Report)
}

// Verdict is the outcome of one path compared with its expectation.
type Verdict struct {
	Path       string `json:"path"`
	Label      string `json:"label"`
	ExpectLeak bool   `json:"expect_leak"`
	Leaked     bool   `json:"leaked"`
	Duplicates int    `json:"duplicates"`
	AsExpected bool   `json:"as_expected"`
}

type Comparison struct {
	Config  runner.Config   `json:"config"`
	Safe    analyzer.Report `json:"safe"`
	Unsafe  analyzer.Report `json:"unsafe"`
	Verdict []Verdict       `json:"verdicts"`

	// Raw probe outcomes per path, kept for export.
	SafeOutcomes   []runner.Outcome `json:"-"`
	UnsafeOutcomes []runner.Outcome `json:"-"`
}

// ExpectationsMet reports whether safe stayed isolated and unsafe leaked.
func (c *Comparison) ExpectationsMet() bool {
	for _, v := range c.Verdict {
		if !v.AsExpected {
			return false
		}
	}
	return true
}

func (c *Comparison) AnyFailed() bool {
	return c.Safe.Failed > 0 || c.Unsafe.Failed > 0
}

type Orchestrator struct {
	Cfg      runner.Config
	Logger   *zap.Logger
	Observer Observer

	// NewRunner is swapped in tests; defaults to runner.NewRunner.
	NewRunner func(cfg runner.Config) *runner.Runner
}

func New(cfg runner.Config, logger *zap.Logger, obs Observer) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Cfg:      cfg,
		Logger:   logger,
		Observer: obs,
		NewRunner: func(cfg runner.Config) *runner.Runner {
			return runner.NewRunner(cfg, nil)
		},
	}
}

// Run validates the config, checks the target answers at all, then drives the
// two paths one after the other. Per-request failures end up in the reports;
// only setup errors are returned.
func (o *Orchestrator) Run(ctx context.Context) (*Comparison, error) {
	if err := o.Cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := o.preflight(ctx); err != nil {
		return nil, err
	}

	cmp := &Comparison{Config: o.Cfg}

	cmp.Safe, cmp.SafeOutcomes = o.runPath(ctx, "safe", o.Cfg.SafePath)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}
	cmp.Unsafe, cmp.UnsafeOutcomes = o.runPath(ctx, "unsafe", o.Cfg.UnsafePath)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}

	cmp.Verdict = []Verdict{
		verdict("safe", cmp.Safe, false),
		verdict("unsafe", cmp.Unsafe, true),
	}
	return cmp, nil
}

func (o *Orchestrator) runPath(ctx context.Context, label, path string) (analyzer.Report, []runner.Outcome) {
	r := o.NewRunner(o.Cfg)
	r.Logger = o.Logger.With(zap.String("path", path))

	if o.Observer != nil {
		o.Observer.PathStarted(label, path, r)
	}
	o.Logger.Info("path started", zap.String("label", label), zap.String("path", path))

	start := time.Now()
	outcomes := r.Run(ctx, path)
	report := analyzer.Analyze(path, outcomes)

	o.Logger.Info("path finished",
		zap.String("label", label),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total", report.Total),
		zap.Int("failed", report.Failed),
		zap.Bool("leaked", report.Leaked),
	)
	if o.Observer != nil {
		o.Observer.PathFinished(label, report)
	}
	return report, outcomes
}

// preflight treats any HTTP response as reachable; only transport errors are fatal.
func (o *Orchestrator) preflight(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.Cfg.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("building preflight request: %w", err)
	}
	resp, err := runner.NewClient(o.Cfg).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, o.Cfg.BaseURL, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func verdict(label string, r analyzer.Report, expectLeak bool) Verdict {
	return Verdict{
		Path:       r.Path,
		Label:      label,
		ExpectLeak: expectLeak,
		Leaked:     r.Leaked,
		Duplicates: r.Duplicates,
		AsExpected: r.Leaked == expectLeak,
	}
}
