package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leakcheck/internal/stats"
)

const (
	tickSpan       = time.Second
	updateInterval = 200 * time.Millisecond
	secondReadKey  = "call2RequestId"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Path      string
	Phase     string
	TargetRPS int

	Fired      uint64
	Requests   uint64
	Success    uint64
	Fail       uint64
	Mismatches uint64
	Inflight   int64
	ErrorRate  float64

	// Failures by kind, copied so views can read it without locking.
	ErrorCounts map[string]uint64

	// Pre-calculated percentiles for the UI (cheap copy)
	MeanMs float64
	P50Ms  float64
	P95Ms  float64
	P99Ms  float64
	MaxMs  int64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Runner drives one path through the phase schedule. Use a fresh Runner per path.
type Runner struct {
	Cfg    Config
	Stats  *stats.Stats
	Client *http.Client
	Logger *zap.Logger

	mu       sync.Mutex
	outcomes []Outcome
	path     string
	phase    string
	rate     int

	fired    uint64
	inflight int64

	// Event Channel
	Updates StatsUpdateChan
}

// NewClient returns the HTTP client probes use, pooled for bursts of
// concurrent requests against one host.
func NewClient(cfg Config) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Transport: t,
	}
}

func NewRunner(cfg Config, updates StatsUpdateChan) *Runner {
	client := NewClient(cfg)

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:     cfg,
		Stats:   stats.NewStats(),
		Client:  client,
		Logger:  zap.NewNop(),
		Updates: updates,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

// Snapshot returns the current live counters.
func (r *Runner) Snapshot() StatsSnapshot {
	r.mu.Lock()
	path, phase, rate := r.path, r.phase, r.rate
	r.mu.Unlock()

	return StatsSnapshot{
		Path:        path,
		Phase:       phase,
		TargetRPS:   rate,
		Fired:       atomic.LoadUint64(&r.fired),
		Requests:    atomic.LoadUint64(&r.Stats.Requests),
		Success:     atomic.LoadUint64(&r.Stats.Success),
		Fail:        atomic.LoadUint64(&r.Stats.Fail),
		Mismatches:  atomic.LoadUint64(&r.Stats.Mismatches),
		Inflight:    atomic.LoadInt64(&r.inflight),
		ErrorRate:   r.Stats.ErrorRate(),
		ErrorCounts: r.Stats.ErrorCounts(),
		MeanMs:      r.Stats.Latency.MeanMs(),
		P50Ms:       r.Stats.GetP50(),
		P95Ms:       r.Stats.GetP95(),
		P99Ms:       r.Stats.GetP99(),
		MaxMs:       r.Stats.Latency.MaxMs(),
	}
}

// FailureSummary renders ErrorCounts as "2 protocol, 1 transport", sorted by kind.
func (s StatsSnapshot) FailureSummary() string {
	kinds := make([]string, 0, len(s.ErrorCounts))
	for k := range s.ErrorCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", s.ErrorCounts[k], k))
	}
	return strings.Join(parts, ", ")
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run drives path through the schedule built from Cfg and returns every outcome
// after all fired probes have landed.
func (r *Runner) Run(ctx context.Context, path string) []Outcome {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	r.StartTickLoop(tickCtx, updateInterval)

	phases := BuildSchedule(r.Cfg.DurationSec, r.Cfg.PeakRPS)
	return r.RunPhases(ctx, r.Cfg.TargetURL(path), phases)
}

// RunPhases emits probes against url following phases. Probes are dispatched
// without waiting; the call returns once all of them have completed.
// Cancelling ctx stops scheduling and aborts in-flight probes.
func (r *Runner) RunPhases(ctx context.Context, url string, phases []Phase) []Outcome {
	var wg sync.WaitGroup

	for _, phase := range phases {
		if ctx.Err() != nil {
			break
		}
		r.Logger.Debug("phase started",
			zap.String("phase", phase.Name),
			zap.Duration("duration", phase.Duration),
			zap.Int("start_rps", phase.StartRate),
			zap.Int("end_rps", phase.EndRate),
		)
		r.runPhase(ctx, &wg, url, phase)
	}

	r.setPhase("drain", 0)
	wg.Wait()
	r.sendUpdate()

	return r.Outcomes()
}

func (r *Runner) runPhase(ctx context.Context, wg *sync.WaitGroup, url string, phase Phase) {
	phaseStart := time.Now()
	phaseEnd := phaseStart.Add(phase.Duration)

	for time.Now().Before(phaseEnd) {
		progress := float64(time.Since(phaseStart)) / float64(phase.Duration)
		rate := phase.RateAt(progress)
		r.setPhase(phase.Name, rate)

		interval := tickSpan / time.Duration(rate)
		tickStart := time.Now()

		for i := 0; i < rate; i++ {
			// Overrun offsets fire immediately.
			if wait := time.Duration(i)*interval - time.Since(tickStart); wait > 0 {
				if !sleepCtx(ctx, wait) {
					return
				}
			}
			r.fire(ctx, wg, url)
		}

		if remaining := tickSpan - time.Since(tickStart); remaining > 0 {
			if !sleepCtx(ctx, remaining) {
				return
			}
		}
	}
}

func (r *Runner) fire(ctx context.Context, wg *sync.WaitGroup, url string) {
	wg.Add(1)
	atomic.AddUint64(&r.fired, 1)
	atomic.AddInt64(&r.inflight, 1)

	go func() {
		defer wg.Done()
		defer atomic.AddInt64(&r.inflight, -1)
		r.record(r.Probe(ctx, url))
	}()
}

func (r *Runner) record(o Outcome) {
	r.Stats.Add(o.Succeeded, time.Duration(o.LatencyMs)*time.Millisecond, string(o.Failure), o.Mismatch)

	if !o.Succeeded {
		r.Logger.Debug("probe failed",
			zap.String("failure", string(o.Failure)),
			zap.String("detail", o.ErrorDetail),
			zap.Int64("latency_ms", o.LatencyMs),
		)
	}

	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

// Probe issues a single timed GET and decodes the correlation id.
// Errors are folded into the returned Outcome; Probe never retries.
func (r *Runner) Probe(ctx context.Context, url string) Outcome {
	start := time.Now()
	o := Outcome{TimeStamp: start}

	fail := func(kind FailureKind, detail string) Outcome {
		o.LatencyMs = elapsedMs(start)
		o.Failure = kind
		o.ErrorDetail = detail
		return o
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(FailureTransport, err.Error())
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fail(FailureTransport, err.Error())
	}
	defer resp.Body.Close()
	o.Status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fail(FailureProtocol, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(FailureTransport, fmt.Sprintf("reading body: %v", err))
	}

	id, err := DecodeCorrelationID(body)
	if err != nil {
		return fail(FailureDecode, err.Error())
	}
	if second, ok := DecodeField(body, secondReadKey); ok && second != id {
		o.Mismatch = true
	}

	o.CorrelationID = id
	o.Succeeded = true
	o.LatencyMs = elapsedMs(start)
	return o
}

// Outcomes returns a copy of the outcomes recorded so far, in completion order.
func (r *Runner) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func (r *Runner) Fired() uint64 {
	return atomic.LoadUint64(&r.fired)
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}

func (r *Runner) setPhase(name string, rate int) {
	r.mu.Lock()
	r.phase = name
	r.rate = rate
	r.mu.Unlock()
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Round(time.Millisecond).Milliseconds()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
