// Package analyzer turns the outcomes of one path into a leak report.
package analyzer

import (
	"fmt"

	"leakcheck/internal/runner"
	"leakcheck/internal/stats"
)

// Report summarizes one path. It is computed once and never mutated.
type Report struct {
	Path      string `json:"path"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	ErrorRate string `json:"error_rate"`

	Unique       int      `json:"unique"`
	Duplicates   int      `json:"duplicates"`
	Leaked       bool     `json:"leaked"`
	DuplicateIDs []string `json:"duplicate_ids"`

	// Requests where the target itself saw two different ids.
	Mismatches int                        `json:"mismatches"`
	Failures   map[runner.FailureKind]int `json:"failures,omitempty"`

	Latency stats.Latency `json:"latency"`
}

// Analyze builds the report for path. Duplicate detection only looks at
// successful outcomes; latency percentiles cover every outcome.
func Analyze(path string, outcomes []runner.Outcome) Report {
	r := Report{
		Path:         path,
		Total:        len(outcomes),
		DuplicateIDs: []string{},
	}

	counts := make(map[string]int)
	var order []string
	latencies := make([]int64, 0, len(outcomes))

	for _, o := range outcomes {
		latencies = append(latencies, o.LatencyMs)

		if !o.Succeeded {
			r.Failed++
			if r.Failures == nil {
				r.Failures = make(map[runner.FailureKind]int)
			}
			r.Failures[o.Failure]++
			continue
		}

		r.Succeeded++
		if o.Mismatch {
			r.Mismatches++
		}
		if counts[o.CorrelationID] == 0 {
			order = append(order, o.CorrelationID)
		}
		counts[o.CorrelationID]++
	}

	for _, id := range order {
		if counts[id] > 1 {
			r.DuplicateIDs = append(r.DuplicateIDs, id)
		}
	}

	r.Unique = len(counts)
	r.Duplicates = r.Succeeded - r.Unique
	r.Leaked = r.Unique < r.Succeeded
	r.ErrorRate = formatRate(r.Failed, r.Total)
	r.Latency = stats.Summarize(latencies)

	return r
}

// DuplicateSample returns at most n duplicated ids and how many were left out.
func (r Report) DuplicateSample(n int) ([]string, int) {
	if n < 0 {
		n = 0
	}
	if len(r.DuplicateIDs) <= n {
		return r.DuplicateIDs, 0
	}
	return r.DuplicateIDs[:n], len(r.DuplicateIDs) - n
}

func formatRate(failed, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(failed)/float64(total)*100)
}
