package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"leakcheck/internal/analyzer"
	"leakcheck/internal/orchestrator"
	"leakcheck/internal/runner"
	"leakcheck/internal/tui/styles"
)

const duplicateSampleSize = 3

func printHeader(w io.Writer, cfg runner.Config) {
	fmt.Fprintf(w, "\n🔬 ISOLATION LOAD TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target     : %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Paths      : %s (safe), %s (unsafe)\n", cfg.SafePath, cfg.UnsafePath)
	fmt.Fprintf(w, "Duration   : %s per path\n", runner.TotalDuration(runner.BuildSchedule(cfg.DurationSec, cfg.PeakRPS)))
	fmt.Fprintf(w, "Peak RPS   : %d\n", cfg.PeakRPS)
	fmt.Fprintf(w, "Delay      : %dms (server-side per request)\n", cfg.DelayMs)
	fmt.Fprintf(w, "In-flight  : ~%d concurrent at peak\n", cfg.ExpectedInflight())
	fmt.Fprintf(w, "======================================================================\n")
}

func printSection(w io.Writer, title string) {
	line := fmt.Sprintf("── %s ", title)
	if pad := 48 - len([]rune(line)); pad > 0 {
		line += strings.Repeat("─", pad)
	}
	fmt.Fprintf(w, "\n%s\n\n", styles.Section.Render(line))
}

// FormatReport renders the per-path summary block.
func FormatReport(r analyzer.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  Requests:   %d/%d succeeded (%s errors)\n", r.Succeeded, r.Total, r.ErrorRate)
	fmt.Fprintf(&b, "  Latency:    p50=%dms  p95=%dms  p99=%dms  max=%dms\n",
		r.Latency.P50, r.Latency.P95, r.Latency.P99, r.Latency.Max)
	fmt.Fprintf(&b, "  Unique IDs: %d / %d\n", r.Unique, r.Succeeded)

	if r.Duplicates > 0 {
		shown, extra := r.DuplicateSample(duplicateSampleSize)
		more := ""
		if extra > 0 {
			more = fmt.Sprintf(" ...+%d more", extra)
		}
		fmt.Fprintf(&b, "  Duplicates: %s (%s%s)\n",
			styles.Error.Render(fmt.Sprint(r.Duplicates)), strings.Join(shown, ", "), more)
	}
	if r.Mismatches > 0 {
		fmt.Fprintf(&b, "  Mismatches: %d requests read a different id on their second read\n", r.Mismatches)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "  Failures:   %s\n", formatFailures(r.Failures))
	}
	return b.String()
}

func formatFailures(f map[runner.FailureKind]int) string {
	kinds := make([]string, 0, len(f))
	for k := range f {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", f[runner.FailureKind(k)], k))
	}
	return strings.Join(parts, ", ")
}

// FormatVerdict renders one result line.
func FormatVerdict(v orchestrator.Verdict) string {
	label := fmt.Sprintf("%-8s %-10s", v.Path, "("+v.Label+")")
	switch {
	case v.Leaked && v.ExpectLeak:
		return fmt.Sprintf("  %s %s", label,
			styles.Error.Render(fmt.Sprintf("❌ LEAKED (expected, %d duplicate IDs)", v.Duplicates)))
	case v.Leaked:
		return fmt.Sprintf("  %s %s", label,
			styles.Error.Render(fmt.Sprintf("❌ LEAKED (%d duplicate IDs)", v.Duplicates)))
	case v.ExpectLeak:
		return fmt.Sprintf("  %s %s", label,
			styles.Warn.Render("⚠️  No leak detected (try a higher --rate or longer --duration)"))
	default:
		return fmt.Sprintf("  %s %s", label, styles.Success.Render("✅ ISOLATED"))
	}
}

func printResults(w io.Writer, cmp *orchestrator.Comparison) {
	printSection(w, "RESULTS")
	for _, v := range cmp.Verdict {
		fmt.Fprintln(w, FormatVerdict(v))
	}

	if cmp.AnyFailed() {
		fmt.Fprintf(w, "\n%s\n", styles.Warn.Render("⚠️  Some requests failed, check error rates above."))
		fmt.Fprintln(w, "   A high error rate usually means upstream rate limiting or WAF/DDoS")
		fmt.Fprintln(w, "   protection kicked in, not that the isolation test itself is broken.")
	}
}

// PrintJSON writes the whole comparison as indented JSON.
func PrintJSON(w io.Writer, cmp *orchestrator.Comparison) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cmp)
}
