// Package export writes per-probe outcomes to disk for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"leakcheck/internal/orchestrator"
	"leakcheck/internal/runner"
)

var csvHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "dataType", "success", "failureMessage",
	"correlationId", "failureKind", "mismatch",
}

// WriteCSV writes every outcome of both paths in a JMeter-compatible layout,
// with the correlation columns appended after the standard ones.
func WriteCSV(w io.Writer, cmp *orchestrator.Comparison) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	if err := writeRows(cw, cmp.Safe.Path, "safe", cmp.SafeOutcomes); err != nil {
		return err
	}
	if err := writeRows(cw, cmp.Unsafe.Path, "unsafe", cmp.UnsafeOutcomes); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func writeRows(cw *csv.Writer, path, label string, outcomes []runner.Outcome) error {
	for i, o := range outcomes {
		code := ""
		if o.Status != 0 {
			code = strconv.Itoa(o.Status)
		}
		record := []string{
			strconv.FormatInt(o.TimeStamp.UnixMilli(), 10),
			strconv.FormatInt(o.LatencyMs, 10),
			path,
			code,
			http.StatusText(o.Status),
			fmt.Sprintf("%s-%d", label, i+1),
			"text",
			strconv.FormatBool(o.Succeeded),
			o.ErrorDetail,
			o.CorrelationID,
			string(o.Failure),
			strconv.FormatBool(o.Mismatch),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// CSV writes the outcomes to filename.
func CSV(cmp *orchestrator.Comparison, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, cmp); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return f.Close()
}

type pathOutcomes struct {
	Path     string           `json:"path"`
	Outcomes []runner.Outcome `json:"outcomes"`
}

// JSON writes the raw outcomes of both paths to filename.
func JSON(cmp *orchestrator.Comparison, filename string) error {
	data, err := json.MarshalIndent(map[string]pathOutcomes{
		"safe":   {Path: cmp.Safe.Path, Outcomes: cmp.SafeOutcomes},
		"unsafe": {Path: cmp.Unsafe.Path, Outcomes: cmp.UnsafeOutcomes},
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
