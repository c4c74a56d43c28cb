package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write renders results in the processor's configured format.
func (p *Processor) Write(w io.Writer, results []Result) error {
	switch p.opts.Format {
	case "json":
		return writeJSON(w, results)
	case "csv":
		return writeCSV(w, results)
	default:
		return writeText(w, results)
	}
}

func writeText(w io.Writer, results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "%s: ERROR: %v\n", r.File, r.Err); err != nil {
				return err
			}
			continue
		}
		amount := "-"
		if r.Outcome.Amount != nil {
			amount = *r.Outcome.Amount
		}
		line := fmt.Sprintf("%s: amount=%s confidence=%.2f elapsed=%dms",
			r.File, amount, r.Outcome.AverageConfidence, r.Outcome.ElapsedMillis)
		if len(r.Outcome.Warnings) > 0 {
			line += " warnings=" + strings.Join(r.Outcome.Warnings, "; ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	summary := Summarize(results)
	_, err := fmt.Fprintf(w, "\n%d processed, %d succeeded, %d failed\n",
		summary.Total, summary.Succeeded, summary.Failed)
	return err
}

type jsonItem struct {
	File    string `json:"file"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []Result) error {
	items := make([]jsonItem, len(results))
	for i, r := range results {
		items[i] = jsonItem{File: r.File, Success: r.Err == nil}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		} else {
			items[i].Data = r.Outcome
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func writeCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "amount", "confidence", "processing_time_ms", "warnings", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{r.File, "", "", "", "", ""}
		if r.Err != nil {
			record[5] = r.Err.Error()
		} else {
			if r.Outcome.Amount != nil {
				record[1] = *r.Outcome.Amount
			}
			record[2] = strconv.FormatFloat(r.Outcome.AverageConfidence, 'f', 4, 64)
			record[3] = strconv.FormatInt(r.Outcome.ElapsedMillis, 10)
			record[4] = strings.Join(r.Outcome.Warnings, "; ")
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
