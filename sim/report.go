package sim

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the miss ratios of a set of results.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes summary statistics of the request miss ratios.
func Summarize(results []Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	mr := make([]float64, len(results))
	for i, r := range results {
		mr[i] = r.MissRatio()
	}
	s := Summary{
		N:    len(mr),
		Mean: stat.Mean(mr, nil),
		Min:  floats.Min(mr),
		Max:  floats.Max(mr),
	}
	if len(mr) > 1 {
		s.StdDev = stat.StdDev(mr, nil)
	}
	return s
}

// Format selects the report layout.
type Format int

const (
	Text Format = iota
	Markdown
)

// WriteReport writes one row per result followed by the summary.
func WriteReport(w io.Writer, results []Result, f Format) error {
	header := []string{"policy", "capacity", "requests", "miss ratio", "byte miss ratio", "evictions", "rejected", "elapsed"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Name,
			fmt.Sprint(r.Experiment.Params.Capacity),
			fmt.Sprint(r.Stats.Requests),
			fmt.Sprintf("%.4f", r.MissRatio()),
			fmt.Sprintf("%.4f", r.ByteMissRatio()),
			fmt.Sprint(r.Stats.Evictions),
			fmt.Sprint(r.Stats.Rejected + r.Stats.Oversize),
			r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	s := Summarize(results)
	summary := fmt.Sprintf("miss ratio over %d runs: mean %.4f, stddev %.4f, min %.4f, max %.4f",
		s.N, s.Mean, s.StdDev, s.Min, s.Max)

	if f == Markdown {
		line := func(cells []string) string { return "| " + strings.Join(cells, " | ") + " |\n" }
		var b strings.Builder
		b.WriteString(line(header))
		sep := make([]string, len(header))
		for i := range sep {
			sep[i] = "---"
		}
		b.WriteString(line(sep))
		for _, row := range rows {
			b.WriteString(line(row))
		}
		b.WriteString("\n" + summary + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
