package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/studiowebux/execbench/internal/stresstest"
	"github.com/studiowebux/execbench/internal/validator"
)

// PrintRuns lists stored runs, newest first
func PrintRuns(w io.Writer, runs []*stresstest.Run, format string) error {
	if format != "" && format != "text" {
		return writeStructured(w, runs, format)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tPOLICY\tVUS\tCHECKS\tFAILED\tP95")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Policy,
			r.Actors, r.TotalChecks, r.TotalFailed, formatMs(r.P95DurationMs))
	}
	return tw.Flush()
}

// PrintRun shows one stored run with its failure breakdown
func PrintRun(w io.Writer, run *stresstest.Run, failures map[string]int, format string) error {
	if format != "" && format != "text" {
		return writeStructured(w, struct {
			Run      *stresstest.Run `json:"run" yaml:"run"`
			Failures map[string]int  `json:"failures" yaml:"failures"`
		}{run, failures}, format)
	}

	p := newPrinter(w)
	p.title(fmt.Sprintf("run #%d", run.ID))
	p.field("status", run.Status)
	p.field("target", run.BaseURL)
	p.field("started", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		p.field("elapsed", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
	}
	p.field("policy", fmt.Sprintf("%s, %s, %s", run.Policy, run.ResponseShape, run.PayloadShape))
	p.field("actors", fmt.Sprintf("%d, pacing %s, seed %d", run.Actors, formatMs(run.PacingMs), run.Seed))
	p.field("checks", fmt.Sprintf("%d total, %d passed, %d failed (%d without response)",
		run.TotalChecks, run.TotalPassed, run.TotalFailed, run.TotalTransportErrors))
	p.field("latency", fmt.Sprintf("avg %.1fms  p50 %s  p95 %s  p99 %s",
		run.AvgDurationMs, formatMs(run.P50DurationMs), formatMs(run.P95DurationMs), formatMs(run.P99DurationMs)))

	if len(failures) == 0 {
		return nil
	}
	reasons := make([]string, 0, len(failures))
	for reason := range failures {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	fmt.Fprintln(w)
	for _, reason := range reasons {
		p.field(ReasonLabel(validator.Reason(reason)), p.render(failStyle, fmt.Sprintf("%d", failures[reason])))
	}
	return nil
}
