package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/execbench/internal/report"
	"github.com/studiowebux/execbench/internal/stresstest"
	"github.com/studiowebux/execbench/internal/validator"
)

// maxMessages caps the distinct failure messages printed in a summary
const maxMessages = 10

// PrintSummary writes the end-of-run summary: checks, latency and distinct failures
func PrintSummary(w io.Writer, run *stresstest.Run, summary report.Summary) {
	p := newPrinter(w)

	var sb strings.Builder
	sp := &printer{w: &sb, styled: p.styled}

	sp.title(fmt.Sprintf("execbench run #%d (%s)", run.ID, run.Status))
	sp.field("target", run.BaseURL)
	sp.field("policy", fmt.Sprintf("%s, %s, %s", run.Policy, run.ResponseShape, run.PayloadShape))
	sp.field("actors", fmt.Sprintf("%d for %s, pacing %s", run.Actors, formatMs(run.DurationMs), formatMs(run.PacingMs)))

	checks := fmt.Sprintf("%d total, %s, %s (%.1f%% passed)",
		run.TotalChecks,
		sp.render(passStyle, fmt.Sprintf("%d passed", run.TotalPassed)),
		sp.render(failStyleFor(run.TotalFailed), fmt.Sprintf("%d failed", run.TotalFailed)),
		run.PassRate())
	sp.field("checks", checks)
	sp.field("latency", fmt.Sprintf("avg %.1fms  min %s  p50 %s  p95 %s  p99 %s  max %s",
		run.AvgDurationMs, formatMs(run.MinDurationMs), formatMs(run.P50DurationMs),
		formatMs(run.P95DurationMs), formatMs(run.P99DurationMs), formatMs(run.MaxDurationMs)))

	if len(summary.Reasons) > 0 {
		reasons := make([]string, 0, len(summary.Reasons))
		for reason, n := range summary.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
		}
		sort.Strings(reasons)
		sp.field("reasons", strings.Join(reasons, " "))
	}

	if len(summary.Messages) > 0 {
		fmt.Fprintln(&sb)
		fmt.Fprintln(&sb, sp.render(failStyle, "failures"))
		for i, m := range summary.Messages {
			if i == maxMessages {
				fmt.Fprintln(&sb, sp.render(mutedStyle, fmt.Sprintf("  ... %d more", len(summary.Messages)-maxMessages)))
				break
			}
			fmt.Fprintf(&sb, "  %5dx %s\n", m.Count, m.Text)
		}
	}

	out := strings.TrimRight(sb.String(), "\n")
	if p.styled {
		out = boxStyle.Render(out)
	}
	fmt.Fprintln(w, out)
}

func failStyleFor(failed int) lipgloss.Style {
	if failed == 0 {
		return mutedStyle
	}
	return failStyle
}

// ReasonLabel names a failure reason for humans
func ReasonLabel(r validator.Reason) string {
	switch r {
	case validator.ReasonTransport:
		return "no response"
	case validator.ReasonStatus:
		return "non-200 status"
	case validator.ReasonDecode:
		return "invalid JSON"
	case validator.ReasonMissingFields:
		return "missing output fields"
	case validator.ReasonMismatch:
		return "expected output not found"
	}
	return string(r)
}
