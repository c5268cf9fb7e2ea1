package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/modelkube/modelkube/internal/stage"
	"github.com/modelkube/modelkube/internal/teardown"
)

const timeRounding = 100 * time.Millisecond

var (
	reportColorGreen = lipgloss.Color("#22c55e")
	reportColorRed   = lipgloss.Color("#ef4444")
	reportColorBlue  = lipgloss.Color("#3b82f6")
	reportColorDim   = lipgloss.Color("#6b7280")
	reportColorWhite = lipgloss.Color("#f9fafb")
)

var (
	reportTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(reportColorWhite)

	reportSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(reportColorBlue)

	reportDimStyle = lipgloss.NewStyle().
			Foreground(reportColorDim)

	reportGreenStyle = lipgloss.NewStyle().
				Foreground(reportColorGreen)

	reportRedStyle = lipgloss.NewStyle().
			Foreground(reportColorRed)
)

// renderPlanReport produces a styled per-stage summary of a plan run.
func renderPlanReport(report *stage.Report) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(reportTitleStyle.Render(fmt.Sprintf("  %s: %s", report.Plan, report.Target)))
	b.WriteString("\n")
	b.WriteString(reportDimStyle.Render("  " + strings.Repeat("═", 40)))
	b.WriteString("\n")

	for _, res := range report.Results {
		line := fmt.Sprintf("  %-14s %-36s", res.Stage, res.Kind+"/"+res.Resource)
		b.WriteString(line)

		switch {
		case res.Status == stage.StatusFailed:
			b.WriteString(reportRedStyle.Render("failed"))
		case res.Skipped:
			b.WriteString(reportDimStyle.Render("ready (already satisfied)"))
		default:
			b.WriteString(reportGreenStyle.Render("ready"))
			b.WriteString(reportDimStyle.Render("  " + res.Duration.Round(timeRounding).String()))
		}
		b.WriteString("\n")

		if res.Err != nil {
			b.WriteString(reportRedStyle.Render(fmt.Sprintf("    %v", res.Err)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderTeardownReport produces a styled per-step summary of a teardown
// sweep.
func renderTeardownReport(report *teardown.Report) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(reportTitleStyle.Render(fmt.Sprintf("  teardown: %s", report.Target)))
	b.WriteString("\n")
	b.WriteString(reportDimStyle.Render("  " + strings.Repeat("═", 40)))
	b.WriteString("\n")

	for _, res := range report.Results {
		b.WriteString(fmt.Sprintf("  %-28s", res.Step))

		switch res.Outcome {
		case teardown.OutcomeDeleted:
			b.WriteString(reportGreenStyle.Render(string(res.Outcome)))
		case teardown.OutcomeFailed:
			b.WriteString(reportRedStyle.Render(string(res.Outcome)))
		default:
			b.WriteString(reportDimStyle.Render(string(res.Outcome)))
		}
		b.WriteString("\n")

		if res.Err != nil {
			b.WriteString(reportRedStyle.Render(fmt.Sprintf("    %v", res.Err)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderEndpoint highlights the serving endpoint at the end of a successful
// workload deploy.
func renderEndpoint(url string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(reportSectionStyle.Render("  Serving endpoint"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("    %s\n", url))
	b.WriteString(reportDimStyle.Render("    The model may still be loading; poll /health until it returns 200."))
	b.WriteString("\n")
	return b.String()
}
