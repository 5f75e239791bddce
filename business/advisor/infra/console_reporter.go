// Package infra contains infrastructure adapters for the advisor context.
package infra

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/fee-advisor/business/advisor/app"
	"github.com/fd1az/fee-advisor/business/advisor/domain"
	"github.com/fd1az/fee-advisor/internal/apperror"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter writes to out, or stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out}
}

// Report renders a recommendation.
func (r *ConsoleReporter) Report(rec *domain.Recommendation) {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FEE RECOMMENDATION"))
	b.WriteString("\n\n")
	b.WriteString(row("Analysis", rec.AnalysisID))
	b.WriteString(row("Generated", rec.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(row("Action", actionStyle(rec.Action).Render(rec.Action.String())))
	b.WriteString(row("Savings", fmt.Sprintf("$%s (%s%%)", rec.SavingsUSD.StringFixed(2), rec.SavingsPercent.StringFixed(2))))
	b.WriteString(row("Confidence", fmt.Sprintf("%.0f%%", rec.Confidence*100)))
	if rec.Action == domain.ActionWait {
		b.WriteString(row("Wait", fmt.Sprintf("%ds", rec.WaitTimeSeconds)))
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("CURRENT"))
	b.WriteString("\n")
	writeRoute(&b, rec.CurrentRoute)

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("OPTIMAL"))
	b.WriteString("\n")
	writeRoute(&b, rec.OptimalRoute)

	fmt.Fprintln(r.out, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// ReportHealth renders one line per provider, sorted by name.
func (r *ConsoleReporter) ReportHealth(status map[string]bool) {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(titleStyle.Render("PROVIDER HEALTH"))
	b.WriteString("\n\n")
	if len(names) == 0 {
		b.WriteString(warningValue.Render("no providers configured"))
	}
	for _, name := range names {
		state := positiveValue.Render("up")
		if !status[name] {
			state = negativeValue.Render("down")
		}
		b.WriteString(row(name, state))
	}
	fmt.Fprintln(r.out, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// ReportError renders a failed analysis. Missing data is worded apart from
// other failures.
func (r *ConsoleReporter) ReportError(err error) {
	msg := err.Error()
	if apperror.GetCode(err) == apperror.CodeInsufficientData {
		msg = "No gas or route quotes available right now; try again shortly."
	}
	fmt.Fprintln(r.out, negativeValue.Render("ERROR")+" "+msg)
}

func writeRoute(b *strings.Builder, s domain.RouteSummary) {
	b.WriteString(row("Provider", s.Provider))
	b.WriteString(row("Cost", "$"+s.CostUSD.StringFixed(2)))
	if s.GasUnits > 0 {
		b.WriteString(row("Gas units", fmt.Sprintf("%d", s.GasUnits)))
	}
	b.WriteString(row("Mode", string(s.ExecutionMode)))
	if s.Delay > 0 {
		b.WriteString(row("Delay", s.Delay.String()))
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

func actionStyle(a domain.Action) lipgloss.Style {
	switch a {
	case domain.ActionUseBridge, domain.ActionWait:
		return positiveValue
	default:
		return warningValue
	}
}
