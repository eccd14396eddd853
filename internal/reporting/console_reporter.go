package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"matrixctl/internal/classify"
	"matrixctl/internal/color"
	"matrixctl/internal/matrix"
	"matrixctl/internal/orchestrator"
)

// ConsoleReporter echoes every line of child output prefixed with the
// configuration key and prints the failure report at the end of the sweep.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates a ConsoleReporter writing to out. In verbose
// mode, progress and per configuration results are printed as well.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

// ReportStart is called once the baseline has been captured.
func (r *ConsoleReporter) ReportStart(plan orchestrator.Plan) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Sweeping %d configurations of %s (sweep %s)\n", plan.Total, plan.StorePath, plan.SweepID)
	fmt.Fprintf(r.out, "Command: %s\n", strings.Join(plan.Command, " "))
	fmt.Fprintf(r.out, "Baseline: %s\n\n", matrix.NewAssignment(plan.Baseline...).Key())
}

// ReportRunStart is called before the command is started for a configuration.
func (r *ConsoleReporter) ReportRunStart(index, total int, a matrix.Assignment, argv []string) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%d/%d] %s\n", index+1, total, color.Render(color.KeyStyle, a.Key()))
}

// ReportLine echoes one line of child output.
func (r *ConsoleReporter) ReportLine(a matrix.Assignment, line string, c classify.Classification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s \t%s\n", color.Render(color.KeyStyle, a.Key()), renderLine(line, c.Severity))
}

// ReportRunResult is called once a configuration's child has exited.
func (r *ConsoleReporter) ReportRunResult(result orchestrator.RunResult) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	verdict := color.Render(color.SuccessStyle, "PASS")
	if result.Failed() {
		verdict = color.Render(color.BannerStyle, "FAIL")
	}
	fmt.Fprintf(r.out, "%s %s (%s, %d diagnostics, %s)\n\n",
		verdict, result.Assignment.Key(), result.Status, len(result.Diagnostics), result.Duration.Round(time.Millisecond))
}

// ReportSummary prints the failure report when any configuration failed.
func (r *ConsoleReporter) ReportSummary(summary orchestrator.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !summary.Passed() {
		WriteFailureReport(r.out, summary.Report)
		return
	}
	if r.verbose {
		fmt.Fprintf(r.out, "%s\n", color.Render(color.SuccessStyle,
			fmt.Sprintf("All %d configurations passed (%s)", summary.Runs, summary.Duration.Round(time.Millisecond))))
	}
}

func renderLine(line string, sev classify.Severity) string {
	switch sev {
	case classify.SeverityError, classify.SeverityRuntime:
		return color.Render(color.ErrorStyle, line)
	case classify.SeverityWarning:
		return color.Render(color.WarningStyle, line)
	default:
		return line
	}
}
