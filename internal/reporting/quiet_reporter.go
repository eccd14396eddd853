package reporting

import (
	"fmt"
	"io"

	"matrixctl/internal/classify"
	"matrixctl/internal/color"
	"matrixctl/internal/matrix"
	"matrixctl/internal/orchestrator"
)

// QuietReporter does not echo child output. It prints one line per failing
// configuration and the failure report, suited to CI logs.
type QuietReporter struct {
	out io.Writer
}

// NewQuietReporter creates a reporter that only outputs essential information.
func NewQuietReporter(out io.Writer) *QuietReporter {
	return &QuietReporter{out: out}
}

func (r *QuietReporter) ReportStart(plan orchestrator.Plan) {}

func (r *QuietReporter) ReportRunStart(index, total int, a matrix.Assignment, argv []string) {}

func (r *QuietReporter) ReportLine(a matrix.Assignment, line string, c classify.Classification) {}

func (r *QuietReporter) ReportRunResult(result orchestrator.RunResult) {
	if result.Failed() {
		fmt.Fprintf(r.out, "%s %s: %d diagnostics\n",
			color.Render(color.BannerStyle, "FAIL"), result.Assignment.Key(), len(result.Diagnostics))
	}
}

func (r *QuietReporter) ReportSummary(summary orchestrator.Summary) {
	if summary.Passed() {
		fmt.Fprintf(r.out, "All %d configurations passed\n", summary.Runs)
		return
	}
	WriteFailureReport(r.out, summary.Report)
}
