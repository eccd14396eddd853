package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"matrixctl/internal/color"
	"matrixctl/internal/orchestrator"
)

const bannerWidth = 70

// Banner returns the three line frame announcing failures, title centred.
func Banner(title string) string {
	rule := strings.Repeat("#", bannerWidth)
	label := " " + title + " "
	pad := bannerWidth - runewidth.StringWidth(label)
	if pad < 2 {
		return rule + "\n#" + label + "#\n" + rule
	}
	left := pad / 2
	middle := strings.Repeat("#", left) + label + strings.Repeat("#", pad-left)
	return rule + "\n" + middle + "\n" + rule
}

// WriteFailureReport prints the banner followed by every failing
// configuration and its diagnostic lines. Nothing is written for an empty
// report.
func WriteFailureReport(w io.Writer, report *orchestrator.FailureReport) {
	if report == nil || report.Empty() {
		return
	}
	fmt.Fprintf(w, "\n\n\n%s\n", color.Render(color.BannerStyle, Banner("FAIL")))
	for _, e := range report.Entries() {
		fmt.Fprintf(w, "\nWith %s\n\n", color.Render(color.KeyStyle, e.Key))
		for _, line := range e.Lines() {
			fmt.Fprintf(w, "\t%s\n", line)
		}
		fmt.Fprint(w, "\n")
	}
}
