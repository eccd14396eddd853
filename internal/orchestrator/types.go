package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
	"matrixctl/internal/process"
	"matrixctl/internal/store"
)

// State is a phase of the orchestrator's lifecycle.
type State int32

const (
	StateIdle State = iota
	StateCapturingBaseline
	StateSweeping
	StateRestoring
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCapturingBaseline:
		return "CapturingBaseline"
	case StateSweeping:
		return "Sweeping"
	case StateRestoring:
		return "Restoring"
	case StateReporting:
		return "Reporting"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// ExitCodePolicy decides what a non-zero exit status means for a run.
type ExitCodePolicy string

const (
	// ExitCodeIgnore classifies runs on marker lines only.
	ExitCodeIgnore ExitCodePolicy = "ignore"
	// ExitCodeRecord adds a diagnostic for every non-zero exit status.
	ExitCodeRecord ExitCodePolicy = "record"
)

// ParseExitCodePolicy converts the configuration spelling of a policy.
// The empty string selects ExitCodeIgnore.
func ParseExitCodePolicy(s string) (ExitCodePolicy, error) {
	switch ExitCodePolicy(s) {
	case "", ExitCodeIgnore:
		return ExitCodeIgnore, nil
	case ExitCodeRecord:
		return ExitCodeRecord, nil
	default:
		return "", fmt.Errorf("invalid exit code policy %q, must be 'ignore' or 'record'", s)
	}
}

// Options is the static configuration of a sweep.
type Options struct {
	// Axes are the properties under test and their domains.
	Axes []matrix.Axis
	// Command is the program and its fixed leading arguments, e.g. ["mvn"].
	Command []string
	// Steps are appended to Command for every run, e.g. ["clean", "test"].
	Steps []string
	// BenchmarkStep is appended after Steps when Benchmark is set.
	BenchmarkStep string
	Benchmark     bool
	// ExitCodePolicy defaults to ExitCodeIgnore.
	ExitCodePolicy ExitCodePolicy
	// FailFast stops the sweep after the first failing configuration.
	FailFast bool
	// RestorePointPath is where original values are persisted during the
	// sweep. Empty disables the restore point file.
	RestorePointPath string
}

// Argv returns Command followed by Steps and, when Benchmark is set, the
// benchmark step.
func (o Options) Argv() []string {
	argv := make([]string, 0, len(o.Command)+len(o.Steps)+1)
	argv = append(argv, o.Command...)
	argv = append(argv, o.Steps...)
	if o.Benchmark && o.BenchmarkStep != "" {
		argv = append(argv, o.BenchmarkStep)
	}
	return argv
}

// PropertyStore is the configuration resource being swept.
type PropertyStore interface {
	Path() string
	Snapshot(names []string) (store.Snapshot, error)
	Apply(props []store.Property) error
	Restore(snap store.Snapshot) error
}

// Process is a started child whose output is being drained.
type Process interface {
	NextLine() (string, bool)
	Wait() (process.ExitStatus, error)
	Stderr() []string
}

// StartFunc launches argv as a child process.
type StartFunc func(ctx context.Context, argv []string) (Process, error)

// RunnerStarter adapts a process.Runner to a StartFunc.
func RunnerStarter(r *process.Runner) StartFunc {
	return func(ctx context.Context, argv []string) (Process, error) {
		h, err := r.Start(ctx, argv)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Reporter receives progress and results of a sweep.
type Reporter interface {
	ReportStart(plan Plan)
	ReportRunStart(index, total int, a matrix.Assignment, argv []string)
	ReportLine(a matrix.Assignment, line string, c classify.Classification)
	ReportRunResult(result RunResult)
	ReportSummary(summary Summary)
}

// Plan describes a sweep about to start.
type Plan struct {
	SweepID   string
	StorePath string
	Baseline  store.Snapshot
	Total     int
	Command   []string
}

// Diagnostic is one line kept for the failure report.
type Diagnostic struct {
	Line     string
	Severity classify.Severity
}

// RunResult is the outcome of one configuration.
type RunResult struct {
	Index       int
	Assignment  matrix.Assignment
	Args        []string
	Diagnostics []Diagnostic
	Status      process.ExitStatus
	Stderr      []string
	Duration    time.Duration
}

// Failed reports whether the run produced any diagnostic.
func (r RunResult) Failed() bool {
	return len(r.Diagnostics) > 0
}

// Text concatenates the diagnostic lines, one per line.
func (r RunResult) Text() string {
	var b strings.Builder
	for _, d := range r.Diagnostics {
		b.WriteString(d.Line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Summary is what a finished sweep hands to the reporter and caller.
type Summary struct {
	SweepID  string
	Report   *FailureReport
	Runs     int
	Total    int
	Duration time.Duration
}

// Passed reports whether no configuration produced diagnostics.
func (s Summary) Passed() bool {
	return s.Report == nil || s.Report.Empty()
}
