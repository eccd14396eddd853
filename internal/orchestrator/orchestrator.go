package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
	"matrixctl/internal/store"
	"matrixctl/pkg/logging"
)

const subsystem = "Orchestrator"

// Orchestrator sweeps the configuration space. For every assignment it
// writes the properties, runs the command, classifies its output and keeps
// the diagnostics. The original property values are put back whatever way
// the sweep ends.
//
// An Orchestrator runs one sweep at a time; Run must not be called
// concurrently.
type Orchestrator struct {
	opts        Options
	assignments []matrix.Assignment

	store      PropertyStore
	start      StartFunc
	classifier *classify.Classifier
	reporter   Reporter

	state atomic.Int32
	now   func() time.Time
	newID func() string
}

// New validates opts and prepares the sweep. Nothing is read or written
// until Run is called.
func New(opts Options, st PropertyStore, start StartFunc, classifier *classify.Classifier, reporter Reporter) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("property store is required")
	}
	if start == nil {
		return nil, errors.New("start function is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, errors.New("command is required")
	}
	policy, err := ParseExitCodePolicy(string(opts.ExitCodePolicy))
	if err != nil {
		return nil, err
	}
	opts.ExitCodePolicy = policy

	assignments, err := matrix.Enumerate(opts.Axes)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration space: %w", err)
	}
	if classifier == nil {
		classifier = classify.New()
	}

	return &Orchestrator{
		opts:        opts,
		assignments: assignments,
		store:       st,
		start:       start,
		classifier:  classifier,
		reporter:    reporter,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Command returns the argv run for every configuration.
func (o *Orchestrator) Command() []string {
	return o.opts.Argv()
}

// Assignments returns the configurations in sweep order.
func (o *Orchestrator) Assignments() []matrix.Assignment {
	return append([]matrix.Assignment(nil), o.assignments...)
}

// State returns the current lifecycle phase. It is safe to call from
// another goroutine while Run is in progress.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	if prev != s {
		logging.Debug(subsystem, "state %s -> %s", prev, s)
	}
}

// Run performs the whole sweep and returns its summary.
//
// A missing property aborts before anything is written. Once the baseline is
// captured, the original values are restored on every path out of Run,
// including context cancellation; a restore failure is joined to the
// returned error and the restore point file is left in place. When ctx is
// cancelled no report is printed and ctx.Err() is returned.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	began := o.now()
	sweepID := o.newID()
	defer o.setState(StateDone)

	o.setState(StateCapturingBaseline)
	names := matrix.Names(o.opts.Axes)
	baseline, err := o.store.Snapshot(names)
	if err != nil {
		return nil, fmt.Errorf("failed to capture baseline of %s: %w", o.store.Path(), err)
	}
	logging.Info(subsystem, "Sweep %s captured baseline of %d properties from %s", sweepID, len(baseline), o.store.Path())

	if o.opts.RestorePointPath != "" {
		rp := store.RestorePoint{SweepID: sweepID, StorePath: absPath(o.store.Path()), CreatedAt: began, Properties: baseline}
		if err := store.SaveRestorePoint(o.opts.RestorePointPath, rp); err != nil {
			return nil, err
		}
		logging.Debug(subsystem, "Saved restore point to %s", o.opts.RestorePointPath)
	}

	summary := &Summary{
		SweepID: sweepID,
		Report:  NewFailureReport(),
		Total:   len(o.assignments),
	}
	o.reporter.ReportStart(Plan{
		SweepID:   sweepID,
		StorePath: o.store.Path(),
		Baseline:  baseline,
		Total:     len(o.assignments),
		Command:   o.Command(),
	})

	if err := o.sweepAndRestore(ctx, baseline, summary); err != nil {
		summary.Duration = o.now().Sub(began)
		return summary, err
	}
	summary.Duration = o.now().Sub(began)

	o.setState(StateReporting)
	o.reporter.ReportSummary(*summary)
	if summary.Passed() {
		logging.Info(subsystem, "All %d configurations passed", summary.Runs)
	} else {
		logging.Warn(subsystem, "%d of %d configurations produced diagnostics", summary.Report.Len(), summary.Runs)
	}
	return summary, nil
}

func (o *Orchestrator) sweepAndRestore(ctx context.Context, baseline store.Snapshot, summary *Summary) (err error) {
	defer func() {
		o.setState(StateRestoring)
		if rerr := o.restore(baseline); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return o.sweep(ctx, summary)
}

func (o *Orchestrator) sweep(ctx context.Context, summary *Summary) error {
	total := len(o.assignments)
	for i, a := range o.assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.setState(StateSweeping)

		if err := o.store.Apply(a.Properties()); err != nil {
			return fmt.Errorf("failed to apply %s: %w", a.Key(), err)
		}
		logging.Info(subsystem, "Configuration %d/%d %s", i+1, total, a.Key())

		result := o.runOne(ctx, i, a)
		summary.Runs++
		if err := ctx.Err(); err != nil {
			logging.Warn(subsystem, "Sweep interrupted during %s", a.Key())
			return err
		}

		o.reporter.ReportRunResult(result)
		if result.Failed() {
			summary.Report.Add(a.Key(), result.Text())
			if o.opts.FailFast {
				logging.Info(subsystem, "Stopping after first failing configuration")
				return nil
			}
		}
	}
	return nil
}

func (o *Orchestrator) runOne(ctx context.Context, index int, a matrix.Assignment) RunResult {
	argv := o.Command()
	result := RunResult{Index: index, Assignment: a, Args: argv}
	began := o.now()

	o.reporter.ReportRunStart(index, len(o.assignments), a, argv)

	proc, err := o.start(ctx, argv)
	if err != nil {
		logging.Error(subsystem, err, "Failed to start command for %s", a.Key())
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Line:     err.Error(),
			Severity: classify.SeverityError,
		})
		result.Duration = o.now().Sub(began)
		return result
	}

	// Read to end-of-stream before looking at the exit status so that lines
	// written just before the child exits are never dropped.
	for {
		line, ok := proc.NextLine()
		if !ok {
			break
		}
		c := o.classifier.Classify(line)
		o.reporter.ReportLine(a, line, c)
		if c.IsDiagnostic() {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{Line: line, Severity: c.Severity})
		}
	}

	status, err := proc.Wait()
	result.Status = status
	result.Stderr = proc.Stderr()
	switch {
	case err != nil && ctx.Err() != nil:
		// cancelled; the caller discards this result
	case err != nil:
		result.Diagnostics = append(result.Diagnostics, Diagnostic{Line: err.Error(), Severity: classify.SeverityError})
	case !status.Success() && o.opts.ExitCodePolicy == ExitCodeRecord:
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Line:     fmt.Sprintf("process exited with %s", status),
			Severity: classify.SeverityError,
		})
	}
	logging.Debug(subsystem, "%s finished with %s, %d diagnostics", a.Key(), status, len(result.Diagnostics))
	result.Duration = o.now().Sub(began)
	return result
}

func (o *Orchestrator) restore(baseline store.Snapshot) error {
	if err := o.store.Restore(baseline); err != nil {
		err = fmt.Errorf("failed to restore original configuration of %s: %w", o.store.Path(), err)
		if o.opts.RestorePointPath != "" {
			logging.Error(subsystem, err, "Original values are kept in %s, run 'matrixctl restore'", o.opts.RestorePointPath)
		}
		return err
	}
	logging.Info(subsystem, "Restored original configuration of %s", o.store.Path())

	if o.opts.RestorePointPath != "" {
		if err := store.RemoveRestorePoint(o.opts.RestorePointPath); err != nil {
			logging.Warn(subsystem, "Could not remove restore point: %v", err)
		}
	}
	return nil
}

// absPath makes p usable from another working directory. p is returned as is
// when the working directory cannot be determined.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
