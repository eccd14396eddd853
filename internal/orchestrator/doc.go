// Package orchestrator drives a configuration sweep.
//
// The orchestrator walks through the following states:
//
//	Idle -> CapturingBaseline -> Sweeping(i) -> Restoring -> Reporting -> Done
//
// # CapturingBaseline
//
// The current value of every swept property is read from the store. A
// missing property aborts the run before any write happens. The values are
// also saved to a restore point file when one is configured.
//
// # Sweeping
//
// For each assignment, in matrix order:
//  1. the properties are written to the store
//  2. the command is started (base command, steps, optional benchmark step)
//  3. output is read line by line until end-of-stream; every line goes to
//     the reporter and diagnostic lines are kept
//  4. the exit status is collected
//  5. a run with diagnostics is added to the FailureReport
//
// Runs are strictly sequential. No two children ever run at the same time.
//
// # Restoring
//
// Original values are written back on every exit path, including errors and
// cancellation. If that fails the restore point file stays on disk.
//
// # Reporting
//
// The reporter receives the summary. Aggregate failures are not an error:
// callers decide what exit code to use from Summary.Passed.
package orchestrator
