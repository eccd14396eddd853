package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"matrixctl/internal/classify"
	"matrixctl/internal/config"
	"matrixctl/internal/orchestrator"
	"matrixctl/internal/process"
	"matrixctl/internal/reporting"
	"matrixctl/internal/store"
	"matrixctl/pkg/logging"
)

// ErrConfigurationsFailed is returned by run --exit-code when the failure
// report is not empty.
var ErrConfigurationsFailed = errors.New("configurations produced diagnostics")

type runOptions struct {
	storePath      string
	restorePoint   string
	properties     []string
	benchmark      bool
	mergeStderr    bool
	exitCodePolicy string
	quiet          bool
	verbose        bool
	failFast       bool
	exitCode       bool
	timeout        time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep every combination of the configured properties",
		Long: `Run writes every combination of the configured property values into the
configuration file, runs the build once per combination and echoes its
output prefixed with the combination. Lines starting with a diagnostic
marker ([ERROR], [WARNING], java by default) are collected, and a FAIL
report listing them per combination is printed at the end.

The original values are saved to a restore point before the first write and
put back when the sweep ends, also when it is interrupted. If matrixctl is
killed before it can restore, run 'matrixctl restore'.

Example usage:
  matrixctl run                                   # Sweep the configured matrix
  matrixctl run --property app.stemmer=null,Porter
  matrixctl run --property app.use_wf_idf=bool    # true and false
  matrixctl run --benchmark=false --quiet
  matrixctl run --exit-code --fail-fast           # For CI`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.storePath, "store", "", "Configuration file to rewrite (overrides storePath)")
	cmd.Flags().StringVar(&opts.restorePoint, "restore-point", "", "Where to keep the original values during the sweep (overrides restorePointPath)")
	cmd.Flags().StringArrayVarP(&opts.properties, "property", "p", nil, "Property to sweep as name=v1,v2 or name=bool, repeatable (replaces configured properties)")
	cmd.Flags().BoolVar(&opts.benchmark, "benchmark", true, "Append the benchmark step to every build")
	cmd.Flags().BoolVar(&opts.mergeStderr, "merge-stderr", false, "Classify stderr lines together with stdout")
	cmd.Flags().StringVar(&opts.exitCodePolicy, "exit-code-policy", "", "What a non-zero build exit means: ignore or record")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not echo build output, only failures and the report")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print progress and a result line per configuration")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop after the first configuration with diagnostics")
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false, "Exit with status 1 when any configuration produced diagnostics")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Bound the whole sweep, 0 means no limit")

	_ = cmd.RegisterFlagCompletionFunc("property", completePropertyFlag)
	_ = cmd.RegisterFlagCompletionFunc("exit-code-policy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{string(orchestrator.ExitCodeIgnore), string(orchestrator.ExitCodeRecord)}, cobra.ShellCompDirectiveDefault
	})
	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	return cmd
}

// applyRunFlags overrides cfg with the flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.MatrixConfig, opts *runOptions) error {
	if cmd.Flags().Changed("benchmark") {
		cfg.Benchmark = config.BoolPtr(opts.benchmark)
	}
	if cmd.Flags().Changed("merge-stderr") {
		cfg.MergeStderr = config.BoolPtr(opts.mergeStderr)
	}
	if opts.exitCodePolicy != "" {
		cfg.ExitCodePolicy = opts.exitCodePolicy
	}
	if opts.restorePoint != "" {
		cfg.RestorePointPath = opts.restorePoint
	}
	return cfg.Validate()
}

func runSweep(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadSweepConfig(opts.storePath, opts.properties)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, &cfg, opts); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lock, err := store.AcquireLock(store.LockPath(cfg.RestorePointPath, cfg.StorePath))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Warn("Run", "%v", err)
		}
	}()

	// A leftover restore point holds the real original values; sweeping now
	// would capture the values of an interrupted configuration instead.
	if cfg.RestorePointPath != "" {
		if _, err := store.LoadRestorePoint(cfg.RestorePointPath); !errors.Is(err, store.ErrNoRestorePoint) {
			return fmt.Errorf("a restore point from an earlier sweep exists at %s, run 'matrixctl restore' first", cfg.RestorePointPath)
		}
	}

	policy, err := orchestrator.ParseExitCodePolicy(cfg.ExitCodePolicy)
	if err != nil {
		return err
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully; the orchestrator restores before returning
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, restoring original configuration...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, opts.timeout)
		defer timeoutCancel()
	}

	runner := process.NewRunner(process.Options{
		Dir:         cfg.WorkDir,
		Env:         cfg.Env,
		MergeStderr: cfg.MergeStderrEnabled(),
	})

	var reporter orchestrator.Reporter
	if opts.quiet {
		reporter = reporting.NewQuietReporter(cmd.OutOrStdout())
	} else {
		reporter = reporting.NewConsoleReporter(cmd.OutOrStdout(), opts.verbose)
	}

	sweepOpts := sweepOptions(cfg)
	sweepOpts.ExitCodePolicy = policy
	sweepOpts.FailFast = opts.failFast
	orch, err := orchestrator.New(sweepOpts, store.New(cfg.StorePath), orchestrator.RunnerStarter(runner), classify.New(cfg.Markers...), reporter)
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("sweep did not finish within %s: %w", opts.timeout, err)
		}
		return err
	}

	if opts.exitCode && !summary.Passed() {
		return fmt.Errorf("%d of %d %w", summary.Report.Len(), summary.Runs, ErrConfigurationsFailed)
	}
	return nil
}

// sweepOptions carries the parts of cfg shared by run and matrix.
func sweepOptions(cfg config.MatrixConfig) orchestrator.Options {
	return orchestrator.Options{
		Axes:             cfg.Properties,
		Command:          cfg.Command,
		Steps:            cfg.Steps,
		BenchmarkStep:    cfg.BenchmarkStep,
		Benchmark:        cfg.BenchmarkEnabled(),
		RestorePointPath: cfg.RestorePointPath,
	}
}
