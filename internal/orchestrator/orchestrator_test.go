package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
	"matrixctl/internal/process"
	"matrixctl/internal/store"
)

const testEnv = `# search engine settings
app.exclude_stop_words = true
app.rank_query_results = false
	app.use_wf_idf=true
app.stemmer   =  Porter
  app.unrelated=keep
`

func javaAxes() []matrix.Axis {
	return []matrix.Axis{
		{Property: "app.exclude_stop_words", Values: matrix.BooleanDomain},
		{Property: "app.rank_query_results", Values: matrix.BooleanDomain},
		{Property: "app.use_wf_idf", Values: matrix.BooleanDomain},
		{Property: "app.stemmer", Values: []string{"null", "Porter"}},
	}
}

// fakeProcess replays canned output.
type fakeProcess struct {
	lines   []string
	pos     int
	status  process.ExitStatus
	waitErr error
	stderr  []string
}

func (p *fakeProcess) NextLine() (string, bool) {
	if p.pos >= len(p.lines) {
		return "", false
	}
	p.pos++
	return p.lines[p.pos-1], true
}

func (p *fakeProcess) Wait() (process.ExitStatus, error) { return p.status, p.waitErr }
func (p *fakeProcess) Stderr() []string                  { return p.stderr }

// fakeStarter decides the child's output from the current store contents.
type fakeStarter struct {
	t      *testing.T
	store  *store.Store
	script func(current map[string]string) (*fakeProcess, error)

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeStarter) start(ctx context.Context, argv []string) (Process, error) {
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.mu.Unlock()

	props, err := f.store.Properties()
	require.NoError(f.t, err)
	current := make(map[string]string, len(props))
	for _, p := range props {
		current[p.Name] = p.Value
	}
	p, err := f.script(current)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (f *fakeStarter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordedLine struct {
	key   string
	line  string
	class classify.Classification
	state State
}

type recordingReporter struct {
	o         *Orchestrator
	plans     []Plan
	runStarts []string
	lines     []recordedLine
	results   []RunResult
	summaries []Summary
	states    []State
}

func (r *recordingReporter) ReportStart(plan Plan) { r.plans = append(r.plans, plan) }
func (r *recordingReporter) ReportRunStart(index, total int, a matrix.Assignment, argv []string) {
	r.runStarts = append(r.runStarts, a.Key())
}
func (r *recordingReporter) ReportLine(a matrix.Assignment, line string, c classify.Classification) {
	r.lines = append(r.lines, recordedLine{key: a.Key(), line: line, class: c, state: r.o.State()})
}
func (r *recordingReporter) ReportRunResult(result RunResult) { r.results = append(r.results, result) }
func (r *recordingReporter) ReportSummary(summary Summary) {
	r.summaries = append(r.summaries, summary)
	r.states = append(r.states, r.o.State())
}

type fixture struct {
	store    *store.Store
	starter  *fakeStarter
	reporter *recordingReporter
	orch     *Orchestrator
}

func newFixture(t *testing.T, content string, opts Options, script func(map[string]string) (*fakeProcess, error)) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "properties.default.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := store.New(path)
	starter := &fakeStarter{t: t, store: st, script: script}
	rep := &recordingReporter{}

	if opts.Axes == nil {
		opts.Axes = javaAxes()
	}
	if opts.Command == nil {
		opts.Command = []string{"mvn"}
		opts.Steps = []string{"clean", "test"}
	}
	o, err := New(opts, st, starter.start, classify.New(), rep)
	require.NoError(t, err)
	rep.o = o

	return &fixture{store: st, starter: starter, reporter: rep, orch: o}
}

func (f *fixture) contents(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	return string(data)
}

func passing(map[string]string) (*fakeProcess, error) {
	return &fakeProcess{lines: []string{"[INFO] Scanning for projects...", "[INFO] BUILD SUCCESS"}}, nil
}

func TestRun_AllPass(t *testing.T) {
	f := newFixture(t, testEnv, Options{}, passing)

	summary, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Passed())
	assert.Equal(t, 0, summary.Report.Len())
	assert.Equal(t, 16, summary.Runs)
	assert.Equal(t, 16, summary.Total)
	assert.Equal(t, 16, f.starter.callCount())
	assert.Len(t, f.reporter.lines, 32)
	assert.Len(t, f.reporter.results, 16)
	require.Len(t, f.reporter.summaries, 1)
	assert.Equal(t, []State{StateReporting}, f.reporter.states)
	assert.Equal(t, StateDone, f.orch.State())

	assert.Equal(t, testEnv, f.contents(t), "store must be restored byte for byte")
}

func TestRun_OneFailingConfiguration(t *testing.T) {
	failing := "{app.exclude_stop_words=false, app.rank_query_results=true, app.use_wf_idf=false, app.stemmer=Porter}"
	f := newFixture(t, testEnv, Options{}, func(cur map[string]string) (*fakeProcess, error) {
		if cur["app.exclude_stop_words"] == "false" && cur["app.rank_query_results"] == "true" &&
			cur["app.use_wf_idf"] == "false" && cur["app.stemmer"] == "Porter" {
			return &fakeProcess{lines: []string{"[INFO] Running tests", "[ERROR] Tests run: 3, Failures: 1", "[INFO] done"}}, nil
		}
		return passing(cur)
	})

	summary, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Passed())
	require.Equal(t, 1, summary.Report.Len())
	text, ok := summary.Report.Get(failing)
	require.True(t, ok)
	assert.Equal(t, "[ERROR] Tests run: 3, Failures: 1\n", text)

	entries := summary.Report.Entries()
	assert.Equal(t, failing, entries[0].Key)
	assert.Equal(t, []string{"[ERROR] Tests run: 3, Failures: 1"}, entries[0].Lines())

	assert.Equal(t, testEnv, f.contents(t))
}

func TestRun_EchoesEveryLineWithItsKeyWhileSweeping(t *testing.T) {
	f := newFixture(t, testEnv, Options{
		Axes: []matrix.Axis{{Property: "app.stemmer", Values: []string{"null", "Porter"}}},
	}, func(cur map[string]string) (*fakeProcess, error) {
		return &fakeProcess{lines: []string{"stemmer is " + cur["app.stemmer"]}}, nil
	})

	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.reporter.lines, 2)
	assert.Equal(t, "{app.stemmer=null}", f.reporter.lines[0].key)
	assert.Equal(t, "stemmer is null", f.reporter.lines[0].line)
	assert.Equal(t, "{app.stemmer=Porter}", f.reporter.lines[1].key)
	assert.Equal(t, "stemmer is Porter", f.reporter.lines[1].line)
	for _, l := range f.reporter.lines {
		assert.Equal(t, StateSweeping, l.state)
	}
	assert.Equal(t, []string{"{app.stemmer=null}", "{app.stemmer=Porter}"}, f.reporter.runStarts)
}

func TestRun_MissingPropertyAbortsBeforeAnyWrite(t *testing.T) {
	content := "app.exclude_stop_words = true\napp.stemmer = Porter\n"
	rpPath := filepath.Join(t.TempDir(), "restore-point.yaml")
	f := newFixture(t, content, Options{RestorePointPath: rpPath}, passing)
	before, err := os.Stat(f.store.Path())
	require.NoError(t, err)

	summary, err := f.orch.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPropertyNotFound)
	assert.Nil(t, summary)

	assert.Equal(t, 0, f.starter.callCount())
	assert.Empty(t, f.reporter.plans)
	assert.Equal(t, content, f.contents(t))
	after, err := os.Stat(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	_, err = store.LoadRestorePoint(rpPath)
	assert.ErrorIs(t, err, store.ErrNoRestorePoint)
	assert.Equal(t, StateDone, f.orch.State())
}

func TestRun_RestoresAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	f := newFixture(t, testEnv, Options{}, func(cur map[string]string) (*fakeProcess, error) {
		runs++
		if runs == 3 {
			cancel()
			return &fakeProcess{lines: []string{"[ERROR] killed"}, status: process.ExitStatus{Code: -1, Signaled: true}, waitErr: context.Canceled}, nil
		}
		return passing(cur)
	})

	summary, err := f.orch.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Runs)
	assert.True(t, summary.Report.Empty(), "interrupted run is not folded into the report")
	assert.Empty(t, f.reporter.summaries, "no report after interruption")
	assert.Equal(t, 3, f.starter.callCount())

	assert.Equal(t, testEnv, f.contents(t))
}

func TestRun_RestorePointLifecycle(t *testing.T) {
	rpPath := filepath.Join(t.TempDir(), ".matrixctl", "restore-point.yaml")
	var seen []store.RestorePoint
	f := newFixture(t, testEnv, Options{RestorePointPath: rpPath}, func(cur map[string]string) (*fakeProcess, error) {
		if len(seen) == 0 {
			rp, err := store.LoadRestorePoint(rpPath)
			require.NoError(t, err)
			seen = append(seen, rp)
		}
		return passing(cur)
	})
	f.orch.newID = func() string { return "sweep-1" }

	summary, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sweep-1", summary.SweepID)

	require.Len(t, seen, 1)
	assert.Equal(t, "sweep-1", seen[0].SweepID)
	assert.Equal(t, f.store.Path(), seen[0].StorePath)
	assert.Equal(t, store.Snapshot{
		{Name: "app.exclude_stop_words", Value: "true", Line: "app.exclude_stop_words = true"},
		{Name: "app.rank_query_results", Value: "false", Line: "app.rank_query_results = false"},
		{Name: "app.use_wf_idf", Value: "true", Line: "\tapp.use_wf_idf=true"},
		{Name: "app.stemmer", Value: "Porter", Line: "app.stemmer   =  Porter"},
	}, seen[0].Properties)

	_, err = store.LoadRestorePoint(rpPath)
	assert.ErrorIs(t, err, store.ErrNoRestorePoint, "restore point is removed after a successful restore")
}

func TestRun_RestorePointRecordsAbsoluteStorePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("properties.default.env", []byte(testEnv), 0o644))
	rpPath := filepath.Join(dir, "restore-point.yaml")

	var seen []store.RestorePoint
	axes := []matrix.Axis{{Property: "app.stemmer", Values: []string{"null", "Porter"}}}
	rep := &recordingReporter{}
	o, err := New(Options{Axes: axes, Command: []string{"true"}, RestorePointPath: rpPath}, store.New("properties.default.env"),
		func(ctx context.Context, argv []string) (Process, error) {
			rp, err := store.LoadRestorePoint(rpPath)
			require.NoError(t, err)
			seen = append(seen, rp)
			return &fakeProcess{}, nil
		},
		nil, rep)
	require.NoError(t, err)
	rep.o = o

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	assert.True(t, filepath.IsAbs(seen[0].StorePath), "got %s", seen[0].StorePath)
	assert.Equal(t, "properties.default.env", filepath.Base(seen[0].StorePath))

	// the recorded path still resolves after leaving the directory
	t.Chdir(t.TempDir())
	got, err := store.New(seen[0].StorePath).Read("app.stemmer")
	require.NoError(t, err)
	assert.Equal(t, "Porter", got)
}

// failingRestoreStore cannot write the baseline back.
type failingRestoreStore struct {
	*store.Store
}

func (s *failingRestoreStore) Restore(store.Snapshot) error {
	return errors.New("disk full")
}

func TestRun_RestoreFailureIsReturnedAndRestorePointKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "properties.default.env")
	require.NoError(t, os.WriteFile(path, []byte(testEnv), 0o644))
	rpPath := filepath.Join(dir, "restore-point.yaml")

	axes := []matrix.Axis{{Property: "app.stemmer", Values: []string{"null", "Porter"}}}
	st := &failingRestoreStore{Store: store.New(path)}
	rep := &recordingReporter{}
	o, err := New(Options{Axes: axes, Command: []string{"true"}, RestorePointPath: rpPath}, st,
		func(ctx context.Context, argv []string) (Process, error) { return &fakeProcess{}, nil },
		nil, rep)
	require.NoError(t, err)
	rep.o = o

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to restore original configuration")
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, rep.summaries)

	rp, err := store.LoadRestorePoint(rpPath)
	require.NoError(t, err)
	v, ok := rp.Properties.Value("app.stemmer")
	assert.True(t, ok)
	assert.Equal(t, "Porter", v)
}

func TestRun_ExitCodePolicy(t *testing.T) {
	axes := []matrix.Axis{{Property: "app.use_wf_idf", Values: matrix.BooleanDomain}}
	script := func(cur map[string]string) (*fakeProcess, error) {
		if cur["app.use_wf_idf"] == "false" {
			return &fakeProcess{lines: []string{"[INFO] no markers here"}, status: process.ExitStatus{Code: 1}}, nil
		}
		return passing(cur)
	}

	t.Run("ignore", func(t *testing.T) {
		f := newFixture(t, testEnv, Options{Axes: axes}, script)
		summary, err := f.orch.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Passed(), "non-zero exit without markers passes by default")
	})

	t.Run("record", func(t *testing.T) {
		f := newFixture(t, testEnv, Options{Axes: axes, ExitCodePolicy: ExitCodeRecord}, script)
		summary, err := f.orch.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.Report.Len())
		text, ok := summary.Report.Get("{app.use_wf_idf=false}")
		require.True(t, ok)
		assert.Equal(t, "process exited with exit status 1\n", text)
	})
}

func TestRun_StartFailureIsRecordedAndSweepContinues(t *testing.T) {
	axes := []matrix.Axis{{Property: "app.stemmer", Values: []string{"null", "Porter"}}}
	f := newFixture(t, testEnv, Options{Axes: axes}, func(cur map[string]string) (*fakeProcess, error) {
		if cur["app.stemmer"] == "null" {
			return nil, errors.New("failed to start mvn: executable file not found")
		}
		return passing(cur)
	})

	summary, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Runs)
	text, ok := summary.Report.Get("{app.stemmer=null}")
	require.True(t, ok)
	assert.Contains(t, text, "executable file not found")
	assert.Equal(t, testEnv, f.contents(t))
}

func TestRun_FailFast(t *testing.T) {
	f := newFixture(t, testEnv, Options{FailFast: true}, func(cur map[string]string) (*fakeProcess, error) {
		return &fakeProcess{lines: []string{"java.lang.IllegalStateException: index missing"}}, nil
	})

	summary, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Runs)
	assert.Equal(t, 1, summary.Report.Len())
	assert.Equal(t, 1, f.starter.callCount())
	assert.Equal(t, testEnv, f.contents(t))
}

func TestRun_DiagnosticsKeepSeverity(t *testing.T) {
	axes := []matrix.Axis{{Property: "app.stemmer", Values: []string{"Porter"}}}
	f := newFixture(t, testEnv, Options{Axes: axes}, func(cur map[string]string) (*fakeProcess, error) {
		return &fakeProcess{lines: []string{
			"[WARNING] deprecated API",
			"[INFO] ok",
			"java.lang.OutOfMemoryError",
			"[ERROR] BUILD FAILURE",
		}, stderr: []string{"picked up JAVA_TOOL_OPTIONS"}}, nil
	})

	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.reporter.results, 1)

	res := f.reporter.results[0]
	assert.True(t, res.Failed())
	assert.Equal(t, []Diagnostic{
		{Line: "[WARNING] deprecated API", Severity: classify.SeverityWarning},
		{Line: "java.lang.OutOfMemoryError", Severity: classify.SeverityRuntime},
		{Line: "[ERROR] BUILD FAILURE", Severity: classify.SeverityError},
	}, res.Diagnostics)
	assert.Equal(t, []string{"picked up JAVA_TOOL_OPTIONS"}, res.Stderr)
	assert.Equal(t, "[WARNING] deprecated API\njava.lang.OutOfMemoryError\n[ERROR] BUILD FAILURE\n", res.Text())
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "base steps",
			opts: Options{Command: []string{"mvn"}, Steps: []string{"clean", "test"}},
			want: []string{"mvn", "clean", "test"},
		},
		{
			name: "benchmark enabled",
			opts: Options{Command: []string{"mvn"}, Steps: []string{"clean", "test"}, BenchmarkStep: "exec:java@benchmark", Benchmark: true},
			want: []string{"mvn", "clean", "test", "exec:java@benchmark"},
		},
		{
			name: "benchmark step without toggle",
			opts: Options{Command: []string{"mvn"}, Steps: []string{"clean", "test"}, BenchmarkStep: "exec:java@benchmark"},
			want: []string{"mvn", "clean", "test"},
		},
		{
			name: "toggle without step",
			opts: Options{Command: []string{"./gradlew", "--quiet"}, Steps: []string{"check"}, Benchmark: true},
			want: []string{"./gradlew", "--quiet", "check"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Axes = javaAxes()
			o, err := New(tt.opts, store.New("unused.env"), (&fakeStarter{}).start, nil, &recordingReporter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.Command())
			assert.Equal(t, tt.want, tt.opts.Argv())
			assert.Len(t, o.Assignments(), 16)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	st := store.New("unused.env")
	start := (&fakeStarter{}).start
	rep := &recordingReporter{}
	ok := Options{Axes: javaAxes(), Command: []string{"mvn"}}

	_, err := New(ok, nil, start, nil, rep)
	assert.Error(t, err)
	_, err = New(ok, st, nil, nil, rep)
	assert.Error(t, err)
	_, err = New(ok, st, start, nil, nil)
	assert.Error(t, err)

	_, err = New(Options{Axes: javaAxes()}, st, start, nil, rep)
	assert.ErrorContains(t, err, "command is required")

	_, err = New(Options{Command: []string{"mvn"}}, st, start, nil, rep)
	assert.ErrorIs(t, err, matrix.ErrNoAxes)

	bad := ok
	bad.ExitCodePolicy = "explode"
	_, err = New(bad, st, start, nil, rep)
	assert.ErrorContains(t, err, "invalid exit code policy")

	o, err := New(ok, st, start, nil, rep)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, o.State())
}

func TestParseExitCodePolicy(t *testing.T) {
	p, err := ParseExitCodePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ExitCodeIgnore, p)

	p, err = ParseExitCodePolicy("record")
	require.NoError(t, err)
	assert.Equal(t, ExitCodeRecord, p)

	_, err = ParseExitCodePolicy("RECORD")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	names := make([]string, 0, 6)
	for s := StateIdle; s <= StateDone; s++ {
		names = append(names, s.String())
	}
	assert.Equal(t, "Idle CapturingBaseline Sweeping Restoring Reporting Done", strings.Join(names, " "))
	assert.Equal(t, "Unknown", State(99).String())
}

func TestFailureReport(t *testing.T) {
	r := NewFailureReport()
	assert.True(t, r.Empty())

	r.Add("{a=true}", "")
	assert.True(t, r.Empty(), "empty diagnostics are never recorded")

	r.Add("{a=false}", "[ERROR] one\n")
	r.Add("{a=true}", "[WARNING] two\n")
	r.Add("{a=false}", "[ERROR] three\n")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []Entry{
		{Key: "{a=false}", Text: "[ERROR] one\n[ERROR] three\n"},
		{Key: "{a=true}", Text: "[WARNING] two\n"},
	}, r.Entries())
	assert.Nil(t, Entry{}.Lines())
}
