// Package process runs the tool under test as a child process and exposes
// its output as a lazy stream of lines.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"matrixctl/pkg/logging"
)

// ErrEmptyCommand is returned by Start when no program is given.
var ErrEmptyCommand = errors.New("empty command")

// waitDelay bounds how long Wait blocks on pipes left open by grandchildren.
const waitDelay = 5 * time.Second

// Options configures how children are started.
type Options struct {
	// Dir is the working directory of the child, the current one if empty.
	Dir string
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
	// MergeStderr sends stderr into the line stream instead of a side buffer.
	MergeStderr bool
}

// ExitStatus is the terminal state of a child.
type ExitStatus struct {
	Code     int
	Signaled bool
}

// Success reports whether the child exited normally with status 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && !s.Signaled
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return "killed by signal"
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Runner starts child processes.
type Runner struct {
	opts Options
}

// NewRunner returns a Runner using opts for every child.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Start launches argv. Cancelling ctx kills the child and its process group.
func (r *Runner) Start(ctx context.Context, argv []string) (*Handle, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", argv[0], err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.opts.Dir
	cmd.Env = append(os.Environ(), r.opts.Env...)
	cmd.Stdout = pw
	cmd.WaitDelay = waitDelay

	stderr := &lineBuffer{}
	if r.opts.MergeStderr {
		cmd.Stderr = pw
	} else {
		cmd.Stderr = stderr
	}
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", strings.Join(argv, " "), err)
	}
	// The child holds its own copy of the write end; closing ours lets the
	// reader see end-of-stream once the child is gone.
	pw.Close()
	logging.Logger("Process").Debug("Started child", "pid", cmd.Process.Pid, "argv", strings.Join(argv, " "))

	h := &Handle{
		argv:   append([]string(nil), argv...),
		cmd:    cmd,
		ctx:    ctx,
		pipe:   pr,
		reader: bufio.NewReader(pr),
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// Handle is a running (or finished) child. A Handle is meant to be consumed by
// a single goroutine.
type Handle struct {
	argv   []string
	cmd    *exec.Cmd
	ctx    context.Context
	pipe   *os.File
	reader *bufio.Reader
	stderr *lineBuffer
	eof    bool

	done    chan struct{}
	waitErr error
}

// PID returns the process id of the child.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Args returns the command line the child was started with.
func (h *Handle) Args() []string {
	return append([]string(nil), h.argv...)
}

// IsRunning polls liveness without blocking.
func (h *Handle) IsRunning() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// NextLine blocks until the next line of output is available and returns it
// without its line terminator. It returns false once the stream is exhausted.
// Lines that are not valid UTF-8 come back as empty strings.
func (h *Handle) NextLine() (string, bool) {
	if h.eof {
		return "", false
	}
	b, err := h.reader.ReadBytes('\n')
	if err != nil {
		// io.EOF, or the pipe was closed under us; both end the stream.
		h.eof = true
		if len(b) == 0 {
			return "", false
		}
	}
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	if !utf8.Valid(b) {
		return "", true
	}
	return string(b), true
}

// Lines yields every remaining line until end-of-stream.
func (h *Handle) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			line, ok := h.NextLine()
			if !ok || !yield(line) {
				return
			}
		}
	}
}

// Stderr returns the lines captured from standard error so far. It is empty
// when stderr is merged into the line stream.
func (h *Handle) Stderr() []string {
	return h.stderr.Lines()
}

// Wait blocks until the child has exited and reports its status. A non-zero
// exit is not an error; cancellation and wait failures are.
func (h *Handle) Wait() (ExitStatus, error) {
	<-h.done
	h.pipe.Close()

	status := ExitStatus{}
	if ps := h.cmd.ProcessState; ps != nil {
		status.Code = ps.ExitCode()
		status.Signaled = status.Code == -1
	}
	if h.waitErr == nil {
		return status, nil
	}
	if err := h.ctx.Err(); err != nil {
		return status, err
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return status, nil
	}
	return status, fmt.Errorf("waiting for %s: %w", h.argv[0], h.waitErr)
}

// lineBuffer collects stderr written by the exec copier goroutine.
type lineBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimRight(b.buf.String(), "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
