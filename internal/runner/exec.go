package runner

import (
	"context"
	stderrors "errors"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"
)

// Command is one external tool invocation.
type Command struct {
	Argv    []string
	Dir     string
	Env     []string // nil inherits the parent environment
	Timeout time.Duration

	// Scan, when set, is matched against the full output stream, including
	// output later dropped from the captured tail.
	Scan *regexp.Regexp
}

// ExecResult is what an Executor observed. A process that never started has
// StartErr set and ExitCode -1.
type ExecResult struct {
	ExitCode  int
	Signal    string
	Output    []byte
	Duration  time.Duration
	TimedOut  bool
	Cancelled bool
	StartErr  error

	// Marker is the first match of Command.Scan in the output stream.
	Marker string
}

// Executor runs external commands. The real implementation spawns processes;
// tests substitute a spy.
type Executor interface {
	Exec(ctx context.Context, cmd Command) ExecResult
}

// GracePeriod is the duration to wait between SIGINT and SIGKILL when
// terminating a tool process group (timeout or cancellation).
const GracePeriod = 3 * time.Second

// MaxOutputBytes bounds the captured combined output; the tail is kept.
const MaxOutputBytes = 64 * 1024

// ProcessExecutor spawns real processes, each in its own process group.
type ProcessExecutor struct {
	// Grace overrides GracePeriod when non-zero.
	Grace time.Duration
}

// NewProcessExecutor returns an executor with the default grace period.
func NewProcessExecutor() *ProcessExecutor {
	return &ProcessExecutor{}
}

// Exec runs cmd and waits for it. On timeout or cancellation the whole
// process group is interrupted, then killed after the grace period, and Exec
// does not return until the process has been reaped.
func (e *ProcessExecutor) Exec(ctx context.Context, c Command) ExecResult {
	res := ExecResult{ExitCode: -1}
	if len(c.Argv) == 0 {
		res.StartErr = stderrors.New("empty command")
		return res
	}

	grace := e.Grace
	if grace == 0 {
		grace = GracePeriod
	}

	runCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	out := &tailBuffer{max: MaxOutputBytes, scan: markerScanner{re: c.Scan}}
	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = out
	cmd.Stderr = out
	configureProcessGroup(cmd)
	// Backstop for descendants that escaped the group but still hold our pipes.
	cmd.WaitDelay = grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.StartErr = err
		res.Duration = time.Since(start)
		return res
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
		// Background children that outlived the tool must not outlive the run.
		signalProcessGroup(cmd, syscall.SIGKILL)
	case <-runCtx.Done():
		if ctx.Err() != nil {
			res.Cancelled = true
		} else {
			res.TimedOut = true
		}
		runErr = terminateProcessGroup(cmd, waitDone, grace)
	}

	res.Duration = time.Since(start)
	res.Output = out.Bytes()
	res.Marker = out.Marker()

	// ProcessState is set whenever the leader was reaped, including when
	// Wait gave up on pipes still held by descendants (exec.ErrWaitDelay).
	if ps := cmd.ProcessState; ps != nil {
		if status, ok := ps.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			res.Signal = status.Signal().String()
		} else {
			res.ExitCode = ps.ExitCode()
		}
	} else if runErr == nil {
		res.ExitCode = 0
	}
	return res
}

// terminateProcessGroup sends SIGINT to the group, waits up to grace for the
// process to exit, then sends SIGKILL and waits for it to be reaped.
func terminateProcessGroup(cmd *exec.Cmd, waitDone <-chan error, grace time.Duration) error {
	signalProcessGroup(cmd, syscall.SIGINT)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitDone:
		// The leader exited; make sure no group member survives it.
		signalProcessGroup(cmd, syscall.SIGKILL)
		return err
	case <-timer.C:
	}

	signalProcessGroup(cmd, syscall.SIGKILL)
	return <-waitDone
}

// tailBuffer is an io.Writer that keeps only the last max bytes written
// and scans everything written for a marker.
type tailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
	scan      markerScanner
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	b.scan.feed(p, false)
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.truncated {
		return append([]byte(nil), b.buf...)
	}
	return append([]byte("[output truncated]\n"), b.buf...)
}

// Marker returns the first marker match in everything written so far,
// treating the stream as complete.
func (b *tailBuffer) Marker() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scan.feed(nil, true)
	return b.scan.found
}

// scanOverlap is how many trailing bytes are kept between writes so a
// marker split across two writes is still seen with its word boundaries.
const scanOverlap = 64

// markerScanner finds the first match of re in a stream written in chunks.
type markerScanner struct {
	re    *regexp.Regexp
	carry []byte
	found string
}

// feed scans p after the bytes carried from earlier writes. A match that
// ends exactly at the end of the data is only accepted once the stream is
// final, since the next byte could still extend the word.
func (s *markerScanner) feed(p []byte, final bool) {
	if s.re == nil || s.found != "" {
		return
	}
	window := make([]byte, 0, len(s.carry)+len(p))
	window = append(window, s.carry...)
	window = append(window, p...)
	for _, loc := range s.re.FindAllIndex(window, -1) {
		if loc[1] < len(s.carry) {
			// Entirely inside the carried bytes: judged by an earlier feed.
			continue
		}
		if !final && loc[1] == len(window) {
			break
		}
		s.found = string(window[loc[0]:loc[1]])
		return
	}
	if len(window) > scanOverlap {
		window = window[len(window)-scanOverlap:]
	}
	s.carry = window
}
