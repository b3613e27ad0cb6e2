// Package shell runs user-requested shell commands with safety screening,
// a timeout and bounded output capture.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timeout")

// ErrBlocked is returned when screening rejects a command.
var ErrBlocked = errors.New("command blocked")

const (
	// DefaultTimeout bounds a single command execution.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxOutput bounds captured output per stream.
	DefaultMaxOutput = 64 * 1024

	gracePeriod = 2 * time.Second
)

// dangerousFragments block a command outright when present anywhere in it.
var dangerousFragments = []string{
	"rm -rf /",
	"mkfs",
	"dd if=",
	":(){ :|:& };:",
	"chmod -r 777 /",
	"chown -r",
}

// chainingExempt are command families where pipes and separators are part
// of normal usage.
var chainingExempt = []string{"git", "echo", "grep", "find"}

var chainingTokens = []string{";", "&&", "||", "|", "`", "$("}

// Runner executes shell commands in a fixed working directory.
type Runner struct {
	workDir   string
	timeout   time.Duration
	maxOutput int
	logger    *slog.Logger
}

// New creates a Runner. workDir may be empty to use the process working
// directory.
func New(workDir string, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		workDir:   workDir,
		timeout:   timeout,
		maxOutput: DefaultMaxOutput,
		logger:    logger,
	}
}

// Screen reports whether command may be executed. When blocked, reason
// names the rule that matched.
func (r *Runner) Screen(command string) (ok bool, reason string) {
	lowered := strings.ToLower(strings.TrimSpace(command))

	for _, fragment := range dangerousFragments {
		if strings.Contains(lowered, fragment) {
			return false, "dangerous command detected: " + fragment
		}
	}

	if strings.Contains(lowered, "rm -rf") && strings.Contains(lowered, "/") {
		return false, "recursive deletion with absolute paths is not allowed"
	}

	if strings.HasPrefix(lowered, "sudo ") {
		return false, "sudo commands require manual execution"
	}

	if containsAny(command, chainingTokens) && !hasExemptRoot(lowered) {
		return false, "command chaining detected, execute commands individually"
	}

	return true, ""
}

// Run screens and executes command through the system shell, returning the
// captured output as display text. A non-zero exit code is reported in the
// text, not as an error; the error return covers blocked commands, spawn
// failures and timeouts.
func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	if ok, reason := r.Screen(command); !ok {
		r.logger.Warn("command blocked", slog.String("command", command), slog.String("reason", reason))
		return "", fmt.Errorf("%w: %s", ErrBlocked, reason)
	}

	r.logger.Info("executing command", slog.String("command", command))
	start := time.Now()

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = r.workDir
	cmd.Stdin = nil

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", err
	}

	var stdout, stderr string
	collectDone := make(chan struct{})
	go func() {
		stdout, stderr = r.collectOutput(stdoutPipe, stderrPipe)
		close(collectDone)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var execErr error
	select {
	case err := <-done:
		execErr = err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		execErr = ctx.Err()
	case <-time.After(r.timeout):
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(gracePeriod):
			_ = cmd.Process.Kill()
			<-done
		}
		execErr = ErrTimeout
	}

	<-collectDone
	elapsed := time.Since(start)

	if errors.Is(execErr, ErrTimeout) {
		r.logger.Error("command timed out",
			slog.String("command", command),
			slog.Duration("timeout", r.timeout))
		return "", fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	}
	if execErr != nil && exitCode(execErr) < 0 {
		return "", execErr
	}

	r.logger.Info("command finished",
		slog.String("command", command),
		slog.Int("exit_code", exitCode(execErr)),
		slog.Duration("duration", elapsed.Round(time.Millisecond)))

	return formatResult(stdout, stderr, exitCode(execErr)), nil
}

func (r *Runner) collectOutput(stdoutPipe, stderrPipe io.Reader) (string, string) {
	stdout := newCollector(r.maxOutput)
	stderr := newCollector(r.maxOutput)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stdout, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stderr, stderrPipe)
	}()
	wg.Wait()

	return stdout.String(), stderr.String()
}

func formatResult(stdout, stderr string, code int) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(stdout, "\n"))
	if stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[stderr] " + strings.TrimRight(stderr, "\n"))
	}
	if code != 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "(exit code %d)", code)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return b.String()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func hasExemptRoot(lowered string) bool {
	for _, root := range chainingExempt {
		if strings.Contains(lowered, root) {
			return true
		}
	}
	return false
}
