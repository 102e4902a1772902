package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/voxflow/voxflow/pkg/schema"
)

const defaultMaxOutputSize = 10 * 1024 * 1024 // 10MB

// curatedPath is the PATH handed to sandboxed subprocesses.
const curatedPath = "/usr/bin:/bin:/usr/sbin:/sbin"

// loaderEnvVars are dynamic-loader injection variables stripped from the
// subprocess environment.
var loaderEnvVars = []string{
	"LD_PRELOAD",
	"LD_AUDIT",
	"LD_LIBRARY_PATH",
	"DYLD_INSERT_LIBRARIES",
	"DYLD_LIBRARY_PATH",
	"DYLD_FRAMEWORK_PATH",
}

// Executor validates run-shell configs against a Policy and spawns the
// subprocess with a scrubbed environment. All content reaching argv or
// stdin must already be template-resolved; the executor sanitizes it and
// logs advisory injection warnings.
type Executor struct {
	policy        *Policy
	logger        *slog.Logger
	maxOutputSize int64
}

// NewExecutor creates an Executor over the given policy.
func NewExecutor(policy *Policy, logger *slog.Logger) *Executor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{policy: policy, logger: logger, maxOutputSize: defaultMaxOutputSize}
}

// Result is the outcome of a sandboxed execution.
type Result struct {
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Warnings []string
}

// Run validates the config, spawns the executable with sanitized
// arguments and stdin, and races process completion against the
// configured timeout: whichever finishes first wins and the other is
// cancelled, killing the process if still alive. The returned output is
// stdout, concatenated with stderr when IncludeStderr is set, annotated
// with the exit code on non-zero termination.
func (x *Executor) Run(ctx context.Context, cfg *schema.RunShellConfig) (*Result, error) {
	if err := x.policy.Validate(cfg); err != nil {
		return nil, err
	}

	args := make([]string, len(cfg.Args))
	var warnings []string
	for i, a := range cfg.Args {
		args[i] = SanitizeContent(a)
		warnings = append(warnings, DetectInjectionAttempts(args[i])...)
	}
	stdin := SanitizeContent(cfg.Stdin)
	warnings = append(warnings, DetectInjectionAttempts(stdin)...)
	for _, w := range warnings {
		x.logger.Warn("shell content warning",
			slog.String("executable", cfg.Executable),
			slog.String("warning", w))
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, cfg.Executable, args...)
	cmd.Env = scrubEnv(os.Environ())
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: x.maxOutputSize}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: x.maxOutputSize}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{Duration: duration, Warnings: warnings}

	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"process %s killed after %ds timeout", cfg.Executable, cfg.TimeoutSeconds)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Spawn failure, not a process exit.
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"spawn %s: %v", cfg.Executable, runErr).WithCause(runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	out := stdoutBuf.String()
	if cfg.IncludeStderr && stderrBuf.Len() > 0 {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += stderrBuf.String()
	}
	if result.ExitCode != 0 {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += fmt.Sprintf("[exit code: %d]", result.ExitCode)
	}
	result.Output = out
	return result, nil
}

// scrubEnv removes loader-injection variables and pins PATH.
func scrubEnv(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name == "PATH" || isLoaderVar(name) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+curatedPath)
}

func isLoaderVar(name string) bool {
	for _, v := range loaderEnvVars {
		if name == v {
			return true
		}
	}
	return false
}

// limitedWriter wraps a writer and silently discards bytes beyond the
// limit. Write always reports the full len(p) consumed to prevent the
// subprocess from blocking on a full pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return total, nil
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return total, err
	}
	return total, nil
}
