// Package runner abstracts invocation of the external binaries the pipeline orchestrates.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// stderrTailBytes bounds how much of a failing command's stderr ends up in the error.
const stderrTailBytes = 4096

// Runner executes external programs
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec
type Exec struct {
	Logger *slog.Logger
	// Stream forwards child stdout/stderr to the terminal instead of capturing it
	Stream bool
}

// New returns an Exec runner logging through logger
func New(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{Logger: logger}
}

// Run executes name with args and waits for it to exit
func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	e.Logger.Debug("running command", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr tailBuffer
	if e.Stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = &teeTail{w: os.Stderr, tail: &stderr}
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &CommandError{Name: name, Args: args, Err: err, Stderr: stderr.String()}
	}
	return nil
}

// Output executes name with args and returns its trimmed stdout
func (e *Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	e.Logger.Debug("running command", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr tailBuffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CommandError{Name: name, Args: args, Err: err, Stderr: stderr.String()}
	}
	return bytes.TrimSpace(out), nil
}

// LookPath resolves name on PATH
func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// CommandError describes a failed external command
type CommandError struct {
	Name   string
	Args   []string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", filepath.Base(e.Name), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nOutput: " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecutableName appends .exe on Windows
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// FindProgram locates the first of names, looking in <toolsDir>/<name>/ before PATH.
func FindProgram(r Runner, toolsDir string, names ...string) (string, error) {
	var lastErr error
	for _, name := range names {
		if toolsDir != "" {
			candidate := filepath.Join(toolsDir, name, ExecutableName(name))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		program, err := r.LookPath(name)
		if err == nil {
			return program, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no program names given")
	}
	return "", lastErr
}

// tailBuffer keeps only the last stderrTailBytes written to it
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailBytes {
		t.buf = t.buf[len(t.buf)-stderrTailBytes:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

type teeTail struct {
	w    *os.File
	tail *tailBuffer
}

func (t *teeTail) Write(p []byte) (int, error) {
	t.tail.Write(p)
	return t.w.Write(p)
}
