package interpolation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/runner"
)

// ExecutableName is the RIFE binary, looked up in <tools>/rife-ncnn-vulkan/ before PATH
const ExecutableName = "rife-ncnn-vulkan"

// ErrTempFolderRequired is returned by Multipass when no scratch folder is given
var ErrTempFolderRequired = errors.New("temp folder must be specified for multipass interpolation")

// SupportsTargetCount reports whether model accepts -n and can hit an exact frame count
// in one pass. Only the rife-v4 family does.
func SupportsTargetCount(model string) bool {
	name := strings.ToLower(filepath.Base(model))
	return name == "rife-v4" || strings.HasPrefix(name, "rife-v4.")
}

// RIFE drives rife-ncnn-vulkan
type RIFE struct {
	Runner runner.Runner
	Bin    string
	Model  string

	TimeStep      *float64
	GPUID         *int
	ThreadConfig  string
	TTA           bool
	TemporalTTA   bool
	UHD           bool
	PatternFormat string

	// Retries is how many extra attempts a recoverable failure gets
	Retries    int
	RetryDelay time.Duration
	// Progress receives per-pass progress bars; nil disables them
	Progress io.Writer
}

// ModelPath resolves Model against the folder holding the binary, where the release
// archives keep their models.
func (r *RIFE) ModelPath() string {
	if filepath.IsAbs(r.Model) || !filepath.IsAbs(r.Bin) {
		return r.Model
	}
	candidate := filepath.Join(filepath.Dir(r.Bin), r.Model)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return r.Model
}

func (r *RIFE) commonArgs(in, out string) []string {
	return []string{"-i", in, "-o", out, "-m", r.ModelPath()}
}

func (r *RIFE) tuningArgs() []string {
	var args []string
	if r.GPUID != nil {
		args = append(args, "-g", strconv.Itoa(*r.GPUID))
	}
	if r.ThreadConfig != "" {
		args = append(args, "-j", r.ThreadConfig)
	}
	if r.TTA {
		args = append(args, "-x")
	}
	if r.TemporalTTA {
		args = append(args, "-z")
	}
	if r.UHD {
		args = append(args, "-u")
	}
	pattern := r.PatternFormat
	if pattern == "" {
		pattern = "png"
	}
	return append(args, "-f", pattern)
}

// SinglePass interpolates in to exactly target frames in out with -n
func (r *RIFE) SinglePass(ctx context.Context, in, out string, target int) error {
	args := append(r.commonArgs(in, out), "-n", strconv.Itoa(target))
	if r.TimeStep != nil {
		args = append(args, "-s", strconv.FormatFloat(*r.TimeStep, 'f', -1, 64))
	}
	args = append(args, r.tuningArgs()...)

	slog.Info("single-pass interpolation", "model", r.Model, "target", target)
	if err := r.run(ctx, out, target, "Interpolating", args); err != nil {
		return err
	}
	slog.Info("single-pass interpolation complete", "dir", out)
	return nil
}

// Multipass reaches at least desired frames by repeated doubling into fresh
// temp/temp_pass_N folders, then copies the result to out and trims any overshoot.
func (r *RIFE) Multipass(ctx context.Context, in, out string, desired int, preserveOriginal bool, temp string) error {
	if temp == "" {
		return ErrTempFolderRequired
	}

	current, err := frames.Count(in)
	if err != nil {
		return fmt.Errorf("failed to count input frames: %w", err)
	}
	if current == 0 {
		return fmt.Errorf("%w in %s", frames.ErrNoFrames, in)
	}

	if current >= desired {
		if err := copyAndTrim(in, out, desired, preserveOriginal); err != nil {
			return err
		}
		slog.Info("copied and trimmed frames", "dir", out, "frames", desired)
		return nil
	}

	passes := int(math.Ceil(math.Log2(float64(desired) / float64(current))))
	slog.Info("multipass interpolation", "model", r.Model, "passes", passes, "target", desired)

	source := in
	for i := 1; i <= passes; i++ {
		passDir := filepath.Join(temp, fmt.Sprintf("temp_pass_%d", i))
		if err := frames.Reset(passDir); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", passDir, err)
		}

		args := append(r.commonArgs(source, passDir), r.tuningArgs()...)
		slog.Info("doubling frames", "pass", i, "of", passes)
		if err := r.run(ctx, passDir, current*2, fmt.Sprintf("Pass %d/%d", i, passes), args); err != nil {
			return err
		}

		count, err := frames.Count(passDir)
		if err != nil {
			return err
		}
		source = passDir
		current = count
		if count >= desired {
			slog.Info("desired frame count reached", "frames", count, "target", desired)
			break
		}
	}

	if current < desired {
		slog.Warn("multipass ended short of target", "frames", current, "target", desired)
	}
	if err := copyAndTrim(source, out, desired, preserveOriginal); err != nil {
		return err
	}
	slog.Info("multipass interpolation complete", "dir", out)
	return nil
}

func copyAndTrim(src, dst string, target int, preserveOriginal bool) error {
	if err := frames.CopyDir(src, dst); err != nil {
		return fmt.Errorf("failed to copy frames: %w", err)
	}
	if _, err := frames.SpacedTrim(dst, target, preserveOriginal); err != nil {
		return fmt.Errorf("failed to trim frames: %w", err)
	}
	return nil
}

// interpolate picks single-pass or multipass depending on the model
func (r *RIFE) interpolate(ctx context.Context, in, out string, target int, temp string) error {
	if SupportsTargetCount(r.Model) {
		return r.SinglePass(ctx, in, out, target)
	}
	return r.Multipass(ctx, in, out, target, false, temp)
}

// FillToCount brings the deduplicated frames in in back to target frames in out so
// the video keeps its duration.
func (r *RIFE) FillToCount(ctx context.Context, in, out string, target int, temp string) error {
	current, err := frames.Count(in)
	if err != nil {
		return fmt.Errorf("failed to count frames: %w", err)
	}

	switch {
	case current == target:
		slog.Info("no fill needed", "frames", current)
		return frames.CopyDir(in, out)
	case current > target:
		slog.Warn("more frames than the original, trimming", "frames", current, "original", target)
		return copyAndTrim(in, out, target, false)
	default:
		slog.Info("restoring frames to original count", "frames", current, "original", target)
		return r.interpolate(ctx, in, out, target, temp)
	}
}

// InterpolateToCount interpolates in to int(original*factor) frames in out
func (r *RIFE) InterpolateToCount(ctx context.Context, in, out string, original int, factor float64, temp string) (int, error) {
	target := int(float64(original) * factor)
	slog.Info("final interpolation", "factor", factor, "target", target)
	if err := r.interpolate(ctx, in, out, target, temp); err != nil {
		return 0, err
	}
	return target, nil
}

// run executes one RIFE invocation, retrying recoverable failures into a clean out
func (r *RIFE) run(ctx context.Context, out string, expected int, description string, args []string) error {
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying interpolation", "attempt", attempt+1, "of", r.Retries+1, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.RetryDelay):
			}
		}

		if err := frames.Reset(out); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", out, err)
		}

		stop := frames.Watch(ctx, out, expected, description, r.Progress, nil)
		lastErr = r.Runner.Run(ctx, r.Bin, args...)
		stop()

		if lastErr == nil {
			return nil
		}
		if !isRecoverableError(lastErr) {
			break
		}
	}
	return fmt.Errorf("failed to interpolate frames: %w", lastErr)
}

// isRecoverableError determines if an interpolation error can be retried
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errorMsg := strings.ToLower(err.Error())

	// Recoverable errors (temporary issues)
	recoverablePatterns := []string{
		"out of memory",
		"vkallocatememory failed",
		"device lost",
		"device busy",
		"timeout",
		"interrupted",
	}

	for _, pattern := range recoverablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	// Non-recoverable errors (fundamental issues)
	nonRecoverablePatterns := []string{
		"model not found",
		"invalid model",
		"file not found",
		"executable file not found",
		"permission denied",
		"no such file",
		"invalid argument",
		"invalid gpu device",
	}

	for _, pattern := range nonRecoverablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return false
		}
	}

	// Default to recoverable for unknown errors
	return true
}
