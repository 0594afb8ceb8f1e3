// internal/ffmpeg/ffmpeg.go
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/runner"
)

// ErrUnavailable is returned when ffmpeg cannot be found
var ErrUnavailable = errors.New("ffmpeg is not installed or not in PATH")

// FFmpeg runs the ffmpeg and ffprobe binaries
type FFmpeg struct {
	Runner  runner.Runner
	FFmpeg  string
	FFprobe string
	// Progress receives frame progress bars; nil disables them
	Progress io.Writer
}

// New locates ffmpeg and ffprobe in toolsDir (ffmpeg/bin or ffmpeg/) before PATH.
// Missing binaries fall back to their bare names so the failure surfaces on first use.
func New(r runner.Runner, toolsDir string) *FFmpeg {
	return &FFmpeg{
		Runner:  r,
		FFmpeg:  locate(r, toolsDir, "ffmpeg"),
		FFprobe: locate(r, toolsDir, "ffprobe"),
	}
}

func locate(r runner.Runner, toolsDir, name string) string {
	if toolsDir != "" {
		for _, dir := range []string{filepath.Join(toolsDir, "ffmpeg", "bin"), filepath.Join(toolsDir, "ffmpeg")} {
			bin := filepath.Join(dir, runner.ExecutableName(name))
			if info, err := os.Stat(bin); err == nil && !info.IsDir() {
				return bin
			}
		}
	}
	if path, err := r.LookPath(name); err == nil {
		return path
	}
	return name
}

// IsFFmpegAvailable reports whether the ffmpeg binary can be run
func (f *FFmpeg) IsFFmpegAvailable() bool {
	_, err := f.Runner.LookPath(f.FFmpeg)
	return err == nil
}

// Require returns ErrUnavailable when ffmpeg cannot be run
func (f *FFmpeg) Require() error {
	if !f.IsFFmpegAvailable() {
		return ErrUnavailable
	}
	return nil
}

// ExtractOptions tune frame extraction
type ExtractOptions struct {
	// RGB24 forces 8-bit RGB output, needed by the upscalers
	RGB24 bool
	// ExpectedFrames sizes the progress bar; zero shows none
	ExpectedFrames int
}

// ExtractFrames writes every frame of video into dir as frame_%08d.png.
// dir is created if needed; existing frames are left alone.
func (f *FFmpeg) ExtractFrames(ctx context.Context, video, dir string, opts ExtractOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create frames folder: %w", err)
	}

	args := []string{
		"-thread_queue_size", "1024",
		"-i", video,
		"-vsync", "0",
	}
	if opts.RGB24 {
		args = append(args, "-pix_fmt", "rgb24")
	}
	args = append(args, filepath.Join(dir, frames.Pattern))

	slog.Info("extracting frames", "video", video, "dir", dir)

	if opts.ExpectedFrames > 0 && f.Progress != nil {
		stop := frames.Watch(ctx, dir, opts.ExpectedFrames, "Extracting", f.Progress, nil)
		defer stop()
	}

	if err := f.Runner.Run(ctx, f.FFmpeg, args...); err != nil {
		return fmt.Errorf("failed to extract frames: %w", err)
	}

	count, err := frames.Count(dir)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: ffmpeg extracted nothing from %s", frames.ErrNoFrames, video)
	}
	slog.Debug("frames extracted", "count", count)
	return nil
}

// OutputFormat returns explicit when set, otherwise the lowercased extension of output,
// defaulting to mp4.
func OutputFormat(output, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return strings.ToLower(explicit)
	}
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(output), ".")); ext != "" {
		return ext
	}
	return "mp4"
}

// FormatFPS renders a frame rate with the fewest digits that round-trip
func FormatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// Reconstruct encodes the frames in dir into output at fps. GIFs get a generated palette;
// everything else is H.264 with the audio of input copied over when it has any. The muxer
// is always named so outputs without an extension still encode.
func (f *FFmpeg) Reconstruct(ctx context.Context, dir, input, output string, fps float64, format string) error {
	count, err := frames.Count(dir)
	if err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w to reconstruct the video", frames.ErrNoFrames)
	}

	if err := frames.RenameSequential(dir); err != nil {
		return err
	}

	format = OutputFormat(output, format)
	pattern := filepath.Join(dir, frames.Pattern)
	rate := FormatFPS(fps)

	var args []string
	if format == "gif" {
		palette := filepath.Join(dir, "palette.png")
		if err := f.Runner.Run(ctx, f.FFmpeg, "-y", "-i", pattern, "-vf", "palettegen", palette); err != nil {
			return fmt.Errorf("failed to generate gif palette: %w", err)
		}
		args = []string{
			"-y",
			"-framerate", rate,
			"-i", pattern,
			"-i", palette,
			"-lavfi", fmt.Sprintf("fps=%s[x];[x][1:v]paletteuse", rate),
			"-loop", "0",
			"-f", "gif",
			output,
		}
	} else {
		args = []string{
			"-y",
			"-framerate", rate,
			"-i", pattern,
			"-i", input,
			"-map", "0:v:0", "-map", "1:a:0?",
			"-c:v", "libx264", "-crf", "18", "-preset", "slow",
			"-c:a", "aac", "-b:a", "192k",
			"-shortest",
			"-f", "mp4",
			output,
		}
	}

	slog.Info("reconstructing video", "frames", count, "fps", rate, "format", format, "output", output)
	if err := f.Runner.Run(ctx, f.FFmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	return nil
}
