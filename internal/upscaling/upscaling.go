// internal/upscaling/upscaling.go
package upscaling

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"videoenhancer/internal/ffmpeg"
	"videoenhancer/internal/frames"
	"videoenhancer/internal/runner"
	"videoenhancer/internal/video"
)

// UpscalingConfig holds configuration for AI upscaling
type UpscalingConfig struct {
	Model        string // realsr, waifu2x, realesrgan or swinir
	Scale        int    // 2, 3, or 4
	GPU          *int   // nil lets the upscaler pick
	FramesDir    string
	UpscaledDir  string
	OutputFormat string // mp4 or gif; empty follows the output extension
	ToolsDir     string
}

// VideoUpscalingResult contains the results of video upscaling
type VideoUpscalingResult struct {
	InputPath       string
	OutputPath      string
	OriginalSize    VideoSize
	UpscaledSize    VideoSize
	FPS             float64
	ProcessingTime  time.Duration
	FramesProcessed int
	Success         bool
	ErrorMessage    string
}

// VideoSize represents video dimensions
type VideoSize struct {
	Width  int
	Height int
}

// ProgressCallback is called during video processing to report progress
type ProgressCallback func(current, total int, message string)

// UpscalingModels maps each model to its ncnn-vulkan executable
var UpscalingModels = map[string]string{
	"realsr":     "realsr-ncnn-vulkan",
	"waifu2x":    "waifu2x-ncnn-vulkan",
	"realesrgan": "realesrgan-ncnn-vulkan",
	"swinir":     "swinir-ncnn-vulkan",
}

// UpscalingModelDescriptions provides user-friendly descriptions
var UpscalingModelDescriptions = map[string]string{
	"realsr":     "RealSR (Best for photos/real content)",
	"waifu2x":    "Waifu2x (Anime/Cartoon, fast)",
	"realesrgan": "Real-ESRGAN (General purpose, sharp)",
	"swinir":     "SwinIR (Transformer restoration, slow)",
}

// ModelNames returns the supported models in a stable order
func ModelNames() []string {
	names := make([]string, 0, len(UpscalingModels))
	for name := range UpscalingModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upscaler handles AI upscaling operations
type Upscaler struct {
	config *UpscalingConfig
	runner runner.Runner
	ff     *ffmpeg.FFmpeg
	prober video.Prober
	bin    string
	now    func() time.Time

	// Progress receives progress bars; nil disables them
	Progress io.Writer
}

// NewUpscaler creates a new upscaler instance
func NewUpscaler(config *UpscalingConfig, r runner.Runner, ff *ffmpeg.FFmpeg, prober video.Prober) *Upscaler {
	exe := UpscalingModels[strings.ToLower(config.Model)]
	bin, err := runner.FindProgram(r, config.ToolsDir, exe)
	if err != nil {
		bin = runner.ExecutableName(exe)
	}
	return &Upscaler{config: config, runner: r, ff: ff, prober: prober, bin: bin, now: time.Now}
}

// IsAvailable checks that ffmpeg and the model's executable can be run
func (u *Upscaler) IsAvailable() bool {
	if !u.ff.IsFFmpegAvailable() {
		return false
	}
	_, err := u.runner.LookPath(u.bin)
	return err == nil
}

// UpscaleFrames runs the model over every frame in inputDir, writing PNGs to outputDir
func (u *Upscaler) UpscaleFrames(ctx context.Context, inputDir, outputDir string) error {
	count, err := frames.Count(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w in %s to upscale", frames.ErrNoFrames, inputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create upscaled folder: %w", err)
	}

	args := []string{
		"-i", inputDir,
		"-o", outputDir,
		"-s", strconv.Itoa(u.config.Scale),
		"-f", "png",
	}
	if u.config.GPU != nil {
		args = append(args, "-g", strconv.Itoa(*u.config.GPU))
	}

	slog.Info("upscaling frames", "model", u.config.Model, "scale", u.config.Scale, "frames", count)
	stop := frames.Watch(ctx, outputDir, count, "Upscaling", u.Progress, nil)
	err = u.runner.Run(ctx, u.bin, args...)
	stop()
	if err != nil {
		return fmt.Errorf("failed to upscale frames: %w", err)
	}

	upscaled, err := frames.Count(outputDir)
	if err != nil {
		return err
	}
	if upscaled == 0 {
		return fmt.Errorf("%w: %s produced no output", frames.ErrNoFrames, u.config.Model)
	}
	slog.Info("upscaling complete", "frames", upscaled)
	return nil
}

// UpscaleVideo processes an entire video with AI upscaling. The working folders are
// removed whether or not it succeeds.
func (u *Upscaler) UpscaleVideo(ctx context.Context, inputPath, outputPath string, progressCallback ProgressCallback) (*VideoUpscalingResult, error) {
	startTime := time.Now()
	result := &VideoUpscalingResult{
		InputPath:  inputPath,
		OutputPath: outputPath,
	}

	report := func(current int, message string) {
		if progressCallback != nil {
			progressCallback(current, 100, message)
		}
	}
	fail := func(err error) (*VideoUpscalingResult, error) {
		result.ErrorMessage = err.Error()
		return result, err
	}

	if err := ValidateConfig(u.config); err != nil {
		return fail(fmt.Errorf("invalid configuration: %w", err))
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fail(fmt.Errorf("input video not found: %w", err))
	}
	if err := u.ff.Require(); err != nil {
		return fail(err)
	}
	u.ff.Progress = u.Progress

	defer func() {
		for _, dir := range []string{u.config.FramesDir, u.config.UpscaledDir} {
			if err := frames.Clear(dir); err != nil {
				slog.Warn("failed to clean up folder", "dir", dir, "err", err)
			}
		}
	}()

	for _, dir := range []string{u.config.FramesDir, u.config.UpscaledDir} {
		if err := frames.Reset(dir); err != nil {
			return fail(fmt.Errorf("failed to prepare %s: %w", dir, err))
		}
	}

	if info, err := video.GetVideoInfo(ctx, u.prober, inputPath); err == nil {
		result.OriginalSize = VideoSize{Width: info.Width, Height: info.Height}
		result.UpscaledSize = VideoSize{Width: info.Width * u.config.Scale, Height: info.Height * u.config.Scale}
	}

	report(10, "Extracting video frames...")
	if err := u.ff.ExtractFrames(ctx, inputPath, u.config.FramesDir, ffmpeg.ExtractOptions{RGB24: true}); err != nil {
		return fail(err)
	}

	report(30, fmt.Sprintf("Upscaling frames with %s (scale=%d)...", u.config.Model, u.config.Scale))
	if err := u.UpscaleFrames(ctx, u.config.FramesDir, u.config.UpscaledDir); err != nil {
		return fail(err)
	}
	result.FramesProcessed, _ = frames.Count(u.config.UpscaledDir)

	result.FPS = video.FPS(ctx, u.prober, inputPath)
	result.OutputPath = frames.UniqueFilename(outputPath, u.now())

	report(80, "Reconstructing upscaled video...")
	if err := u.ff.Reconstruct(ctx, u.config.UpscaledDir, inputPath, result.OutputPath, result.FPS, u.config.OutputFormat); err != nil {
		return fail(err)
	}

	result.ProcessingTime = time.Since(startTime)
	result.Success = true
	report(100, "Upscaling completed successfully!")
	slog.Info("upscaled video saved", "output", result.OutputPath)

	return result, nil
}

// GetModelInfo returns information about available models
func GetModelInfo() map[string]string {
	return UpscalingModelDescriptions
}

// ValidateConfig validates upscaling configuration
func ValidateConfig(config *UpscalingConfig) error {
	if _, exists := UpscalingModels[strings.ToLower(config.Model)]; !exists {
		return fmt.Errorf("invalid upscaling model: %s", config.Model)
	}

	if config.Scale < 2 || config.Scale > 4 {
		return fmt.Errorf("upscaling scale must be 2, 3, or 4")
	}

	if config.GPU != nil && *config.GPU < -1 {
		return fmt.Errorf("invalid GPU device ID: %d", *config.GPU)
	}

	if strings.TrimSpace(config.FramesDir) == "" || strings.TrimSpace(config.UpscaledDir) == "" {
		return fmt.Errorf("frames and upscaled folders are required")
	}
	if config.FramesDir == config.UpscaledDir {
		return fmt.Errorf("frames and upscaled folders must differ")
	}

	switch strings.ToLower(config.OutputFormat) {
	case "", "mp4", "gif":
	default:
		return fmt.Errorf("unsupported output format: %s", config.OutputFormat)
	}

	return nil
}

// GetDefaultConfig returns default upscaling configuration
func GetDefaultConfig() *UpscalingConfig {
	return &UpscalingConfig{
		Model:       "realsr",
		Scale:       2,
		FramesDir:   "upscale_frames",
		UpscaledDir: "upscaled_frames",
	}
}
