// internal/interpolation/interpolation.go
package interpolation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"videoenhancer/internal/dedup"
	"videoenhancer/internal/ffmpeg"
	"videoenhancer/internal/frames"
	"videoenhancer/internal/runner"
	"videoenhancer/internal/video"
)

// duplicateEpsilon is how far above 1.0 a duplication rate must be before frames are dropped
const duplicateEpsilon = 0.01

// Config holds configuration for RIFE frame interpolation
type Config struct {
	Model            string  // RIFE model folder, e.g. rife-v4.6
	FPSFactor        float64 // How many times to increase the frame rate
	RemoveDuplicates bool

	InputFrames    string // Folder for extracted frames
	RestoredFrames string // Folder after filling back to the original count
	FinalFrames    string // Folder for the final interpolated frames
	TempFolder     string // Folder for multipass intermediates

	TimeStep      *float64 // rife-v4 only
	GPUID         *int
	ThreadConfig  string // e.g. "1:2:2"
	TTA           bool
	TemporalTTA   bool
	UHD           bool
	PatternFormat string
	OutputFormat  string // mp4 or gif; empty follows the output extension

	DuplicateThreshold float64
	Retries            int
	RetryDelay         time.Duration
	ToolsDir           string
}

// Result contains the results of a frame interpolation run
type Result struct {
	InputPath          string
	OutputPath         string
	OriginalFrameCount int
	DuplicateRate      float64
	DuplicatesRemoved  bool
	UniqueFrameCount   int
	FinalFrameCount    int
	OriginalFPS        float64
	FinalFPS           float64
	ProcessingTime     time.Duration
	Success            bool
	ErrorMessage       string
}

// ProgressCallback is called during interpolation processing to report progress
type ProgressCallback func(current, total int, message string)

// InterpolationModels lists the models shipped with rife-ncnn-vulkan releases
var InterpolationModels = map[string]string{
	"rife-v4.6":  "v4.6 (Highest Quality, exact frame counts)",
	"rife-v4":    "v4.0 (Fast, exact frame counts)",
	"rife-anime": "Anime (Legacy, doubling passes)",
	"rife-HD":    "HD (Legacy, doubling passes)",
	"rife-UHD":   "UHD (Legacy, doubling passes)",
	"rife-v2.4":  "v2.4 (Legacy, doubling passes)",
	"rife-v3.1":  "v3.1 (Legacy, doubling passes)",
}

// ModelNames returns the known RIFE models in a stable order
func ModelNames() []string {
	names := make([]string, 0, len(InterpolationModels))
	for name := range InterpolationModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefaultConfig returns the default interpolation configuration
func GetDefaultConfig() *Config {
	return &Config{
		Model:              "rife-v4.6",
		FPSFactor:          2.0,
		InputFrames:        "frames_input",
		RestoredFrames:     "restored_frames",
		FinalFrames:        "frames_output",
		TempFolder:         "temp_interpolation",
		DuplicateThreshold: dedup.DefaultThreshold,
		Retries:            2,
		RetryDelay:         2 * time.Second,
	}
}

// ValidateConfig validates interpolation configuration
func ValidateConfig(config *Config) error {
	if strings.TrimSpace(config.Model) == "" {
		return fmt.Errorf("interpolation model is required")
	}

	if config.FPSFactor <= 0 {
		return fmt.Errorf("fps factor must be positive, got %g", config.FPSFactor)
	}

	folders := map[string]string{
		"input_frames":    config.InputFrames,
		"restored_frames": config.RestoredFrames,
		"final_frames":    config.FinalFrames,
		"temp_folder":     config.TempFolder,
	}
	seen := make(map[string]string)
	for name, folder := range folders {
		if strings.TrimSpace(folder) == "" {
			return fmt.Errorf("%s folder is required", name)
		}
		abs, err := filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("invalid %s folder: %w", name, err)
		}
		if other, exists := seen[abs]; exists {
			return fmt.Errorf("%s and %s must be different folders", other, name)
		}
		seen[abs] = name
	}

	if config.TimeStep != nil && (*config.TimeStep <= 0 || *config.TimeStep >= 1) {
		return fmt.Errorf("time step must be between 0 and 1, got %g", *config.TimeStep)
	}

	if config.GPUID != nil && *config.GPUID < -1 {
		return fmt.Errorf("invalid GPU device ID: %d", *config.GPUID)
	}

	switch strings.ToLower(config.OutputFormat) {
	case "", "mp4", "gif":
	default:
		return fmt.Errorf("unsupported output format: %s", config.OutputFormat)
	}

	if config.DuplicateThreshold < 0 {
		return fmt.Errorf("duplicate threshold must not be negative")
	}

	if config.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}

	return nil
}

// Interpolator handles RIFE frame interpolation of whole videos
type Interpolator struct {
	config *Config
	rife   *RIFE
	ff     *ffmpeg.FFmpeg
	prober video.Prober
	now    func() time.Time

	// Progress receives progress bars; nil disables them
	Progress io.Writer
}

// NewInterpolator creates a new interpolator instance
func NewInterpolator(config *Config, r runner.Runner, ff *ffmpeg.FFmpeg, prober video.Prober) *Interpolator {
	bin, err := runner.FindProgram(r, config.ToolsDir, ExecutableName)
	if err != nil {
		bin = runner.ExecutableName(ExecutableName)
	}

	return &Interpolator{
		config: config,
		ff:     ff,
		prober: prober,
		now:    time.Now,
		rife: &RIFE{
			Runner:        r,
			Bin:           bin,
			Model:         config.Model,
			TimeStep:      config.TimeStep,
			GPUID:         config.GPUID,
			ThreadConfig:  config.ThreadConfig,
			TTA:           config.TTA,
			TemporalTTA:   config.TemporalTTA,
			UHD:           config.UHD,
			PatternFormat: config.PatternFormat,
			Retries:       config.Retries,
			RetryDelay:    config.RetryDelay,
		},
	}
}

// RIFE returns the underlying RIFE driver
func (i *Interpolator) RIFE() *RIFE {
	return i.rife
}

// IsAvailable checks that both ffmpeg and the RIFE binary can be run
func (i *Interpolator) IsAvailable() bool {
	if !i.ff.IsFFmpegAvailable() {
		return false
	}
	_, err := i.rife.Runner.LookPath(i.rife.Bin)
	return err == nil
}

func (i *Interpolator) folders() []string {
	return []string{i.config.InputFrames, i.config.RestoredFrames, i.config.FinalFrames, i.config.TempFolder}
}

// InterpolateVideo extracts the frames of inputPath, optionally drops duplicated frames and
// restores the original count, interpolates to FPSFactor times the frames and encodes the
// result at FPSFactor times the frame rate. Working folders are always removed.
func (i *Interpolator) InterpolateVideo(ctx context.Context, inputPath, outputPath string, progressCallback ProgressCallback) (*Result, error) {
	processingStartTime := time.Now()
	result := &Result{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		DuplicateRate: 1.0,
	}

	report := func(current int, message string) {
		slog.Info(message)
		if progressCallback != nil {
			progressCallback(current, 100, message)
		}
	}
	fail := func(err error) (*Result, error) {
		result.ErrorMessage = err.Error()
		return result, err
	}

	if err := ValidateConfig(i.config); err != nil {
		return fail(fmt.Errorf("invalid configuration: %w", err))
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fail(fmt.Errorf("input video not found: %w", err))
	}
	if err := i.ff.Require(); err != nil {
		return fail(err)
	}

	i.rife.Progress = i.Progress
	i.ff.Progress = i.Progress

	workspace := NewWorkspace(i.folders()...)
	defer workspace.Cleanup()

	report(0, "Cleaning previous frames and preparing directories...")
	if err := workspace.Reset(); err != nil {
		return fail(err)
	}

	if info, err := video.GetVideoInfo(ctx, i.prober, inputPath); err == nil && info.Duration > 0 {
		estimated := EstimateFrameStorageNeeds(info.Width, info.Height, int(info.Duration*info.FPS), i.config.FPSFactor)
		if err := CheckDiskSpace(i.config.InputFrames, estimated); err != nil {
			return fail(fmt.Errorf("disk space check failed: %w", err))
		}
	}

	report(10, "Extracting frames from video...")
	if err := i.ff.ExtractFrames(ctx, inputPath, i.config.InputFrames, ffmpeg.ExtractOptions{}); err != nil {
		return fail(err)
	}
	extracted, err := frames.Count(i.config.InputFrames)
	if err != nil {
		return fail(err)
	}
	result.OriginalFrameCount = extracted
	result.UniqueFrameCount = extracted
	slog.Info("original video frames", "count", extracted)

	source := i.config.InputFrames
	if i.config.RemoveDuplicates {
		report(20, "Detecting duplication rate...")
		filtered, err := i.removeDuplicates(ctx, source, result)
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			slog.Error("error during duplicate detection, skipping duplicate removal", "err", err)
		} else if filtered != "" {
			source = filtered
		}
	}

	originalCount := extracted
	if result.DuplicatesRemoved || i.config.FPSFactor != 1.0 {
		if n, err := video.FrameCount(ctx, i.ff, inputPath); err == nil {
			originalCount = n
		} else {
			slog.Warn("using extracted frame count", "count", extracted, "err", err)
		}
		result.OriginalFrameCount = originalCount
	}

	if result.DuplicatesRemoved {
		report(35, fmt.Sprintf("Restoring frames to original count = %d...", originalCount))
		if err := i.rife.FillToCount(ctx, source, i.config.RestoredFrames, originalCount, i.config.TempFolder); err != nil {
			return fail(err)
		}
	} else {
		report(35, "No duplicate removal, using extracted frames as restored frames...")
		if err := frames.CopyDir(source, i.config.RestoredFrames); err != nil {
			return fail(err)
		}
	}

	if i.config.FPSFactor != 1.0 {
		report(50, fmt.Sprintf("Final interpolation to factor %g...", i.config.FPSFactor))
		if _, err := i.rife.InterpolateToCount(ctx, i.config.RestoredFrames, i.config.FinalFrames, originalCount, i.config.FPSFactor, i.config.TempFolder); err != nil {
			return fail(err)
		}
	} else {
		report(50, "FPS factor is 1, no final interpolation needed...")
		if err := frames.CopyDir(i.config.RestoredFrames, i.config.FinalFrames); err != nil {
			return fail(err)
		}
	}

	finalCount, err := frames.Count(i.config.FinalFrames)
	if err != nil {
		return fail(err)
	}
	result.FinalFrameCount = finalCount

	result.OriginalFPS = video.FPS(ctx, i.prober, inputPath)
	result.FinalFPS = result.OriginalFPS * i.config.FPSFactor
	result.OutputPath = frames.UniqueFilename(outputPath, i.now())

	report(80, fmt.Sprintf("Reconstructing video at %s FPS...", ffmpeg.FormatFPS(result.FinalFPS)))
	if err := i.ff.Reconstruct(ctx, i.config.FinalFrames, inputPath, result.OutputPath, result.FinalFPS, i.config.OutputFormat); err != nil {
		return fail(err)
	}

	result.ProcessingTime = time.Since(processingStartTime)
	result.Success = true
	report(100, "Frame interpolation completed successfully!")

	return result, nil
}

// removeDuplicates drops duplicated frames from in into in/filtered_frames when the
// detected rate is meaningfully above 1. It returns "" when nothing was removed.
func (i *Interpolator) removeDuplicates(ctx context.Context, in string, result *Result) (string, error) {
	detection, err := dedup.Detect(ctx, in, i.config.DuplicateThreshold)
	if err != nil {
		return "", err
	}
	result.DuplicateRate = detection.Rate

	if detection.Rate <= 1.0+duplicateEpsilon {
		slog.Info("no significant duplicates found, skipping duplicate removal", "rate", detection.Rate)
		return "", nil
	}

	slog.Info("removing duplicates", "rate", detection.Rate, "threshold", 1.0+duplicateEpsilon)
	filtered := filepath.Join(in, "filtered_frames")
	written, kept, err := dedup.RemoveDuplicates(ctx, in, filtered, detection.Rate, dedup.Overwrite, i.Progress)
	if err != nil {
		return "", err
	}

	result.DuplicatesRemoved = true
	result.UniqueFrameCount = kept
	return written, nil
}
