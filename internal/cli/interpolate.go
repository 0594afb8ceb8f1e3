package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/interpolation"
	"videoenhancer/internal/ui"
	"videoenhancer/internal/validation"
)

type interpolateFlags struct {
	model            string
	fpsFactor        float64
	removeDuplicates bool
	inputFrames      string
	restoredFrames   string
	finalFrames      string
	tempFolder       string
	timeStep         float64
	gpuID            int
	threadConfig     string
	tta              bool
	temporalTTA      bool
	uhd              bool
	patternFormat    string
	outputFormat     string
}

func newInterpolateCommand(app *App) *cobra.Command {
	defaults := interpolation.GetDefaultConfig()
	f := &interpolateFlags{}

	cmd := &cobra.Command{
		Use:   "interpolate <input> <output>",
		Short: "Increase the frame rate of a video with RIFE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := app.Config.InterpolationConfig()
			f.apply(cmd, config)
			config.InputFrames = app.workPath(config.InputFrames)
			config.RestoredFrames = app.workPath(config.RestoredFrames)
			config.FinalFrames = app.workPath(config.FinalFrames)
			config.TempFolder = app.workPath(config.TempFolder)

			_, err := app.interpolate(cmd.Context(), config, args[0], args[1])
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.model, "model", defaults.Model, "RIFE model folder:\n"+strings.Join(ui.Choices(interpolation.ModelNames(), interpolation.InterpolationModels), "\n"))
	flags.Float64Var(&f.fpsFactor, "fps_factor", defaults.FPSFactor, "how many times to increase the frame rate")
	flags.BoolVar(&f.removeDuplicates, "remove_duplicates", false, "detect and remove duplicated frames first")
	flags.StringVar(&f.inputFrames, "input_frames", defaults.InputFrames, "folder for extracted frames")
	flags.StringVar(&f.restoredFrames, "restored_frames", defaults.RestoredFrames, "folder after filling back to the original count")
	flags.StringVar(&f.finalFrames, "final_frames", defaults.FinalFrames, "folder for the final interpolated frames")
	flags.StringVar(&f.tempFolder, "temp_folder", defaults.TempFolder, "folder for intermediate passes")
	flags.Float64Var(&f.timeStep, "time_step", 0.5, "RIFE time step (rife-v4 models only)")
	flags.IntVar(&f.gpuID, "gpu_id", 0, "GPU index for rife-ncnn-vulkan, -1 for CPU")
	flags.StringVar(&f.threadConfig, "thread_config", "", "load:proc:save thread counts, e.g. 1:2:2")
	flags.BoolVar(&f.tta, "tta", false, "enable TTA mode (-x)")
	flags.BoolVar(&f.temporalTTA, "temporal_tta", false, "enable temporal TTA mode (-z)")
	flags.BoolVar(&f.uhd, "uhd", false, "enable UHD mode (-u)")
	flags.StringVar(&f.patternFormat, "pattern_format", "", "output image format passed to rife-ncnn-vulkan (-f)")
	flags.StringVar(&f.outputFormat, "output_format", "", "mp4 or gif; defaults to the output extension")
	return cmd
}

// apply copies the flags the user set over the persisted settings
func (f *interpolateFlags) apply(cmd *cobra.Command, config *interpolation.Config) {
	changed := cmd.Flags().Changed
	if changed("model") {
		config.Model = f.model
	}
	if changed("fps_factor") {
		config.FPSFactor = f.fpsFactor
	}
	if changed("remove_duplicates") {
		config.RemoveDuplicates = f.removeDuplicates
	}
	if changed("time_step") {
		step := f.timeStep
		config.TimeStep = &step
	}
	if changed("gpu_id") {
		id := f.gpuID
		config.GPUID = &id
	}
	if changed("output_format") {
		config.OutputFormat = f.outputFormat
	}
	config.InputFrames = f.inputFrames
	config.RestoredFrames = f.restoredFrames
	config.FinalFrames = f.finalFrames
	config.TempFolder = f.tempFolder
	config.ThreadConfig = f.threadConfig
	config.TTA = f.tta
	config.TemporalTTA = f.temporalTTA
	config.UHD = f.uhd
	config.PatternFormat = f.patternFormat
}

func (a *App) interpolate(ctx context.Context, config *interpolation.Config, input, output string) (*interpolation.Result, error) {
	input, output = frames.CleanPath(input), frames.CleanPath(output)
	if err := validation.ValidateInputPath(input); err != nil {
		return nil, err
	}
	if err := validation.ValidateOutputPath(output, config.OutputFormat); err != nil {
		return nil, err
	}
	if err := validation.ValidateDistinct(input, output); err != nil {
		return nil, err
	}
	if err := interpolation.ValidateConfig(config); err != nil {
		return nil, err
	}
	if err := a.FF.Require(); err != nil {
		return nil, err
	}

	interpolator := interpolation.NewInterpolator(config, a.Runner, a.FF, a.Prober)
	interpolator.Progress = a.Err
	if !interpolator.IsAvailable() {
		return nil, fmt.Errorf("%s is not installed; run `videoenhancer install`", filepath.Base(interpolator.RIFE().Bin))
	}

	fmt.Fprintln(a.Out, ui.Status(fmt.Sprintf("🎞️  Interpolating %s with %s (x%s)", input, config.Model, ui.FormatFPS(config.FPSFactor))))
	result, err := interpolator.InterpolateVideo(ctx, input, output, a.progress)
	if err != nil {
		return result, err
	}

	rows := [][2]string{
		{"Output", result.OutputPath},
		{"Frames", fmt.Sprintf("%d → %d", result.OriginalFrameCount, result.FinalFrameCount)},
		{"Frame rate", fmt.Sprintf("%s → %s fps", ui.FormatFPS(result.OriginalFPS), ui.FormatFPS(result.FinalFPS))},
		{"Time", ui.FormatElapsed(result.ProcessingTime)},
	}
	if result.DuplicatesRemoved {
		rows = append(rows,
			[2]string{"Duplicate rate", ui.FormatRate(result.DuplicateRate)},
			[2]string{"Unique frames", strconv.Itoa(result.UniqueFrameCount)},
		)
	}
	ui.DisplaySummary(a.Out, rows)
	fmt.Fprintln(a.Out, ui.Success("Interpolation completed: "+result.OutputPath))
	return result, nil
}
