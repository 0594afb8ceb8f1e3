package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/ui"
	"videoenhancer/internal/upscaling"
	"videoenhancer/internal/validation"
)

func newUpscaleCommand(app *App) *cobra.Command {
	defaults := upscaling.GetDefaultConfig()
	var (
		model        string
		scale        int
		gpuID        int
		framesDir    string
		upscaledDir  string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "upscale <input> <output>",
		Short: "Upscale a video frame by frame with an ncnn upscaler",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := app.Config.UpscalingConfig()
			changed := cmd.Flags().Changed
			if changed("model") {
				config.Model = strings.ToLower(model)
			}
			if changed("scale") {
				config.Scale = scale
			}
			if changed("gpu") {
				id := gpuID
				config.GPU = &id
			}
			if changed("output_format") {
				config.OutputFormat = outputFormat
			}
			config.FramesDir = app.workPath(framesDir)
			config.UpscaledDir = app.workPath(upscaledDir)

			_, err := app.upscale(cmd.Context(), config, args[0], args[1])
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&model, "model", defaults.Model, "upscaler:\n"+strings.Join(ui.Choices(upscaling.ModelNames(), upscaling.GetModelInfo()), "\n"))
	flags.IntVar(&scale, "scale", defaults.Scale, "scale factor (2-4)")
	flags.IntVar(&gpuID, "gpu", 0, "GPU index for the ncnn executable, -1 for CPU")
	flags.StringVar(&framesDir, "frames_dir", defaults.FramesDir, "temporary folder for extracted frames")
	flags.StringVar(&upscaledDir, "upscaled_dir", defaults.UpscaledDir, "temporary folder for upscaled frames")
	flags.StringVar(&outputFormat, "output_format", "", "mp4 or gif; defaults to the output extension")
	return cmd
}

func (a *App) upscale(ctx context.Context, config *upscaling.UpscalingConfig, input, output string) (*upscaling.VideoUpscalingResult, error) {
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
	if err := upscaling.ValidateConfig(config); err != nil {
		return nil, err
	}
	if err := a.FF.Require(); err != nil {
		return nil, err
	}

	upscaler := upscaling.NewUpscaler(config, a.Runner, a.FF, a.Prober)
	upscaler.Progress = a.Err
	if !upscaler.IsAvailable() {
		return nil, fmt.Errorf("%s is not installed; run `videoenhancer install`", upscaling.UpscalingModels[strings.ToLower(config.Model)])
	}

	fmt.Fprintln(a.Out, ui.Status(fmt.Sprintf("🔍 Upscaling %s with %s (%dx)", input, config.Model, config.Scale)))
	result, err := upscaler.UpscaleVideo(ctx, input, output, a.progress)
	if err != nil {
		return result, err
	}

	ui.DisplaySummary(a.Out, [][2]string{
		{"Output", result.OutputPath},
		{"Size", fmt.Sprintf("%dx%d → %dx%d", result.OriginalSize.Width, result.OriginalSize.Height, result.UpscaledSize.Width, result.UpscaledSize.Height)},
		{"Frames", fmt.Sprintf("%d", result.FramesProcessed)},
		{"Time", ui.FormatElapsed(result.ProcessingTime)},
	})
	fmt.Fprintln(a.Out, ui.Success("Upscaling completed: "+result.OutputPath))
	return result, nil
}
