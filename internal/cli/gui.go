package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"videoenhancer/internal/ui"
	"videoenhancer/internal/video"
)

func newGUICommand(app *App) *cobra.Command {
	var install bool
	cmd := &cobra.Command{
		Use:   "gui",
		Short: "Walk through an interpolation job interactively (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runGUI(cmd.Context(), install)
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "install missing tools before starting the wizard")
	return cmd
}

// runGUI checks the environment, asks for a job and runs interpolation then optional upscaling
func (a *App) runGUI(ctx context.Context, install bool) error {
	fmt.Fprintln(a.Out, ui.Title("🎬 Video Enhancer"))
	fmt.Fprintln(a.Out, "Smooth out and upscale videos with RIFE and ncnn upscalers.")

	if install {
		if err := a.install(ctx); err != nil {
			return err
		}
	}
	a.preflight()

	models, err := ui.LoadModels(a.Config.ToolsDir)
	if err != nil {
		fmt.Fprintln(a.Err, ui.Error(err.Error()))
		if install {
			return err
		}
		ok, promptErr := a.Prompter.Confirm(ui.LabelInstallConfirm, true)
		if promptErr != nil {
			return promptErr
		}
		if !ok {
			return err
		}
		if err := a.install(ctx); err != nil {
			return err
		}
		if models, err = ui.LoadModels(a.Config.ToolsDir); err != nil {
			return err
		}
	}

	devices, err := a.ListGPUs(ctx, a.Runner)
	if err != nil {
		slog.Debug("no GPUs listed", "err", err)
	}

	wizard := &ui.Wizard{
		Prompter:         a.Prompter,
		Models:           models,
		GPUs:             devices,
		DefaultModel:     a.Config.RIFEModel,
		DefaultFactor:    a.Config.FPSFactor,
		DefaultFormat:    a.Config.OutputFormat,
		RemoveDuplicates: a.Config.RemoveDuplicates,
	}
	if len(a.Config.RecentInputs) > 0 {
		wizard.DefaultInput = a.Config.RecentInputs[0]
	}

	plan, err := wizard.Run()
	if err != nil {
		return err
	}

	a.Config.AddRecentInput(plan.Input)
	a.saveConfig()

	if info, err := video.GetVideoInfo(ctx, a.Prober, plan.Input); err == nil {
		ui.DisplayVideoInfo(a.Out, info)
	} else {
		slog.Warn("could not read video info", "input", plan.Input, "err", err)
	}
	ui.DisplaySummary(a.Out, plan.Summary())

	interp := a.Config.InterpolationConfig()
	interp.Model = plan.Model
	interp.FPSFactor = plan.FPSFactor
	interp.GPUID = plan.GPU
	interp.TTA = plan.TTA
	interp.UHD = plan.UHD
	interp.RemoveDuplicates = plan.RemoveDuplicates
	interp.OutputFormat = plan.Format
	interp.InputFrames = a.workPath(interp.InputFrames)
	interp.RestoredFrames = a.workPath(interp.RestoredFrames)
	interp.FinalFrames = a.workPath(interp.FinalFrames)
	interp.TempFolder = a.workPath(interp.TempFolder)

	result, err := a.interpolate(ctx, interp, plan.Input, plan.Output)
	if err != nil {
		return err
	}

	final := result.OutputPath
	if plan.Upscale {
		up := a.Config.UpscalingConfig()
		up.Model = plan.UpscaleMethod
		up.Scale = plan.UpscaleScale
		up.GPU = plan.GPU
		up.OutputFormat = plan.Format
		up.FramesDir = a.workPath(up.FramesDir)
		up.UpscaledDir = a.workPath(up.UpscaledDir)

		upscaled, err := a.upscale(ctx, up, result.OutputPath, plan.UpscaledOutput(result.OutputPath))
		if err != nil {
			return err
		}
		final = upscaled.OutputPath
	}

	fmt.Fprintln(a.Out, ui.Success("Processing completed! Output: "+final))
	return nil
}
