package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"videoenhancer/internal/config"
	"videoenhancer/internal/gpu"
	"videoenhancer/internal/preflight"
	"videoenhancer/internal/ui"
	"videoenhancer/internal/updater"
)

func newInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download ffmpeg, rife-ncnn-vulkan and the upscalers into the tools folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.install(cmd.Context())
		},
	}
}

func (a *App) install(ctx context.Context) error {
	fmt.Fprintln(a.Out, ui.Status("📦 Installing tools into "+a.Config.ToolsDir))
	inst := a.NewInstaller(a.Config.ToolsDir, a.Runner)
	inst.Progress = a.Err
	if err := inst.Install(ctx); err != nil {
		return fmt.Errorf("some tools could not be installed: %w", err)
	}
	fmt.Fprintln(a.Out, ui.Success("All tools are installed"))
	return nil
}

func newUpdateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fast-forward the videoenhancer checkout from its origin remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := app.repoDir()
			if err != nil {
				return err
			}
			u := updater.New(app.Runner)
			remote, err := u.RemoteURL(cmd.Context(), dir)
			if err != nil {
				return fmt.Errorf("%w, cannot update", err)
			}
			fmt.Fprintln(app.Out, ui.Status(fmt.Sprintf("🔄 Updating from %s ...", remote)))
			if err := u.Update(cmd.Context(), dir); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, ui.Success("Repository updated successfully"))
			return nil
		},
	}
}

func (a *App) repoDir() (string, error) {
	if a.RepoDir != "" {
		return a.RepoDir, nil
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe), nil
	}
	return os.Getwd()
}

func newSetupCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write the default settings and create the tools folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := config.WriteDefault(app.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to write settings: %w", err)
			}
			if written {
				fmt.Fprintln(app.Out, ui.Status("🔧 Created settings at "+app.ConfigPath))
			} else {
				fmt.Fprintln(app.Out, ui.Status("ℹ️  Settings already exist at "+app.ConfigPath))
			}

			if err := os.MkdirAll(app.Config.ToolsDir, 0755); err != nil {
				return fmt.Errorf("failed to create tools folder: %w", err)
			}

			warnings := app.preflight()
			if len(warnings) > 0 {
				fmt.Fprintln(app.Out, ui.Status("Run `videoenhancer install` to download the missing tools"))
				return nil
			}
			fmt.Fprintln(app.Out, ui.Success("Environment setup complete"))
			return nil
		},
	}
}

// preflight reports unmet requirements on the error stream and returns them
func (a *App) preflight() []preflight.Warning {
	reqs := preflight.DefaultRequirements(a.Config.ToolsDir)
	warnings := preflight.Check(reqs, preflight.ToolLookup(a.Runner, a.Config.ToolsDir))
	preflight.Report(a.Err, warnings)
	return warnings
}

func newDoctorCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report which tools and GPUs are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.Out, ui.Title("🩺 videoenhancer doctor"))
			warnings := app.preflight()

			var rows [][2]string
			for _, status := range app.NewInstaller(app.Config.ToolsDir, app.Runner).Verify() {
				value := "missing"
				if status.Installed {
					value = status.Path
				}
				rows = append(rows, [2]string{status.Tool.Name, value})
			}

			devices, err := app.ListGPUs(cmd.Context(), app.Runner)
			switch {
			case errors.Is(err, gpu.ErrNoDevices):
				rows = append(rows, [2]string{"GPU", "none detected"})
			case err != nil:
				return err
			default:
				for _, d := range devices {
					rows = append(rows, [2]string{"GPU", d.String()})
				}
			}
			ui.DisplaySummary(app.Out, rows)

			if len(warnings) > 0 {
				return fmt.Errorf("%d requirement(s) missing", len(warnings))
			}
			fmt.Fprintln(app.Out, ui.Success("Everything needed is installed"))
			return nil
		},
	}
}
