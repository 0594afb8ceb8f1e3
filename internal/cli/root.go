// Package cli wires the pipeline packages into the videoenhancer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"videoenhancer/internal/config"
	"videoenhancer/internal/ffmpeg"
	"videoenhancer/internal/gpu"
	"videoenhancer/internal/installer"
	"videoenhancer/internal/logging"
	"videoenhancer/internal/runner"
	"videoenhancer/internal/ui"
	"videoenhancer/internal/video"
)

// App carries the dependencies shared by every command.
// Nil fields are filled with the real implementations before a command runs.
type App struct {
	Out io.Writer
	Err io.Writer

	Runner   runner.Runner
	Prober   video.Prober
	Prompter ui.Prompter

	// ListGPUs enumerates devices for the wizard
	ListGPUs func(ctx context.Context, r runner.Runner) ([]gpu.Device, error)
	// NewInstaller builds the tool installer for a tools folder
	NewInstaller func(toolsDir string, r runner.Runner) *installer.Installer
	// RepoDir is the checkout the update command pulls; empty uses the executable's folder
	RepoDir string
	// WorkDir anchors relative working folders; empty means the current directory
	WorkDir string

	Config     *config.AppConfig
	ConfigPath string
	Logger     *slog.Logger
	FF         *ffmpeg.FFmpeg

	toolsDir string
	verbose  bool
	noColor  bool
}

// NewApp returns an App writing to the process streams
func NewApp() *App {
	return &App{Out: os.Stdout, Err: os.Stderr}
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp()
	if err := NewRootCommand(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(app.Err, ui.Error(err.Error()))
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree. Without a subcommand the wizard runs.
func NewRootCommand(app *App) *cobra.Command {
	var install bool

	root := &cobra.Command{
		Use:   "videoenhancer",
		Short: "Interpolate and upscale videos with RIFE and ncnn upscalers",
		Long: "videoenhancer extracts the frames of a video with ffmpeg, removes duplicated frames,\n" +
			"interpolates them with rife-ncnn-vulkan, optionally upscales them and encodes the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.prepare()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runGUI(cmd.Context(), install)
		},
	}
	root.Flags().BoolVar(&install, "install", false, "install missing tools before starting the wizard")

	flags := root.PersistentFlags()
	flags.StringVar(&app.ConfigPath, "config", "", "config file (default <user config dir>/videoenhancer/config.json)")
	flags.StringVar(&app.toolsDir, "tools-dir", "", "folder holding ffmpeg, rife-ncnn-vulkan and the upscalers")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "log every external command")
	flags.BoolVar(&app.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newGUICommand(app),
		newInterpolateCommand(app),
		newUpscaleCommand(app),
		newDetectRateCommand(app),
		newRemoveDuplicatesCommand(app),
		newInstallCommand(app),
		newUpdateCommand(app),
		newSetupCommand(app),
		newDoctorCommand(app),
	)
	return root
}

func (a *App) prepare() error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if a.noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	a.Logger = logging.Setup(a.Err, a.verbose, a.noColor)

	if a.ConfigPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.ConfigPath = path
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.toolsDir != "" {
		cfg.ToolsDir = a.toolsDir
	}
	a.Config = cfg

	if a.Runner == nil {
		a.Runner = runner.New(a.Logger)
	}
	a.FF = ffmpeg.New(a.Runner, cfg.ToolsDir)
	a.FF.Progress = a.Err
	if a.Prober == nil {
		a.Prober = video.NewFFProbe(a.FF.FFprobe)
	}
	if a.Prompter == nil {
		a.Prompter = ui.PromptUI{}
	}
	if a.ListGPUs == nil {
		a.ListGPUs = gpu.List
	}
	if a.NewInstaller == nil {
		a.NewInstaller = installer.New
	}
	return nil
}

// workPath resolves a working folder against WorkDir
func (a *App) workPath(dir string) string {
	if a.WorkDir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(a.WorkDir, dir)
}

func (a *App) saveConfig() {
	if err := config.Save(a.Config, a.ConfigPath); err != nil {
		slog.Warn("could not save settings", "path", a.ConfigPath, "err", err)
	}
}

// progress prints pipeline progress callbacks as status lines
func (a *App) progress(current, total int, message string) {
	percent := 0
	if total > 0 {
		percent = current * 100 / total
	}
	fmt.Fprintln(a.Out, ui.Status(fmt.Sprintf("[%3d%%] %s", percent, message)))
}
