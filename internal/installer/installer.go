// Package installer downloads the ncnn-vulkan tools and FFmpeg into the tools folder.
package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alexmullins/zip"
	"github.com/schollz/progressbar/v3"

	"videoenhancer/internal/runner"
)

// DefaultAPIBase is the GitHub REST endpoint
const DefaultAPIBase = "https://api.github.com"

var (
	// ErrNoAsset is returned when a release has no archive for this platform
	ErrNoAsset = errors.New("no release asset for this platform")
	// ErrUnsafePath is returned for archive entries that escape the destination
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Tool is an external program the installer manages
type Tool struct {
	Name       string
	Folder     string // under the tools folder
	Executable string
	BinDir     string // subfolder holding the executable, if any
	Repo       string // GitHub owner/name; resolved through the latest release
	URL        string // fixed archive URL when Repo is empty
	// WindowsOnly tools are left to the package manager elsewhere
	WindowsOnly bool
}

// DefaultTools returns FFmpeg, RIFE and the four upscalers
func DefaultTools() []Tool {
	return []Tool{
		{Name: "FFmpeg", Folder: "ffmpeg", Executable: "ffmpeg", BinDir: "bin",
			URL: "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip", WindowsOnly: true},
		{Name: "RIFE", Folder: "rife-ncnn-vulkan", Executable: "rife-ncnn-vulkan", Repo: "nihui/rife-ncnn-vulkan"},
		{Name: "RealSR", Folder: "realsr-ncnn-vulkan", Executable: "realsr-ncnn-vulkan", Repo: "nihui/realsr-ncnn-vulkan"},
		{Name: "Waifu2x", Folder: "waifu2x-ncnn-vulkan", Executable: "waifu2x-ncnn-vulkan", Repo: "nihui/waifu2x-ncnn-vulkan"},
		{Name: "RealESRGAN", Folder: "realesrgan-ncnn-vulkan", Executable: "realesrgan-ncnn-vulkan", Repo: "xinntao/Real-ESRGAN-ncnn-vulkan"},
		{Name: "SwinIR", Folder: "swinir-ncnn-vulkan", Executable: "swinir-ncnn-vulkan", Repo: "nihui/swinir-ncnn-vulkan"},
	}
}

// Release is the archive chosen from a GitHub release
type Release struct {
	Tag       string
	AssetName string
	URL       string
}

// Status is the result of verifying one tool
type Status struct {
	Tool      Tool
	Installed bool
	Path      string
}

// Installer fetches tools into ToolsDir
type Installer struct {
	ToolsDir string
	Tools    []Tool
	Client   *http.Client
	APIBase  string
	Runner   runner.Runner
	GOOS     string
	// Progress receives download bars; nil disables them
	Progress io.Writer
}

// New returns an installer for the current platform
func New(toolsDir string, r runner.Runner) *Installer {
	return &Installer{
		ToolsDir: toolsDir,
		Tools:    DefaultTools(),
		Client:   &http.Client{Timeout: 30 * time.Minute},
		APIBase:  DefaultAPIBase,
		Runner:   r,
		GOOS:     runtime.GOOS,
	}
}

// PlatformSuffix is the release asset suffix published for goos
func PlatformSuffix(goos string) string {
	switch goos {
	case "windows":
		return "windows.zip"
	case "darwin":
		return "macos.zip"
	default:
		return "ubuntu.zip"
	}
}

func (i *Installer) executablePath(tool Tool) string {
	name := tool.Executable
	if i.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(i.ToolsDir, tool.Folder, tool.BinDir, name)
}

// Installed reports where tool lives, checking the tools folder and then PATH for WindowsOnly tools
func (i *Installer) Installed(tool Tool) (string, bool) {
	path := i.executablePath(tool)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	if tool.WindowsOnly && i.Runner != nil {
		if found, err := i.Runner.LookPath(tool.Executable); err == nil {
			return found, true
		}
	}
	return "", false
}

// Latest returns the newest release asset of repo built for this platform
func (i *Installer) Latest(ctx context.Context, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(i.APIBase, "/"), repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := i.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release info for %s: %w", repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch release info for %s: %s", repo, resp.Status)
	}

	var payload struct {
		TagName string `json:"tag_name"`
		Assets  []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode release info for %s: %w", repo, err)
	}

	suffix := PlatformSuffix(i.GOOS)
	for _, asset := range payload.Assets {
		if strings.HasSuffix(asset.Name, suffix) {
			slog.Info("latest release found", "repo", repo, "tag", payload.TagName, "asset", asset.Name)
			return &Release{Tag: payload.TagName, AssetName: asset.Name, URL: asset.BrowserDownloadURL}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no %s asset in %s", ErrNoAsset, repo, suffix, payload.TagName)
}

// Download saves url to dst, drawing a byte progress bar
func (i *Installer) Download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer file.Close()

	w := i.Progress
	if w == nil {
		w = io.Discard
	}
	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Downloading "+filepath.Base(dst)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(w, "\n") }),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	if _, err := io.Copy(io.MultiWriter(file, bar), resp.Body); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	bar.Finish()
	return nil
}

// Extract unpacks zipPath into dst, refusing entries that would land outside it
func Extract(zipPath, dst string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	root, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	for _, f := range reader.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// Flatten moves the contents of the first subfolder of dir named prefix* up into dir.
// It reports whether anything was moved.
func Flatten(dir, prefix string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	var nested string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			nested = filepath.Join(dir, entry.Name())
			break
		}
	}
	if nested == "" {
		return false, nil
	}

	items, err := os.ReadDir(nested)
	if err != nil {
		return false, err
	}

	var parked string
	for _, item := range items {
		source := filepath.Join(nested, item.Name())
		destination := filepath.Join(dir, item.Name())
		if destination == nested {
			// same name as its parent; moved once the parent is gone
			parked = source
			continue
		}
		if err := os.RemoveAll(destination); err != nil {
			return false, err
		}
		if err := os.Rename(source, destination); err != nil {
			return false, fmt.Errorf("failed to move %s: %w", item.Name(), err)
		}
	}

	if parked != "" {
		temp := nested + ".flatten"
		if err := os.Rename(nested, temp); err != nil {
			return false, err
		}
		if err := os.Rename(filepath.Join(temp, filepath.Base(parked)), nested); err != nil {
			return false, err
		}
		nested = temp
	}

	if err := os.Remove(nested); err != nil {
		return false, err
	}
	return true, nil
}

// Install fetches every tool that is not yet present. Failures are collected and the
// remaining tools are still attempted.
func (i *Installer) Install(ctx context.Context) error {
	if err := os.MkdirAll(i.ToolsDir, 0755); err != nil {
		return fmt.Errorf("failed to create tools folder: %w", err)
	}

	var errs []error
	for _, tool := range i.Tools {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path, ok := i.Installed(tool); ok {
			slog.Info("already installed", "tool", tool.Name, "path", path)
			continue
		}
		if tool.WindowsOnly && i.GOOS != "windows" {
			slog.Warn("not installed; use your package manager", "tool", tool.Name)
			continue
		}
		if err := i.installTool(ctx, tool); err != nil {
			slog.Error("installation failed", "tool", tool.Name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", tool.Name, err))
			continue
		}
		slog.Info("installed", "tool", tool.Name)
	}
	return errors.Join(errs...)
}

func (i *Installer) installTool(ctx context.Context, tool Tool) error {
	url := tool.URL
	if tool.Repo != "" {
		release, err := i.Latest(ctx, tool.Repo)
		if err != nil {
			return err
		}
		url = release.URL
	}

	folder := filepath.Join(i.ToolsDir, tool.Folder)
	archive := folder + ".zip"
	defer os.Remove(archive)

	slog.Info("downloading", "tool", tool.Name, "url", url)
	if err := i.Download(ctx, url, archive); err != nil {
		return err
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	if err := Extract(archive, folder); err != nil {
		return err
	}
	if _, err := Flatten(folder, tool.Folder); err != nil {
		return fmt.Errorf("failed to move extracted files: %w", err)
	}

	exe := i.executablePath(tool)
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("executable missing after extraction: %w", err)
	}
	if i.GOOS != "windows" {
		if err := os.Chmod(exe, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Verify reports the installation state of every tool
func (i *Installer) Verify() []Status {
	statuses := make([]Status, 0, len(i.Tools))
	for _, tool := range i.Tools {
		path, ok := i.Installed(tool)
		statuses = append(statuses, Status{Tool: tool, Installed: ok, Path: path})
	}
	return statuses
}
