// internal/ui/ui.go
package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"videoenhancer/internal/video"
)

// DefaultModel is preselected when the RIFE folder ships it
const DefaultModel = "rife-v4.6"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#111827"))
)

// Title renders a heading
func Title(s string) string { return titleStyle.Render(s) }

// Status renders an in-progress line
func Status(s string) string { return promptStyle.Render(s) }

// Error renders a failure line
func Error(s string) string { return errorStyle.Render("❌ " + s) }

// Success renders a completion line
func Success(s string) string { return successStyle.Render("✅ " + s) }

// DisplayVideoInfo writes a bordered summary of info to w
func DisplayVideoInfo(w io.Writer, info *video.VideoInfo) {
	content := fmt.Sprintf(
		"%s %s\n"+
			"%s %s\n"+
			"%s %dx%d\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s",
		labelStyle.Render("📁 File:"), valueStyle.Render(filepath.Base(info.Filepath)),
		labelStyle.Render("📊 Size:"), valueStyle.Render(FormatFileSize(info.FileSize)),
		labelStyle.Render("📐 Dimensions:"), info.Width, info.Height,
		labelStyle.Render("🎬 Format:"), valueStyle.Render(formatCodec(info.Format, info.Codec)),
		labelStyle.Render("🎞️  Frame rate:"), valueStyle.Render(FormatFPS(info.FPS)),
		labelStyle.Render("⚡ Bitrate:"), valueStyle.Render(formatBitrate(info.Bitrate)),
		labelStyle.Render("⏱️  Duration:"), valueStyle.Render(FormatDuration(info.Duration)),
	)

	fmt.Fprintln(w, infoStyle.Render(content))
}

// DisplaySummary writes labelled rows in the info box
func DisplaySummary(w io.Writer, rows [][2]string) {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(row[0]+":"), valueStyle.Render(row[1])))
	}
	fmt.Fprintln(w, infoStyle.Render(strings.Join(lines, "\n")))
}

// FormatFileSize converts bytes to human-readable format
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration converts seconds to MM:SS format
func FormatDuration(seconds float64) string {
	totalSeconds := int(seconds)
	minutes := totalSeconds / 60
	remainingSeconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d", minutes, remainingSeconds)
}

// FormatElapsed rounds d to tenths of a second
func FormatElapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

// FormatFPS renders a frame rate with at most three decimals
func FormatFPS(fps float64) string {
	return strconv.FormatFloat(math.Round(fps*1000)/1000, 'f', -1, 64)
}

// FormatRate renders a duplication rate in full, keeping one decimal on whole numbers
func FormatRate(rate float64) string {
	s := strconv.FormatFloat(rate, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatBitrate(bitrate int64) string {
	if bitrate == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%.1f kbps", float64(bitrate)/1000)
}

func formatCodec(format, codec string) string {
	switch {
	case format == "" && codec == "":
		return "Unknown"
	case codec == "":
		return format
	case format == "":
		return codec
	}
	return fmt.Sprintf("%s (%s)", format, codec)
}

// OutputName suggests <dir>/<base>_fps<F>_<model>.<ext> next to input
func OutputName(input string, fpsFactor float64, model, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name := fmt.Sprintf("%s_fps%s_%s.%s", base, strconv.FormatFloat(fpsFactor, 'f', -1, 64), model, strings.TrimPrefix(ext, "."))
	return filepath.Join(filepath.Dir(input), name)
}

// UpscaledName inserts _<method>_<scale>x before the extension of path
func UpscaledName(path, method string, scale int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s_%dx%s", strings.TrimSuffix(path, ext), method, scale, ext)
}

// LoadModels lists the model folders shipped in <toolsDir>/rife-ncnn-vulkan
func LoadModels(toolsDir string) ([]string, error) {
	modelDir := filepath.Join(toolsDir, "rife-ncnn-vulkan")
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("RIFE directory not found: %w", err)
	}

	var models []string
	for _, entry := range entries {
		if entry.IsDir() {
			models = append(models, entry.Name())
		}
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no RIFE models found in %s", modelDir)
	}
	sort.Strings(models)
	return models, nil
}

// Choice renders name with its description for a select prompt
func Choice(name string, descriptions map[string]string) string {
	if desc, ok := descriptions[name]; ok {
		return name + ": " + desc
	}
	return name
}

// Choices applies Choice to every name, keeping their order
func Choices(names []string, descriptions map[string]string) []string {
	items := make([]string, len(names))
	for i, name := range names {
		items[i] = Choice(name, descriptions)
	}
	return items
}

// ChoiceName returns the name a Choice was built from
func ChoiceName(choice string) string {
	name, _, _ := strings.Cut(choice, ": ")
	return name
}

// PreferModel moves preferred, or DefaultModel when preferred is absent, to the front
func PreferModel(models []string, preferred string) []string {
	ordered := make([]string, 0, len(models))
	pick := ""
	for _, candidate := range []string{preferred, DefaultModel} {
		for _, m := range models {
			if m == candidate {
				pick = m
				break
			}
		}
		if pick != "" {
			break
		}
	}
	if pick != "" {
		ordered = append(ordered, pick)
	}
	for _, m := range models {
		if m != pick {
			ordered = append(ordered, m)
		}
	}
	return ordered
}
