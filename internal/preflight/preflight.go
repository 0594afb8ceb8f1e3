// Package preflight runs the advisory checks made before the wizard starts.
package preflight

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"videoenhancer/internal/runner"
)

// Kind says how a requirement is satisfied
type Kind int

const (
	// Executable must resolve in the tools folder or on PATH
	Executable Kind = iota
	// Directory must exist
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "executable"
}

// Requirement is one prerequisite of the launcher
type Requirement struct {
	Name   string
	Kind   Kind
	Target string
	Hint   string
}

// Warning reports an unmet requirement
type Warning struct {
	Requirement Requirement
	Message     string
}

// Lookup resolves an executable name, returning an error when it cannot be found
type Lookup func(name string) error

var warningStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B")).
	Bold(true)

// DefaultRequirements lists ffmpeg, ffprobe and the RIFE folder inside toolsDir
func DefaultRequirements(toolsDir string) []Requirement {
	return []Requirement{
		{
			Name:   "FFmpeg",
			Kind:   Executable,
			Target: "ffmpeg",
			Hint:   "install FFmpeg and make sure it is on PATH, or run `videoenhancer install`",
		},
		{
			Name:   "FFprobe",
			Kind:   Executable,
			Target: "ffprobe",
			Hint:   "ffprobe ships with FFmpeg",
		},
		{
			Name:   "RIFE",
			Kind:   Directory,
			Target: filepath.Join(toolsDir, "rife-ncnn-vulkan"),
			Hint:   "run `videoenhancer install` to download rife-ncnn-vulkan",
		},
	}
}

// ToolLookup finds executables in toolsDir (including the ffmpeg/bin layout) or on PATH
func ToolLookup(r runner.Runner, toolsDir string) Lookup {
	return func(name string) error {
		if toolsDir != "" {
			candidate := filepath.Join(toolsDir, "ffmpeg", "bin", runner.ExecutableName(name))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return nil
			}
		}
		_, err := runner.FindProgram(r, toolsDir, name)
		return err
	}
}

// Check evaluates every requirement. It never fails; unmet requirements become warnings.
func Check(reqs []Requirement, lookup Lookup) []Warning {
	var warnings []Warning
	for _, req := range reqs {
		switch req.Kind {
		case Executable:
			if err := lookup(req.Target); err != nil {
				warnings = append(warnings, Warning{
					Requirement: req,
					Message:     fmt.Sprintf("%s was not found (%s): %s", req.Name, req.Target, req.Hint),
				})
			}
		case Directory:
			if info, err := os.Stat(req.Target); err != nil || !info.IsDir() {
				warnings = append(warnings, Warning{
					Requirement: req,
					Message:     fmt.Sprintf("%s folder %s is missing: %s", req.Name, req.Target, req.Hint),
				})
			}
		}
	}
	return warnings
}

// Report writes each warning to w
func Report(w io.Writer, warnings []Warning) {
	for _, warning := range warnings {
		fmt.Fprintln(w, warningStyle.Render("⚠️  "+warning.Message))
	}
}
