// internal/interpolation/tempfile.go
package interpolation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"videoenhancer/internal/frames"
)

// ErrInsufficientDiskSpace is returned when the working folders would not fit on disk
var ErrInsufficientDiskSpace = errors.New("insufficient disk space")

// DiskUsage represents disk space information
type DiskUsage struct {
	TotalGB      float64
	UsedGB       float64
	AvailableGB  float64
	UsagePercent float64
}

// Workspace owns the working folders of one run and removes them when done
type Workspace struct {
	folders []string
}

// NewWorkspace tracks folders; empty entries are ignored
func NewWorkspace(folders ...string) *Workspace {
	ws := &Workspace{}
	for _, f := range folders {
		if f != "" {
			ws.folders = append(ws.folders, f)
		}
	}
	return ws
}

// Folders returns the tracked folders
func (ws *Workspace) Folders() []string {
	return ws.folders
}

// Reset deletes and recreates every folder
func (ws *Workspace) Reset() error {
	slog.Debug("cleaning previous frames and preparing directories")
	for _, folder := range ws.folders {
		if err := frames.Reset(folder); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", folder, err)
		}
	}
	return nil
}

// Cleanup deletes every folder, logging failures rather than returning them
func (ws *Workspace) Cleanup() {
	for _, folder := range ws.folders {
		if err := frames.Clear(folder); err != nil {
			slog.Warn("failed to clean up folder", "dir", folder, "err", err)
		}
	}
	slog.Debug("cleanup complete")
}

// EstimateFrameStorageNeeds estimates the GB needed to hold the extracted, restored and
// final frame folders of a width x height video
func EstimateFrameStorageNeeds(width, height, frameCount int, factor float64) float64 {
	// PNG frames of live action compress to roughly 70% of raw RGB
	const bytesPerPixel = 3
	const avgCompressionRatio = 0.7

	frameSize := float64(width*height*bytesPerPixel) * avgCompressionRatio
	inputGB := frameSize * float64(frameCount) / (1024 * 1024 * 1024)

	// extracted + restored + final, plus 50% for multipass scratch
	return (inputGB*2 + inputGB*factor) * 1.5
}

// CheckDiskSpace verifies there is room for estimatedGB under dir. Platforms without
// disk statistics always pass.
func CheckDiskSpace(dir string, estimatedGB float64) error {
	for dir != "" {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	usage, err := GetDiskUsage(dir)
	if err != nil {
		slog.Debug("disk usage unavailable", "dir", dir, "err", err)
		return nil
	}

	if estimatedGB > usage.AvailableGB {
		return fmt.Errorf("%w: need %.1fGB, available %.1fGB", ErrInsufficientDiskSpace, estimatedGB, usage.AvailableGB)
	}
	slog.Debug("sufficient disk space", "available_gb", usage.AvailableGB, "needed_gb", estimatedGB)
	return nil
}
