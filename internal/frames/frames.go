// Package frames manages folders of extracted PNG frames.
package frames

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Padding is the zero padding used in frame file names
const Padding = 8

// Pattern is the printf pattern handed to ffmpeg for frame sequences
var Pattern = fmt.Sprintf("frame_%%0%dd.png", Padding)

// ErrNoFrames is returned when a folder holds no frames to work on
var ErrNoFrames = errors.New("no frames found")

// Name returns the file name of the 1-based frame index
func Name(index int) string {
	return fmt.Sprintf(Pattern, index)
}

// List returns the sorted PNG file names in dir
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".png") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of PNG frames in dir
func Count(dir string) (int, error) {
	names, err := List(dir)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Clear fully deletes dir
func Clear(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	slog.Debug("deleted folder", "dir", dir)
	return nil
}

// Reset deletes dir and recreates it empty
func Reset(dir string) error {
	if err := Clear(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// CopyDir replaces dst with a copy of the regular files in src
func CopyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := Reset(dst); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := CopyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies a single file
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// RenameSequential renames the PNGs in dir to frame_00000001.png, frame_00000002.png, ...
// keeping their sorted order.
func RenameSequential(dir string) error {
	names, err := List(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w in %s to rename", ErrNoFrames, dir)
	}

	// Two phases so a target name never collides with a frame not yet moved.
	staged := make([]string, len(names))
	for i, name := range names {
		staged[i] = fmt.Sprintf(".renaming_%0*d.png", Padding, i+1)
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, staged[i])); err != nil {
			return fmt.Errorf("failed to rename %s: %w", name, err)
		}
	}
	for i, name := range staged {
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, Name(i+1))); err != nil {
			return fmt.Errorf("failed to rename %s: %w", name, err)
		}
	}

	slog.Debug("renamed frames to a clean sequence", "dir", dir, "frames", len(names))
	return nil
}

// SpacedRemovalIndices picks which of names to drop so that target remain, spreading the
// removals across the timeline. With preserveOriginal, names containing "orig_" are only
// removed when there are not enough other frames.
func SpacedRemovalIndices(names []string, target int, preserveOriginal bool) []int {
	n := len(names)
	if target < 0 {
		target = 0
	}
	if n <= target {
		return nil
	}
	removeCount := n - target

	removable := make([]int, 0, n)
	for i, name := range names {
		if preserveOriginal && strings.Contains(name, "orig_") {
			continue
		}
		removable = append(removable, i)
	}
	if len(removable) < removeCount {
		removable = removable[:0]
		for i := range names {
			removable = append(removable, i)
		}
	}

	step := float64(len(removable)) / float64(removeCount)
	seen := make(map[int]bool, removeCount)
	indices := make([]int, 0, removeCount)
	accum := 0.0
	for len(indices) < removeCount {
		idx := int(accum)
		if idx >= len(removable) {
			break
		}
		if !seen[removable[idx]] {
			seen[removable[idx]] = true
			indices = append(indices, removable[idx])
		}
		accum += step
	}

	sort.Ints(indices)
	if len(indices) > removeCount {
		indices = indices[:removeCount]
	}
	return indices
}

// SpacedTrim removes frames from dir until target remain
func SpacedTrim(dir string, target int, preserveOriginal bool) (int, error) {
	names, err := List(dir)
	if err != nil {
		return 0, err
	}
	if len(names) <= target {
		return 0, nil
	}

	slog.Info("spaced trimming frames", "remove", len(names)-target, "of", len(names), "target", target)

	indices := SpacedRemovalIndices(names, target, preserveOriginal)
	for _, i := range indices {
		if err := os.Remove(filepath.Join(dir, names[i])); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("failed to remove frame %s: %w", names[i], err)
		}
	}
	return len(indices), nil
}

// UniqueFilename returns path unless it already exists, in which case a timestamp is
// appended before the extension.
func UniqueFilename(path string, now time.Time) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	unique := fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext)
	slog.Warn("output exists, using a new name", "path", path, "new", unique)
	return unique
}

// CleanPath trims whitespace and surrounding quotes and returns an absolute path
func CleanPath(path string) string {
	cleaned := strings.TrimSpace(path)
	if len(cleaned) >= 2 {
		if (cleaned[0] == '\'' && cleaned[len(cleaned)-1] == '\'') ||
			(cleaned[0] == '"' && cleaned[len(cleaned)-1] == '"') {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}

	if abs, err := filepath.Abs(cleaned); err == nil {
		return abs
	}
	return filepath.Clean(cleaned)
}
