// internal/validation/validation.go
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"videoenhancer/internal/dedup"
	"videoenhancer/internal/ffmpeg"
	"videoenhancer/internal/frames"
)

// SupportedInputFormats lists the video containers the pipelines accept
var SupportedInputFormats = []string{".mp4", ".avi", ".mkv", ".gif", ".mov", ".webm"}

// SupportedOutputFormats lists the containers Reconstruct can write
var SupportedOutputFormats = []string{".mp4", ".gif"}

// ErrEmptyPath is returned for blank or quote-only input
var ErrEmptyPath = errors.New("path cannot be empty")

// getSystemDirectories returns platform-specific system directories to protect
func getSystemDirectories() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			"C:\\Windows",
			"C:\\Program Files",
			"C:\\Program Files (x86)",
			"C:\\ProgramData",
		}
	case "darwin":
		return []string{"/System", "/usr", "/bin", "/sbin", "/etc", "/private/etc"}
	default:
		return []string{"/etc", "/usr", "/bin", "/sbin", "/boot", "/sys", "/proc"}
	}
}

func normalizePathForComparison(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(filepath.Clean(path))
	}
	return filepath.Clean(path)
}

func hasExtension(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range allowed {
		if ext == candidate {
			return true
		}
	}
	return false
}

// ValidateInputPath checks that input names a readable, non-empty video in a supported format
func ValidateInputPath(input string) error {
	path := frames.CleanPath(input)
	if path == "" {
		return ErrEmptyPath
	}

	if err := validatePathCharacters(path); err != nil {
		return err
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("path points to a directory, not a file: %s", path)
	}

	if !hasExtension(path, SupportedInputFormats) {
		return fmt.Errorf("unsupported file format: %s. Supported formats: %s",
			filepath.Ext(path), strings.Join(SupportedInputFormats, ", "))
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}
	file.Close()

	return nil
}

// ValidateOutputPath checks that output lands in a writable folder and resolves to a container
// Reconstruct can write. format overrides the extension, which defaults to mp4 when absent.
func ValidateOutputPath(output, format string) error {
	path := frames.CleanPath(output)
	if path == "" {
		return ErrEmptyPath
	}

	if err := validatePathCharacters(path); err != nil {
		return err
	}

	if stat, err := os.Stat(path); err == nil && stat.IsDir() {
		return fmt.Errorf("output path points to an existing directory: %s", path)
	}

	if err := ValidateOutputFormat(path, format); err != nil {
		return err
	}

	parentDir := filepath.Dir(path)
	parentInfo, err := os.Stat(parentDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", parentDir)
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory: %w", err)
	}
	if !parentInfo.IsDir() {
		return fmt.Errorf("output parent path is not a directory: %s", parentDir)
	}

	if err := validatePathSecurity(path); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}

	if err := checkWritePermission(parentDir); err != nil {
		return fmt.Errorf("cannot write to output directory: %w", err)
	}

	return nil
}

// ValidateOutputFormat rejects outputs whose effective container is neither mp4 nor gif
func ValidateOutputFormat(output, format string) error {
	resolved := ffmpeg.OutputFormat(output, format)
	if !hasExtension("."+resolved, SupportedOutputFormats) {
		return fmt.Errorf("unsupported output format: %s. Supported formats: %s",
			resolved, strings.Join(SupportedOutputFormats, ", "))
	}
	return nil
}

// ValidateDistinct rejects an output that would overwrite its own input
func ValidateDistinct(input, output string) error {
	if normalizePathForComparison(frames.CleanPath(input)) == normalizePathForComparison(frames.CleanPath(output)) {
		return fmt.Errorf("output must differ from input: %s", output)
	}
	return nil
}

// ValidateFrameFolder checks that dir exists and holds at least one image frame
func ValidateFrameFolder(dir string) error {
	path := frames.CleanPath(dir)
	if path == "" {
		return ErrEmptyPath
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("folder does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a folder: %s", path)
	}

	names, err := dedup.ImageFiles(path)
	if err != nil {
		return fmt.Errorf("cannot read folder: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w in %s", frames.ErrNoFrames, path)
	}
	return nil
}

// checkWritePermission creates and removes a probe file in dir
func checkWritePermission(dir string) error {
	probe, err := os.CreateTemp(dir, ".videoenhancer_write_test_*")
	if err != nil {
		return fmt.Errorf("no write permission: %w", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func validatePathSecurity(path string) error {
	normalizedPath := normalizePathForComparison(path)
	for _, sysDir := range getSystemDirectories() {
		normalizedSysDir := normalizePathForComparison(sysDir)
		if normalizedPath == normalizedSysDir || strings.HasPrefix(normalizedPath, normalizedSysDir+string(filepath.Separator)) {
			return fmt.Errorf("cannot write to system directory: %s", sysDir)
		}
	}
	return nil
}

// validatePathCharacters checks for invalid characters based on OS
func validatePathCharacters(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes")
	}

	if runtime.GOOS != "windows" {
		return nil
	}

	// skip the drive colon
	rest := path
	if vol := filepath.VolumeName(path); vol != "" {
		rest = path[len(vol):]
	}
	for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
		if strings.Contains(rest, char) {
			return fmt.Errorf("path contains invalid character: %s", char)
		}
	}

	baseName := strings.ToUpper(filepath.Base(path))
	if idx := strings.LastIndex(baseName, "."); idx != -1 {
		baseName = baseName[:idx]
	}
	reservedNames := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	}
	for _, reserved := range reservedNames {
		if baseName == reserved {
			return fmt.Errorf("path uses reserved Windows name: %s", reserved)
		}
	}

	return nil
}
