// Package config loads and saves the persisted user settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videoenhancer/internal/interpolation"
	"videoenhancer/internal/upscaling"
)

const maxRecentInputs = 10

// AppConfig holds all application configuration
type AppConfig struct {
	// Tools
	ToolsDir string `json:"tools_dir"`

	// Interpolation defaults
	RIFEModel          string  `json:"rife_model"`
	FPSFactor          float64 `json:"fps_factor"`
	RemoveDuplicates   bool    `json:"remove_duplicates"`
	DuplicateThreshold float64 `json:"duplicate_threshold"`
	Retries            int     `json:"retries"`

	// Upscaling defaults
	UpscaleModel string `json:"upscale_model"`
	UpscaleScale int    `json:"upscale_scale"`

	// Shared
	GPUID        *int   `json:"gpu_id,omitempty"`
	OutputFormat string `json:"output_format"`

	RecentInputs []string `json:"recent_inputs"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	interp := interpolation.GetDefaultConfig()
	upscale := upscaling.GetDefaultConfig()

	return &AppConfig{
		ToolsDir:           DefaultToolsDir(),
		RIFEModel:          interp.Model,
		FPSFactor:          interp.FPSFactor,
		DuplicateThreshold: interp.DuplicateThreshold,
		Retries:            interp.Retries,
		UpscaleModel:       upscale.Model,
		UpscaleScale:       upscale.Scale,
		OutputFormat:       "mp4",
		RecentInputs:       []string{},
	}
}

// DefaultToolsDir is the tools folder next to the running executable
func DefaultToolsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "tools"
	}
	return filepath.Join(filepath.Dir(exe), "tools")
}

// DefaultPath returns <user config dir>/videoenhancer/config.json
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "videoenhancer", "config.json"), nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Save writes config to path, creating its folder
func Save(config *AppConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config folder: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// WriteDefault saves the defaults to path unless a file is already there.
// It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := Save(DefaultConfig(), path); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks the persisted values through the pipeline validators
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.ToolsDir) == "" {
		return fmt.Errorf("tools_dir cannot be empty")
	}
	if err := interpolation.ValidateConfig(c.InterpolationConfig()); err != nil {
		return err
	}
	if err := upscaling.ValidateConfig(c.UpscalingConfig()); err != nil {
		return err
	}
	return nil
}

// InterpolationConfig builds a pipeline config seeded with these settings
func (c *AppConfig) InterpolationConfig() *interpolation.Config {
	config := interpolation.GetDefaultConfig()
	config.Model = c.RIFEModel
	config.FPSFactor = c.FPSFactor
	config.RemoveDuplicates = c.RemoveDuplicates
	config.DuplicateThreshold = c.DuplicateThreshold
	config.Retries = c.Retries
	config.GPUID = c.GPUID
	config.OutputFormat = c.OutputFormat
	config.ToolsDir = c.ToolsDir
	return config
}

// UpscalingConfig builds a pipeline config seeded with these settings
func (c *AppConfig) UpscalingConfig() *upscaling.UpscalingConfig {
	config := upscaling.GetDefaultConfig()
	config.Model = c.UpscaleModel
	config.Scale = c.UpscaleScale
	config.GPU = c.GPUID
	config.OutputFormat = c.OutputFormat
	config.ToolsDir = c.ToolsDir
	return config
}

// AddRecentInput moves path to the front of the recent list
func (c *AppConfig) AddRecentInput(path string) {
	recent := make([]string, 0, len(c.RecentInputs)+1)
	recent = append(recent, path)
	for _, existing := range c.RecentInputs {
		if existing != path {
			recent = append(recent, existing)
		}
	}
	if len(recent) > maxRecentInputs {
		recent = recent[:maxRecentInputs]
	}
	c.RecentInputs = recent
}
