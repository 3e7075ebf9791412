// Package config loads comparison settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"visualdiff/internal/models"
	"visualdiff/internal/pipeline"

	"gopkg.in/yaml.v3"
)

// Settings mirrors the YAML file. Zero values are filled from Default by Load.
type Settings struct {
	MinRegionArea  int     `yaml:"min_region_area"`
	WindowSize     int     `yaml:"window_size"`
	GaussianWindow bool    `yaml:"gaussian_window"`
	Sigma          float64 `yaml:"sigma"`
	K1             float64 `yaml:"k1"`
	K2             float64 `yaml:"k2"`
	DynamicRange   float64 `yaml:"dynamic_range"`
	Interpolation  string  `yaml:"interpolation"`
	ArtifactFormat string  `yaml:"artifact_format"`
	JPEGQuality    int     `yaml:"jpeg_quality"`
	BoxThickness   int     `yaml:"box_thickness"`
	FirstColor     string  `yaml:"first_color"`
	SecondColor    string  `yaml:"second_color"`
	OutputDir      string  `yaml:"output_dir"`
	Workers        int     `yaml:"workers"`
	MaxInputBytes  int64   `yaml:"max_input_bytes"`
}

const (
	DefaultOutputDir     = "uploads"
	DefaultWorkers       = 4
	DefaultMaxInputBytes = 16 << 20
)

func Default() Settings {
	opts := pipeline.DefaultOptions()
	return Settings{
		MinRegionArea:  opts.MinRegionArea,
		WindowSize:     opts.SSIM.WindowSize,
		GaussianWindow: opts.SSIM.Gaussian,
		Sigma:          opts.SSIM.Sigma,
		K1:             opts.SSIM.K1,
		K2:             opts.SSIM.K2,
		DynamicRange:   opts.SSIM.DynamicRange,
		Interpolation:  opts.Interpolation,
		ArtifactFormat: opts.ArtifactFormat,
		JPEGQuality:    opts.JPEGQuality,
		BoxThickness:   opts.BoxThickness,
		FirstColor:     FormatHex(opts.FirstColor),
		SecondColor:    FormatHex(opts.SecondColor),
		OutputDir:      DefaultOutputDir,
		Workers:        DefaultWorkers,
		MaxInputBytes:  DefaultMaxInputBytes,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, models.NewError(models.ErrConfig, "", fmt.Errorf("failed to read %s: %w", path, err))
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Settings, error) {
	settings := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return settings, models.NewError(models.ErrConfig, "", fmt.Errorf("invalid settings: %w", err))
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s Settings) Validate() error {
	if s.Workers < 1 || s.Workers > 64 {
		return configError("workers must be within 1..64, got %d", s.Workers)
	}
	if s.MaxInputBytes <= 0 {
		return configError("max_input_bytes must be positive, got %d", s.MaxInputBytes)
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		return configError("output_dir must not be empty")
	}

	opts, err := s.EngineOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// EngineOptions converts the settings into per-call comparison options.
func (s Settings) EngineOptions() (pipeline.Options, error) {
	first, err := ParseHex(s.FirstColor)
	if err != nil {
		return pipeline.Options{}, configError("first_color: %v", err)
	}
	second, err := ParseHex(s.SecondColor)
	if err != nil {
		return pipeline.Options{}, configError("second_color: %v", err)
	}

	opts := pipeline.DefaultOptions()
	opts.MinRegionArea = s.MinRegionArea
	opts.SSIM.WindowSize = s.WindowSize
	opts.SSIM.Gaussian = s.GaussianWindow
	opts.SSIM.Sigma = s.Sigma
	opts.SSIM.K1 = s.K1
	opts.SSIM.K2 = s.K2
	opts.SSIM.DynamicRange = s.DynamicRange
	opts.Interpolation = s.Interpolation
	opts.ArtifactFormat = s.ArtifactFormat
	opts.JPEGQuality = s.JPEGQuality
	opts.BoxThickness = s.BoxThickness
	opts.FirstColor = first
	opts.SecondColor = second
	return opts, nil
}

// ParseHex reads #rrggbb or rrggbb into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("want #rrggbb, got %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("want #rrggbb, got %q", s)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func FormatHex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func configError(format string, args ...interface{}) error {
	return models.NewError(models.ErrConfig, "", fmt.Errorf(format, args...))
}
