// Package config provides the JSON configuration of the marker tracker.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"marker-ar/internal/marker"
	"marker-ar/internal/overlay"
	"marker-ar/internal/pose"
)

// Display backends.
const (
	BackendHighGUI = "highgui"
	BackendFyne    = "fyne"
	BackendNone    = "none"
)

// Config holds every tunable of a tracking run. Stage parameters are passed
// by value into each stage constructor.
type Config struct {
	// MarkerSize is the side length of the reference square. Translations
	// are reported in the same unit.
	MarkerSize float64 `json:"marker_size"`

	// MaxReprojectionError rejects poses whose RMS error exceeds it (pixels).
	MaxReprojectionError float64 `json:"max_reprojection_error"`

	// CalibrationPath is a calibration blob or legacy camera.txt. Empty or
	// missing means the identity camera.
	CalibrationPath string `json:"calibration_path"`

	Binarize marker.BinarizeParams `json:"binarize"`
	Extract  marker.ExtractParams  `json:"extract"`
	Order    marker.OrderParams    `json:"order"`
	Solver   pose.SolverParams     `json:"solver"`
	Overlay  overlay.RenderParams  `json:"overlay"`
	Capture  Capture               `json:"capture"`
	Display  Display               `json:"display"`
}

// Capture configures frame acquisition.
type Capture struct {
	Device          string `json:"device"` // camera index, file or stream URL
	Width           int    `json:"width"`  // 0 keeps the device default
	Height          int    `json:"height"`
	MaxReadFailures int    `json:"max_read_failures"`
}

// Display configures the output window.
type Display struct {
	Backend  string `json:"backend"`
	Title    string `json:"title"`
	ShowMask bool   `json:"show_mask"` // second window with the binary mask
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MarkerSize:           1,
		MaxReprojectionError: 8,
		CalibrationPath:      "calibration.gob.gz",
		Binarize:             marker.DefaultBinarizeParams(),
		Extract:              marker.DefaultExtractParams(),
		Order:                marker.DefaultOrderParams(),
		Solver:               pose.DefaultSolverParams(),
		Overlay:              overlay.DefaultRenderParams(),
		Capture: Capture{
			Device:          "0",
			Width:           640,
			Height:          480,
			MaxReadFailures: 30,
		},
		Display: Display{
			Backend: BackendHighGUI,
			Title:   "marker-ar",
		},
	}
}

// WithCalibration returns a copy of the configuration using path.
func (c Config) WithCalibration(path string) Config {
	c.CalibrationPath = path
	return c
}

// WithDevice returns a copy of the configuration capturing from device.
func (c Config) WithDevice(device string) Config {
	c.Capture.Device = device
	return c
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.MarkerSize <= 0 {
		return fmt.Errorf("marker_size must be positive, got %g", c.MarkerSize)
	}
	if c.MaxReprojectionError <= 0 {
		return fmt.Errorf("max_reprojection_error must be positive, got %g", c.MaxReprojectionError)
	}
	if err := c.Binarize.Validate(); err != nil {
		return fmt.Errorf("binarize: %w", err)
	}
	if err := c.Extract.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := c.Order.Validate(); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if err := c.Overlay.Validate(); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("capture: negative frame size %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.MaxReadFailures < 1 {
		return fmt.Errorf("capture: max_read_failures must be positive, got %d", c.Capture.MaxReadFailures)
	}
	switch c.Display.Backend {
	case BackendHighGUI, BackendFyne, BackendNone:
	default:
		return fmt.Errorf("display: unknown backend %q", c.Display.Backend)
	}
	return nil
}

// Load reads a configuration file. Fields absent from the file keep their
// defaults. A relative model path is resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if p := cfg.Overlay.ModelPath; p != "" && !filepath.IsAbs(p) {
		cfg.Overlay.ModelPath = filepath.Join(filepath.Dir(path), p)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config file %s does not exist", path)
	}
	return cfg, err
}

// Save writes the configuration as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
