package config

import (
	"errors"
	"fmt"

	"github.com/ivlev/panoslice/internal/background"
	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/palette"
	"github.com/ivlev/panoslice/internal/watermark"
)

type Config struct {
	InputPath string
	OutputDir string
	DPI       int

	AspectRatio geometry.AspectRatio
	HighRes     bool
	Zip         bool

	PaletteMethod palette.Method
	// Seed fixes palette sampling; 0 means time-seeded.
	Seed int64

	Background background.Settings

	Watermark          watermark.Settings
	WatermarkImagePath string
	WatermarkQR        string

	Video    bool
	Pan      pan.Config
	Realtime bool
	Encoder  string

	ShowStats    bool
	BuildVersion string
}

func Default() Config {
	// empty colours are seeded from each image's palette
	bg := background.DefaultSettings()
	bg.Color = ""

	return Config{
		OutputDir:   "output",
		DPI:         300,
		AspectRatio: geometry.Ratio4x5,
		Background:  bg,
		Watermark:   watermark.DefaultSettings(),
		Pan:         pan.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.InputPath == "" {
		errs = append(errs, errors.New("input path is empty"))
	}
	if c.DPI <= 0 {
		errs = append(errs, fmt.Errorf("dpi must be positive, got %d", c.DPI))
	}
	if r := c.AspectRatio; r.W <= 0 || r.H <= 0 || r.W >= r.H {
		errs = append(errs, fmt.Errorf("aspect ratio %s is not portrait", r))
	}
	if c.Background.Blur < 0 {
		errs = append(errs, fmt.Errorf("blur must not be negative, got %v", c.Background.Blur))
	}
	if err := c.Watermark.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Video {
		if err := c.Pan.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
