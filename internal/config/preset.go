package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/panoslice/internal/background"
	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/watermark"
)

const PresetVersion = "1"

// Preset is the YAML form of the look and video settings.
type Preset struct {
	Version     string           `yaml:"version"`
	AspectRatio string           `yaml:"aspect_ratio"`
	HighRes     bool             `yaml:"high_res"`
	Background  BackgroundPreset `yaml:"background"`
	Watermark   WatermarkPreset  `yaml:"watermark"`
	Video       VideoPreset      `yaml:"video"`
}

type BackgroundPreset struct {
	Mode           string   `yaml:"mode"`
	Blur           float64  `yaml:"blur"`
	Color          string   `yaml:"color,omitempty"`
	GradientType   string   `yaml:"gradient_type"`
	GradientAngle  float64  `yaml:"gradient_angle"`
	GradientColors []string `yaml:"gradient_colors,omitempty"`
}

type WatermarkPreset struct {
	Type        string  `yaml:"type"`
	Text        string  `yaml:"text,omitempty"`
	Image       string  `yaml:"image,omitempty"`
	QR          string  `yaml:"qr,omitempty"`
	FontSize    float64 `yaml:"font_size"`
	FontWeight  string  `yaml:"font_weight"`
	Color       string  `yaml:"color"`
	StrokeColor string  `yaml:"stroke_color"`
	StrokeWidth float64 `yaml:"stroke_width"`
	Opacity     float64 `yaml:"opacity"`
	Position    string  `yaml:"position"`
	OffsetX     float64 `yaml:"offset_x"`
	OffsetY     float64 `yaml:"offset_y"`
}

type VideoPreset struct {
	Duration  float64 `yaml:"duration"` // seconds
	FPS       int     `yaml:"fps"`
	Bitrate   int     `yaml:"bitrate"` // bits per second
	Easing    string  `yaml:"easing"`
	Direction string  `yaml:"direction"`
	Format    string  `yaml:"format"`
}

// PresetFrom captures the preset-able part of cfg.
func PresetFrom(cfg Config) Preset {
	bg, wm, pc := cfg.Background, cfg.Watermark, cfg.Pan
	return Preset{
		Version:     PresetVersion,
		AspectRatio: cfg.AspectRatio.String(),
		HighRes:     cfg.HighRes,
		Background: BackgroundPreset{
			Mode:           bg.Mode.String(),
			Blur:           bg.Blur,
			Color:          bg.Color,
			GradientType:   bg.GradientType.String(),
			GradientAngle:  bg.GradientAngleDeg,
			GradientColors: bg.GradientColors,
		},
		Watermark: WatermarkPreset{
			Type:        wm.Kind.String(),
			Text:        wm.Text,
			Image:       cfg.WatermarkImagePath,
			QR:          cfg.WatermarkQR,
			FontSize:    wm.FontSize,
			FontWeight:  wm.FontWeight,
			Color:       wm.Color,
			StrokeColor: wm.StrokeColor,
			StrokeWidth: wm.StrokeWidth,
			Opacity:     wm.Opacity,
			Position:    wm.Anchor.String(),
			OffsetX:     wm.OffsetX,
			OffsetY:     wm.OffsetY,
		},
		Video: VideoPreset{
			Duration:  pc.DurationSec,
			FPS:       pc.FPS,
			Bitrate:   pc.BitrateBps,
			Easing:    pc.Easing.String(),
			Direction: pc.Direction.String(),
			Format:    pc.Format.String(),
		},
	}
}

// Apply writes the preset onto cfg. Nothing is changed when a value fails
// to parse.
func (p Preset) Apply(cfg *Config) error {
	ratio, err := geometry.ParseAspectRatio(p.AspectRatio)
	if err != nil {
		return err
	}
	mode, err := background.ParseMode(p.Background.Mode)
	if err != nil {
		return err
	}
	gradient, err := background.ParseGradientType(p.Background.GradientType)
	if err != nil {
		return err
	}
	kind, err := watermark.ParseKind(p.Watermark.Type)
	if err != nil {
		return err
	}
	anchor, err := watermark.ParseAnchor(p.Watermark.Position)
	if err != nil {
		return err
	}
	easing, err := pan.ParseEasing(p.Video.Easing)
	if err != nil {
		return err
	}
	direction, err := pan.ParseDirection(p.Video.Direction)
	if err != nil {
		return err
	}
	format, err := pan.ParseFormat(p.Video.Format)
	if err != nil {
		return err
	}

	cfg.AspectRatio = ratio
	cfg.HighRes = p.HighRes
	cfg.Background = background.Settings{
		Mode:             mode,
		Blur:             p.Background.Blur,
		Color:            p.Background.Color,
		GradientType:     gradient,
		GradientAngleDeg: p.Background.GradientAngle,
		GradientColors:   p.Background.GradientColors,
	}

	wm := cfg.Watermark
	wm.Kind = kind
	wm.Text = p.Watermark.Text
	wm.FontSize = p.Watermark.FontSize
	wm.FontWeight = p.Watermark.FontWeight
	wm.Color = p.Watermark.Color
	wm.StrokeColor = p.Watermark.StrokeColor
	wm.StrokeWidth = p.Watermark.StrokeWidth
	wm.Opacity = p.Watermark.Opacity
	wm.Anchor = anchor
	wm.OffsetX = p.Watermark.OffsetX
	wm.OffsetY = p.Watermark.OffsetY
	cfg.Watermark = wm
	cfg.WatermarkImagePath = p.Watermark.Image
	cfg.WatermarkQR = p.Watermark.QR

	cfg.Pan = pan.Config{
		DurationSec: p.Video.Duration,
		FPS:         p.Video.FPS,
		BitrateBps:  p.Video.Bitrate,
		Easing:      easing,
		Direction:   direction,
		Format:      format,
	}
	return nil
}

// WritePreset writes a preset to a YAML file
func WritePreset(p Preset, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadPreset reads a YAML preset over base, so keys missing from the file
// keep base's values.
func ReadPreset(path string, base Preset) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}

	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", path, err)
	}
	return p, nil
}
