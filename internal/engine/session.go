package engine

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ivlev/panoslice/internal/background"
	"github.com/ivlev/panoslice/internal/bundle"
	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/palette"
	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/slicer"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

// Session holds everything derived from one loaded panorama. It is a value:
// the With methods return modified copies and never touch the receiver.
type Session struct {
	src        *source.Image
	palette    palette.Palette
	ratio      geometry.AspectRatio
	highRes    bool
	background background.Settings
	watermark  watermark.Settings
	logger     *slog.Logger
}

type LoadOptions struct {
	PaletteMethod palette.Method
	// Rand drives palette sampling; nil is time-seeded.
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Load validates img as a panorama, extracts its palette and seeds the
// background colours from it. Every load starts from defaults.
func Load(img image.Image, opts LoadOptions) (Session, error) {
	src, err := source.New(img)
	if err != nil {
		return Session{}, err
	}
	if err := source.ValidatePanorama(src); err != nil {
		return Session{}, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	pal := palette.ExtractWith(img, palette.Options{K: palette.DefaultSize, Method: opts.PaletteMethod, Rand: opts.Rand})
	if len(pal) == 0 {
		logger.Warn("palette is empty, keeping default background colours")
	}
	logger.Debug("palette extracted", "colors", pal.String(), "method", opts.PaletteMethod.String(), "took", time.Since(start))

	return Session{
		src:        src,
		palette:    pal,
		ratio:      geometry.Ratio4x5,
		background: background.DefaultSettings().WithPalette(pal),
		watermark:  watermark.DefaultSettings(),
		logger:     logger,
	}, nil
}

func (s Session) Source() *source.Image             { return s.src }
func (s Session) Palette() palette.Palette          { return append(palette.Palette(nil), s.palette...) }
func (s Session) AspectRatio() geometry.AspectRatio { return s.ratio }
func (s Session) HighRes() bool                     { return s.highRes }
func (s Session) Background() background.Settings   { return s.background.Clone() }
func (s Session) Watermark() watermark.Settings     { return s.watermark }

func (s Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s Session) WithAspectRatio(r geometry.AspectRatio) Session {
	s.ratio = r
	return s
}

func (s Session) WithHighRes(on bool) Session {
	s.highRes = on
	return s
}

// WithBackground replaces the background settings wholesale, including the
// palette-seeded colours.
func (s Session) WithBackground(b background.Settings) Session {
	s.background = b.Clone()
	return s
}

func (s Session) WithWatermark(w watermark.Settings) Session {
	s.watermark = w
	return s
}

func (s Session) WithLogger(l *slog.Logger) Session {
	s.logger = l
	return s
}

// Geometry is recomputed on every call from the current ratio and mode.
func (s Session) Geometry() (geometry.Result, error) {
	if s.src == nil {
		return geometry.Result{}, fmt.Errorf("%w: no image loaded", source.ErrInvalidInput)
	}
	return geometry.Plan(s.src.Width(), s.src.Height(), s.ratio, s.highRes)
}

// Output is one full regeneration of the carousel.
type Output struct {
	Geometry geometry.Result
	FullView *background.FullView
	Slices   []slicer.Slice
}

// Process plans the geometry, composes the full view and cuts the slices.
// Nothing from a previous call is reused.
func (s Session) Process() (*Output, error) {
	geo, err := s.Geometry()
	if err != nil {
		return nil, err
	}
	log := s.log().With("ratio", s.ratio.String(), "high_res", s.highRes)
	log.Info("geometry planned", "scaled", fmt.Sprintf("%dx%d", geo.ScaledWidth, geo.ScaledHeight),
		"slices", geo.SliceCount, "tile", fmt.Sprintf("%dx%d", geo.SliceWidth, geo.SliceHeight))

	start := time.Now()
	full, err := background.Compose(s.src, geo, s.background, s.watermark)
	if err != nil {
		return nil, fmt.Errorf("full view: %w", err)
	}
	log.Debug("full view composed", "mode", s.background.Mode.String(), "took", time.Since(start))

	start = time.Now()
	scaled, err := slicer.Scale(s.src, geo)
	if err != nil {
		return nil, err
	}
	slices, err := slicer.Cut(scaled, geo, s.watermark)
	if err != nil {
		return nil, fmt.Errorf("cut slices: %w", err)
	}
	log.Debug("slices cut", "count", len(slices), "took", time.Since(start))

	return &Output{Geometry: geo, FullView: full, Slices: slices}, nil
}

// Bundle encodes the output images for packaging.
func (s Session) Bundle(out *Output) (bundle.Bundle, error) {
	b := bundle.Bundle{
		HighRes:  s.highRes,
		Ratio:    s.ratio,
		Geometry: out.Geometry,
		Created:  time.Now(),
	}
	if out.FullView != nil {
		data, err := encodeJPEG(out.FullView.Image)
		if err != nil {
			return bundle.Bundle{}, fmt.Errorf("encode full view: %w", err)
		}
		b.FullView = data
	}
	for _, sl := range out.Slices {
		data, err := encodeJPEG(sl.Image)
		if err != nil {
			return bundle.Bundle{}, fmt.Errorf("encode slice %d: %w", sl.Index, err)
		}
		b.Slices = append(b.Slices, data)
	}
	return b, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := slicer.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PanVideo plans a pan across the source on a standard tile of the
// session's ratio, with the session's watermark on every frame.
func (s Session) PanVideo(cfg pan.Config) (*pan.Sequence, error) {
	if s.src == nil {
		return nil, fmt.Errorf("%w: no image loaded", source.ErrInvalidInput)
	}
	return pan.Plan(cfg, s.src, s.ratio, s.watermark)
}
