// Package background composes the "full view" tile: a background fill with the
// whole panorama fitted inside it.
package background

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/gift"
	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/palette"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

const (
	// MarginFraction of the tile width is kept clear around the panorama.
	MarginFraction = 0.08
	DefaultBlur    = 20
)

var (
	ErrInvalidCanvas = errors.New("invalid full view canvas")

	white       = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black       = color.NRGBA{A: 255}
	borderColor = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 255}
)

type Mode int

const (
	ModeOriginal Mode = iota
	ModeBlur
	ModeSolid
	ModeGradient
)

func (m Mode) String() string {
	switch m {
	case ModeBlur:
		return "blur"
	case ModeSolid:
		return "solid"
	case ModeGradient:
		return "gradient"
	default:
		return "original"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original":
		return ModeOriginal, nil
	case "blur":
		return ModeBlur, nil
	case "solid":
		return ModeSolid, nil
	case "gradient":
		return ModeGradient, nil
	default:
		return ModeOriginal, fmt.Errorf("unknown background mode: %q", s)
	}
}

type GradientType int

const (
	GradientLinear GradientType = iota
	GradientRadial
)

func (g GradientType) String() string {
	if g == GradientRadial {
		return "radial"
	}
	return "linear"
}

func ParseGradientType(s string) (GradientType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return GradientLinear, nil
	case "radial":
		return GradientRadial, nil
	default:
		return GradientLinear, fmt.Errorf("unknown gradient type: %q", s)
	}
}

type Settings struct {
	Mode             Mode
	Blur             float64
	Color            string
	GradientType     GradientType
	GradientAngleDeg float64
	GradientColors   []string
}

func DefaultSettings() Settings {
	return Settings{
		Mode:         ModeOriginal,
		Blur:         DefaultBlur,
		Color:        "#ffffff",
		GradientType: GradientLinear,
	}
}

// Clone copies s so the gradient stops are not shared.
func (s Settings) Clone() Settings {
	if s.GradientColors != nil {
		s.GradientColors = append([]string(nil), s.GradientColors...)
	}
	return s
}

// WithPalette seeds the solid colour and the gradient stops from a palette.
// An empty palette leaves the settings as they are.
func (s Settings) WithPalette(p palette.Palette) Settings {
	if len(p) == 0 {
		return s
	}
	second := p[0]
	if len(p) > 1 {
		second = p[1]
	}
	s.Color = p[0]
	s.GradientColors = []string{p[0], second}
	return s
}

type FullView struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// Compose renders the full view on a single tile-sized canvas. The output
// depends only on its arguments.
func Compose(src *source.Image, geo geometry.Result, s Settings, wm watermark.Settings) (*FullView, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidCanvas)
	}
	w, h := geo.SliceWidth, geo.SliceHeight
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, w, h)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	switch s.Mode {
	case ModeOriginal:
		fill(canvas, white)
	case ModeSolid:
		fill(canvas, palette.HexOr(s.Color, white))
	case ModeBlur:
		fill(canvas, white)
		drawBlurred(canvas, src, s.Blur)
	case ModeGradient:
		drawGradient(canvas, s)
	default:
		return nil, fmt.Errorf("unknown background mode: %d", int(s.Mode))
	}

	placePanorama(canvas, src)

	if err := watermark.Place(canvas, wm); err != nil {
		return nil, fmt.Errorf("full view watermark: %w", err)
	}
	return &FullView{Image: canvas, Width: w, Height: h}, nil
}

func fill(dst draw.Image, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawBlurred cover-fits the source over the canvas and blurs only that layer.
func drawBlurred(canvas *image.RGBA, src *source.Image, radius float64) {
	w, h := float64(canvas.Bounds().Dx()), float64(canvas.Bounds().Dy())
	sw, sh := float64(src.Width()), float64(src.Height())
	scale := math.Max(w/sw, h/sh)
	cw, ch := sw*scale, sh*scale
	bx, by := (w-cw)/2, (h-ch)/2

	layer := image.NewRGBA(canvas.Bounds())
	dr := image.Rect(
		int(math.Round(bx)), int(math.Round(by)),
		int(math.Round(bx+cw)), int(math.Round(by+ch)),
	)
	xdraw.CatmullRom.Scale(layer, dr, src.Image(), src.Bounds(), draw.Src, nil)

	if radius > 0 {
		g := gift.New(gift.GaussianBlur(float32(radius)))
		blurred := image.NewRGBA(g.Bounds(layer.Bounds()))
		g.Draw(blurred, layer)
		layer = blurred
	}
	draw.Draw(canvas, canvas.Bounds(), layer, layer.Bounds().Min, draw.Over)
}

func gradientStops(s Settings) (colorful.Color, colorful.Color) {
	c0, c1 := black, white
	if len(s.GradientColors) >= 2 {
		c0 = palette.HexOr(s.GradientColors[0], black)
		c1 = palette.HexOr(s.GradientColors[1], white)
	}
	a, _ := colorful.MakeColor(c0)
	b, _ := colorful.MakeColor(c1)
	return a, b
}

func drawGradient(canvas *image.RGBA, s Settings) {
	c0, c1 := gradientStops(s)
	b := canvas.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	cx, cy := w/2, h/2

	var at func(px, py float64) float64
	if s.GradientType == GradientRadial {
		radius := math.Max(w, h) / 2
		at = func(px, py float64) float64 {
			return math.Hypot(px-cx, py-cy) / radius
		}
	} else {
		theta := s.GradientAngleDeg * math.Pi / 180
		x0, y0 := cx+math.Cos(theta)*w/2, cy+math.Sin(theta)*h/2
		x1, y1 := cx-math.Cos(theta)*w/2, cy-math.Sin(theta)*h/2
		dx, dy := x1-x0, y1-y0
		den := dx*dx + dy*dy
		at = func(px, py float64) float64 {
			if den == 0 {
				return 0
			}
			return ((px-x0)*dx + (py-y0)*dy) / den
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			t := max(0, min(1, at(float64(x)+0.5, float64(y)+0.5)))
			r, g, bl := c0.BlendRgb(c1, t).Clamped().RGB255()
			canvas.SetRGBA(b.Min.X+x, b.Min.Y+y, color.RGBA{R: r, G: g, B: bl, A: 255})
		}
	}
}

// PanoramaRect is where the fitted panorama lands on a w×h tile.
func PanoramaRect(srcW, srcH, w, h int) image.Rectangle {
	margin := int(math.Round(float64(w) * MarginFraction))
	availW := float64(w - 2*margin)
	availH := float64(h - 2*margin)
	if availW <= 0 || availH <= 0 || srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}

	ar := float64(srcW) / float64(srcH)
	var pw, ph float64
	if ar > availW/availH {
		pw = availW
		ph = pw / ar
	} else {
		ph = availH
		pw = ph * ar
	}
	x := int(math.Round((float64(w) - pw) / 2))
	y := int(math.Round((float64(h) - ph) / 2))
	return image.Rect(x, y, x+int(math.Round(pw)), y+int(math.Round(ph)))
}

func placePanorama(canvas *image.RGBA, src *source.Image) {
	b := canvas.Bounds()
	r := PanoramaRect(src.Width(), src.Height(), b.Dx(), b.Dy())
	if r.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(canvas, r, src.Image(), src.Bounds(), draw.Over, nil)

	border := image.NewUniform(borderColor)
	outer := r.Inset(-1)
	for _, edge := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, r.Min.Y),
		image.Rect(outer.Min.X, r.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, r.Min.Y, r.Min.X, r.Max.Y),
		image.Rect(r.Max.X, r.Min.Y, outer.Max.X, r.Max.Y),
	} {
		draw.Draw(canvas, edge, border, image.Point{}, draw.Src)
	}
}
