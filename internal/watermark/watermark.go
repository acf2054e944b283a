// Package watermark draws text or image overlays anchored to a canvas.
package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/panoslice/internal/palette"
)

type Kind int

const (
	KindNone Kind = iota
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "none"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "text":
		return KindText, nil
	case "image":
		return KindImage, nil
	default:
		return KindNone, fmt.Errorf("unknown watermark type: %q", s)
	}
}

type Settings struct {
	Kind        Kind
	Text        string
	FontSize    float64
	FontWeight  string
	Color       string
	StrokeColor string
	StrokeWidth float64
	// Image is shared with the caller and only read.
	Image   image.Image
	Opacity float64
	Anchor  Anchor
	OffsetX float64
	OffsetY float64
}

func DefaultSettings() Settings {
	return Settings{
		Kind:        KindNone,
		FontSize:    24,
		FontWeight:  "normal",
		Color:       "#ffffff",
		StrokeColor: "#000000",
		Opacity:     1,
		Anchor:      BottomRight,
	}
}

// Validate rejects settings Place cannot draw.
func (s Settings) Validate() error {
	switch s.Kind {
	case KindNone, KindText, KindImage:
	default:
		return fmt.Errorf("unknown watermark kind: %d", int(s.Kind))
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("watermark opacity %.2f outside [0,1]", s.Opacity)
	}
	if s.Kind == KindText && (s.FontSize < 0 || s.StrokeWidth < 0) {
		return fmt.Errorf("watermark font size %.1f and stroke %.1f must not be negative", s.FontSize, s.StrokeWidth)
	}
	return nil
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// Place draws the overlay onto dst, using dst's bounds as the canvas.
func Place(dst draw.Image, s Settings) error {
	switch s.Kind {
	case KindNone:
		return nil
	case KindText:
		return placeText(dst, s)
	case KindImage:
		return placeImage(dst, s)
	default:
		return fmt.Errorf("unknown watermark kind: %d", int(s.Kind))
	}
}

func opacityMask(opacity float64) *image.Uniform {
	a := math.Round(max(0, min(1, opacity)) * 255)
	return image.NewUniform(color.Alpha{A: uint8(a)})
}

func placeImage(dst draw.Image, s Settings) error {
	if s.Image == nil || s.Opacity <= 0 {
		return nil
	}
	canvas := dst.Bounds()
	sb := s.Image.Bounds()
	x, y := Position(float64(sb.Dx()), float64(sb.Dy()),
		float64(canvas.Dx()), float64(canvas.Dy()), s.Anchor, s.OffsetX, s.OffsetY)

	origin := canvas.Min.Add(image.Pt(int(math.Round(x)), int(math.Round(y))))
	r := image.Rectangle{Min: origin, Max: origin.Add(sb.Size())}
	draw.DrawMask(dst, r, s.Image, sb.Min, opacityMask(s.Opacity), image.Point{}, draw.Over)
	return nil
}

func placeText(dst draw.Image, s Settings) error {
	if s.Text == "" || s.FontSize <= 0 || s.Opacity <= 0 {
		return nil
	}
	face, err := NewFace(s.FontWeight, s.FontSize)
	if err != nil {
		return err
	}
	defer face.Close()

	canvas := dst.Bounds()
	textW := fixedToFloat(font.MeasureString(face, s.Text))
	x, y := Position(textW, s.FontSize, float64(canvas.Dx()), float64(canvas.Dy()), s.Anchor, s.OffsetX, s.OffsetY)

	m := face.Metrics()
	pad := int(math.Ceil(s.StrokeWidth/2)) + 1
	w := int(math.Ceil(textW)) + 2*pad
	h := (m.Ascent + m.Descent).Ceil() + 2*pad

	fill := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  fill,
		Src:  image.Opaque,
		Face: face,
		// y is the top of the line box, so the baseline sits one ascent lower.
		Dot: fixed.Point26_6{X: fixed.I(pad), Y: fixed.I(pad) + m.Ascent},
	}
	d.DrawString(s.Text)

	layer := image.NewNRGBA(fill.Bounds())
	if s.StrokeWidth > 0 {
		stroke := dilate(fill, s.StrokeWidth/2)
		draw.DrawMask(layer, layer.Bounds(), image.NewUniform(palette.HexOr(s.StrokeColor, black)), image.Point{}, stroke, image.Point{}, draw.Over)
	}
	draw.DrawMask(layer, layer.Bounds(), image.NewUniform(palette.HexOr(s.Color, white)), image.Point{}, fill, image.Point{}, draw.Over)

	origin := canvas.Min.Add(image.Pt(int(math.Round(x))-pad, int(math.Round(y))-pad))
	r := image.Rectangle{Min: origin, Max: origin.Add(layer.Bounds().Size())}
	draw.DrawMask(dst, r, layer, image.Point{}, opacityMask(s.Opacity), image.Point{}, draw.Over)
	return nil
}

// dilate grows the glyph mask by radius pixels to form the outline.
func dilate(src *image.Alpha, radius float64) *image.Alpha {
	out := image.NewAlpha(src.Bounds())
	ri := int(math.Ceil(radius))
	limit := ri * ri
	for dy := -ri; dy <= ri; dy++ {
		for dx := -ri; dx <= ri; dx++ {
			if dx*dx+dy*dy > limit {
				continue
			}
			draw.Draw(out, src.Bounds().Add(image.Pt(dx, dy)), src, image.Point{}, draw.Over)
		}
	}
	return out
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

var (
	fontsOnce sync.Once
	fonts     map[string]*opentype.Font
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[string]*opentype.Font)
	for name, ttf := range map[string][]byte{
		"regular": goregular.TTF,
		"medium":  gomedium.TTF,
		"bold":    gobold.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("parse %s font: %w", name, err)
			return
		}
		fonts[name] = f
	}
}

// weightFamily maps a CSS-like weight to one of the bundled Go fonts.
func weightFamily(weight string) string {
	switch strings.ToLower(strings.TrimSpace(weight)) {
	case "bold", "bolder", "600", "700", "800", "900":
		return "bold"
	case "500":
		return "medium"
	default:
		return "regular"
	}
}

// NewFace builds a face of the given weight and pixel size. The caller closes it.
func NewFace(weight string, size float64) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}
	return opentype.NewFace(fonts[weightFamily(weight)], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// QRCode renders content as a square QR code usable as an image watermark.
func QRCode(content string, size int) (image.Image, error) {
	if content == "" {
		return nil, fmt.Errorf("qr watermark: empty content")
	}
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr watermark: %w", err)
	}
	return qr.Image(size), nil
}
