package slicer

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

func none() watermark.Settings {
	return watermark.Settings{Kind: watermark.KindNone}
}

// gradientImage gives every column a distinct value so misplaced crops show.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x / 256), A: 255})
		}
	}
	return img
}

func TestCutCountAndSize(t *testing.T) {
	geo := geometry.Result{ScaledWidth: 300, ScaledHeight: 125, SliceCount: 3, SliceWidth: 100, SliceHeight: 125}
	slices, err := Cut(gradientImage(300, 125), geo, none())
	require.NoError(t, err)
	require.Len(t, slices, 3)
	for i, s := range slices {
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, 100, s.Width)
		assert.Equal(t, 125, s.Height)
		assert.Equal(t, image.Rect(0, 0, 100, 125), s.Image.Bounds())
	}
}

func TestCutReconstructs(t *testing.T) {
	geo := geometry.Result{ScaledWidth: 240, ScaledHeight: 60, SliceCount: 4, SliceWidth: 60, SliceHeight: 60}
	composite := gradientImage(240, 60)
	slices, err := Cut(composite, geo, none())
	require.NoError(t, err)

	stitched := image.NewRGBA(composite.Bounds())
	for _, s := range slices {
		at := image.Rect((s.Index-1)*geo.SliceWidth, 0, s.Index*geo.SliceWidth, geo.SliceHeight)
		draw.Draw(stitched, at, s.Image, image.Point{}, draw.Src)
	}
	assert.Equal(t, composite.Pix, stitched.Pix)
}

func TestCutOffsetBounds(t *testing.T) {
	geo := geometry.Result{ScaledWidth: 20, ScaledHeight: 10, SliceCount: 2, SliceWidth: 10, SliceHeight: 10}
	sub := gradientImage(40, 20).SubImage(image.Rect(10, 5, 30, 15))
	slices, err := Cut(sub, geo, none())
	require.NoError(t, err)
	require.Len(t, slices, 2)
	assert.Equal(t, uint8(20), slices[1].Image.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(5), slices[1].Image.NRGBAAt(0, 0).G)
}

func TestCutWatermarkPerTile(t *testing.T) {
	mark := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(mark, mark.Bounds(), image.NewUniform(color.RGBA{B: 255, A: 255}), image.Point{}, draw.Src)
	wm := watermark.DefaultSettings()
	wm.Kind = watermark.KindImage
	wm.Image = mark
	wm.Anchor = watermark.BottomRight

	geo := geometry.Result{ScaledWidth: 60, ScaledHeight: 30, SliceCount: 3, SliceWidth: 20, SliceHeight: 30}
	slices, err := Cut(image.NewRGBA(image.Rect(0, 0, 60, 30)), geo, wm)
	require.NoError(t, err)
	for _, s := range slices {
		assert.Equal(t, color.NRGBA{B: 255, A: 255}, s.Image.NRGBAAt(19, 29), "slice %d", s.Index)
		assert.Equal(t, color.NRGBA{}, s.Image.NRGBAAt(15, 25), "slice %d", s.Index)
	}
}

func TestCutSlicesAreIndependent(t *testing.T) {
	geo := geometry.Result{ScaledWidth: 20, ScaledHeight: 10, SliceCount: 2, SliceWidth: 10, SliceHeight: 10}
	composite := gradientImage(20, 10)
	slices, err := Cut(composite, geo, none())
	require.NoError(t, err)

	slices[0].Image.Pix[0] = 99
	assert.Equal(t, uint8(0), composite.Pix[0])
}

func TestCutMismatch(t *testing.T) {
	geo := geometry.Result{ScaledWidth: 300, ScaledHeight: 125, SliceCount: 3, SliceWidth: 100, SliceHeight: 125}
	_, err := Cut(gradientImage(299, 125), geo, none())
	assert.ErrorIs(t, err, ErrSizeMismatch)

	geo.SliceCount = 4
	_, err = Cut(gradientImage(300, 125), geo, none())
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestScale(t *testing.T) {
	src, err := source.New(gradientImage(500, 200))
	require.NoError(t, err)
	geo, err := geometry.Plan(500, 200, geometry.Ratio4x5, true)
	require.NoError(t, err)

	scaled, err := Scale(src, geo)
	require.NoError(t, err)
	assert.Equal(t, geo.ScaledWidth, scaled.Bounds().Dx())
	assert.Equal(t, geo.ScaledHeight, scaled.Bounds().Dy())

	_, err = Scale(src, geometry.Result{})
	assert.ErrorIs(t, err, geometry.ErrInvalidInput)
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 40))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 200, G: 100, B: 50, A: 255}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))

	decoded, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	r, g, b, _ := decoded.At(16, 20).RGBA()
	assert.InDelta(t, 200, r>>8, 4)
	assert.InDelta(t, 100, g>>8, 4)
	assert.InDelta(t, 50, b>>8, 4)
}
