// Package slicer scales a panorama to its planned size and cuts it into
// equally sized portrait tiles.
package slicer

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

// JPEGQuality is used for every exported tile and the full view.
const JPEGQuality = 95

var ErrSizeMismatch = errors.New("composite does not match geometry")

type Slice struct {
	// Index is 1-based, matching the carousel order.
	Index  int
	Width  int
	Height int
	Image  *image.NRGBA
}

// Scale stretches the source onto a fresh ScaledWidth × ScaledHeight surface.
func Scale(src *source.Image, geo geometry.Result) (*image.RGBA, error) {
	if src == nil || geo.ScaledWidth <= 0 || geo.ScaledHeight <= 0 {
		return nil, fmt.Errorf("%w: scaled size %dx%d", geometry.ErrInvalidInput, geo.ScaledWidth, geo.ScaledHeight)
	}
	dst := image.NewRGBA(image.Rect(0, 0, geo.ScaledWidth, geo.ScaledHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src.Image(), src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Cut crops the composite into geo.SliceCount tiles left to right. Each tile
// is its own surface and gets the watermark relative to its own bounds.
func Cut(composite image.Image, geo geometry.Result, wm watermark.Settings) ([]Slice, error) {
	b := composite.Bounds()
	if b.Dx() != geo.ScaledWidth || b.Dy() != geo.ScaledHeight {
		return nil, fmt.Errorf("%w: %dx%d, want %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), geo.ScaledWidth, geo.ScaledHeight)
	}
	if geo.SliceCount <= 0 || geo.SliceWidth*geo.SliceCount != geo.ScaledWidth {
		return nil, fmt.Errorf("%w: %d slices of %d px", ErrSizeMismatch, geo.SliceCount, geo.SliceWidth)
	}

	slices := make([]Slice, 0, geo.SliceCount)
	for i := 0; i < geo.SliceCount; i++ {
		r := image.Rect(i*geo.SliceWidth, 0, (i+1)*geo.SliceWidth, geo.ScaledHeight).Add(b.Min)
		tile := imaging.Crop(composite, r)
		if err := watermark.Place(tile, wm); err != nil {
			return nil, fmt.Errorf("slice %d watermark: %w", i+1, err)
		}
		slices = append(slices, Slice{
			Index:  i + 1,
			Width:  tile.Bounds().Dx(),
			Height: tile.Bounds().Dy(),
			Image:  tile,
		})
	}
	return slices, nil
}

// Encode writes img as a JPEG at JPEGQuality.
func Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}
