package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StandardTileWidth is the tile width used outside of high-res mode.
const StandardTileWidth = 1080

// MinSlices is the smallest carousel the planner will produce.
const MinSlices = 2

var ErrInvalidInput = errors.New("invalid input dimensions")

// AspectRatio is a width:height ratio of a single tile.
type AspectRatio struct {
	W, H int
}

var (
	Ratio4x5 = AspectRatio{W: 4, H: 5}
	Ratio3x4 = AspectRatio{W: 3, H: 4}
)

func (a AspectRatio) Float() float64 {
	if a.H == 0 {
		return 0
	}
	return float64(a.W) / float64(a.H)
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.W, a.H)
}

// ParseAspectRatio accepts "4:5" or "4/5". Only portrait ratios are valid.
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, ":/")
	if sep < 0 {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q: expected W:H", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(s[:sep]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(s[sep+1:]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	if w <= 0 || h <= 0 || w >= h {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q: tiles must be portrait (0 < W < H)", s)
	}
	return AspectRatio{W: w, H: h}, nil
}

// Result describes the scaled panorama and how it is cut into tiles.
// SliceHeight always equals ScaledHeight.
type Result struct {
	ScaledWidth  int
	ScaledHeight int
	SliceCount   int
	SliceWidth   int
	SliceHeight  int
}

func (r Result) String() string {
	return fmt.Sprintf("scaled %dx%d | tiles: %d | tile %dx%d",
		r.ScaledWidth, r.ScaledHeight, r.SliceCount, r.SliceWidth, r.SliceHeight)
}

// StandardTile returns the fixed tile size used in standard mode.
func StandardTile(ratio AspectRatio) (width, height int) {
	return StandardTileWidth, int(math.Round(StandardTileWidth / ratio.Float()))
}

// Plan computes the scaled size and slice count for a panorama of the given
// original size. The scaled width is always an exact multiple of the tile
// width and at least MinSlices tiles wide.
func Plan(originalWidth, originalHeight int, ratio AspectRatio, highRes bool) (Result, error) {
	if originalWidth <= 0 || originalHeight <= 0 {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrInvalidInput, originalWidth, originalHeight)
	}
	ar := ratio.Float()
	if ar <= 0 {
		return Result{}, fmt.Errorf("%w: aspect ratio %s", ErrInvalidInput, ratio)
	}

	tileWidth, tileHeight := StandardTile(ratio)
	if highRes {
		// Tile height follows the source so nothing is upscaled.
		tileHeight = originalHeight
		tileWidth = int(math.Round(float64(tileHeight) * ar))
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return Result{}, fmt.Errorf("%w: tile %dx%d", ErrInvalidInput, tileWidth, tileHeight)
	}

	scale := float64(tileHeight) / float64(originalHeight)
	baseScaledWidth := int(math.Round(float64(originalWidth) * scale))

	fullSlices := baseScaledWidth / tileWidth
	remainder := baseScaledWidth - fullSlices*tileWidth

	var count, scaledWidth, scaledHeight int
	switch {
	case fullSlices < MinSlices:
		count = MinSlices
		scaledWidth = count * tileWidth
		scaledHeight = int(math.Round(float64(scaledWidth) / float64(originalWidth) * float64(originalHeight)))
	case float64(remainder) > float64(tileWidth)/2:
		count = fullSlices + 1
		scaledWidth = count * tileWidth
		scaledHeight = int(math.Round(float64(originalHeight) * (float64(scaledWidth) / float64(originalWidth))))
	default:
		count = fullSlices
		scaledWidth = count * tileWidth
		scaledHeight = tileHeight
	}
	if scaledHeight <= 0 {
		return Result{}, fmt.Errorf("%w: scaled height %d", ErrInvalidInput, scaledHeight)
	}

	return Result{
		ScaledWidth:  scaledWidth,
		ScaledHeight: scaledHeight,
		SliceCount:   count,
		SliceWidth:   tileWidth,
		SliceHeight:  scaledHeight,
	}, nil
}
