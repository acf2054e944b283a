package pan

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

// Sequence yields the frames of one pan in order. It is consumed once;
// plan again for a second pass.
type Sequence struct {
	cfg       Config
	wm        watermark.Settings
	canvas    image.Rectangle
	scaled    *image.RGBA
	maxOffset float64
	total     int
	next      int
	err       error
}

// Plan prepares a frame sequence on a standard tile canvas for ratio.
// The source is scaled once so its height fills the canvas.
func Plan(cfg Config, src *source.Image, ratio geometry.AspectRatio, wm watermark.Settings) (*Sequence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidConfig)
	}
	if err := wm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if ratio.Float() <= 0 {
		return nil, fmt.Errorf("%w: aspect ratio %s", ErrInvalidConfig, ratio)
	}
	w, h := geometry.StandardTile(ratio)

	scaledW := float64(src.Width()) * float64(h) / float64(src.Height())
	scaled := image.NewRGBA(image.Rect(0, 0, int(math.Round(scaledW)), h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src.Image(), src.Bounds(), draw.Src, nil)

	return &Sequence{
		cfg:       cfg,
		wm:        wm,
		canvas:    image.Rect(0, 0, w, h),
		scaled:    scaled,
		maxOffset: scaledW - float64(w),
		total:     cfg.FrameCount(),
	}, nil
}

func (s *Sequence) Len() int           { return s.total }
func (s *Sequence) FPS() int           { return s.cfg.FPS }
func (s *Sequence) Config() Config     { return s.cfg }
func (s *Sequence) Size() (w, h int)   { return s.canvas.Dx(), s.canvas.Dy() }
func (s *Sequence) MaxOffset() float64 { return s.maxOffset }
func (s *Sequence) Remaining() int     { return s.total - s.next }
func (s *Sequence) Err() error         { return s.err }

// Offset is the draw offset used for the given frame index.
func (s *Sequence) Offset(frame int) float64 {
	return Offset(Progress(frame, s.total), s.cfg.Direction, s.maxOffset, s.cfg.Easing)
}

// Next renders the next frame on a fresh surface. It reports false once
// the sequence is exhausted or a frame failed; see Err.
func (s *Sequence) Next() (*image.RGBA, bool) {
	if s.err != nil || s.next >= s.total {
		return nil, false
	}
	x := int(math.Round(s.Offset(s.next)))
	s.next++

	frame := image.NewRGBA(s.canvas)
	draw.Draw(frame, frame.Bounds(), image.Black, image.Point{}, draw.Src)
	dr := s.scaled.Bounds().Add(image.Pt(x, 0))
	draw.Draw(frame, dr, s.scaled, image.Point{}, draw.Over)

	if err := watermark.Place(frame, s.wm); err != nil {
		s.err = fmt.Errorf("frame %d: %w", s.next, err)
		return nil, false
	}
	return frame, true
}
