// Package video drives a pan frame sequence into an encoder.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ivlev/panoslice/internal/pan"
)

var (
	// ErrUnsupportedEncoding means no encoder on this host handles the format.
	ErrUnsupportedEncoding = errors.New("unsupported video encoding")
	// ErrEncoderRejected means the encoder refused the stream parameters.
	ErrEncoderRejected = errors.New("encoder rejected stream")
)

type StreamParams struct {
	Width, Height int
	FPS           int
	BitrateBps    int
	Format        pan.Format
}

// FrameSink consumes frames in order. Abort must be safe to call at any
// point, including after Finish, and releases everything Begin acquired.
type FrameSink interface {
	Begin(ctx context.Context, p StreamParams) error
	WriteFrame(frame *image.RGBA) error
	Finish() error
	Abort()
}

type Pacing int

const (
	// PacingNone hands frames over as fast as the sink accepts them.
	PacingNone Pacing = iota
	// PacingRealtime waits one frame interval between frames.
	PacingRealtime
)

func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// ProgressFunc is told after each frame how many of total were written.
type ProgressFunc func(done, total int)

// Record pulls every frame from seq and hands it to sink in order. No frame
// is dropped when the sink is slower than the pacing. On any error or
// cancellation the sink is aborted before returning.
func Record(ctx context.Context, seq *pan.Sequence, sink FrameSink, pacing Pacing, progress ProgressFunc) error {
	w, h := seq.Size()
	cfg := seq.Config()
	params := StreamParams{Width: w, Height: h, FPS: cfg.FPS, BitrateBps: cfg.BitrateBps, Format: cfg.Format}

	if err := sink.Begin(ctx, params); err != nil {
		sink.Abort()
		return err
	}

	var tick <-chan time.Time
	if pacing == PacingRealtime {
		ticker := time.NewTicker(FrameInterval(cfg.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	total := seq.Len()
	for done := 0; ; {
		if err := ctx.Err(); err != nil {
			sink.Abort()
			return err
		}
		frame, ok := seq.Next()
		if !ok {
			break
		}
		if err := sink.WriteFrame(frame); err != nil {
			sink.Abort()
			return fmt.Errorf("frame %d/%d: %w", done+1, total, err)
		}
		done++
		if progress != nil {
			progress(done, total)
		}

		if tick != nil && seq.Remaining() > 0 {
			select {
			case <-ctx.Done():
				sink.Abort()
				return ctx.Err()
			case <-tick:
			}
		}
	}

	if err := seq.Err(); err != nil {
		sink.Abort()
		return err
	}
	if err := sink.Finish(); err != nil {
		sink.Abort()
		return err
	}
	return nil
}
