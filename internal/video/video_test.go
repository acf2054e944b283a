package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/system"
	"github.com/ivlev/panoslice/internal/watermark"
)

type fakeSink struct {
	params   StreamParams
	pixels  []color.RGBA
	beginErr error
	failAt   int
	onWrite  func(n int)
	began    int
	finished int
	aborted  int
}

func (f *fakeSink) Begin(_ context.Context, p StreamParams) error {
	f.began++
	f.params = p
	return f.beginErr
}

func (f *fakeSink) WriteFrame(frame *image.RGBA) error {
	n := len(f.pixels) + 1
	if f.failAt == n {
		return errors.New("disk full")
	}
	f.pixels = append(f.pixels, frame.RGBAAt(0, 0))
	if f.onWrite != nil {
		f.onWrite(n)
	}
	return nil
}

func (f *fakeSink) Finish() error { f.finished++; return nil }
func (f *fakeSink) Abort()        { f.aborted++ }

func sequence(t *testing.T, cfg pan.Config) *pan.Sequence {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 10, G: 20, B: 30, A: 255}), image.Point{}, draw.Src)
	src, err := source.New(img)
	require.NoError(t, err)
	seq, err := pan.Plan(cfg, src, geometry.Ratio4x5, watermark.Settings{})
	require.NoError(t, err)
	return seq
}

func config(seconds float64, fps int) pan.Config {
	cfg := pan.DefaultConfig()
	cfg.DurationSec = seconds
	cfg.FPS = fps
	return cfg
}

func TestRecordDeliversEveryFrame(t *testing.T) {
	cfg := config(0.2, 25)
	cfg.Format = pan.FormatWebM
	seq := sequence(t, cfg)
	sink := &fakeSink{}

	var progress []int
	err := Record(context.Background(), seq, sink, PacingNone, func(done, total int) {
		assert.Equal(t, 5, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Len(t, sink.pixels, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	assert.Equal(t, 1, sink.began)
	assert.Equal(t, 1, sink.finished)
	assert.Zero(t, sink.aborted)
	assert.Equal(t, StreamParams{Width: 1080, Height: 1350, FPS: 25, BitrateBps: cfg.BitrateBps, Format: pan.FormatWebM}, sink.params)
}

func TestRecordRealtimePacing(t *testing.T) {
	seq := sequence(t, config(0.15, 20))
	sink := &fakeSink{}

	start := time.Now()
	require.NoError(t, Record(context.Background(), seq, sink, PacingRealtime, nil))
	elapsed := time.Since(start)

	assert.Len(t, sink.pixels, 3)
	// two waits between three frames
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestRecordBeginFailureAborts(t *testing.T) {
	sink := &fakeSink{beginErr: ErrUnsupportedEncoding}
	err := Record(context.Background(), sequence(t, config(0.1, 30)), sink, PacingNone, nil)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	assert.Equal(t, 1, sink.aborted)
	assert.Empty(t, sink.pixels)
	assert.Zero(t, sink.finished)
}

func TestRecordWriteFailureAborts(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	err := Record(context.Background(), sequence(t, config(0.1, 30)), sink, PacingNone, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2/3")
	assert.Equal(t, 1, sink.aborted)
	assert.Zero(t, sink.finished)
}

func TestRecordCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &fakeSink{}
	err := Record(ctx, sequence(t, config(0.1, 30)), sink, PacingNone, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.aborted)
	assert.Empty(t, sink.pixels)
}

func TestRecordCancelledWhilePacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &fakeSink{onWrite: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	err := Record(ctx, sequence(t, config(0.5, 10)), sink, PacingRealtime, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.pixels, 2)
	assert.Equal(t, 1, sink.aborted)
	assert.Zero(t, sink.finished)
}

func TestFrameInterval(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, FrameInterval(25))
	assert.Zero(t, FrameInterval(0))
}

func TestBuildArgs(t *testing.T) {
	p := StreamParams{Width: 1080, Height: 1350, FPS: 30, BitrateBps: 8_000_000, Format: pan.FormatMP4}
	args := buildArgs(p, "libx264")
	assert.Subset(t, args, []string{"-video_size", "1080x1350", "-framerate", "30", "-c:v", "libx264", "-b:v", "8000000"})
	assert.Contains(t, args, "frag_keyframe+empty_moov")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Equal(t, []string{"-f", "mp4", "pipe:1"}, args[len(args)-3:])

	p.Format = pan.FormatWebM
	args = buildArgs(p, vp9Encoder)
	assert.Equal(t, []string{"-f", "webm", "pipe:1"}, args[len(args)-3:])
	assert.NotContains(t, args, "frag_keyframe+empty_moov")
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}

	var full bytes.Buffer
	require.NoError(t, writeRawRGBA(&full, img))
	assert.Equal(t, img.Pix, full.Bytes())

	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	var part bytes.Buffer
	require.NoError(t, writeRawRGBA(&part, sub))
	want := append(append([]byte{}, img.Pix[20:28]...), img.Pix[36:44]...)
	assert.Equal(t, want, part.Bytes())
}

func TestFFmpegSinkMissingBinary(t *testing.T) {
	sink := NewFFmpegSink(&bytes.Buffer{})
	sink.Binary = "panoslice-no-such-ffmpeg"

	err := sink.Begin(context.Background(), StreamParams{Width: 2, Height: 2, FPS: 1, BitrateBps: 1000})
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	sink.Abort()
}

func TestFFmpegSinkRejectsParams(t *testing.T) {
	sink := NewFFmpegSink(&bytes.Buffer{})
	err := sink.Begin(context.Background(), StreamParams{Width: 2, Height: 2, FPS: 1})
	assert.ErrorIs(t, err, ErrEncoderRejected)

	err = NewFFmpegSink(nil).Begin(context.Background(), StreamParams{Width: 2, Height: 2, FPS: 1, BitrateBps: 1})
	assert.ErrorIs(t, err, ErrEncoderRejected)
}

func TestFFmpegSinkNotRunning(t *testing.T) {
	sink := NewFFmpegSink(&bytes.Buffer{})
	assert.Error(t, sink.WriteFrame(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	assert.Error(t, sink.Finish())
	sink.Abort()
}

func TestFFmpegSinkEncodes(t *testing.T) {
	if _, err := exec.LookPath(system.DefaultFFmpeg); err != nil {
		t.Skip("ffmpeg not installed")
	}
	encoders, err := system.ListEncoders(context.Background(), "")
	if err != nil || !encoders["libx264"] {
		t.Skip("libx264 not available")
	}

	var out bytes.Buffer
	sink := NewFFmpegSink(&out)
	sink.Encoder = "libx264"
	require.NoError(t, Record(context.Background(), sequence(t, config(0.2, 10)), sink, PacingNone, nil))
	assert.Greater(t, out.Len(), 0)
}
