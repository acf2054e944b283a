package pan

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/watermark"
)

var allEasings = []Easing{EaseLinear, EaseInOut, EaseSmooth, EaseOut}

func TestEasingEndpoints(t *testing.T) {
	for _, e := range allEasings {
		t.Run(e.String(), func(t *testing.T) {
			assert.InDelta(t, 0, e.Apply(0), 1e-9)
			assert.InDelta(t, 1, e.Apply(1), 1e-9)
		})
	}
}

func TestEasingCurves(t *testing.T) {
	for _, x := range []float64{0.1, 0.25, 0.4, 0.5, 0.6, 0.75, 0.9} {
		assert.InDelta(t, x, EaseLinear.Apply(x), 1e-6)
		assert.InDelta(t, x*x*(3-2*x), EaseSmooth.Apply(x), 1e-6)
		assert.InDelta(t, 1-(1-x)*(1-x), EaseOut.Apply(x), 1e-6)
		want := -1 + (4-2*x)*x
		if x < 0.5 {
			want = 2 * x * x
		}
		assert.InDelta(t, want, EaseInOut.Apply(x), 1e-6, "t=%v", x)
	}
}

func TestUnknownEasingIsLinear(t *testing.T) {
	assert.InDelta(t, 0.3, Easing(42).Apply(0.3), 1e-6)

	e, err := ParseEasing("bounce")
	assert.Error(t, err)
	assert.Equal(t, EaseLinear, e)

	for _, want := range allEasings {
		got, err := ParseEasing(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestOffsetOneWay(t *testing.T) {
	const maxOffset = 2970.0
	for _, e := range allEasings {
		assert.InDelta(t, 0, Offset(0, LeftToRight, maxOffset, e), 1e-6)
		assert.InDelta(t, -maxOffset, Offset(1, LeftToRight, maxOffset, e), 1e-3)
		assert.InDelta(t, -maxOffset, Offset(0, RightToLeft, maxOffset, e), 1e-6)
		assert.InDelta(t, 0, Offset(1, RightToLeft, maxOffset, e), 1e-3)
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	const maxOffset = 500.0
	for _, e := range allEasings {
		t.Run(e.String(), func(t *testing.T) {
			assert.InDelta(t, -maxOffset, Offset(0.5, LeftRightLeft, maxOffset, e), 1e-6)
			assert.InDelta(t, Offset(0, LeftRightLeft, maxOffset, e), Offset(1, LeftRightLeft, maxOffset, e), 1e-3)
			assert.InDelta(t, 0, Offset(0, LeftRightLeft, maxOffset, e), 1e-6)

			assert.InDelta(t, 0, Offset(0.5, RightLeftRight, maxOffset, e), 1e-6)
			assert.InDelta(t, Offset(0, RightLeftRight, maxOffset, e), Offset(1, RightLeftRight, maxOffset, e), 1e-3)
			assert.InDelta(t, -maxOffset, Offset(0, RightLeftRight, maxOffset, e), 1e-6)
		})
	}
}

func TestOffsetStaysInRange(t *testing.T) {
	const maxOffset = 300.0
	for _, dir := range []Direction{LeftToRight, RightToLeft, LeftRightLeft, RightLeftRight} {
		for _, e := range allEasings {
			for i := 0; i <= 100; i++ {
				o := Offset(float64(i)/100, dir, maxOffset, e)
				assert.GreaterOrEqual(t, o, -maxOffset-1e-3)
				assert.LessOrEqual(t, o, 1e-3)
			}
		}
	}
}

func TestOffsetNoRoom(t *testing.T) {
	for _, m := range []float64{0, -120} {
		for _, dir := range []Direction{LeftToRight, RightToLeft, LeftRightLeft, RightLeftRight} {
			assert.Zero(t, Offset(0.7, dir, m, EaseOut))
		}
	}
	assert.Zero(t, Offset(0.7, Direction(9), 100, EaseLinear))
}

func TestProgress(t *testing.T) {
	assert.Zero(t, Progress(0, 1))
	assert.Zero(t, Progress(0, 10))
	assert.Equal(t, 1.0, Progress(9, 10))
	assert.Equal(t, 0.5, Progress(2, 5))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 150, DefaultConfig().FrameCount())

	bad := []func(*Config){
		func(c *Config) { c.DurationSec = 0 },
		func(c *Config) { c.DurationSec = -2 },
		func(c *Config) { c.FPS = 0 },
		func(c *Config) { c.BitrateBps = 0 },
		func(c *Config) { c.Format = Format(7) },
		func(c *Config) { c.DurationSec = 0.01 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "case %d", i)
	}
}

func TestParseDirectionAndFormat(t *testing.T) {
	for _, d := range []Direction{LeftToRight, RightToLeft, LeftRightLeft, RightLeftRight} {
		got, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDirection("up")
	assert.Error(t, err)

	f, err := ParseFormat("WebM")
	require.NoError(t, err)
	assert.Equal(t, FormatWebM, f)
	_, err = ParseFormat("gif")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

var (
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	black = color.RGBA{A: 255}
)

func splitSource(t *testing.T, w, h int) *source.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, image.Rect(0, 0, w/2, h), image.NewUniform(red), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w/2, 0, w, h), image.NewUniform(blue), image.Point{}, draw.Src)
	src, err := source.New(img)
	require.NoError(t, err)
	return src
}

func shortConfig() Config {
	c := DefaultConfig()
	c.DurationSec = 0.1
	return c
}

func TestSequenceFrames(t *testing.T) {
	seq, err := Plan(shortConfig(), splitSource(t, 300, 100), geometry.Ratio4x5, watermark.Settings{})
	require.NoError(t, err)

	w, h := seq.Size()
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1350, h)
	assert.Equal(t, 3, seq.Len())
	assert.InDelta(t, 2970, seq.MaxOffset(), 1e-9)
	assert.Zero(t, seq.Offset(0))
	assert.InDelta(t, -2970, seq.Offset(2), 1e-3)

	var frames []*image.RGBA
	for {
		f, ok := seq.Next()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	require.NoError(t, seq.Err())
	require.Len(t, frames, 3)
	assert.Zero(t, seq.Remaining())

	for _, f := range frames {
		assert.Equal(t, image.Rect(0, 0, 1080, 1350), f.Bounds())
	}
	assert.Equal(t, red, frames[0].RGBAAt(540, 675))
	assert.Equal(t, blue, frames[2].RGBAAt(540, 675))
	assert.NotSame(t, frames[0], frames[1])

	// exhausted sequences stay exhausted
	_, ok := seq.Next()
	assert.False(t, ok)
}

func TestSequenceNoRoomToPan(t *testing.T) {
	seq, err := Plan(shortConfig(), splitSource(t, 50, 100), geometry.Ratio4x5, watermark.Settings{})
	require.NoError(t, err)
	assert.Less(t, seq.MaxOffset(), 0.0)

	for i := 0; i < seq.Len(); i++ {
		assert.Zero(t, seq.Offset(i))
		f, ok := seq.Next()
		require.True(t, ok)
		assert.Equal(t, red, f.RGBAAt(100, 675))
		assert.Equal(t, black, f.RGBAAt(1000, 675))
	}
}

func TestSequenceSingleFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationSec = 1
	cfg.FPS = 1
	cfg.Direction = RightToLeft
	seq, err := Plan(cfg, splitSource(t, 300, 100), geometry.Ratio4x5, watermark.Settings{})
	require.NoError(t, err)
	require.Equal(t, 1, seq.Len())
	assert.InDelta(t, -2970, seq.Offset(0), 1e-9)
}

func TestSequenceWatermarkUsesCanvas(t *testing.T) {
	mark := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(mark, mark.Bounds(), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)
	wm := watermark.DefaultSettings()
	wm.Kind = watermark.KindImage
	wm.Image = mark

	seq, err := Plan(shortConfig(), splitSource(t, 300, 100), geometry.Ratio3x4, wm)
	require.NoError(t, err)
	f, ok := seq.Next()
	require.True(t, ok)
	w, h := seq.Size()
	assert.Equal(t, color.RGBA{G: 255, A: 255}, f.RGBAAt(w-1, h-1))
	assert.Equal(t, red, f.RGBAAt(w-11, h-11))
}

func TestPlanRejects(t *testing.T) {
	src := splitSource(t, 300, 100)

	bad := shortConfig()
	bad.FPS = 0
	_, err := Plan(bad, src, geometry.Ratio4x5, watermark.Settings{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Plan(shortConfig(), nil, geometry.Ratio4x5, watermark.Settings{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Plan(shortConfig(), src, geometry.Ratio4x5, watermark.Settings{Kind: watermark.Kind(5)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
