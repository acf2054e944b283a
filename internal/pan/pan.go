// Package pan plans the frames of a horizontal pan across a panorama.
package pan

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid pan video config")

type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
	LeftRightLeft
	RightLeftRight
)

func (d Direction) String() string {
	switch d {
	case RightToLeft:
		return "rtl"
	case LeftRightLeft:
		return "lrl"
	case RightLeftRight:
		return "rlr"
	default:
		return "ltr"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ltr":
		return LeftToRight, nil
	case "rtl":
		return RightToLeft, nil
	case "lrl":
		return LeftRightLeft, nil
	case "rlr":
		return RightLeftRight, nil
	default:
		return LeftToRight, fmt.Errorf("unknown pan direction: %q", s)
	}
}

type Format int

const (
	FormatMP4 Format = iota
	FormatWebM
)

func (f Format) String() string {
	if f == FormatWebM {
		return "webm"
	}
	return "mp4"
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mp4":
		return FormatMP4, nil
	case "webm":
		return FormatWebM, nil
	default:
		return FormatMP4, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, s)
	}
}

type Config struct {
	DurationSec float64
	FPS         int
	BitrateBps  int
	Easing      Easing
	Direction   Direction
	Format      Format
}

func DefaultConfig() Config {
	return Config{
		DurationSec: 5,
		FPS:         30,
		BitrateBps:  8_000_000,
		Easing:      EaseLinear,
		Direction:   LeftToRight,
		Format:      FormatMP4,
	}
}

func (c Config) Validate() error {
	if c.DurationSec <= 0 || math.IsNaN(c.DurationSec) || math.IsInf(c.DurationSec, 0) {
		return fmt.Errorf("%w: duration %v", ErrInvalidConfig, c.DurationSec)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrInvalidConfig, c.FPS)
	}
	if c.BitrateBps <= 0 {
		return fmt.Errorf("%w: bitrate %d", ErrInvalidConfig, c.BitrateBps)
	}
	if c.Format != FormatMP4 && c.Format != FormatWebM {
		return fmt.Errorf("%w: format %d", ErrInvalidConfig, int(c.Format))
	}
	if c.FrameCount() < 1 {
		return fmt.Errorf("%w: %.3fs at %d fps yields no frames", ErrInvalidConfig, c.DurationSec, c.FPS)
	}
	return nil
}

// FrameCount is round(duration·fps).
func (c Config) FrameCount() int {
	return int(math.Round(c.DurationSec * float64(c.FPS)))
}

// Offset maps normalized time t to the horizontal draw offset in
// [-maxOffset, 0]. No room to pan, or an unknown direction, gives 0.
func Offset(t float64, dir Direction, maxOffset float64, e Easing) float64 {
	if maxOffset <= 0 {
		return 0
	}
	switch dir {
	case LeftToRight:
		return -maxOffset * e.Apply(t)
	case RightToLeft:
		return -maxOffset * (1 - e.Apply(t))
	case LeftRightLeft:
		if t < 0.5 {
			return -maxOffset * e.Apply(t*2)
		}
		return -maxOffset * (1 - e.Apply((t-0.5)*2))
	case RightLeftRight:
		if t < 0.5 {
			return -maxOffset * (1 - e.Apply(t*2))
		}
		return -maxOffset * e.Apply((t-0.5)*2)
	default:
		return 0
	}
}

// Progress is the normalized time of a frame; a single frame sits at t=0.
func Progress(frame, total int) float64 {
	if total <= 1 {
		return 0
	}
	return float64(frame) / float64(total-1)
}
