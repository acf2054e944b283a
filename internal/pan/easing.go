package pan

import (
	"fmt"
	"strings"

	"github.com/tanema/gween/ease"
)

type Easing int

const (
	EaseLinear Easing = iota
	EaseInOut
	EaseSmooth
	EaseOut
)

var easingNames = map[Easing]string{
	EaseLinear: "linear",
	EaseInOut:  "ease-in-out",
	EaseSmooth: "smooth",
	EaseOut:    "ease-out",
}

func (e Easing) String() string {
	if n, ok := easingNames[e]; ok {
		return n
	}
	return easingNames[EaseLinear]
}

// ParseEasing maps a curve name to its Easing. Unknown names yield
// EaseLinear together with an error so callers may choose to fall back.
func ParseEasing(s string) (Easing, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EaseLinear, nil
	}
	for e, n := range easingNames {
		if n == s {
			return e, nil
		}
	}
	return EaseLinear, fmt.Errorf("unknown easing: %q", s)
}

// unit adapts a gween curve to t∈[0,1] → [0,1].
func unit(fn ease.TweenFunc, t float64) float64 {
	return float64(fn(float32(t), 0, 1, 1))
}

// Apply evaluates the curve at t. f(0)=0 and f(1)=1 for every curve.
func (e Easing) Apply(t float64) float64 {
	switch e {
	case EaseInOut:
		return unit(ease.InOutQuad, t)
	case EaseSmooth:
		return t * t * (3 - 2*t)
	case EaseOut:
		return unit(ease.OutQuad, t)
	default:
		return unit(ease.Linear, t)
	}
}
