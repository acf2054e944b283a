package watermark

import (
	"fmt"
	"strings"
)

// Anchor is one cell of the 3x3 placement grid.
type Anchor int

const (
	TopLeft Anchor = iota
	TopCenter
	TopRight
	MiddleLeft
	Center
	MiddleRight
	BottomLeft
	BottomCenter
	BottomRight
)

var anchorNames = [...]string{
	TopLeft:      "top-left",
	TopCenter:    "top-center",
	TopRight:     "top-right",
	MiddleLeft:   "middle-left",
	Center:       "center",
	MiddleRight:  "middle-right",
	BottomLeft:   "bottom-left",
	BottomCenter: "bottom-center",
	BottomRight:  "bottom-right",
}

func (a Anchor) String() string {
	if a < TopLeft || a > BottomRight {
		return fmt.Sprintf("anchor(%d)", int(a))
	}
	return anchorNames[a]
}

func ParseAnchor(s string) (Anchor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range anchorNames {
		if name == s {
			return Anchor(i), nil
		}
	}
	return BottomRight, fmt.Errorf("unknown watermark position: %q", s)
}

// column and row are 0, 1 or 2.
func (a Anchor) column() int { return int(a) % 3 }
func (a Anchor) row() int    { return int(a) / 3 }

// Position returns the top-left origin of content anchored inside a canvas,
// shifted by the signed offsets. The result is not clamped to the canvas.
func Position(contentW, contentH, canvasW, canvasH float64, a Anchor, offsetX, offsetY float64) (x, y float64) {
	x = axis(a.column(), contentW, canvasW)
	y = axis(a.row(), contentH, canvasH)
	return x + offsetX, y + offsetY
}

func axis(cell int, content, canvas float64) float64 {
	switch cell {
	case 1:
		return (canvas - content) / 2
	case 2:
		return canvas - content
	default:
		return 0
	}
}
