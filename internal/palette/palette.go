// Package palette derives a small set of representative colours from an image.
package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

const (
	// DefaultSize is the number of swatches offered for a loaded panorama.
	DefaultSize = 5
	// SampleStride samples every n-th pixel of the row-major pixel buffer.
	SampleStride = 10
	// Iterations is the fixed number of k-means refinement passes.
	Iterations = 5
)

// Palette is an ordered list of "#rrggbb" colours.
type Palette []string

// Colors parses the palette back into opaque colours. Invalid entries are skipped.
func (p Palette) Colors() []color.NRGBA {
	out := make([]color.NRGBA, 0, len(p))
	for _, h := range p {
		c, err := ParseHex(h)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseHex parses "#rrggbb" (or "#rgb") into an opaque colour.
func ParseHex(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[0] == '#' {
		s = "#" + string([]byte{s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// HexOr is ParseHex with a fallback for empty or malformed input.
func HexOr(s string, fallback color.NRGBA) color.NRGBA {
	c, err := ParseHex(s)
	if err != nil {
		return fallback
	}
	return c
}

func (p Palette) String() string {
	return strings.Join(p, " ")
}

type Method int

const (
	// MethodSampled is the fixed five-pass k-means over a strided sample.
	MethodSampled Method = iota
	// MethodDominant uses dominantcolor's weighted clustering.
	MethodDominant
	// MethodConverged runs k-means until centroids settle, ordered by population.
	MethodConverged
)

func (m Method) String() string {
	switch m {
	case MethodDominant:
		return "dominant"
	case MethodConverged:
		return "converged"
	default:
		return "sampled"
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sampled", "kmeans":
		return MethodSampled, nil
	case "dominant":
		return MethodDominant, nil
	case "converged":
		return MethodConverged, nil
	default:
		return MethodSampled, fmt.Errorf("unknown palette method: %s", s)
	}
}

type Options struct {
	K      int
	Method Method
	// Rand seeds centroid selection. Nil means a time-seeded source.
	Rand *rand.Rand
}

// ExtractWith dispatches to the configured method.
func ExtractWith(img image.Image, opts Options) Palette {
	k := opts.K
	if k <= 0 {
		k = DefaultSize
	}
	switch opts.Method {
	case MethodDominant:
		return extractDominant(img, k)
	case MethodConverged:
		return extractConverged(img, k)
	default:
		return Extract(img, k, opts.Rand)
	}
}

// Extract clusters a strided sample of the opaque pixels of img into k
// colours. A fully transparent image yields an empty palette. Centroids whose
// cluster empties out keep their previous value, so duplicates are possible.
func Extract(img image.Image, k int, rng *rand.Rand) Palette {
	if k <= 0 {
		return Palette{}
	}
	samples := sample(img)
	if len(samples) == 0 {
		return Palette{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	centroids := make([]clusters.Coordinates, k)
	for i := range centroids {
		pick := samples[rng.Intn(len(samples))]
		centroids[i] = slices.Clone(pick)
	}

	sums := make([][3]float64, k)
	counts := make([]int, k)
	for iter := 0; iter < Iterations; iter++ {
		clear(sums)
		clear(counts)
		for _, p := range samples {
			best := nearest(p, centroids)
			sums[best][0] += p[0]
			sums[best][1] += p[1]
			sums[best][2] += p[2]
			counts[best]++
		}
		for i, c := range centroids {
			if counts[i] == 0 {
				continue
			}
			n := float64(counts[i])
			c[0] = math.Round(sums[i][0] / n)
			c[1] = math.Round(sums[i][1] / n)
			c[2] = math.Round(sums[i][2] / n)
		}
	}

	out := make(Palette, k)
	for i, c := range centroids {
		out[i] = hex(c[0], c[1], c[2])
	}
	return out
}

// nearest returns the index of the closest centroid; ties keep the lowest index.
func nearest(p clusters.Coordinates, centroids []clusters.Coordinates) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := p.Distance(c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// sample walks the pixel buffer in row-major order taking every SampleStride-th
// pixel and dropping fully transparent ones. Channels are 0..255, unpremultiplied.
func sample(img image.Image) []clusters.Coordinates {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h
	if total <= 0 {
		return nil
	}

	out := make([]clusters.Coordinates, 0, total/SampleStride+1)
	for i := 0; i < total; i += SampleStride {
		x := b.Min.X + i%w
		y := b.Min.Y + i/w
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		if c.A == 0 {
			continue
		}
		out = append(out, clusters.Coordinates{float64(c.R), float64(c.G), float64(c.B)})
	}
	return out
}

func hex(r, g, b float64) string {
	clamp := func(v float64) uint8 {
		return uint8(max(0, min(255, v)))
	}
	c, _ := colorful.MakeColor(color.RGBA{R: clamp(r), G: clamp(g), B: clamp(b), A: 255})
	return c.Hex()
}

func extractDominant(img image.Image, k int) Palette {
	if len(sample(img)) == 0 {
		return Palette{}
	}
	found := dominantcolor.FindN(img, k)
	out := make(Palette, 0, len(found))
	for _, c := range found {
		out = append(out, hex(float64(c.R), float64(c.G), float64(c.B)))
	}
	return out
}

func extractConverged(img image.Image, k int) Palette {
	samples := sample(img)
	if len(samples) == 0 {
		return Palette{}
	}
	dataset := make(clusters.Observations, 0, len(samples))
	for _, s := range samples {
		dataset = append(dataset, s)
	}
	k = min(k, len(dataset))

	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil || len(cc) == 0 {
		return Palette{}
	}
	slices.SortStableFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	out := make(Palette, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 {
			continue
		}
		out = append(out, hex(math.Round(c.Center[0]), math.Round(c.Center[1]), math.Round(c.Center[2])))
	}
	return out
}

// SortByBrightness orders colours from darkest to brightest by relative luminance.
func SortByBrightness(p Palette) Palette {
	out := slices.Clone(p)
	lum := func(h string) float64 {
		c, err := colorful.Hex(h)
		if err != nil {
			return 0
		}
		r, g, b := c.LinearRgb()
		return 0.2126*r + 0.7152*g + 0.0722*b
	}
	slices.SortStableFunc(out, func(a, b string) int {
		la, lb := lum(a), lum(b)
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
	return out
}
