// Package transform resamples raster buffers through inverse coordinate
// mappings: translation, rotation and uniform scale.
package transform

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/barscan/internal/raster"
)

// Interpolation selects how a fractional source coordinate is reconstructed.
type Interpolation int

const (
	Nearest Interpolation = iota
	Bilinear
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("interpolation(%d)", int(i))
	}
}

// ParseInterpolation converts a configuration string into an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "nearest", "":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unknown interpolation %q", s)
	}
}

// DefaultFill is the value written where the inverse mapping leaves the source.
// White keeps out-of-frame samples in the background class after binarization.
const DefaultFill = raster.White

// Mapping maps a destination pixel coordinate to its source coordinate.
type Mapping func(x, y float64) (sx, sy float64)

// Sampler resamples buffers through a Mapping.
type Sampler struct {
	Interpolation Interpolation
	Fill          byte
	// Workers bounds row parallelism; zero uses GOMAXPROCS.
	Workers int
}

// NewSampler returns a sampler with the default white fill.
func NewSampler(interp Interpolation) Sampler {
	return Sampler{Interpolation: interp, Fill: DefaultFill}
}

// Center returns the geometric centre of a buffer in pixel coordinates.
func Center(b *raster.Buffer) (cx, cy float64) {
	return float64(b.Width-1) / 2, float64(b.Height-1) / 2
}

// TranslateMapping returns the inverse mapping of a shift by (dx, dy).
func TranslateMapping(dx, dy float64) Mapping {
	return func(x, y float64) (float64, float64) {
		return x - dx, y - dy
	}
}

// RotateMapping returns the inverse mapping of a rotation by angle radians
// about (cx, cy). Positive angles turn the content counter-clockwise as
// displayed, with y growing downwards.
func RotateMapping(angle, cx, cy float64) Mapping {
	sin, cos := math.Sincos(angle)
	return func(x, y float64) (float64, float64) {
		u, v := x-cx, y-cy
		return cx + u*cos - v*sin, cy + u*sin + v*cos
	}
}

// ScaleMapping returns the inverse mapping of a uniform zoom by factor about (cx, cy).
func ScaleMapping(factor, cx, cy float64) Mapping {
	return func(x, y float64) (float64, float64) {
		return cx + (x-cx)/factor, cy + (y-cy)/factor
	}
}

// Translate shifts src by (dx, dy) into dst.
func (s Sampler) Translate(dst, src *raster.Buffer, dx, dy float64) error {
	return s.Warp(dst, src, TranslateMapping(dx, dy))
}

// Rotate rotates src by angle radians about its centre into dst.
func (s Sampler) Rotate(dst, src *raster.Buffer, angle float64) error {
	cx, cy := Center(src)
	return s.RotateAbout(dst, src, angle, cx, cy)
}

// RotateAbout rotates src by angle radians about (cx, cy) into dst.
func (s Sampler) RotateAbout(dst, src *raster.Buffer, angle, cx, cy float64) error {
	return s.Warp(dst, src, RotateMapping(angle, cx, cy))
}

// Scale zooms src by factor about its centre into dst.
func (s Sampler) Scale(dst, src *raster.Buffer, factor float64) error {
	cx, cy := Center(src)
	return s.ScaleAbout(dst, src, factor, cx, cy)
}

// ScaleAbout zooms src by factor about (cx, cy) into dst.
func (s Sampler) ScaleAbout(dst, src *raster.Buffer, factor, cx, cy float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("scale: invalid factor %v", factor)
	}
	return s.Warp(dst, src, ScaleMapping(factor, cx, cy))
}

// Warp fills every pixel of dst by sampling src at m(x, y). dst and src must
// share geometry and must not alias.
func (s Sampler) Warp(dst, src *raster.Buffer, m Mapping) error {
	if err := raster.SameGeometry(dst, src); err != nil {
		return err
	}
	if len(dst.Pix) > 0 && &dst.Pix[0] == &src.Pix[0] {
		return &raster.GeometryError{
			Operation: "warp",
			Err:       fmt.Errorf("%w: destination aliases source", raster.ErrInvalidGeometry),
		}
	}

	raster.ForEachRow(dst.Height, s.Workers, func(y int) {
		for x := 0; x < dst.Width; x++ {
			sx, sy := m(float64(x), float64(y))
			bl, g, r, ok := s.sample(src, sx, sy)
			if !ok {
				bl, g, r = s.Fill, s.Fill, s.Fill
			}
			dst.SetPixel(x, y, bl, g, r)
		}
	})
	return nil
}

// Sample reconstructs the colour at a fractional source coordinate. ok is
// false when the coordinate falls outside src.
func (s Sampler) Sample(src *raster.Buffer, sx, sy float64) (blue, green, red byte, ok bool) {
	return s.sample(src, sx, sy)
}

func (s Sampler) sample(src *raster.Buffer, sx, sy float64) (byte, byte, byte, bool) {
	if math.IsNaN(sx) || math.IsNaN(sy) {
		return 0, 0, 0, false
	}
	if s.Interpolation == Bilinear {
		return bilinear(src, sx, sy)
	}
	x, y := int(math.Round(sx)), int(math.Round(sy))
	if !src.In(x, y) {
		return 0, 0, 0, false
	}
	bl, g, r := src.Pixel(x, y)
	return bl, g, r, true
}

// bilinear blends the four samples around (sx, sy). A neighbour with zero
// weight is never read, so integral coordinates on the last row or column
// still resolve.
func bilinear(src *raster.Buffer, sx, sy float64) (byte, byte, byte, bool) {
	x0f, y0f := math.Floor(sx), math.Floor(sy)
	fx, fy := sx-x0f, sy-y0f
	x0, y0 := int(x0f), int(y0f)
	x1, y1 := x0, y0
	if fx > 0 {
		x1 = x0 + 1
	}
	if fy > 0 {
		y1 = y0 + 1
	}
	if !src.In(x0, y0) || !src.In(x1, y1) {
		return 0, 0, 0, false
	}

	var out [raster.Channels]byte
	for ch := 0; ch < raster.Channels; ch++ {
		top := lerp(float64(src.Get(x0, y0, ch)), float64(src.Get(x1, y0, ch)), fx)
		bottom := lerp(float64(src.Get(x0, y1, ch)), float64(src.Get(x1, y1, ch)), fx)
		v := lerp(top, bottom, fy)
		out[ch] = byte(math.Min(255, math.Max(0, math.Round(v))))
	}
	return out[0], out[1], out[2], true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
