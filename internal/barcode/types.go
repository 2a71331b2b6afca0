package barcode

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatEAN13
	FormatEAN8
	FormatUPCA
	FormatUPCE
)

func (f Format) String() string {
	switch f {
	case FormatEAN13:
		return "EAN-13"
	case FormatEAN8:
		return "EAN-8"
	case FormatUPCA:
		return "UPC-A"
	case FormatUPCE:
		return "UPC-E"
	default:
		return "unknown"
	}
}

// Point is a sub-pixel position in image coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a sub-pixel extent.
type Size struct {
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Region is the located geometry of a barcode.
type Region struct {
	Center Point `json:"center" yaml:"center"`
	Size   Size  `json:"size" yaml:"size"`
	// Angle is the correction in radians that derotates the barcode, so the
	// symbol itself appears turned by -Angle.
	Angle float64 `json:"angle" yaml:"angle"`
	// Bounds is the unadjusted foreground bounding box in the coordinates of
	// the buffer the region was located in.
	Bounds image.Rectangle `json:"-" yaml:"-"`
}

// Empty reports whether the region carries no geometry.
func (r Region) Empty() bool { return r.Size.W <= 0 || r.Size.H <= 0 }

// Corners returns the four corners of the rotated rectangle in clockwise
// order starting top-left, following the skew of the symbol.
func (r Region) Corners() [4]Point {
	hw, hh := r.Size.W/2, r.Size.H/2
	sin, cos := math.Sincos(-r.Angle)
	rel := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var out [4]Point
	for i, p := range rel {
		out[i] = Point{
			X: r.Center.X + p[0]*cos + p[1]*sin,
			Y: r.Center.Y - p[0]*sin + p[1]*cos,
		}
	}
	return out
}

// BitsPerHalf is the number of modules encoding six digits.
const BitsPerHalf = 42

// Bits holds the modules of one symbol half; true is a bar.
type Bits [BitsPerHalf]bool

// String renders the bits as '1' and '0' characters.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(BitsPerHalf)
	for _, v := range b {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBits parses a 42 character string of '0' and '1'.
func ParseBits(s string) (Bits, error) {
	var b Bits
	if len(s) != BitsPerHalf {
		return b, fmt.Errorf("bits: want %d characters, got %d", BitsPerHalf, len(s))
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '1':
			b[i] = true
		case '0':
		default:
			return b, fmt.Errorf("bits: invalid character %q at %d", s[i], i)
		}
	}
	return b, nil
}

// Codeword returns the i-th 7-bit codeword, most significant bit first.
func (b Bits) Codeword(i int) uint8 {
	var c uint8
	for _, v := range b[i*7 : i*7+7] {
		c <<= 1
		if v {
			c |= 1
		}
	}
	return c
}

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool
	// ROI optionally restricts decoding to a sub-rectangle of the image.
	ROI image.Rectangle
}

// Result represents a symbol decoded by a Backend.
type Result struct {
	Type  Format
	Value string
	BBox  image.Rectangle
}

// Backend is a pluggable whole-image barcode decoder.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// EAN13 returns the value as a 13-digit EAN number, widening UPC-A codes
// with their implicit leading zero.
func (r Result) EAN13() string {
	if r.Type == FormatUPCA && len(r.Value) == 12 {
		return "0" + r.Value
	}
	return r.Value
}
