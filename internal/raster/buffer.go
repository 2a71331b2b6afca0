// Package raster provides the BGR pixel buffer every other stage of the
// decoder operates on, together with the bordered-iteration helper and the
// neighbourhood filters built on top of it.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Channels is the fixed number of interleaved channels per pixel.
const Channels = 3

// Channel offsets within a pixel. Pixels are stored in BGR order.
const (
	ChannelB = 0
	ChannelG = 1
	ChannelR = 2
)

// Foreground and background intensities of a binary buffer.
const (
	Black byte = 0
	White byte = 255
)

// GeometryError reports a buffer whose layout violates the stride invariants,
// or two buffers that were expected to share the same geometry.
type GeometryError struct {
	Operation string
	Err       error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("raster geometry error in %s: %v", e.Operation, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// ErrInvalidGeometry is wrapped by every GeometryError.
var ErrInvalidGeometry = errors.New("invalid buffer geometry")

// Buffer is an owned, interleaved BGR raster. Rows are Stride bytes apart and
// may carry trailing padding beyond Width*Channels.
type Buffer struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// AlignedStride returns the 4-byte aligned row size for the given width.
func AlignedStride(width int) int {
	return (width*Channels + 3) &^ 3
}

// NewBuffer allocates a white buffer with a 4-byte aligned stride.
func NewBuffer(width, height int) *Buffer {
	b, err := NewBufferWithStride(width, height, AlignedStride(width))
	if err != nil {
		panic(err)
	}
	return b
}

// NewBufferWithStride allocates a white buffer with an explicit stride.
func NewBufferWithStride(width, height, stride int) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, &GeometryError{
			Operation: "new",
			Err:       fmt.Errorf("%w: negative size %dx%d", ErrInvalidGeometry, width, height),
		}
	}
	if stride < width*Channels {
		return nil, &GeometryError{
			Operation: "new",
			Err:       fmt.Errorf("%w: stride %d below row size %d", ErrInvalidGeometry, stride, width*Channels),
		}
	}
	b := &Buffer{Width: width, Height: height, Stride: stride, Pix: make([]byte, stride*height)}
	b.Fill(White, White, White)
	return b, nil
}

// Validate checks the stride and storage invariants.
func (b *Buffer) Validate() error {
	if b == nil {
		return &GeometryError{Operation: "validate", Err: fmt.Errorf("%w: nil buffer", ErrInvalidGeometry)}
	}
	if b.Width < 0 || b.Height < 0 {
		return &GeometryError{
			Operation: "validate",
			Err:       fmt.Errorf("%w: negative size %dx%d", ErrInvalidGeometry, b.Width, b.Height),
		}
	}
	if b.Stride < b.Width*Channels {
		return &GeometryError{
			Operation: "validate",
			Err:       fmt.Errorf("%w: stride %d below row size %d", ErrInvalidGeometry, b.Stride, b.Width*Channels),
		}
	}
	if len(b.Pix) != b.Stride*b.Height {
		return &GeometryError{
			Operation: "validate",
			Err:       fmt.Errorf("%w: storage holds %d bytes, want %d", ErrInvalidGeometry, len(b.Pix), b.Stride*b.Height),
		}
	}
	return nil
}

// SameGeometry reports an error unless a and b have identical width, height and stride.
func SameGeometry(a, b *Buffer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if a.Width != b.Width || a.Height != b.Height || a.Stride != b.Stride {
		return &GeometryError{
			Operation: "compare",
			Err: fmt.Errorf("%w: %dx%d/%d vs %dx%d/%d", ErrInvalidGeometry,
				a.Width, a.Height, a.Stride, b.Width, b.Height, b.Stride),
		}
	}
	return nil
}

// Channels returns the number of channels per pixel.
func (b *Buffer) Channels() int { return Channels }

// RowStride returns the number of bytes per row including padding.
func (b *Buffer) RowStride() int { return b.Stride }

// Padding returns the trailing bytes at the end of every row.
func (b *Buffer) Padding() int { return b.Stride - b.Width*Channels }

// Bounds returns the pixel rectangle covered by the buffer.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

// In reports whether (x, y) addresses a pixel of the buffer.
func (b *Buffer) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// Offset returns the byte index of channel ch of pixel (x, y).
func (b *Buffer) Offset(x, y, ch int) int {
	if !b.In(x, y) || ch < 0 || ch >= Channels {
		panic(fmt.Sprintf("raster: access (%d,%d,%d) outside %dx%dx%d", x, y, ch, b.Width, b.Height, Channels))
	}
	return y*b.Stride + x*Channels + ch
}

// Get returns channel ch of pixel (x, y).
func (b *Buffer) Get(x, y, ch int) byte { return b.Pix[b.Offset(x, y, ch)] }

// Set stores v into channel ch of pixel (x, y).
func (b *Buffer) Set(x, y, ch int, v byte) { b.Pix[b.Offset(x, y, ch)] = v }

// Pixel returns the three channels of (x, y) in BGR order.
func (b *Buffer) Pixel(x, y int) (blue, green, red byte) {
	i := b.Offset(x, y, 0)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SetPixel stores all three channels of (x, y).
func (b *Buffer) SetPixel(x, y int, blue, green, red byte) {
	i := b.Offset(x, y, 0)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = blue, green, red
}

// SetGray stores v into every channel of (x, y).
func (b *Buffer) SetGray(x, y int, v byte) { b.SetPixel(x, y, v, v, v) }

// Gray returns the rounded average of the three channels of (x, y).
func (b *Buffer) Gray(x, y int) byte {
	bl, g, r := b.Pixel(x, y)
	return byte((int(bl) + int(g) + int(r) + 1) / 3)
}

// IsForeground reports whether every channel of (x, y) is black.
func (b *Buffer) IsForeground(x, y int) bool {
	bl, g, r := b.Pixel(x, y)
	return bl == Black && g == Black && r == Black
}

// Fill paints every pixel with the given colour. Padding bytes are left untouched.
func (b *Buffer) Fill(blue, green, red byte) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			b.SetPixel(x, y, blue, green, red)
		}
	}
}

// Clone returns a deep copy with the same geometry.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Stride: b.Stride, Pix: make([]byte, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// CopyFrom overwrites b with the pixels of src. Both buffers must share geometry.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if err := SameGeometry(b, src); err != nil {
		return err
	}
	copy(b.Pix, src.Pix)
	return nil
}

// Blank returns a white buffer with the same geometry as b.
func (b *Buffer) Blank() *Buffer {
	c, err := NewBufferWithStride(b.Width, b.Height, b.Stride)
	if err != nil {
		panic(err)
	}
	return c
}

// Crop copies the pixels inside r (clipped to the buffer) into a new buffer.
func (b *Buffer) Crop(r image.Rectangle) *Buffer {
	r = r.Intersect(b.Bounds())
	c := NewBuffer(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			bl, g, rd := b.Pixel(x, y)
			c.SetPixel(x-r.Min.X, y-r.Min.Y, bl, g, rd)
		}
	}
	return c
}

// FromImage converts any image into a new buffer. Alpha is composited onto white.
func FromImage(img image.Image) *Buffer {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	b := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.NRGBAAt(x, y)
			b.SetPixel(x, y, over(c.B, c.A), over(c.G, c.A), over(c.R, c.A))
		}
	}
	return b
}

func over(v, a byte) byte {
	return byte((int(v)*int(a) + int(White)*(255-int(a)) + 127) / 255)
}

// ToImage converts the buffer into an opaque NRGBA image.
func (b *Buffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			bl, g, r := b.Pixel(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: 255})
		}
	}
	return img
}
