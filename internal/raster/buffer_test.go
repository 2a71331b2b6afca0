package raster

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer_AlignedStrideHasPadding(t *testing.T) {
	b := NewBuffer(5, 3)
	assert.Equal(t, 16, b.Stride)
	assert.Equal(t, 1, b.Padding())
	assert.Len(t, b.Pix, 48)
	require.NoError(t, b.Validate())

	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, White, b.Get(x, y, ChannelR))
		}
	}
}

func TestNewBufferWithStride_RejectsShortStride(t *testing.T) {
	_, err := NewBufferWithStride(4, 4, 11)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	var gerr *GeometryError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "new", gerr.Operation)
}

func TestValidate_DetectsStorageMismatch(t *testing.T) {
	b := NewBuffer(4, 4)
	b.Pix = b.Pix[:len(b.Pix)-1]
	assert.ErrorIs(t, b.Validate(), ErrInvalidGeometry)

	var nilBuf *Buffer
	assert.ErrorIs(t, nilBuf.Validate(), ErrInvalidGeometry)
}

func TestAccessor_UsesStrideNotWidth(t *testing.T) {
	b, err := NewBufferWithStride(2, 2, 10)
	require.NoError(t, err)

	b.SetPixel(1, 1, 10, 20, 30)
	assert.Equal(t, byte(10), b.Pix[1*10+1*3+ChannelB])
	assert.Equal(t, byte(20), b.Pix[1*10+1*3+ChannelG])
	assert.Equal(t, byte(30), b.Pix[1*10+1*3+ChannelR])

	bl, g, r := b.Pixel(1, 1)
	assert.Equal(t, []byte{10, 20, 30}, []byte{bl, g, r})
}

func TestAccessor_PanicsOutOfBounds(t *testing.T) {
	b := NewBuffer(3, 3)
	assert.Panics(t, func() { b.Get(3, 0, 0) })
	assert.Panics(t, func() { b.Get(0, -1, 0) })
	assert.Panics(t, func() { b.Set(0, 0, Channels, 1) })
	assert.NotPanics(t, func() { b.Get(2, 2, ChannelR) })
}

func TestGray_RoundsAverage(t *testing.T) {
	b := NewBuffer(1, 1)
	b.SetPixel(0, 0, 1, 2, 2)
	assert.Equal(t, byte(2), b.Gray(0, 0))
	b.SetPixel(0, 0, 1, 1, 2)
	assert.Equal(t, byte(1), b.Gray(0, 0))
}

func TestCloneAndCopyFrom(t *testing.T) {
	a := NewBuffer(4, 2)
	a.SetGray(1, 1, 7)

	c := a.Clone()
	c.SetGray(0, 0, 9)
	assert.Equal(t, White, a.Get(0, 0, 0))
	assert.Equal(t, byte(7), c.Get(1, 1, 0))

	d := a.Blank()
	require.NoError(t, d.CopyFrom(c))
	assert.Equal(t, c.Pix, d.Pix)

	assert.Error(t, d.CopyFrom(NewBuffer(3, 2)))
}

func TestImageRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(2, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	img.SetNRGBA(0, 0, color.NRGBA{A: 0})

	b := FromImage(img)
	assert.Equal(t, 3, b.Width)
	assert.Equal(t, 2, b.Height)

	bl, g, r := b.Pixel(2, 1)
	assert.Equal(t, []byte{50, 100, 200}, []byte{bl, g, r})
	// Fully transparent pixels composite onto white.
	assert.Equal(t, White, b.Get(0, 0, ChannelR))

	out := b.ToImage()
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(2, 1))
}

func TestCrop_ClipsToBounds(t *testing.T) {
	b := NewBuffer(5, 5)
	b.SetGray(4, 4, 0)
	c := b.Crop(image.Rect(3, 3, 10, 10))
	assert.Equal(t, 2, c.Width)
	assert.Equal(t, 2, c.Height)
	assert.True(t, c.IsForeground(1, 1))
	assert.False(t, c.IsForeground(0, 0))
}
