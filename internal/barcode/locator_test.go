package barcode

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/projection"
	"github.com/MeKo-Tech/barscan/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentroid_OneBasedWeightedMean(t *testing.T) {
	c, err := Centroid([]int{0, 2, 0, 2})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, c, 1e-12)
}

func TestCentroid_EmptyImageIsMalformed(t *testing.T) {
	p := projection.Project(raster.NewBuffer(30, 20))
	for _, c := range p.Vertical {
		require.Zero(t, c)
	}
	for _, c := range p.Horizontal {
		require.Zero(t, c)
	}

	_, err := Centroid(p.Vertical)
	assert.ErrorIs(t, err, ErrMalformedBarcode)

	_, err = Locate(p, 0, DefaultLocatorConfig())
	assert.ErrorIs(t, err, ErrMalformedBarcode)
}

func blockProfile(w, h int, r image.Rectangle) projection.Profile {
	b := raster.NewBuffer(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.SetGray(x, y, raster.Black)
		}
	}
	return projection.Project(b)
}

func TestLocate_UprightShrinksHeight(t *testing.T) {
	p := blockProfile(100, 80, image.Rect(10, 20, 60, 42))
	r, err := Locate(p, 0, DefaultLocatorConfig())
	require.NoError(t, err)

	assert.InDelta(t, 34.5, r.Center.X, 1e-9)
	assert.InDelta(t, 30.5, r.Center.Y, 1e-9)
	assert.InDelta(t, 50, r.Size.W, 1e-9)
	assert.InDelta(t, 22/1.1, r.Size.H, 1e-9)
	assert.Equal(t, image.Rect(10, 20, 60, 42), r.Bounds)
	assert.Equal(t, 0.0, r.Angle)
}

func TestLocate_DerotatedWidensAndNudges(t *testing.T) {
	p := blockProfile(100, 80, image.Rect(10, 20, 60, 42))
	cfg := DefaultLocatorConfig()
	r, err := Locate(p, 0.2, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 60, r.Size.W, 1e-9)
	assert.InDelta(t, 24.2, r.Size.H, 1e-9)
	assert.InDelta(t, 30.5-0.05*24.2, r.Center.Y, 1e-9)
	assert.Equal(t, 0.2, r.Angle)
}

func TestBarBand(t *testing.T) {
	top, bottom, ok := BarBand([]int{0, 3, 10, 12, 11, 5, 2, 0})
	require.True(t, ok)
	assert.Equal(t, 2, top)
	assert.Equal(t, 4, bottom)

	_, _, ok = BarBand([]int{0, 0})
	assert.False(t, ok)
}

func TestBarSpan(t *testing.T) {
	start, end, ok := BarSpan([]int{0, 2, 9, 10, 0, 10, 3}, 10)
	require.True(t, ok)
	assert.Equal(t, 2, start)
	assert.Equal(t, 6, end)

	_, _, ok = BarSpan([]int{1, 2}, 10)
	assert.False(t, ok)
}

func TestRegionCorners_FollowSymbolSkew(t *testing.T) {
	r := Region{Center: Point{X: 50, Y: 50}, Size: Size{W: 20, H: 10}}
	c := r.Corners()
	assert.InDelta(t, 40, c[0].X, 1e-9)
	assert.InDelta(t, 45, c[0].Y, 1e-9)
	assert.InDelta(t, 60, c[2].X, 1e-9)
	assert.InDelta(t, 55, c[2].Y, 1e-9)
	assert.False(t, r.Empty())
	assert.True(t, Region{}.Empty())
}
