package pipeline

import (
	"context"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	require.NoError(t, err)
	r, g, b := c.RGB255()
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})

	_, err = ParseColor("red")
	assert.Error(t, err)
}

func TestRenderOverlay_DrawsRegionOutline(t *testing.T) {
	img := testutil.CreateTestImage(100, 80, color.White)
	res := &Result{
		Width: 100, Height: 80,
		Region: barcode.Region{Center: barcode.Point{X: 50, Y: 40}, Size: barcode.Size{W: 60, H: 40}},
	}
	opts := DefaultOverlayOptions()
	opts.Thickness = 1
	out, err := RenderOverlay(img, res, opts)
	require.NoError(t, err)

	r, g, b, _ := out.At(20, 40).RGBA()
	assert.Equal(t, [3]uint32{0, 0xc8c8, 0x5353}, [3]uint32{r, g, b})
	r, _, _, _ = out.At(50, 40).RGBA()
	assert.Equal(t, uint32(0xffff), r, "interior untouched")

	res.Mismatch = true
	out, err = RenderOverlay(img, res, opts)
	require.NoError(t, err)
	r, g, _, _ = out.At(20, 40).RGBA()
	assert.Equal(t, uint32(0xd5d5), r)
	assert.Zero(t, g)
}

func TestRenderOverlay_EdgeCases(t *testing.T) {
	img := testutil.CreateTestImage(10, 10, color.White)

	_, err := RenderOverlay(nil, nil, DefaultOverlayOptions())
	assert.ErrorIs(t, err, ErrNilInput)

	out, err := RenderOverlay(img, nil, DefaultOverlayOptions())
	require.NoError(t, err)
	assert.True(t, testutil.CompareImages(img, out, 0))

	_, err = RenderOverlay(img, &Result{}, OverlayOptions{Color: "nope"})
	assert.Error(t, err)
}

func TestRenderOverlay_DecodedScene(t *testing.T) {
	p := uprightPipeline(t)
	img := testutil.RenderScene(t, testutil.StandardScenes[0])
	res, err := p.Process(context.Background(), img)
	require.NoError(t, err)

	out, err := RenderOverlay(img, res, DefaultOverlayOptions())
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), out.Bounds().Size())
	assert.False(t, testutil.CompareImages(img, out, 0))
}
