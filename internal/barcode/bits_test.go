package barcode

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/projection"
	"github.com/MeKo-Tech/barscan/internal/raster"
	"github.com/MeKo-Tech/barscan/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binarizedScene(t *testing.T, number string, opts RenderOptions) (*raster.Buffer, projection.Profile) {
	t.Helper()
	img, err := Render(number, opts)
	require.NoError(t, err)
	return binarize(img)
}

func binarize(img image.Image) (*raster.Buffer, projection.Profile) {
	bin := raster.FromImage(img)
	threshold.BinarizeOtsu(bin)
	return bin, projection.Project(bin)
}

func TestProjectionExtractor_DecodesUprightScene(t *testing.T) {
	for _, n := range []string{"4006381333931", "5901234123457", "0012345678905"} {
		bin, p := binarizedScene(t, n, DefaultRenderOptions())

		ex := SelectExtractor(false, DefaultExtractorConfig())
		assert.Equal(t, "projection", ex.Name())
		left, right, err := ex.Extract(bin, p)
		require.NoError(t, err)

		sym, err := DecodeSymbol(left, right)
		require.NoError(t, err)
		assert.Equal(t, n, sym.Number)
	}
}

func TestRowExtractor_DecodesUprightScene(t *testing.T) {
	bin, p := binarizedScene(t, "9780201379624", DefaultRenderOptions())

	ex := SelectExtractor(true, DefaultExtractorConfig())
	assert.Equal(t, "row", ex.Name())
	left, right, err := ex.Extract(bin, p)
	require.NoError(t, err)

	sym, err := DecodeSymbol(left, right)
	require.NoError(t, err)
	assert.Equal(t, "9780201379624", sym.Number)
}

func TestExtractors_AgreeOnWideModules(t *testing.T) {
	opts := DefaultRenderOptions()
	opts.ModuleWidth = 7
	bin, p := binarizedScene(t, "7622210449283", opts)

	cfg := DefaultExtractorConfig()
	cfg.Rows = 5
	l1, r1, err := NewProjectionExtractor(cfg).Extract(bin, p)
	require.NoError(t, err)
	l2, r2, err := NewRowExtractor(cfg).Extract(bin, p)
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
	assert.Equal(t, r1, r2)
}

func TestExtract_EmptyBufferIsMalformed(t *testing.T) {
	bin := raster.NewBuffer(200, 100)
	p := projection.Project(bin)

	_, _, err := NewProjectionExtractor(DefaultExtractorConfig()).Extract(bin, p)
	assert.ErrorIs(t, err, ErrMalformedBarcode)
	_, _, err = NewRowExtractor(DefaultExtractorConfig()).Extract(bin, p)
	assert.ErrorIs(t, err, ErrMalformedBarcode)
}

func TestExtract_NoiseBelowThresholdIsMalformed(t *testing.T) {
	signal := make([]int, 300)
	for i := 100; i < 110; i++ {
		signal[i] = 50
	}
	p := projection.Profile{Vertical: signal, Horizontal: make([]int, 10)}
	_, _, err := NewProjectionExtractor(DefaultExtractorConfig()).Extract(nil, p)
	assert.ErrorIs(t, err, ErrMalformedBarcode)
}

func TestEstimateBarWidth(t *testing.T) {
	assert.Equal(t, 3, EstimateBarWidth([]int{0, 60, 70, 80, 10, 90}, 50))
	assert.Equal(t, 0, EstimateBarWidth([]int{0, 10}, 50))
}

func TestSampleRows_ClipsToBuffer(t *testing.T) {
	b := raster.NewBuffer(4, 3)
	b.SetGray(1, 0, raster.Black)
	b.SetGray(1, 1, raster.Black)
	b.SetGray(2, 1, raster.Black)

	assert.Equal(t, []int{0, 100, 100, 0}, SampleRows(b, 1, 1))
	assert.Equal(t, []int{0, 100, 50, 0}, SampleRows(b, 0, 3))
}

func TestRender_LayoutMatchesImage(t *testing.T) {
	opts := DefaultRenderOptions()
	img, err := Render("400638133393", opts)
	require.NoError(t, err)

	l := opts.Layout()
	assert.Equal(t, image.Rect(0, 0, l.Width, l.Height), img.Bounds())
	// First start guard bar.
	assert.Equal(t, uint8(0), img.NRGBAAt(l.SymbolStart, l.BarTop).R)
	assert.Equal(t, uint8(255), img.NRGBAAt(l.SymbolStart-1, l.BarTop).R)
	// Guards extend below the data bars.
	assert.Equal(t, uint8(0), img.NRGBAAt(l.SymbolStart, l.GuardBottom-1).R)

	_, err = Render("12ab", opts)
	assert.ErrorIs(t, err, ErrInvalidNumber)
}
