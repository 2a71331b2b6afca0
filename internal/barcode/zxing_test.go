package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZXingBackend_AgreesWithRenderer(t *testing.T) {
	for _, n := range []string{"4006381333931", "9780201379624"} {
		img, err := Render(n, DefaultRenderOptions())
		require.NoError(t, err)

		results, err := NewZXingBackend().Decode(context.Background(), img, Options{})
		require.NoError(t, err, n)
		require.Len(t, results, 1)
		assert.Equal(t, FormatEAN13, results[0].Type)
		assert.Equal(t, n, results[0].EAN13())
	}
}

func TestZXingBackend_LeadingZeroReadsAsUPCA(t *testing.T) {
	img, err := Render("0012345678905", DefaultRenderOptions())
	require.NoError(t, err)

	results, err := NewZXingBackend().Decode(context.Background(), img, Options{TryHarder: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "0012345678905", results[0].EAN13())
}

func TestZXingBackend_BlankImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 100))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	_, err := NewZXingBackend().Decode(context.Background(), img, Options{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZXingBackend_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewZXingBackend().Decode(ctx, image.NewGray(image.Rect(0, 0, 1, 1)), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubImage_ClipsROI(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	sub, ok := subImage(img, image.Rect(5, 5, 20, 20))
	require.True(t, ok)
	assert.Equal(t, image.Rect(5, 5, 10, 10), sub.Bounds())

	_, ok = subImage(img, image.Rect(20, 20, 30, 30))
	assert.False(t, ok)
}

func TestResultEAN13(t *testing.T) {
	assert.Equal(t, "0123456789012", Result{Type: FormatUPCA, Value: "123456789012"}.EAN13())
	assert.Equal(t, "4006381333931", Result{Type: FormatEAN13, Value: "4006381333931"}.EAN13())
	assert.Equal(t, "EAN-13", FormatEAN13.String())
}
