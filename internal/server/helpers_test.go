package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/pdf"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// mockDecoder returns a copy of result sized to the input image.
type mockDecoder struct {
	mu     sync.Mutex
	result pipeline.Result
	err    error
	calls  int
}

func newMockDecoder(bar, glyph string) *mockDecoder {
	m := &mockDecoder{}
	if bar != "" {
		m.result.BarNumber = strPtr(bar)
		m.result.ChecksumValid = true
	}
	if glyph != "" {
		m.result.GlyphNumber = strPtr(glyph)
	}
	m.result.Mismatch = bar != "" && glyph != "" && bar != glyph
	m.result.Region = barcode.Region{Center: barcode.Point{X: 100, Y: 50}, Size: barcode.Size{W: 120, H: 40}}
	return m
}

func (m *mockDecoder) Process(_ context.Context, img image.Image) (*pipeline.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	res := m.result
	res.Width = img.Bounds().Dx()
	res.Height = img.Bounds().Dy()
	return &res, nil
}

func (m *mockDecoder) Info() map[string]interface{} {
	return map[string]interface{}{"decoder": "mock"}
}

func (m *mockDecoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPDF returns doc, or err, and remembers the page range it was given.
type mockPDF struct {
	doc       *pdf.DocumentResult
	err       error
	pageRange string
	sawFile   bool
}

func (m *mockPDF) ProcessFile(_ context.Context, filename string, pageRange string) (*pdf.DocumentResult, error) {
	m.pageRange = pageRange
	m.sawFile = testutil.FileExists(filename)
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

// mockPublisher records published results.
type mockPublisher struct {
	mu        sync.Mutex
	published []*pipeline.Result
	err       error
	closed    bool
}

func (m *mockPublisher) Publish(_ context.Context, res *pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, res)
	return nil
}

func (m *mockPublisher) Close() { m.closed = true }

var errDecode = errors.New("decoder exploded")

func newTestServer(dec decoderInterface) *Server {
	s := &Server{
		corsOrigin:     "*",
		maxUploadMB:    5,
		timeoutSec:     5,
		overlayEnabled: true,
		overlay:        pipeline.DefaultOverlayOptions(),
		constraints:    utils.DefaultImageConstraints(),
		profiler:       &pipeline.Profiler{},
	}
	if dec != nil {
		s.decoder = dec
	}
	return s
}

func testImage() image.Image {
	return testutil.CreateTestImage(200, 100, color.White)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a POST carrying data as the file field plus the
// given form values.
func multipartRequest(t *testing.T, target, field, filename string, data []byte, values map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
