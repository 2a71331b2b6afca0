package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/pdf"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_InfoHandler(t *testing.T) {
	server := newTestServer(newMockDecoder("4006381333931", ""))
	server.profiler.Record(&pipeline.Result{BarNumber: strPtr("4006381333931")})

	w := httptest.NewRecorder()
	server.infoHandler(w, httptest.NewRequest(http.MethodGet, "/info", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "mock", response.Pipeline["decoder"])
	assert.EqualValues(t, 1, response.Stats["bar_decodes"])

	w = httptest.NewRecorder()
	server.infoHandler(w, httptest.NewRequest(http.MethodPost, "/info", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_DecodeImageHandler_JSON(t *testing.T) {
	dec := newMockDecoder("4006381333931", "4006381333931")
	pub := &mockPublisher{}
	server := newTestServer(dec)
	server.publisher = pub

	req := multipartRequest(t, "/decode/image", "image", "can.png", encodePNG(t, testImage()), nil)
	w := httptest.NewRecorder()
	server.decodeImageHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response DecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	require.NotNil(t, response.Result)
	require.NotNil(t, response.Result.BarNumber)
	assert.Equal(t, "4006381333931", *response.Result.BarNumber)
	assert.Equal(t, "can.png", response.Result.Source)
	assert.Equal(t, 200, response.Result.Width)
	assert.False(t, response.Result.Mismatch)

	assert.Equal(t, 1, dec.Calls())
	require.Len(t, pub.published, 1)
	assert.Equal(t, "can.png", pub.published[0].Source)
	assert.EqualValues(t, 1, server.profiler.ImagesProcessed.Load())
}

func TestServer_DecodeImageHandler_Formats(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{"text", "text/plain; charset=utf-8", "4006381333931"},
		{"csv", "text/csv", "4006381333931"},
		{"yaml", "application/yaml", "bar_number: \"4006381333931\""},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			server := newTestServer(newMockDecoder("4006381333931", ""))
			req := multipartRequest(t, "/decode/image?format="+tt.format, "image", "a.png", encodePNG(t, testImage()), nil)
			w := httptest.NewRecorder()

			server.decodeImageHandler(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestServer_DecodeImageHandler_Overlay(t *testing.T) {
	server := newTestServer(newMockDecoder("4006381333931", "4006381333932"))
	req := multipartRequest(t, "/decode/image", "image", "a.png", encodePNG(t, testImage()),
		map[string]string{"format": "overlay", "mismatch_color": "#0000ff"})
	w := httptest.NewRecorder()

	server.decodeImageHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, testImage().Bounds(), img.Bounds())

	// A mismatching decode is outlined in the requested mismatch colour.
	var blue bool
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !blue; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r == 0 && g == 0 && bl == 0xffff {
				blue = true
				break
			}
		}
	}
	assert.True(t, blue)
}

func TestServer_DecodeImageHandler_OverlayErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		server := newTestServer(newMockDecoder("4006381333931", ""))
		server.overlayEnabled = false
		req := multipartRequest(t, "/decode/image?format=overlay", "image", "a.png", encodePNG(t, testImage()), nil)
		w := httptest.NewRecorder()
		server.decodeImageHandler(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad colour", func(t *testing.T) {
		server := newTestServer(newMockDecoder("4006381333931", ""))
		req := multipartRequest(t, "/decode/image?format=overlay", "image", "a.png", encodePNG(t, testImage()),
			map[string]string{"color": "not-a-colour"})
		w := httptest.NewRecorder()
		server.decodeImageHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_DecodeImageHandler_Errors(t *testing.T) {
	pngData := encodePNG(t, testImage())

	failing := newMockDecoder("", "")
	failing.err = errDecode

	tests := []struct {
		name    string
		server  *Server
		req     func(t *testing.T) *http.Request
		status  int
		message string
	}{
		{
			name:   "wrong method",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/decode/image", nil)
			},
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "not multipart",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/decode/image", strings.NewReader("hello"))
			},
			status:  http.StatusBadRequest,
			message: "Failed to parse form data",
		},
		{
			name:   "missing file",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/image", "", "", nil, map[string]string{"format": "json"})
			},
			status:  http.StatusBadRequest,
			message: "No image file provided",
		},
		{
			name:   "not an image",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/image", "image", "a.png", []byte("definitely not a png"), nil)
			},
			status:  http.StatusBadRequest,
			message: "Invalid image format",
		},
		{
			name:   "unknown format",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/image?format=xml", "image", "a.png", pngData, nil)
			},
			status:  http.StatusBadRequest,
			message: "unsupported format",
		},
		{
			name:   "decoder failure",
			server: newTestServer(failing),
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/image", "image", "a.png", pngData, nil)
			},
			status:  http.StatusInternalServerError,
			message: "decoder exploded",
		},
		{
			name:   "no decoder",
			server: newTestServer(nil),
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/image", "image", "a.png", pngData, nil)
			},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "image too small",
			server: newTestServer(newMockDecoder("", "")),
			req: func(t *testing.T) *http.Request {
				tiny := encodePNG(t, testutil.CreateTestImage(20, 10, color.White))
				return multipartRequest(t, "/decode/image", "image", "a.png", tiny, nil)
			},
			status:  http.StatusBadRequest,
			message: "image too small",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.server.decodeImageHandler(w, tt.req(t))

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.message != "" {
				var response DecodeResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.False(t, response.Success)
				assert.Contains(t, response.Error, tt.message)
			}
		})
	}
}

func TestServer_DecodeImageHandler_TooLarge(t *testing.T) {
	server := newTestServer(newMockDecoder("", ""))
	server.maxUploadMB = 1

	req := multipartRequest(t, "/decode/image", "image", "big.png", bytes.Repeat([]byte{1}, 2*1024*1024), nil)
	w := httptest.NewRecorder()
	server.decodeImageHandler(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_DecodeImageHandler_PublishFailureDoesNotFailRequest(t *testing.T) {
	server := newTestServer(newMockDecoder("4006381333931", ""))
	server.publisher = &mockPublisher{err: context.DeadlineExceeded}

	req := multipartRequest(t, "/decode/image", "image", "a.png", encodePNG(t, testImage()), nil)
	w := httptest.NewRecorder()
	server.decodeImageHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_DecodeImageHandler_RealPipeline(t *testing.T) {
	pl, err := pipeline.NewBuilder().WithSnapDegrees(2).Build()
	require.NoError(t, err)
	server := newTestServer(pl)

	scene := testutil.StandardScenes[2]
	req := multipartRequest(t, "/decode/image", "image", "upc.png", encodePNG(t, testutil.RenderScene(t, scene)), nil)
	w := httptest.NewRecorder()
	server.decodeImageHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response DecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Result.BarNumber)
	assert.Equal(t, scene.Number, *response.Result.BarNumber)
	assert.True(t, response.Result.ChecksumValid)
	assert.False(t, response.Result.Mismatch)
}

func TestServer_DecodePDFHandler(t *testing.T) {
	doc := &pdf.DocumentResult{
		TotalPages: 2,
		Pages: []pdf.PageResult{
			{PageNumber: 1, Images: []pdf.ImageResult{{Result: &pipeline.Result{Width: 200, Height: 100, BarNumber: strPtr("4006381333931")}}}},
			{PageNumber: 2, Images: []pdf.ImageResult{
				{Result: &pipeline.Result{Width: 200, Height: 100, BarNumber: strPtr("4006381333931")}},
				{Error: "too small"},
			}},
		},
	}
	mp := &mockPDF{doc: doc}
	pub := &mockPublisher{}
	server := newTestServer(newMockDecoder("", ""))
	server.pdf = mp
	server.publisher = pub

	req := multipartRequest(t, "/decode/pdf", "pdf", "labels.pdf", []byte("%PDF-1.4"), map[string]string{"pages": "1-2"})
	w := httptest.NewRecorder()
	server.decodePDFHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response PDFResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, []string{"4006381333931"}, response.Numbers)
	require.NotNil(t, response.Document)
	assert.Equal(t, "labels.pdf", response.Document.Filename)
	assert.Equal(t, "1-2", mp.pageRange)
	assert.True(t, mp.sawFile)
	assert.Len(t, pub.published, 2)
}

func TestServer_DecodePDFHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		pdf    pdfInterface
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name: "missing file",
			pdf:  &mockPDF{doc: &pdf.DocumentResult{}},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/pdf", "", "", nil, map[string]string{"pages": "1"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "overlay requested",
			pdf:  &mockPDF{doc: &pdf.DocumentResult{}},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/pdf?format=overlay", "pdf", "a.pdf", []byte("%PDF"), nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "processor failure",
			pdf:  &mockPDF{err: errDecode},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/pdf", "pdf", "a.pdf", []byte("%PDF"), nil)
			},
			status: http.StatusInternalServerError,
		},
		{
			name: "no processor",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/decode/pdf", "pdf", "a.pdf", []byte("%PDF"), nil)
			},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(nil)
			if tt.pdf != nil {
				server.pdf = tt.pdf
			}
			w := httptest.NewRecorder()
			server.decodePDFHandler(w, tt.req(t))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestServer_DecodePDFHandler_CSV(t *testing.T) {
	server := newTestServer(nil)
	server.pdf = &mockPDF{doc: &pdf.DocumentResult{Pages: []pdf.PageResult{
		{PageNumber: 1, Images: []pdf.ImageResult{{Result: &pipeline.Result{Width: 1, Height: 1, BarNumber: strPtr("5901234123457")}}}},
	}}}

	req := multipartRequest(t, "/decode/pdf?format=csv", "pdf", "a.pdf", []byte("%PDF"), nil)
	w := httptest.NewRecorder()
	server.decodePDFHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "5901234123457")
}

func TestServer_SetupRoutes(t *testing.T) {
	server := newTestServer(newMockDecoder("4006381333931", ""))
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	for _, path := range []string{"/health", "/info", "/metrics"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/decode/image", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServer(t *testing.T) {
	pub := &mockPublisher{}
	server, err := NewServer(Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     5,
		PipelineConfig: pipeline.DefaultConfig(),
		OverlayEnabled: true,
		RateLimit:      RateLimitConfig{Enabled: true, RequestsPerMinute: 2},
		Publisher:      pub,
	})
	require.NoError(t, err)
	assert.NotNil(t, server.decoder)
	assert.NotNil(t, server.pdf)
	assert.NotNil(t, server.rateLimiter)
	assert.Equal(t, pipeline.DefaultOverlayOptions(), server.overlay)
	assert.Equal(t, 4096, server.constraints.MaxWidth)

	server.Close()
	assert.True(t, pub.closed)

	bad := pipeline.DefaultConfig()
	bad.GlyphScale = 0
	_, err = NewServer(Config{PipelineConfig: bad})
	assert.Error(t, err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "none", outcome(nil))
	assert.Equal(t, "none", outcome(&pipeline.Result{}))
	assert.Equal(t, "bar", outcome(&pipeline.Result{BarNumber: strPtr("1")}))
	assert.Equal(t, "glyphs_only", outcome(&pipeline.Result{GlyphNumber: strPtr("1")}))
	assert.Equal(t, "mismatch", outcome(&pipeline.Result{BarNumber: strPtr("1"), GlyphNumber: strPtr("2"), Mismatch: true}))
}
