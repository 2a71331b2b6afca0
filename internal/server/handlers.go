package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pdf"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/MeKo-Tech/barscan/internal/version"
	_ "golang.org/x/image/bmp"
)

const (
	formatJSON    = "json"
	formatOverlay = "overlay"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// infoHandler describes the decode configuration and cumulative stats.
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := InfoResponse{Version: version.Get().Version, Stats: map[string]any{}}
	if s.decoder != nil {
		resp.Pipeline = s.decoder.Info()
	}
	if s.profiler != nil {
		resp.Stats = s.profiler.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeImageHandler reads the barcode in an uploaded image.
func (s *Server) decodeImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, name, err := s.parseImageRequest(w, r)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return // error already written
	}
	format := requestFormat(r)

	if s.decoder == nil {
		s.writeErrorResponse(w, "Decode pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.decode(ctx, "image", name, img)
	if err != nil {
		status := http.StatusInternalServerError
		var ipe *utils.ImageProcessingError
		if errors.As(err, &ipe) {
			status = http.StatusBadRequest
		}
		s.writeErrorResponse(w, fmt.Sprintf("Decode failed: %v", err), status)
		return
	}

	if format == formatOverlay || r.FormValue("overlay") == "1" {
		s.handleOverlayOutput(w, r, img, res)
		return
	}
	s.writeResults(w, format, []*pipeline.Result{res}, func() interface{} {
		return DecodeResponse{Success: true, Result: res}
	})
}

// decode runs one image through the pipeline and records the outcome.
func (s *Server) decode(ctx context.Context, kind, source string, img image.Image) (*pipeline.Result, error) {
	fitted, err := utils.FitImage(img, s.constraints)
	if err != nil {
		decodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}

	start := time.Now()
	res, err := s.decoder.Process(ctx, fitted)
	decodeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		decodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}

	decodeRequestsTotal.WithLabelValues(kind, "success").Inc()
	res.Source = source
	recordOutcome(kind, res)
	s.profiler.Record(res)
	s.publish(ctx, res)
	return res, nil
}

// publish forwards res when a publisher is configured. Failures are logged
// and never fail the request.
func (s *Server) publish(ctx context.Context, res *pipeline.Result) {
	if s.publisher == nil || res == nil {
		return
	}
	if err := s.publisher.Publish(ctx, res); err != nil {
		slog.Warn("Failed to publish decode result", "error", err, "source", res.Source)
	}
}

// parseImageRequest returns the uploaded image and its file name.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return nil, "", err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, "", err
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, "", errors.New("file too large")
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, "", err
	}
	return img, filepath.Base(header.Filename), nil
}

// decodePDFHandler reads the barcodes in the images of an uploaded PDF.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.handleFormParseError(w, err)
		return
	}

	format := requestFormat(r)
	if format == formatOverlay {
		s.writeErrorResponse(w, "overlay output is only available for images", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	if s.pdf == nil {
		s.writeErrorResponse(w, "Decode pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	path, cleanup, err := spoolUpload(file, "upload_*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "Failed to store PDF upload", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	doc, err := s.pdf.ProcessFile(ctx, path, r.FormValue("pages"))
	decodeDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("PDF decode failed: %v", err), http.StatusInternalServerError)
		return
	}
	decodeRequestsTotal.WithLabelValues("pdf", "success").Inc()

	doc.Filename = filepath.Base(header.Filename)
	results := doc.Results()
	for _, res := range results {
		recordOutcome("pdf", res)
		s.profiler.Record(res)
		s.publish(ctx, res)
	}

	s.writeResults(w, format, results, func() interface{} {
		numbers := doc.Numbers()
		if numbers == nil {
			numbers = []string{}
		}
		return PDFResponse{Success: true, Document: doc, Numbers: numbers}
	})
}

// spoolUpload copies an upload to a temporary file for tools that need a
// path.
func spoolUpload(src io.Reader, pattern string) (string, func(), error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

// handleOverlayOutput writes a PNG of the input with the decode drawn on.
// The "color" and "mismatch_color" form values override the defaults.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, r *http.Request, img image.Image, res *pipeline.Result) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	opts := s.overlay
	if c := r.FormValue("color"); c != "" {
		opts.Color = c
	}
	if c := r.FormValue("mismatch_color"); c != "" {
		opts.MismatchColor = c
	}

	ov, err := pipeline.RenderOverlay(img, res, opts)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("overlay failed: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}

// writeResults renders results as text, csv or yaml, or writes the JSON
// envelope built by envelope.
func (s *Server) writeResults(w http.ResponseWriter, format string, results []*pipeline.Result, envelope func() interface{}) {
	switch format {
	case "", formatJSON:
		writeJSON(w, http.StatusOK, envelope())
		return
	case "text", "csv", "yaml", "yml":
	default:
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	out, err := pipeline.Format(results, format)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	if _, err := io.WriteString(w, out); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func contentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "yaml", "yml":
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// requestFormat reads "format" from the query string or the form.
func requestFormat(r *http.Request) string {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = r.FormValue("format")
	}
	return strings.ToLower(strings.TrimSpace(format))
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(strings.ToLower(err.Error()), "body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, DecodeResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

var _ pdfInterface = (*pdf.Processor)(nil)
