package server

import (
	"context"
	"image"
	"net/http"

	"github.com/MeKo-Tech/barscan/internal/pdf"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// decoderInterface defines the methods needed by the server from a pipeline.
type decoderInterface interface {
	Process(ctx context.Context, img image.Image) (*pipeline.Result, error)
	Info() map[string]interface{}
}

// pdfInterface decodes the barcodes printed in a PDF file on disk.
type pdfInterface interface {
	ProcessFile(ctx context.Context, filename string, pageRange string) (*pdf.DocumentResult, error)
}

// ResultPublisher forwards decode results to an external sink.
// *publish.Publisher implements it.
type ResultPublisher interface {
	Publish(ctx context.Context, res *pipeline.Result) error
	Close()
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	decoder        decoderInterface
	pdf            pdfInterface
	publisher      ResultPublisher
	profiler       *pipeline.Profiler
	constraints    utils.ImageConstraints
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	overlay        pipeline.OverlayOptions
	rateLimiter    *RateLimiter
}

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	Constraints    utils.ImageConstraints
	OverlayEnabled bool
	Overlay        pipeline.OverlayOptions
	RateLimit      RateLimitConfig
	// Publisher is optional; when set every decoded result is forwarded.
	Publisher ResultPublisher
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type InfoResponse struct {
	Version  string                 `json:"version"`
	Pipeline map[string]interface{} `json:"pipeline,omitempty"`
	Stats    map[string]any         `json:"stats"`
}

type DecodeResponse struct {
	Success bool             `json:"success"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type PDFResponse struct {
	Success  bool                `json:"success"`
	Document *pdf.DocumentResult `json:"document,omitempty"`
	Numbers  []string            `json:"numbers"`
	Error    string              `json:"error,omitempty"`
}

// NewServer creates a barcode server around a freshly built pipeline.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	constraints := config.Constraints
	if constraints.MaxWidth == 0 && constraints.MaxHeight == 0 {
		constraints = utils.DefaultImageConstraints()
	}
	overlay := config.Overlay
	if overlay.Color == "" {
		overlay = pipeline.DefaultOverlayOptions()
	}

	s := &Server{
		decoder:        pl,
		pdf:            pdf.NewProcessor(pl, pdf.ProcessorConfig{Constraints: constraints}),
		publisher:      config.Publisher,
		profiler:       &pipeline.Profiler{},
		constraints:    constraints,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
		overlay:        overlay,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/info", s.corsMiddleware(s.infoHandler))
	mux.HandleFunc("/decode/image", s.corsMiddleware(s.rateLimitMiddleware(s.decodeImageHandler)))
	mux.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler)))
	mux.HandleFunc("/decode/batch", s.corsMiddleware(s.rateLimitMiddleware(s.decodeBatchHandler)))
	// The upgrade needs the raw ResponseWriter, so no metrics wrapper here.
	mux.HandleFunc("/ws/decode", s.rateLimitMiddleware(s.decodeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
