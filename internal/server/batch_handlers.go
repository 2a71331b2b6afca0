package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
)

const maxBatchItems = 10

// BatchDecodeRequest is a JSON batch of base64 encoded images.
type BatchDecodeRequest struct {
	Images []BatchImageRequest `json:"images"`
	Format string              `json:"format,omitempty"`
}

// BatchImageRequest represents a single image in a batch request.
type BatchImageRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// BatchDecodeResponse represents the response for batch decoding.
type BatchDecodeResponse struct {
	Success bool                   `json:"success"`
	Results []BatchDecodeResult    `json:"results,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Summary BatchProcessingSummary `json:"summary"`
}

// BatchDecodeResult represents a single result in batch processing.
type BatchDecodeResult struct {
	Name     string           `json:"name"`
	Success  bool             `json:"success"`
	Result   *pipeline.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration float64          `json:"duration_seconds"`
}

// BatchProcessingSummary provides summary statistics for batch processing.
type BatchProcessingSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	Decoded       int     `json:"decoded"`
	Mismatches    int     `json:"mismatches"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// decodeBatchHandler decodes up to maxBatchItems images in one request.
// Item failures are reported per item and do not fail the batch.
func (s *Server) decodeBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.maxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	}
	var req BatchDecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}

	if len(req.Images) == 0 {
		s.writeErrorResponse(w, "No images provided in batch request", http.StatusBadRequest)
		return
	}
	if len(req.Images) > maxBatchItems {
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d items)", maxBatchItems), http.StatusBadRequest)
		return
	}
	format := req.Format
	if format == formatOverlay {
		s.writeErrorResponse(w, "overlay output is only available for single images", http.StatusBadRequest)
		return
	}

	if s.decoder == nil {
		s.writeErrorResponse(w, "Decode pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	results, summary := s.processBatchRequest(r, req)
	summary.TotalDuration = time.Since(start).Seconds()
	if summary.TotalItems > 0 {
		summary.AvgItemTime = summary.TotalDuration / float64(summary.TotalItems)
	}

	decodeRequestsTotal.WithLabelValues("batch", "success").Inc()
	decodeDuration.WithLabelValues("batch").Observe(summary.TotalDuration)

	decoded := make([]*pipeline.Result, 0, len(results))
	for _, item := range results {
		if item.Result != nil {
			decoded = append(decoded, item.Result)
		}
	}
	s.writeResults(w, format, decoded, func() interface{} {
		return BatchDecodeResponse{
			Success: summary.Failed == 0,
			Results: results,
			Summary: summary,
		}
	})
}

// processBatchRequest decodes the batch items in order.
func (s *Server) processBatchRequest(r *http.Request, req BatchDecodeRequest) ([]BatchDecodeResult, BatchProcessingSummary) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	results := make([]BatchDecodeResult, 0, len(req.Images))
	summary := BatchProcessingSummary{TotalItems: len(req.Images)}

	for i, item := range req.Images {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("image_%d", i+1)
		}
		out := BatchDecodeResult{Name: name}

		switch {
		case ctx.Err() != nil:
			out.Error = ctx.Err().Error()
		case len(item.Data) == 0:
			out.Error = "No image data provided"
		default:
			out = s.processBatchImage(ctx, name, item.Data)
		}

		if out.Success {
			summary.Successful++
			if out.Result.BarNumber != nil {
				summary.Decoded++
			}
			if out.Result.Mismatch {
				summary.Mismatches++
			}
		} else {
			summary.Failed++
		}
		results = append(results, out)
	}
	return results, summary
}

// processBatchImage decodes a single batch item.
func (s *Server) processBatchImage(ctx context.Context, name string, data []byte) BatchDecodeResult {
	out := BatchDecodeResult{Name: name}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		out.Error = fmt.Sprintf("Failed to decode image: %v", err)
		return out
	}

	start := time.Now()
	res, err := s.decode(ctx, "batch", name, img)
	out.Duration = time.Since(start).Seconds()
	if err != nil {
		out.Error = fmt.Sprintf("Decode failed: %v", err)
		return out
	}

	out.Success = true
	out.Result = res
	return out
}
