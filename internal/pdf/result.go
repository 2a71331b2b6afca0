package pdf

import "github.com/MeKo-Tech/barscan/internal/pipeline"

// ImageResult is the decode of one image embedded in a page.
type ImageResult struct {
	ImageIndex int              `json:"image_index" yaml:"image_index"`
	Width      int              `json:"width" yaml:"width"`
	Height     int              `json:"height" yaml:"height"`
	Result     *pipeline.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// PageResult holds the decodes for a single PDF page.
type PageResult struct {
	PageNumber int           `json:"page_number" yaml:"page_number"`
	Images     []ImageResult `json:"images" yaml:"images"`
}

// DocumentResult holds the decodes for a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename" yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages" yaml:"pages"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	DecodeTimeMs     int64 `json:"decode_time_ms" yaml:"decode_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// Results flattens the document into pipeline results in page order.
func (d *DocumentResult) Results() []*pipeline.Result {
	var out []*pipeline.Result
	for _, p := range d.Pages {
		for _, img := range p.Images {
			if img.Result != nil {
				out = append(out, img.Result)
			}
		}
	}
	return out
}

// Numbers returns the distinct numbers read in the document, in order of
// first appearance.
func (d *DocumentResult) Numbers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Results() {
		if n, ok := r.Number(); ok && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
