package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// Decoder reads a barcode from an image. *pipeline.Pipeline implements it.
type Decoder interface {
	Process(ctx context.Context, img image.Image) (*pipeline.Result, error)
}

// ProcessorConfig contains configuration for PDF processing.
type ProcessorConfig struct {
	// Constraints bound the extracted images; larger ones are scaled down.
	Constraints utils.ImageConstraints
	// Credentials open password-protected files.
	Credentials *PasswordCredentials
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{Constraints: utils.DefaultImageConstraints()}
}

// Processor decodes the barcodes printed in PDF files.
type Processor struct {
	decoder Decoder
	config  ProcessorConfig

	open      func(filename string, creds *PasswordCredentials) (string, func(), error)
	extract   func(filename, pageRange string) (map[int][]image.Image, error)
	pageCount func(filename string) (int, error)
}

// NewProcessor creates a PDF processor that decodes with dec.
func NewProcessor(dec Decoder, config ProcessorConfig) *Processor {
	return &Processor{
		decoder:   dec,
		config:    config,
		open:      Decrypt,
		extract:   ExtractImages,
		pageCount: PageCount,
	}
}

// ProcessFile extracts the images of the selected pages and decodes each.
// Images that cannot be decoded are reported in their ImageResult.
func (p *Processor) ProcessFile(ctx context.Context, filename string, pageRange string) (*DocumentResult, error) {
	if p.decoder == nil {
		return nil, errors.New("pdf processor has no decoder")
	}
	start := time.Now()

	path, cleanup, err := p.open(filename, p.config.Credentials)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pageImages, err := p.extract(path, pageRange)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(start)

	pages := make([]int, 0, len(pageImages))
	for n := range pageImages {
		pages = append(pages, n)
	}
	sort.Ints(pages)

	doc := &DocumentResult{Filename: filename}
	decodeStart := time.Now()
	for _, n := range pages {
		page := PageResult{PageNumber: n}
		for i, img := range pageImages[n] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			page.Images = append(page.Images, p.decodeImage(ctx, filename, n, i, img))
		}
		doc.Pages = append(doc.Pages, page)
	}

	doc.TotalPages = len(pages)
	if total, err := p.pageCount(path); err == nil {
		doc.TotalPages = total
	} else {
		slog.Debug("Could not count PDF pages", "file", filename, "error", err)
	}

	doc.Processing = ProcessingInfo{
		ExtractionTimeMs: extractTime.Milliseconds(),
		DecodeTimeMs:     time.Since(decodeStart).Milliseconds(),
		TotalTimeMs:      time.Since(start).Milliseconds(),
	}
	slog.Debug("Processed PDF", "file", filename, "pages", len(doc.Pages), "numbers", doc.Numbers())
	return doc, nil
}

func (p *Processor) decodeImage(ctx context.Context, filename string, page, index int, img image.Image) ImageResult {
	b := img.Bounds()
	out := ImageResult{ImageIndex: index, Width: b.Dx(), Height: b.Dy()}

	fitted, err := utils.FitImage(img, p.config.Constraints)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := p.decoder.Process(ctx, fitted)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res.Source = fmt.Sprintf("%s#page=%d/image=%d", filename, page, index)
	out.Result = res
	return out
}

// ProcessFiles processes several PDFs. A failing file stops the run.
func (p *Processor) ProcessFiles(ctx context.Context, filenames []string, pageRange string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, f := range filenames {
		doc, err := p.ProcessFile(ctx, f, pageRange)
		if err != nil {
			return results, fmt.Errorf("%s: %w", f, err)
		}
		results = append(results, doc)
	}
	return results, nil
}
