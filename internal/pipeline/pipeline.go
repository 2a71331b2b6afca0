package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/orientation"
	"github.com/MeKo-Tech/barscan/internal/transform"
)

// Config holds configuration for the barcode reading pipeline.
type Config struct {
	Locator     barcode.LocatorConfig   `json:"locator"`
	Extractor   barcode.ExtractorConfig `json:"extractor"`
	Glyph       barcode.GlyphConfig     `json:"glyph"`
	Orientation orientation.Config      `json:"orientation"`

	// MedianRadius smooths the grayscale image before thresholding (0 = off).
	MedianRadius float64 `json:"median_radius"`

	// Interpolation reconstructs the derotated image.
	Interpolation transform.Interpolation `json:"interpolation"`

	// EnableGlyphs runs the digit glyph matcher next to the bar decoder.
	EnableGlyphs bool `json:"enable_glyphs"`
	// GlyphDir points at a directory of reference digit images. Empty uses
	// the built-in font at GlyphScale, which reads digits generated at the
	// default render scale.
	GlyphDir   string `json:"glyph_dir,omitempty"`
	GlyphScale int    `json:"glyph_scale"`

	// CrossCheck decodes the original image with the independent ZXing
	// reader and records its verdict.
	CrossCheck bool `json:"cross_check"`

	// Workers shards projections by rows (<=1 = sequential).
	Workers int `json:"workers"`

	Parallel ParallelConfig `json:"-"`
}

// DefaultConfig returns a default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Locator:       barcode.DefaultLocatorConfig(),
		Extractor:     barcode.DefaultExtractorConfig(),
		Glyph:         barcode.DefaultGlyphConfig(),
		Orientation:   orientation.DefaultConfig(),
		Interpolation: transform.Bilinear,
		EnableGlyphs:  true,
		GlyphScale:    4,
		Workers:       1,
		Parallel:      DefaultParallelConfig(),
	}
}

// Builder provides a fluent API to configure and build a pipeline.
type Builder struct {
	cfg    Config
	glyphs barcode.GlyphProvider
}

// NewBuilder creates a new builder with defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithLocator sets the locator corrections.
func (b *Builder) WithLocator(cfg barcode.LocatorConfig) *Builder {
	b.cfg.Locator = cfg
	return b
}

// WithNoiseThreshold sets the projection count a bar must exceed.
func (b *Builder) WithNoiseThreshold(n int) *Builder {
	b.cfg.Extractor.NoiseThreshold = n
	return b
}

// WithSampleRows sets how many rows the row strategy averages.
func (b *Builder) WithSampleRows(n int) *Builder {
	if n > 0 {
		b.cfg.Extractor.Rows = n
	}
	return b
}

// WithSnapDegrees sets the tolerance below which skew is ignored.
func (b *Builder) WithSnapDegrees(deg float64) *Builder {
	b.cfg.Orientation.SnapDegrees = deg
	return b
}

// WithMedian enables median smoothing with the given radius.
func (b *Builder) WithMedian(radius float64) *Builder {
	b.cfg.MedianRadius = radius
	return b
}

// WithInterpolation selects the derotation interpolation.
func (b *Builder) WithInterpolation(i transform.Interpolation) *Builder {
	b.cfg.Interpolation = i
	return b
}

// WithGlyphMatching toggles the digit glyph reading.
func (b *Builder) WithGlyphMatching(enabled bool) *Builder {
	b.cfg.EnableGlyphs = enabled
	return b
}

// WithGlyphConfig sets the glyph segmentation settings.
func (b *Builder) WithGlyphConfig(cfg barcode.GlyphConfig) *Builder {
	b.cfg.Glyph = cfg
	return b
}

// WithGlyphDir loads reference glyphs from dir.
func (b *Builder) WithGlyphDir(dir string) *Builder {
	b.cfg.GlyphDir = dir
	return b
}

// WithGlyphScale sets the scale of the built-in reference font.
func (b *Builder) WithGlyphScale(scale int) *Builder {
	b.cfg.GlyphScale = scale
	return b
}

// WithGlyphs injects a reference glyph provider, overriding GlyphDir.
func (b *Builder) WithGlyphs(p barcode.GlyphProvider) *Builder {
	b.glyphs = p
	return b
}

// WithCrossCheck toggles the ZXing cross-check.
func (b *Builder) WithCrossCheck(enabled bool) *Builder {
	b.cfg.CrossCheck = enabled
	return b
}

// WithWorkers sets the number of row shards used for projections.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Workers = n
	return b
}

// WithParallelWorkers sets the number of images decoded concurrently.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress reporter for batch decoding.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration for obvious errors.
func (b *Builder) Validate() error {
	c := b.cfg
	if c.Extractor.NoiseThreshold < 0 {
		return fmt.Errorf("noise threshold must be non-negative, got %d", c.Extractor.NoiseThreshold)
	}
	if c.Extractor.Rows < 1 {
		return fmt.Errorf("sample rows must be positive, got %d", c.Extractor.Rows)
	}
	if c.Extractor.Window <= 0 || c.Extractor.Window > 1 {
		return fmt.Errorf("sample window must be in (0,1], got %.3f", c.Extractor.Window)
	}
	if c.Locator.WidenX <= 0 || c.Locator.WidenY <= 0 {
		return errors.New("locator widen factors must be positive")
	}
	if c.Orientation.SnapDegrees < 0 || c.Orientation.SnapDegrees >= 45 {
		return fmt.Errorf("snap degrees must be in [0,45), got %.2f", c.Orientation.SnapDegrees)
	}
	if c.MedianRadius < 0 {
		return fmt.Errorf("median radius must be non-negative, got %.2f", c.MedianRadius)
	}
	if c.Glyph.Inset < 0 || c.Glyph.Inset >= barcode.ModulesPerDigit/2 {
		return fmt.Errorf("glyph inset must be in [0,%d) modules, got %.2f", barcode.ModulesPerDigit/2, c.Glyph.Inset)
	}
	if c.Glyph.MinHeight < 0 {
		return fmt.Errorf("glyph min height must be non-negative, got %.2f", c.Glyph.MinHeight)
	}
	if c.EnableGlyphs && b.glyphs == nil && c.GlyphDir == "" && c.GlyphScale < 1 {
		return fmt.Errorf("glyph scale must be positive, got %d", c.GlyphScale)
	}
	if c.Parallel.MaxWorkers < 0 {
		return fmt.Errorf("parallel workers must be non-negative, got %d", c.Parallel.MaxWorkers)
	}
	return nil
}

// Pipeline reads EAN-13 barcodes from images. It holds no per-image state
// and may be shared between goroutines.
type Pipeline struct {
	cfg       Config
	estimator *orientation.Estimator
	sampler   transform.Sampler
	glyphs    *barcode.GlyphMatcher
	backend   barcode.Backend
	Profiler  *Profiler
}

// Build constructs the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.cfg.Parallel.MaxWorkers == 0 {
		b.cfg.Parallel.MaxWorkers = runtime.NumCPU()
	}

	p := &Pipeline{
		cfg:       b.cfg,
		estimator: orientation.NewEstimator(b.cfg.Orientation),
		sampler:   transform.NewSampler(b.cfg.Interpolation),
		Profiler:  &Profiler{},
	}
	p.sampler.Workers = b.cfg.Workers

	if b.cfg.EnableGlyphs {
		provider := b.glyphs
		switch {
		case provider != nil:
		case b.cfg.GlyphDir != "":
			provider = barcode.NewDirGlyphs(b.cfg.GlyphDir)
		default:
			provider = barcode.NewFontGlyphs(b.cfg.GlyphScale)
		}
		p.glyphs = barcode.NewGlyphMatcher(barcode.NewCachedGlyphs(provider), b.cfg.Glyph)
	}
	if b.cfg.CrossCheck {
		p.backend = barcode.NewZXingBackend()
	}

	slog.Debug("Pipeline built",
		"glyphs", b.cfg.EnableGlyphs,
		"glyph_dir", b.cfg.GlyphDir,
		"cross_check", b.cfg.CrossCheck,
		"interpolation", b.cfg.Interpolation.String())
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]interface{} {
	return map[string]interface{}{
		"interpolation":   p.cfg.Interpolation.String(),
		"noise_threshold": p.cfg.Extractor.NoiseThreshold,
		"sample_rows":     p.cfg.Extractor.Rows,
		"snap_degrees":    p.cfg.Orientation.SnapDegrees,
		"median_radius":   p.cfg.MedianRadius,
		"locator": map[string]interface{}{
			"widen_x": p.cfg.Locator.WidenX,
			"widen_y": p.cfg.Locator.WidenY,
			"nudge":   p.cfg.Locator.Nudge,
		},
		"glyphs": map[string]interface{}{
			"enabled": p.glyphs != nil,
			"dir":     p.cfg.GlyphDir,
			"scale":   p.cfg.GlyphScale,
		},
		"cross_check": p.backend != nil,
		"parallel": map[string]interface{}{
			"max_workers":           p.cfg.Parallel.MaxWorkers,
			"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
		},
	}
}
