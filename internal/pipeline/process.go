package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/orientation"
	"github.com/MeKo-Tech/barscan/internal/projection"
	"github.com/MeKo-Tech/barscan/internal/raster"
	"github.com/MeKo-Tech/barscan/internal/threshold"
	"github.com/MeKo-Tech/barscan/internal/transform"
)

// ErrNilInput is returned when no image is supplied.
var ErrNilInput = errors.New("nil input image")

// Process decodes the barcode in img. Stage failures are recorded in the
// result; only a nil image or a cancelled context produce an error.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, ErrNilInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.ProcessBuffer(ctx, raster.FromImage(img))
	if err != nil {
		return nil, err
	}
	if p.backend != nil {
		start := time.Now()
		p.crossCheck(ctx, img, res)
		res.Timing.CrossCheckNs = time.Since(start).Nanoseconds()
		res.Timing.TotalNs += res.Timing.CrossCheckNs
	}
	return res, nil
}

// ProcessBuffer runs the decode sequence on src, which is left untouched.
func (p *Pipeline) ProcessBuffer(ctx context.Context, src *raster.Buffer) (*Result, error) {
	if src == nil {
		return nil, ErrNilInput
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{Width: src.Width, Height: src.Height}
	p.decode(ctx, src, res)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.reconcile()
	res.Corners = res.Region.Corners()
	res.AngleDegrees = res.Angle * 180 / math.Pi
	res.Timing.TotalNs = time.Since(start).Nanoseconds()
	p.Profiler.Record(res)

	slog.Debug("Decoded image",
		"bar_number", deref(res.BarNumber),
		"glyph_number", deref(res.GlyphNumber),
		"mismatch", res.Mismatch,
		"angle_deg", res.AngleDegrees,
		"errors", len(res.Errors),
		"total_ms", float64(res.Timing.TotalNs)/1e6)
	return res, nil
}

// decode fills res stage by stage and returns early once no later stage can
// run. The caller checks ctx afterwards.
func (p *Pipeline) decode(ctx context.Context, src *raster.Buffer, res *Result) {
	t := time.Now()
	gray := src.Clone()
	threshold.ToGray(gray)
	raster.Median(gray, p.cfg.MedianRadius)
	bin := gray.Clone()
	res.Threshold = threshold.BinarizeOtsu(bin)
	prof := projection.ProjectParallel(bin, p.cfg.Workers)
	res.Timing.BinarizeNs = time.Since(t).Nanoseconds()
	if prof.Empty() {
		res.fail(StageLocate, fmt.Errorf("%w: no foreground after thresholding", barcode.ErrMalformedBarcode))
		return
	}
	if ctx.Err() != nil {
		return
	}

	t = time.Now()
	est, err := p.estimator.Estimate(bin)
	res.Timing.OrientationNs = time.Since(t).Nanoseconds()
	if err != nil && !errors.Is(err, orientation.ErrDegenerateMoments) {
		res.fail(StageOrientation, err)
	}
	res.Angle = est.Angle

	rotated := res.Angle != 0
	if rotated {
		t = time.Now()
		work := gray.Blank()
		if err := p.sampler.Rotate(work, gray, res.Angle); err != nil {
			res.fail(StageDerotate, err)
			return
		}
		bin = work
		res.Threshold = threshold.BinarizeOtsu(bin)
		prof = projection.ProjectParallel(bin, p.cfg.Workers)
		res.Timing.DerotateNs = time.Since(t).Nanoseconds()
		if ctx.Err() != nil {
			return
		}
	}

	region, err := barcode.Locate(prof, res.Angle, p.cfg.Locator)
	if err != nil {
		res.fail(StageLocate, err)
		return
	}
	res.Region = region
	if rotated {
		cx, cy := transform.Center(bin)
		res.Region.Center.X, res.Region.Center.Y = transform.RotateMapping(res.Angle, cx, cy)(region.Center.X, region.Center.Y)
	}

	t = time.Now()
	p.decodeBars(bin, prof, rotated, res)
	res.Timing.DecodeNs = time.Since(t).Nanoseconds()
	if ctx.Err() != nil {
		return
	}

	if p.glyphs != nil {
		t = time.Now()
		readings, err := p.glyphs.Match(bin, prof, region)
		if err != nil {
			res.fail(StageGlyphs, err)
		}
		if len(readings) > 0 {
			n := barcode.GlyphNumber(readings)
			res.GlyphNumber = &n
			res.Glyphs = glyphResults(readings)
		}
		res.Timing.GlyphsNs = time.Since(t).Nanoseconds()
	}
}

func (p *Pipeline) decodeBars(bin *raster.Buffer, prof projection.Profile, rotated bool, res *Result) {
	ex := barcode.SelectExtractor(rotated, p.cfg.Extractor)
	res.Extractor = ex.Name()

	left, right, err := ex.Extract(bin, prof)
	if err != nil {
		res.fail(StageExtract, err)
		return
	}
	sym, err := barcode.DecodeSymbol(left, right)
	res.LeftDigits, res.RightDigits = sym.Left, sym.Right
	if err != nil {
		res.fail(StageDecode, err)
		return
	}
	res.BarNumber = &sym.Number
	res.Parity = sym.Parity
	res.ChecksumValid = sym.ChecksumValid
	if !sym.ChecksumValid {
		slog.Warn("Decoded number fails checksum", "number", sym.Number)
	}
}

func (p *Pipeline) crossCheck(ctx context.Context, img image.Image, res *Result) {
	results, err := p.backend.Decode(ctx, img, barcode.Options{TryHarder: true})
	if err != nil {
		res.fail(StageCrossCheck, err)
		return
	}
	for _, r := range results {
		if n := r.EAN13(); n != "" {
			res.CrossCheck = &n
			break
		}
	}
	if res.CrossCheck != nil && res.BarNumber != nil && *res.CrossCheck != *res.BarNumber {
		slog.Warn("Cross-check disagrees with bar decode",
			"bar_number", *res.BarNumber, "zxing", *res.CrossCheck)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
