package barcode

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/MeKo-Tech/barscan/internal/projection"
	"github.com/MeKo-Tech/barscan/internal/raster"
	"github.com/MeKo-Tech/barscan/internal/threshold"
	"github.com/disintegration/imaging"
)

// GlyphPlaceholder stands in for a digit no reference glyph matched.
const GlyphPlaceholder = '?'

// GlyphConfig controls digit band segmentation. Lengths are in modules.
type GlyphConfig struct {
	// Inset shrinks every digit slot on both sides so neighbouring guard
	// bars stay out of the crop.
	Inset       float64 `mapstructure:"inset" yaml:"inset" json:"inset"`
	// MinHeight is the shortest ink run accepted as a glyph.
	MinHeight   float64 `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	ReadLeading bool    `mapstructure:"read_leading" yaml:"read_leading" json:"read_leading"`
}

// DefaultGlyphConfig returns the standard segmentation settings.
func DefaultGlyphConfig() GlyphConfig {
	return GlyphConfig{Inset: 0.5, MinHeight: 1.5, ReadLeading: true}
}

// GlyphReading is the classification of one segmented digit.
type GlyphReading struct {
	Digit   byte            `json:"digit" yaml:"digit"`
	Score   int             `json:"score" yaml:"score"`
	Box     image.Rectangle `json:"-" yaml:"-"`
	Leading bool            `json:"leading,omitempty" yaml:"leading,omitempty"`
}

// Mismatch reports whether no reference matched the crop.
func (g GlyphReading) Mismatch() bool { return g.Digit == GlyphPlaceholder }

// GlyphNumber concatenates the digits of readings.
func GlyphNumber(readings []GlyphReading) string {
	var sb strings.Builder
	for _, r := range readings {
		sb.WriteByte(r.Digit)
	}
	return sb.String()
}

// GlyphMatcher classifies the human-readable digits below a symbol.
type GlyphMatcher struct {
	provider GlyphProvider
	cfg      GlyphConfig

	once sync.Once
	refs [10]*raster.Buffer
	err  error
}

// NewGlyphMatcher creates a matcher that loads references from p on first use.
func NewGlyphMatcher(p GlyphProvider, cfg GlyphConfig) *GlyphMatcher {
	return &GlyphMatcher{provider: p, cfg: cfg}
}

func (m *GlyphMatcher) load() {
	for d := 0; d < 10; d++ {
		img, err := m.provider.Glyph(d)
		if err != nil {
			m.err = fmt.Errorf("load reference glyph %d: %w", d, err)
			return
		}
		buf := raster.FromImage(img)
		threshold.BinarizeOtsu(buf)
		ink, ok := inkBounds(buf, buf.Bounds())
		if !ok {
			m.err = fmt.Errorf("reference glyph %d has no foreground", d)
			return
		}
		m.refs[d] = buf.Crop(ink)
	}
}

// References returns the prepared reference glyphs, loading them once.
func (m *GlyphMatcher) References() ([10]*raster.Buffer, error) {
	m.once.Do(m.load)
	return m.refs, m.err
}

// Match segments the digit band of an upright binary buffer and classifies
// every glyph. p must be the profile of bin and region its located geometry.
// A crop no reference matches yields GlyphPlaceholder; the returned error then
// wraps ErrGlyphMismatch while the readings remain usable.
func (m *GlyphMatcher) Match(bin *raster.Buffer, p projection.Profile, region Region) ([]GlyphReading, error) {
	refs, err := m.References()
	if err != nil {
		return nil, err
	}

	seg, err := m.Segment(bin, p, region)
	if err != nil {
		return nil, err
	}

	boxes := seg.Boxes()
	readings := make([]GlyphReading, 0, len(boxes))
	mismatches := 0
	for i, box := range boxes {
		r := classify(bin.Crop(box), refs)
		r.Box = box
		r.Leading = i == 0 && seg.HasLeading
		if r.Mismatch() {
			mismatches++
		}
		readings = append(readings, r)
	}
	slog.Debug("Matched digit glyphs", "count", len(readings), "number", GlyphNumber(readings))

	if mismatches > 0 {
		return readings, fmt.Errorf("%w: %d of %d glyphs unmatched", ErrGlyphMismatch, mismatches, len(readings))
	}
	return readings, nil
}

// Segmentation is the glyph layout found in a digit band.
type Segmentation struct {
	// Band is the area of the digit band.
	Band       image.Rectangle
	Leading    image.Rectangle
	HasLeading bool
	Digits     []image.Rectangle
}

// Boxes returns all glyph boxes in reading order.
func (s Segmentation) Boxes() []image.Rectangle {
	if !s.HasLeading {
		return s.Digits
	}
	return append([]image.Rectangle{s.Leading}, s.Digits...)
}

// Segment locates the printed digits below the bars. Each digit sits under
// its seven-module slot of the bar span; the glyph is the first ink run
// that starts below the bar band inside that slot, trimmed to its ink.
// Unless all twelve slots yield a glyph of plausible height the band is
// rejected with ErrGlyphMismatch. The leading digit is optional.
func (m *GlyphMatcher) Segment(bin *raster.Buffer, p projection.Profile, region Region) (Segmentation, error) {
	var seg Segmentation
	top, bottom, ok := BarBand(p.Horizontal)
	if !ok {
		return seg, fmt.Errorf("%w: no bar band", ErrMalformedBarcode)
	}

	extent := region.Bounds.Intersect(bin.Bounds())
	if extent.Empty() {
		extent = bin.Bounds()
	}

	bars := projection.ProjectRect(bin, image.Rect(extent.Min.X, top, extent.Max.X, bottom+1))
	spanStart, spanEnd, ok := BarSpan(bars.Vertical, bottom-top+1)
	if !ok {
		return seg, fmt.Errorf("%w: no bars in band", ErrMalformedBarcode)
	}
	origin := float64(spanStart + extent.Min.X)
	module := float64(spanEnd-spanStart) / TotalModules

	s := slotScanner{
		bin:       bin,
		top:       top,
		bottom:    bottom,
		inset:     m.cfg.Inset * module,
		minHeight: max(2, int(math.Ceil(m.cfg.MinHeight*module))),
		maxHeight: bottom - top + 1,
		gap:       int(module / 4),
	}

	for i := 0; i < 2*DigitsPerHalf; i++ {
		k := GuardModules + i*ModulesPerDigit
		if i >= DigitsPerHalf {
			k = RightStart + (i-DigitsPerHalf)*ModulesPerDigit
		}
		x0 := origin + float64(k)*module
		box, err := s.glyph(x0, x0+ModulesPerDigit*module)
		if err != nil {
			return Segmentation{}, fmt.Errorf("%w: digit %d: %v", ErrGlyphMismatch, i+2, err)
		}
		seg.Digits = append(seg.Digits, box)
	}

	if m.cfg.ReadLeading {
		// The leading digit is printed in the quiet zone, centred four
		// modules left of the start guard.
		x1 := origin - 0.5*module
		if box, err := s.glyph(x1-ModulesPerDigit*module, x1); err == nil {
			seg.Leading, seg.HasLeading = box, true
		}
	}

	if err := checkHeights(seg.Boxes()); err != nil {
		return Segmentation{}, fmt.Errorf("%w: %v", ErrGlyphMismatch, err)
	}

	seg.Band = seg.Digits[0]
	for _, b := range seg.Boxes() {
		seg.Band = seg.Band.Union(b)
	}
	seg.Band.Min.X, seg.Band.Max.X = extent.Min.X, extent.Max.X
	return seg, nil
}

// slotScanner finds the glyph inside one digit slot.
type slotScanner struct {
	bin         *raster.Buffer
	top, bottom int
	inset       float64
	minHeight   int
	maxHeight   int
	// gap is the largest blank row count bridged inside a glyph.
	gap int
}

func (s slotScanner) glyph(x0, x1 float64) (image.Rectangle, error) {
	cols := image.Rect(int(math.Round(x0+s.inset)), s.top, int(math.Round(x1-s.inset)), s.bin.Height)
	cols = cols.Intersect(s.bin.Bounds())
	if cols.Empty() {
		return image.Rectangle{}, errors.New("slot outside image")
	}

	prof := projection.ProjectRect(s.bin, cols)
	var run *projection.Run
	for _, r := range mergeRuns(projection.Runs(prof.Horizontal, 0), s.gap) {
		if cols.Min.Y+r.Start > s.bottom {
			run = &r
			break
		}
	}
	if run == nil {
		return image.Rectangle{}, errors.New("no ink below the bars")
	}
	if h := run.Len(); h < s.minHeight || h > s.maxHeight {
		return image.Rectangle{}, fmt.Errorf("ink run of %d rows", h)
	}

	box, ok := inkBounds(s.bin, image.Rect(cols.Min.X, cols.Min.Y+run.Start, cols.Max.X, cols.Min.Y+run.End))
	if !ok {
		return image.Rectangle{}, errors.New("empty glyph")
	}
	return box, nil
}

// mergeRuns joins runs separated by at most gap samples.
func mergeRuns(runs []projection.Run, gap int) []projection.Run {
	if len(runs) == 0 {
		return nil
	}
	out := []projection.Run{runs[0]}
	for _, r := range runs[1:] {
		last := &out[len(out)-1]
		if r.Start-last.End <= gap {
			last.End = r.End
			continue
		}
		out = append(out, r)
	}
	return out
}

// checkHeights rejects glyph sets whose heights differ by more than half of
// the tallest, which happens when a slot caught a bar fragment.
func checkHeights(boxes []image.Rectangle) error {
	tallest := 0
	for _, b := range boxes {
		tallest = max(tallest, b.Dy())
	}
	for i, b := range boxes {
		if 2*b.Dy() < tallest {
			return fmt.Errorf("glyph %d is %d rows, tallest is %d", i, b.Dy(), tallest)
		}
	}
	return nil
}

// inkBounds returns the tight bounding box of the foreground inside r.
func inkBounds(b *raster.Buffer, r image.Rectangle) (image.Rectangle, bool) {
	p := projection.ProjectRect(b, r)
	x0, x1 := projection.FirstAbove(p.Vertical, 0), projection.LastAbove(p.Vertical, 0)
	y0, y1 := projection.FirstAbove(p.Horizontal, 0), projection.LastAbove(p.Horizontal, 0)
	if x0 < 0 || y0 < 0 {
		return image.Rectangle{}, false
	}
	r = r.Intersect(b.Bounds())
	return image.Rect(r.Min.X+x0, r.Min.Y+y0, r.Min.X+x1+1, r.Min.Y+y1+1), true
}

// classify compares crop with every reference resized to its size and
// returns the digit with the most exact channel matches. Ties keep the
// lower digit.
func classify(crop *raster.Buffer, refs [10]*raster.Buffer) GlyphReading {
	best := GlyphReading{Digit: GlyphPlaceholder}
	for d, ref := range refs {
		resized := raster.FromImage(imaging.Resize(ref.ToImage(), crop.Width, crop.Height, imaging.NearestNeighbor))
		score := 0
		for y := 0; y < crop.Height; y++ {
			for x := 0; x < crop.Width; x++ {
				for ch := 0; ch < raster.Channels; ch++ {
					if crop.Get(x, y, ch) == resized.Get(x, y, ch) {
						score++
					}
				}
			}
		}
		if score > best.Score {
			best = GlyphReading{Digit: byte('0' + d), Score: score}
		}
	}
	return best
}
