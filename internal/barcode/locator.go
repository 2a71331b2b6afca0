package barcode

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/barscan/internal/projection"
)

// LocatorConfig holds the empirical box corrections applied after locating.
// The factors were tuned on sample scans and are not a general rule.
type LocatorConfig struct {
	// WidenX and WidenY enlarge the box after derotation, since interpolation
	// spreads the bar edges.
	WidenX float64 `mapstructure:"widen_x" yaml:"widen_x" json:"widen_x"`
	WidenY float64 `mapstructure:"widen_y" yaml:"widen_y" json:"widen_y"`
	// Nudge moves the centre up by this fraction of the box height after derotation.
	Nudge float64 `mapstructure:"nudge" yaml:"nudge" json:"nudge"`
}

// DefaultLocatorConfig returns the tuned correction factors.
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{WidenX: 1.2, WidenY: 1.1, Nudge: 0.05}
}

// Centroid returns the count-weighted mean of the 1-based indices of counts.
func Centroid(counts []int) (float64, error) {
	var sum, area float64
	for i, c := range counts {
		sum += float64(i+1) * float64(c)
		area += float64(c)
	}
	if area == 0 {
		return 0, fmt.Errorf("%w: centroid of empty projection", ErrMalformedBarcode)
	}
	return sum / area, nil
}

// Locate derives the barcode region from a profile. angle is the skew that
// was corrected before the profile was taken; zero means none. The returned
// geometry is in the coordinates of the profiled buffer.
func Locate(p projection.Profile, angle float64, cfg LocatorConfig) (Region, error) {
	cx, err := Centroid(p.Vertical)
	if err != nil {
		return Region{}, err
	}
	cy, err := Centroid(p.Horizontal)
	if err != nil {
		return Region{}, err
	}

	x0, x1 := projection.FirstAbove(p.Vertical, 0), projection.LastAbove(p.Vertical, 0)
	y0, y1 := projection.FirstAbove(p.Horizontal, 0), projection.LastAbove(p.Horizontal, 0)
	r := Region{
		Center: Point{X: cx - 1, Y: cy - 1},
		Size:   Size{W: float64(x1 - x0 + 1), H: float64(y1 - y0 + 1)},
		Angle:  angle,
		Bounds: image.Rect(x0, y0, x1+1, y1+1),
	}

	if angle != 0 {
		r.Size.W *= cfg.WidenX
		r.Size.H *= cfg.WidenY
		r.Center.Y -= cfg.Nudge * r.Size.H
	} else if cfg.WidenY > 0 {
		r.Size.H /= cfg.WidenY
	}
	return r, nil
}

// BarBand returns the inclusive row range holding the bars: the contiguous
// rows around the peak whose count reaches half the peak.
func BarBand(horizontal []int) (top, bottom int, ok bool) {
	peak, at := projection.Max(horizontal)
	if at < 0 || peak == 0 {
		return 0, 0, false
	}
	min := (peak + 1) / 2
	top, bottom = at, at
	for top > 0 && horizontal[top-1] >= min {
		top--
	}
	for bottom < len(horizontal)-1 && horizontal[bottom+1] >= min {
		bottom++
	}
	return top, bottom, true
}

// BarSpan returns the half-open column range covered by bars within the bar
// band: the columns that are foreground in more than half of the band rows.
func BarSpan(bandVertical []int, bandHeight int) (start, end int, ok bool) {
	min := bandHeight / 2
	start = projection.FirstAbove(bandVertical, min)
	if start < 0 {
		return 0, 0, false
	}
	return start, projection.LastAbove(bandVertical, min) + 1, true
}
