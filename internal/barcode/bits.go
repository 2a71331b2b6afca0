package barcode

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/barscan/internal/projection"
	"github.com/MeKo-Tech/barscan/internal/raster"
)

// ExtractorConfig tunes bar-width quantization.
type ExtractorConfig struct {
	// NoiseThreshold is the column count a projection must exceed to be a bar.
	NoiseThreshold int `mapstructure:"noise_threshold" yaml:"noise_threshold" json:"noise_threshold"`
	// Rows is the number of rows sampled around the middle of the bar band by
	// the row strategy.
	Rows int `mapstructure:"rows" yaml:"rows" json:"rows"`
	// Window is the fraction of a module, centred on it, averaged per bit.
	Window float64 `mapstructure:"window" yaml:"window" json:"window"`
}

// DefaultExtractorConfig returns the tuned defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{NoiseThreshold: 50, Rows: 1, Window: 0.5}
}

// rowMajority is the percentage of sampled rows that must be foreground.
const rowMajority = 50

// BitExtractor turns a binary buffer and its profile into two symbol halves.
type BitExtractor interface {
	Name() string
	Extract(bin *raster.Buffer, p projection.Profile) (left, right Bits, err error)
}

// SelectExtractor returns the row strategy when the buffer was derotated and
// the projection strategy otherwise.
func SelectExtractor(rotated bool, cfg ExtractorConfig) BitExtractor {
	if rotated {
		return RowExtractor{cfg: cfg}
	}
	return ProjectionExtractor{cfg: cfg}
}

// ProjectionExtractor reads modules from the vertical projection. Digits
// printed below the bars stay under the noise threshold.
type ProjectionExtractor struct {
	cfg ExtractorConfig
}

// NewProjectionExtractor creates a projection strategy.
func NewProjectionExtractor(cfg ExtractorConfig) ProjectionExtractor {
	return ProjectionExtractor{cfg: cfg}
}

func (ProjectionExtractor) Name() string { return "projection" }

func (e ProjectionExtractor) Extract(_ *raster.Buffer, p projection.Profile) (Bits, Bits, error) {
	return quantize(p.Vertical, e.cfg.NoiseThreshold, e.cfg.Window)
}

// RowExtractor samples pixels along the middle of the bar band.
type RowExtractor struct {
	cfg ExtractorConfig
}

// NewRowExtractor creates a row strategy.
func NewRowExtractor(cfg ExtractorConfig) RowExtractor {
	return RowExtractor{cfg: cfg}
}

func (RowExtractor) Name() string { return "row" }

func (e RowExtractor) Extract(bin *raster.Buffer, p projection.Profile) (Bits, Bits, error) {
	top, bottom, ok := BarBand(p.Horizontal)
	if !ok {
		return Bits{}, Bits{}, fmt.Errorf("%w: no bar band", ErrMalformedBarcode)
	}
	signal := SampleRows(bin, (top+bottom)/2, e.cfg.Rows)
	return quantize(signal, rowMajority, e.cfg.Window)
}

// SampleRows returns, per column, the percentage of foreground pixels among
// rows rows centred on row mid.
func SampleRows(bin *raster.Buffer, mid, rows int) []int {
	if rows < 1 {
		rows = 1
	}
	first := mid - (rows-1)/2
	signal := make([]int, bin.Width)
	used := 0
	for y := first; y < first+rows; y++ {
		if y < 0 || y >= bin.Height {
			continue
		}
		used++
		for x := 0; x < bin.Width; x++ {
			if bin.IsForeground(x, y) {
				signal[x]++
			}
		}
	}
	if used == 0 {
		return signal
	}
	for x := range signal {
		signal[x] = signal[x] * 100 / used
	}
	return signal
}

// EstimateBarWidth returns the length of the first run of samples above
// threshold, or 0 when there is none.
func EstimateBarWidth(signal []int, threshold int) int {
	start := projection.FirstAbove(signal, threshold)
	if start < 0 {
		return 0
	}
	w := 0
	for i := start; i < len(signal) && signal[i] > threshold; i++ {
		w++
	}
	return w
}

// quantize reads the 95 modules of a symbol from a 1-D signal. The module
// width is the symbol span divided by the module count; when that disagrees
// with the first bar width by more than a factor of two, the bar width is
// used instead. The left half is read from the start edge and the right half
// from the end edge.
func quantize(signal []int, threshold int, window float64) (left, right Bits, err error) {
	start := projection.FirstAbove(signal, threshold)
	if start < 0 {
		return left, right, fmt.Errorf("%w: no start bar above threshold %d", ErrMalformedBarcode, threshold)
	}
	barWidth := float64(EstimateBarWidth(signal, threshold))
	end := projection.LastAbove(signal, threshold) + 1

	module := float64(end-start) / TotalModules
	fromEnd := true
	if module < 1 || module > 2*barWidth || module < barWidth/2 {
		module, fromEnd = barWidth, false
	}
	if window <= 0 || window > 1 {
		window = 1
	}
	half := window * module / 2

	centre := func(k int) float64 {
		if fromEnd && k >= RightStart {
			return float64(end) - (float64(TotalModules-k)-0.5)*module
		}
		return float64(start) + (float64(k)+0.5)*module
	}
	bit := func(k int) (bool, error) {
		c := centre(k)
		lo, hi := int(math.Round(c-half)), int(math.Round(c+half))
		if hi < lo {
			hi = lo
		}
		if lo < 0 || hi >= len(signal) {
			return false, fmt.Errorf("%w: module %d at %.1f outside signal", ErrMalformedBarcode, k, c)
		}
		sum := 0
		for i := lo; i <= hi; i++ {
			sum += signal[i]
		}
		return sum > threshold*(hi-lo+1), nil
	}

	for i := 0; i < BitsPerHalf; i++ {
		if left[i], err = bit(GuardModules + i); err != nil {
			return left, right, err
		}
		if right[i], err = bit(RightStart + i); err != nil {
			return left, right, err
		}
	}
	return left, right, nil
}
