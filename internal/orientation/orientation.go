// Package orientation estimates the skew of a binary buffer from the
// second-order moments of its foreground pixels.
package orientation

import (
	"errors"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/barscan/internal/raster"
)

var (
	// ErrDegenerateMoments is returned together with a zero angle when the
	// mixed central moment vanishes and the principal axis is undefined.
	ErrDegenerateMoments = errors.New("degenerate moments: zero covariance")
	// ErrNoForeground is returned together with a zero angle for a buffer
	// without foreground pixels.
	ErrNoForeground = errors.New("no foreground pixels")
)

// Config controls skew estimation.
type Config struct {
	// SnapDegrees folds deviations within this many degrees of an axis to zero.
	SnapDegrees float64 `mapstructure:"snap_degrees" yaml:"snap_degrees" json:"snap_degrees"`
	// Epsilon is the relative magnitude below which the mixed moment counts as zero.
	Epsilon float64 `mapstructure:"epsilon" yaml:"epsilon" json:"epsilon"`
}

// DefaultConfig provides the tuned defaults.
func DefaultConfig() Config {
	return Config{
		SnapDegrees: 1.0,
		Epsilon:     1e-9,
	}
}

// Moments holds raw and central moments of the foreground, computed with
// 1-based pixel coordinates.
type Moments struct {
	Area          float64
	SX, SY        float64
	SXX, SYY, SXY float64
	MXX, MYY, MXY float64
}

// Result is the estimated skew of a buffer.
type Result struct {
	// Angle is the rotation in radians that, applied to the buffer, aligns
	// its principal axis with the nearest image axis.
	Angle float64
	// Deviation is the folded principal-axis deviation in degrees before snapping.
	Deviation float64
	Snapped   bool
	Moments   Moments
}

// Degrees returns the angle in degrees.
func (r Result) Degrees() float64 { return r.Angle * 180 / math.Pi }

// Estimator computes skew angles.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator with the given configuration.
func NewEstimator(cfg Config) *Estimator {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultConfig().Epsilon
	}
	if cfg.SnapDegrees < 0 {
		cfg.SnapDegrees = 0
	}
	return &Estimator{cfg: cfg}
}

// ComputeMoments accumulates the moments of every fully black pixel.
func ComputeMoments(b *raster.Buffer) Moments {
	var m Moments
	for y := 0; y < b.Height; y++ {
		fy := float64(y + 1)
		for x := 0; x < b.Width; x++ {
			if !b.IsForeground(x, y) {
				continue
			}
			fx := float64(x + 1)
			m.Area++
			m.SX += fx
			m.SY += fy
			m.SXX += fx * fx
			m.SYY += fy * fy
			m.SXY += fx * fy
		}
	}
	if m.Area > 0 {
		m.MXX = m.SXX - m.SX*m.SX/m.Area
		m.MYY = m.SYY - m.SY*m.SY/m.Area
		m.MXY = m.SXY - m.SX*m.SY/m.Area
	}
	return m
}

// Estimate returns the skew of the foreground of b. Degenerate inputs yield
// a zero angle together with ErrNoForeground or ErrDegenerateMoments; callers
// may treat both as recoverable.
func (e *Estimator) Estimate(b *raster.Buffer) (Result, error) {
	m := ComputeMoments(b)
	res, err := e.FromMoments(m)
	if err != nil {
		slog.Debug("Orientation undefined, assuming upright", "error", err, "area", m.Area)
		return res, err
	}
	slog.Debug("Estimated orientation",
		"deviation_deg", res.Deviation, "angle_rad", res.Angle, "snapped", res.Snapped)
	return res, nil
}

// FromMoments derives the skew angle from precomputed moments.
func (e *Estimator) FromMoments(m Moments) (Result, error) {
	res := Result{Moments: m}
	if m.Area == 0 {
		return res, ErrNoForeground
	}
	scale := math.Abs(m.MXX) + math.Abs(m.MYY)
	if m.MXY == 0 || math.Abs(m.MXY) <= e.cfg.Epsilon*scale {
		return res, ErrDegenerateMoments
	}

	d := m.MXX - m.MYY
	psi := math.Atan((d+math.Sqrt(d*d+4*m.MXY*m.MXY))/(2*m.MXY)) * 180 / math.Pi
	dev := FoldDegrees(psi)
	res.Deviation = dev
	if math.Abs(dev) <= e.cfg.SnapDegrees {
		res.Snapped = dev != 0
		dev = 0
	}
	res.Angle = -dev * math.Pi / 180
	return res, nil
}

// FoldDegrees returns the signed deviation of deg from the nearest multiple of 90.
func FoldDegrees(deg float64) float64 {
	return deg - 90*math.Round(deg/90)
}

// Estimate runs a default estimator over b.
func Estimate(b *raster.Buffer) (float64, error) {
	res, err := NewEstimator(DefaultConfig()).Estimate(b)
	return res.Angle, err
}
