package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the images handed to the decoder.
type ImageConstraints struct {
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height" json:"max_height"`
	MinWidth  int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MinHeight int `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
}

// DefaultImageConstraints returns the default constraints. The minimum width
// leaves at least one pixel per module of an EAN-13 symbol.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  4096,
		MaxHeight: 4096,
		MinWidth:  95,
		MinHeight: 16,
	}
}

// FitImage scales img down, preserving aspect ratio, until it fits the
// maximum dimensions. Images that already fit are returned unchanged.
// Linear filtering keeps bar edges from ringing.
func FitImage(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "fit", Err: errors.New("input image is nil")}
	}
	if err := ValidateImageConstraints(img, constraints); err != nil {
		return nil, err
	}

	b := img.Bounds()
	scale := 1.0
	if constraints.MaxWidth > 0 {
		scale = math.Min(scale, float64(constraints.MaxWidth)/float64(b.Dx()))
	}
	if constraints.MaxHeight > 0 {
		scale = math.Min(scale, float64(constraints.MaxHeight)/float64(b.Dy()))
	}
	if scale >= 1 {
		return img, nil
	}

	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	return imaging.Resize(img, w, h, imaging.Linear), nil
}

// ImageQuality summarizes properties that affect decoding.
type ImageQuality struct {
	Width       int
	Height      int
	AspectRatio float64
	IsGrayscale bool
	HasAlpha    bool
	// Contrast is the spread between the darkest and brightest luminance, 0..255.
	Contrast int
}

// LowContrast reports whether the image spans too few gray levels for a
// reliable threshold.
func (q ImageQuality) LowContrast() bool { return q.Contrast < 64 }

// AssessImageQuality analyzes basic image properties.
func AssessImageQuality(img image.Image) ImageQuality {
	if img == nil {
		return ImageQuality{}
	}

	b := img.Bounds()
	q := ImageQuality{Width: b.Dx(), Height: b.Dy(), IsGrayscale: true}
	if b.Dy() > 0 {
		q.AspectRatio = float64(b.Dx()) / float64(b.Dy())
	}

	lo, hi := uint32(255), uint32(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0xffff {
				q.HasAlpha = true
			}
			if r != g || g != bl {
				q.IsGrayscale = false
			}
			l := (r + g + bl) / 3 >> 8
			lo, hi = min(lo, l), max(hi, l)
		}
	}
	if hi >= lo {
		q.Contrast = int(hi - lo)
	}
	return q
}
