package raster

import (
	"github.com/anthonynsimon/bild/effect"
)

// GaussianWeights is the default 3x3 weight matrix for NonUniform, row-major.
var GaussianWeights = [9]int{1, 2, 1, 2, 4, 2, 1, 2, 1}

// Mean writes the 3x3 box average of src into dst.
func Mean(dst, src *Buffer) error {
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		sum := 0
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				sum += int(n.At(dx, dy))
			}
		}
		return byte((sum + 4) / 9)
	})
}

// NonUniform writes the 3x3 weighted average of src into dst. weights is
// row-major; a non-positive divisor is replaced by the sum of the weights.
func NonUniform(dst, src *Buffer, weights [9]int, divisor int) error {
	if divisor <= 0 {
		for _, w := range weights {
			divisor += w
		}
		if divisor <= 0 {
			divisor = 1
		}
	}
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		sum, i := 0, 0
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				sum += weights[i] * int(n.At(dx, dy))
				i++
			}
		}
		return saturate(sum / divisor)
	})
}

// Sobel writes the L1 gradient magnitude |Gx|+|Gy| of src into dst.
func Sobel(dst, src *Buffer) error {
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		gx := int(n.At(1, -1)) + 2*int(n.At(1, 0)) + int(n.At(1, 1)) -
			int(n.At(-1, -1)) - 2*int(n.At(-1, 0)) - int(n.At(-1, 1))
		gy := int(n.At(-1, 1)) + 2*int(n.At(0, 1)) + int(n.At(1, 1)) -
			int(n.At(-1, -1)) - 2*int(n.At(0, -1)) - int(n.At(1, -1))
		return saturate(abs(gx) + abs(gy))
	})
}

// Differentiation writes the forward-difference magnitude of src into dst.
func Differentiation(dst, src *Buffer) error {
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		c := int(n.At(0, 0))
		return saturate(abs(int(n.At(1, 0))-c) + abs(int(n.At(0, 1))-c))
	})
}

// Dilate writes the 3x3 maximum of src into dst. On a binary buffer with
// black foreground this grows the white background.
func Dilate(dst, src *Buffer) error {
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		m := n.At(0, 0)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if v := n.At(dx, dy); v > m {
					m = v
				}
			}
		}
		return m
	})
}

// Erode writes the 3x3 minimum of src into dst.
func Erode(dst, src *Buffer) error {
	return ApplyKernel(dst, src, 1, func(n Neighborhood) byte {
		m := n.At(0, 0)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if v := n.At(dx, dy); v < m {
					m = v
				}
			}
		}
		return m
	})
}

// Median replaces src with its median-filtered version in place.
func Median(src *Buffer, radius float64) {
	if radius <= 0 || src.Width == 0 || src.Height == 0 {
		return
	}
	out := effect.Median(src.ToImage(), radius)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			c := out.RGBAAt(x, y)
			src.SetPixel(x, y, c.B, c.G, c.R)
		}
	}
}

func saturate(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
