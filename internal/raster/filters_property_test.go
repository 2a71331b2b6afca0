package raster

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func randomBuffer(w, h int, seed int64) *Buffer {
	rng := rand.New(rand.NewSource(seed))
	b := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.SetPixel(x, y, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		}
	}
	return b
}

// TestDilateErode_Ordering verifies erode(src) <= src <= dilate(src) on
// every channel of every pixel.
func TestDilateErode_Ordering(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("erosion never exceeds the source and dilation never falls below it", prop.ForAll(
		func(w, h int, seed int64) bool {
			src := randomBuffer(w, h, seed)
			dilated := src.Blank()
			eroded := src.Blank()
			if Dilate(dilated, src) != nil || Erode(eroded, src) != nil {
				return false
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					for ch := 0; ch < Channels; ch++ {
						v := src.Get(x, y, ch)
						if eroded.Get(x, y, ch) > v || dilated.Get(x, y, ch) < v {
							return false
						}
					}
				}
			}
			return true
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 24),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestMean_PreservesUniformBuffers(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("mean of a uniform buffer is the same buffer", prop.ForAll(
		func(w, h int, v uint8) bool {
			src := uniform(w, h, v)
			dst := src.Blank()
			if Mean(dst, src) != nil {
				return false
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					if dst.Gray(x, y) != v {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 24),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
