// Package threshold reduces buffers to gray and binarizes them with Otsu's method.
package threshold

import (
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/raster"
)

// Bins is the number of gray levels.
const Bins = 256

// ToGray replaces every pixel with the rounded average of its channels,
// replicated into all three channels.
func ToGray(b *raster.Buffer) {
	raster.ForEachRow(b.Height, 0, func(y int) {
		for x := 0; x < b.Width; x++ {
			b.SetGray(x, y, b.Gray(x, y))
		}
	})
}

// HistogramGray counts pixels per gray level.
func HistogramGray(b *raster.Buffer) [Bins]int {
	var counts [Bins]int
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			counts[b.Gray(x, y)]++
		}
	}
	return counts
}

// Otsu returns the threshold t that maximizes the between-class variance
// q1*q2*(mean1-mean2)^2, where the first class holds levels [0, t] and the
// second (t, 255]. Ties keep the lowest t.
func Otsu(counts [Bins]int, total int) int {
	if total <= 0 {
		return 0
	}

	var sumAll float64
	for i, c := range counts {
		sumAll += float64(i) * float64(c)
	}

	best, bestVariance := 0, -1.0
	var w1 int
	var sum1 float64
	for t := 0; t < Bins; t++ {
		w1 += counts[t]
		sum1 += float64(t) * float64(counts[t])
		w2 := total - w1
		if w1 == 0 || w2 <= 0 {
			continue
		}

		q1 := float64(w1) / float64(total)
		q2 := float64(w2) / float64(total)
		mean1 := sum1 / float64(w1)
		mean2 := (sumAll - sum1) / float64(w2)
		d := mean1 - mean2
		if variance := q1 * q2 * d * d; variance > bestVariance {
			best, bestVariance = t, variance
		}
	}
	return best
}

// Binarize maps every pixel whose gray level exceeds t to white and all
// others to black.
func Binarize(b *raster.Buffer, t int) {
	raster.ForEachRow(b.Height, 0, func(y int) {
		for x := 0; x < b.Width; x++ {
			if int(b.Gray(x, y)) > t {
				b.SetGray(x, y, raster.White)
			} else {
				b.SetGray(x, y, raster.Black)
			}
		}
	})
}

// BinarizeOtsu reduces b to gray, picks the Otsu threshold and binarizes in
// place. It returns the chosen threshold.
func BinarizeOtsu(b *raster.Buffer) int {
	ToGray(b)
	t := Otsu(HistogramGray(b), b.Width*b.Height)
	Binarize(b, t)
	slog.Debug("Binarized buffer", "threshold", t, "width", b.Width, "height", b.Height)
	return t
}
