// Package projection computes per-column and per-row foreground counts over
// binary buffers and segments the resulting profiles into runs.
package projection

import (
	"image"

	"github.com/MeKo-Tech/barscan/internal/raster"
)

// Profile holds the foreground counts of a binary buffer. Vertical has one
// entry per column, Horizontal one per row.
type Profile struct {
	Vertical   []int
	Horizontal []int
}

// Area returns the total number of foreground pixels.
func (p Profile) Area() int {
	n := 0
	for _, c := range p.Vertical {
		n += c
	}
	return n
}

// Empty reports whether the profile counted no foreground at all.
func (p Profile) Empty() bool { return p.Area() == 0 }

// Project counts pixels whose three channels are all black.
func Project(b *raster.Buffer) Profile {
	return ProjectRect(b, b.Bounds())
}

// ProjectRect projects only the pixels inside r. The returned slices are
// indexed relative to r.Min.
func ProjectRect(b *raster.Buffer, r image.Rectangle) Profile {
	r = r.Intersect(b.Bounds())
	p := Profile{Vertical: make([]int, r.Dx()), Horizontal: make([]int, r.Dy())}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if b.IsForeground(x, y) {
				p.Vertical[x-r.Min.X]++
				p.Horizontal[y-r.Min.Y]++
			}
		}
	}
	return p
}

// ProjectParallel computes the same profile as Project with rows sharded over
// workers goroutines.
func ProjectParallel(b *raster.Buffer, workers int) Profile {
	p := Profile{Vertical: make([]int, b.Width), Horizontal: make([]int, b.Height)}
	rowCols := make([][]int, b.Height)
	raster.ForEachRow(b.Height, workers, func(y int) {
		var cols []int
		for x := 0; x < b.Width; x++ {
			if b.IsForeground(x, y) {
				p.Horizontal[y]++
				cols = append(cols, x)
			}
		}
		rowCols[y] = cols
	})
	for _, cols := range rowCols {
		for _, x := range cols {
			p.Vertical[x]++
		}
	}
	return p
}

// Run is a maximal half-open interval [Start, End) of counts above a minimum.
type Run struct {
	Start int
	End   int
}

// Len returns the number of samples in the run.
func (r Run) Len() int { return r.End - r.Start }

// Center returns the midpoint of the run.
func (r Run) Center() float64 { return float64(r.Start+r.End-1) / 2 }

// Runs returns the maximal runs of counts strictly greater than min.
func Runs(counts []int, min int) []Run {
	var runs []Run
	start := -1
	for i, c := range counts {
		switch {
		case c > min && start < 0:
			start = i
		case c <= min && start >= 0:
			runs = append(runs, Run{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, Run{Start: start, End: len(counts)})
	}
	return runs
}

// FirstAbove returns the index of the first count strictly greater than min, or -1.
func FirstAbove(counts []int, min int) int {
	for i, c := range counts {
		if c > min {
			return i
		}
	}
	return -1
}

// LastAbove returns the index of the last count strictly greater than min, or -1.
func LastAbove(counts []int, min int) int {
	for i := len(counts) - 1; i >= 0; i-- {
		if counts[i] > min {
			return i
		}
	}
	return -1
}

// Max returns the largest count and its first index, or (0, -1) for an empty slice.
func Max(counts []int) (value, index int) {
	index = -1
	for i, c := range counts {
		if index < 0 || c > value {
			value, index = c, i
		}
	}
	return value, index
}
