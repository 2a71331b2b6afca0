package raster

// Histogram holds per-intensity pixel counts for the gray level and each channel.
type Histogram struct {
	Gray  [256]int
	Blue  [256]int
	Green [256]int
	Red   [256]int
}

// Total returns the number of pixels counted.
func (h *Histogram) Total() int {
	n := 0
	for _, c := range h.Gray {
		n += c
	}
	return n
}

// Max returns the largest bin over all four series, useful for chart scaling.
func (h *Histogram) Max() int {
	m := 0
	for _, series := range [][256]int{h.Gray, h.Blue, h.Green, h.Red} {
		for _, c := range series {
			if c > m {
				m = c
			}
		}
	}
	return m
}

// ComputeHistogram counts every pixel of b.
func ComputeHistogram(b *Buffer) Histogram {
	var h Histogram
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			bl, g, r := b.Pixel(x, y)
			h.Blue[bl]++
			h.Green[g]++
			h.Red[r]++
			h.Gray[b.Gray(x, y)]++
		}
	}
	return h
}
