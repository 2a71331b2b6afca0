package raster

import (
	"fmt"
	"runtime"
	"sync"
)

// Neighborhood gives a kernel function read access to the pixels around the
// current position. Reads past the edge replicate the nearest edge pixel.
type Neighborhood struct {
	src      *Buffer
	interior bool
	X, Y     int
	Channel  int
}

// At returns the current channel at offset (dx, dy) from the centre pixel.
func (n Neighborhood) At(dx, dy int) byte {
	if n.interior {
		return n.src.Pix[(n.Y+dy)*n.src.Stride+(n.X+dx)*Channels+n.Channel]
	}
	return n.src.Get(clamp(n.X+dx, n.src.Width), clamp(n.Y+dy, n.src.Height), n.Channel)
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}

// KernelFunc computes one output sample from its neighbourhood.
type KernelFunc func(n Neighborhood) byte

// ApplyKernel evaluates fn for every channel of every pixel of src and writes
// the results into dst. The source is read-only for the duration of the call,
// so dst must not alias src. fn must not read further than radius pixels from
// the centre; pixels closer than radius to an edge see replicated borders.
func ApplyKernel(dst, src *Buffer, radius int, fn KernelFunc) error {
	if err := SameGeometry(dst, src); err != nil {
		return err
	}
	if len(dst.Pix) > 0 && &dst.Pix[0] == &src.Pix[0] {
		return &GeometryError{Operation: "kernel", Err: fmt.Errorf("%w: destination aliases source", ErrInvalidGeometry)}
	}
	if radius < 0 {
		radius = 0
	}
	ForEachRow(src.Height, 0, func(y int) {
		n := Neighborhood{src: src, Y: y}
		rowInterior := y >= radius && y < src.Height-radius
		for x := 0; x < src.Width; x++ {
			n.X = x
			n.interior = rowInterior && x >= radius && x < src.Width-radius
			for ch := 0; ch < Channels; ch++ {
				n.Channel = ch
				dst.Set(x, y, ch, fn(n))
			}
		}
	})
	return nil
}

// ForEachRow calls fn once for every row in [0, height), sharding rows over
// workers goroutines. workers <= 0 selects GOMAXPROCS. fn must only write
// state owned by its row.
func ForEachRow(height, workers int, fn func(y int)) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		for y := 0; y < height; y++ {
			fn(y)
		}
		return
	}

	var wg sync.WaitGroup
	rows := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				fn(y)
			}
		}()
	}
	for y := 0; y < height; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
}
