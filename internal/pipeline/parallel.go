package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for batch decoding.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for batch decoding.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageResult struct {
	index  int
	result *Result
	err    error
}

// ProcessImages decodes images one after another.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*Result, error) {
	return p.ProcessImagesParallel(ctx, images, ParallelConfig{MaxWorkers: 1})
}

// ProcessImagesParallel decodes images on a worker pool. Results keep the
// input order; a failed image leaves a nil entry and the first failure is
// returned alongside the partial results.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.estimator == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.MaxWorkers > len(images) {
		config.MaxWorkers = len(images)
	}

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob, len(images))
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range config.MaxWorkers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, len(images))
	errs := make([]error, len(images))
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnImage(r.index, r.result, r.err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, results chan<- imageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.Process(ctx, job.image)
			select {
			case results <- imageResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about a batch decode.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	DecodedImages    int           `json:"decoded_images"`
	Mismatches       int           `json:"mismatches"`
	FailedImages     int           `json:"failed_images"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats summarizes a batch. Images without a result count
// as failed; images with a result but no bar number count as neither.
func CalculateParallelStats(results []*Result, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{
		TotalImages:   len(results),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	for _, r := range results {
		switch {
		case r == nil:
			s.FailedImages++
		case r.Decoded():
			s.DecodedImages++
			if r.Mismatch {
				s.Mismatches++
			}
		}
	}
	if processed := s.TotalImages - s.FailedImages; processed > 0 && duration > 0 {
		s.AveragePerImage = duration / time.Duration(processed)
		s.ThroughputPerSec = float64(processed) / duration.Seconds()
	}
	return s
}
