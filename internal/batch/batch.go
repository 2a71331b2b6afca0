// Package batch decodes the barcodes in many image files at once.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
)

// ProcessBatch discovers the images named by paths, builds a pipeline from
// config and decodes them.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	files, err := DiscoverImages(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	pl, err := pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithParallelWorkers(workerCount(config)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build decode pipeline: %w", err)
	}

	return Run(ctx, pl, files, config)
}

func workerCount(config *Config) int {
	if config.Workers > 0 {
		return config.Workers
	}
	return runtime.NumCPU()
}

// Run loads files and decodes them with pl on config.Workers goroutines.
// With ContinueOnError unset the first load or decode failure aborts the
// run; otherwise failures are collected in the result.
func Run(ctx context.Context, pl *pipeline.Pipeline, files []string, config *Config) (*Result, error) {
	start := time.Now()
	workers := workerCount(config)
	out := &Result{
		Results:     make([]*pipeline.Result, len(files)),
		ImagePaths:  files,
		WorkerCount: workers,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loaded, loadErrs := loadImages(files, config.Constraints, workers)

	images := make([]image.Image, 0, len(files))
	index := make([]int, 0, len(files))
	for i, path := range files {
		if err := loadErrs[i]; err != nil {
			if !config.ContinueOnError {
				return nil, err
			}
			slog.Warn("Skipping image", "file", path, "error", err)
			out.Failures = append(out.Failures, Failure{Path: path, Err: err})
			continue
		}
		images = append(images, loaded[i])
		index = append(index, i)
	}

	if len(images) > 0 {
		decodeErrs := make(map[int]error)
		results, err := pl.ProcessImagesParallel(ctx, images, pipeline.ParallelConfig{
			MaxWorkers:       workers,
			ProgressCallback: progressCallback(config),
			ErrorHandler: func(j int, _ image.Image, err error) {
				decodeErrs[j] = err
			},
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil && !config.ContinueOnError {
			return nil, fmt.Errorf("batch decode failed: %w", err)
		}

		for j, res := range results {
			i := index[j]
			if res == nil {
				err := decodeErrs[j]
				if err == nil {
					err = errors.New("no result")
				}
				out.Failures = append(out.Failures, Failure{Path: files[i], Err: err})
				continue
			}
			res.Source = files[i]
			out.Results[i] = res

			if config.OverlayDir != "" {
				if err := saveOverlay(images[j], res, files[i], config.OverlayDir, config.Overlay); err != nil {
					slog.Warn("Failed to write overlay", "file", files[i], "error", err)
				}
			}
		}
	}

	out.Duration = time.Since(start)
	return out, nil
}

func progressCallback(config *Config) pipeline.ProgressCallback {
	if !config.ShowProgress || config.Quiet {
		return nil
	}
	return pipeline.NewConsoleProgressCallback(config.Progress, "Decoding: ")
}
