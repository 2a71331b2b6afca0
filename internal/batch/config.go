package batch

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// Config holds all configuration for a batch decode run.
type Config struct {
	// Decode settings
	Pipeline    pipeline.Config
	Constraints utils.ImageConstraints

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Overlay settings
	OverlayDir string
	Overlay    pipeline.OverlayOptions

	// ContinueOnError records unreadable or failing images instead of
	// aborting the run.
	ContinueOnError bool

	// Progress settings
	ShowProgress bool
	Quiet        bool
	// Progress receives the progress bar; nil means stderr.
	Progress io.Writer
}

// DefaultConfig returns a batch configuration around the default pipeline.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:        pipeline.DefaultConfig(),
		Constraints:     utils.DefaultImageConstraints(),
		Overlay:         pipeline.DefaultOverlayOptions(),
		ContinueOnError: true,
	}
}

// Validate checks the batch settings. Pipeline settings are validated when
// the pipeline is built.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count %d", c.Workers)
	}
	for _, p := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid file pattern %q: %w", p, err)
		}
	}
	if c.OverlayDir != "" {
		if _, err := pipeline.ParseColor(c.Overlay.Color); err != nil {
			return err
		}
		if _, err := pipeline.ParseColor(c.Overlay.MismatchColor); err != nil {
			return err
		}
	}
	return nil
}

// Failure is an input that could not be loaded or decoded.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// Result holds the outcome of a batch run. Results is aligned with
// ImagePaths; entries for failed inputs are nil.
type Result struct {
	Results     []*pipeline.Result
	ImagePaths  []string
	Failures    []Failure
	Duration    time.Duration
	WorkerCount int
}

// Err joins all failures, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
