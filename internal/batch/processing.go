package batch

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// loadImages decodes files on workers goroutines and scales each into the
// constraints. Both slices are aligned with files.
func loadImages(files []string, constraints utils.ImageConstraints, workers int) ([]image.Image, []error) {
	imgs := make([]image.Image, len(files))
	errs := make([]error, len(files))
	for i, l := range utils.BatchLoadImages(files, workers) {
		if l.Err != nil {
			errs[i] = fmt.Errorf("failed to load %s: %w", l.Path, l.Err)
			continue
		}
		imgs[i], errs[i] = prepareImage(l.Img, l.Path, constraints)
	}
	return imgs, errs
}

// prepareImage scales img into the constraints. Low contrast inputs are
// decoded anyway but logged.
func prepareImage(img image.Image, path string, constraints utils.ImageConstraints) (image.Image, error) {
	fitted, err := utils.FitImage(img, constraints)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if q := utils.AssessImageQuality(fitted); q.LowContrast() {
		slog.Warn("Low contrast image, bars may not separate", "file", path, "contrast", q.Contrast)
	}
	return fitted, nil
}

// overlayPath names the overlay written for the image at path.
func overlayPath(overlayDir, path string) string {
	base := filepath.Base(path)
	return filepath.Join(overlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}

// saveOverlay draws res over img and writes it below overlayDir.
func saveOverlay(img image.Image, res *pipeline.Result, path, overlayDir string, opts pipeline.OverlayOptions) error {
	ov, err := pipeline.RenderOverlay(img, res, opts)
	if err != nil {
		return err
	}
	return utils.SaveImage(ov, overlayPath(overlayDir, path))
}
