package cmd

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/raster"
	"github.com/MeKo-Tech/barscan/internal/threshold"
	"github.com/MeKo-Tech/barscan/internal/transform"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/spf13/cobra"
)

// filterCmd represents the filter command.
var filterCmd = &cobra.Command{
	Use:   "filter IMAGE",
	Short: "Apply raster filters and geometric transforms to an image",
	Long: `Run an image through the raster toolbox the decoder is built on.

Transforms run first in the order translate, rotate, scale. The filters
named by --op then run left to right. Use it to inspect what a capture
looks like to the reader, or to prepare test inputs.

Filters: mean, gaussian, sobel, diff, dilate, erode, median, binarize

Examples:
  barscan filter shelf.jpg --op median,binarize
  barscan filter label.png --rotate 12 --interpolation bilinear -o tilted.png
  barscan filter label.png --histogram`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().StringP("output", "o", "", "output file (default: IMAGE_filtered.png)")
	filterCmd.Flags().StringSlice("op", nil, "filters to apply, in order")
	filterCmd.Flags().Float64("median-radius", 1, "radius of the median filter")
	filterCmd.Flags().Float64Slice("translate", nil, "shift by dx,dy pixels")
	filterCmd.Flags().Float64("rotate", 0, "rotate counter-clockwise by this many degrees about the centre")
	filterCmd.Flags().Float64("scale", 1, "scale about the centre by this factor")
	filterCmd.Flags().String("interpolation", "nearest", "sampling for transforms: nearest or bilinear")
	filterCmd.Flags().Bool("histogram", false, "print the gray histogram summary of the result")
}

func runFilter(cmd *cobra.Command, args []string) error {
	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}
	buf := raster.FromImage(img)

	if buf, err = applyTransforms(cmd, buf); err != nil {
		return err
	}

	ops, _ := cmd.Flags().GetStringSlice("op")
	radius, _ := cmd.Flags().GetFloat64("median-radius")
	for _, op := range ops {
		if buf, err = applyFilter(buf, strings.ToLower(strings.TrimSpace(op)), radius); err != nil {
			return err
		}
	}

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
		path = base + "_filtered.png"
	}
	if err := utils.SaveImage(buf.ToImage(), path); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)

	if show, _ := cmd.Flags().GetBool("histogram"); show {
		h := raster.ComputeHistogram(buf)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pixels: %d peak: %d otsu: %d\n",
			h.Total(), h.Max(), threshold.Otsu(h.Gray, h.Total()))
	}
	return nil
}

func applyTransforms(cmd *cobra.Command, buf *raster.Buffer) (*raster.Buffer, error) {
	name, _ := cmd.Flags().GetString("interpolation")
	interp, err := transform.ParseInterpolation(name)
	if err != nil {
		return nil, err
	}
	s := transform.NewSampler(interp)

	if shift, _ := cmd.Flags().GetFloat64Slice("translate"); len(shift) > 0 {
		if len(shift) != 2 {
			return nil, fmt.Errorf("translate needs dx,dy, got %d values", len(shift))
		}
		dst := buf.Blank()
		if err := s.Translate(dst, buf, shift[0], shift[1]); err != nil {
			return nil, err
		}
		buf = dst
	}
	if deg, _ := cmd.Flags().GetFloat64("rotate"); deg != 0 {
		dst := buf.Blank()
		if err := s.Rotate(dst, buf, deg*math.Pi/180); err != nil {
			return nil, err
		}
		buf = dst
	}
	if factor, _ := cmd.Flags().GetFloat64("scale"); factor != 1 {
		dst := buf.Blank()
		if err := s.Scale(dst, buf, factor); err != nil {
			return nil, err
		}
		buf = dst
	}
	return buf, nil
}

func applyFilter(buf *raster.Buffer, op string, radius float64) (*raster.Buffer, error) {
	var fn func(dst, src *raster.Buffer) error
	switch op {
	case "mean":
		fn = raster.Mean
	case "gaussian":
		fn = func(dst, src *raster.Buffer) error {
			return raster.NonUniform(dst, src, raster.GaussianWeights, 0)
		}
	case "sobel":
		fn = raster.Sobel
	case "diff":
		fn = raster.Differentiation
	case "dilate":
		fn = raster.Dilate
	case "erode":
		fn = raster.Erode
	case "median":
		raster.Median(buf, radius)
		return buf, nil
	case "binarize":
		threshold.BinarizeOtsu(buf)
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown filter %q", op)
	}

	dst := buf.Blank()
	if err := fn(dst, buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return dst, nil
}
