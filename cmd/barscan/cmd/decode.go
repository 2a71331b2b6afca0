package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/batch"
	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/publish"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [image|dir...]",
	Short: "Read EAN-13 barcodes from image files",
	Long: `Read EAN-13 barcodes from image files or directories of images.

Each image is located, deskewed and read from its bars and from its printed
digits. Directories are scanned for supported images (PNG, JPEG, GIF, BMP,
TIFF, WebP); use --recursive to descend into subdirectories.

Examples:
  barscan decode shelf.jpg
  barscan decode photos/ --recursive --workers 8
  barscan decode *.png --format json --output results.json
  barscan decode scans/ --overlay-dir overlays --strict`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, yaml)")
	decodeCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	decodeCmd.Flags().String("overlay-dir", "", "directory to write overlay images (located region and glyph boxes)")
	decodeCmd.Flags().String("overlay-color", "", "overlay box color (hex)")
	decodeCmd.Flags().String("mismatch-color", "", "overlay box color for mismatched readings (hex)")
	decodeCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (0 = from config)")
	decodeCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	decodeCmd.Flags().StringSlice("include", nil, "only decode files matching these glob patterns")
	decodeCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	decodeCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	decodeCmd.Flags().BoolP("quiet", "q", false, "suppress progress and statistics")
	decodeCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	decodeCmd.Flags().Bool("stop-on-error", false, "abort on the first unreadable image")
	decodeCmd.Flags().Bool("strict", false, "fail when an image has no bar reading or its readings disagree")
	decodeCmd.Flags().Bool("publish", true, "publish results when an MQTT broker is configured")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := commandContext(cmd)

	bc, err := batchConfig(cmd, cfg)
	if err != nil {
		return err
	}

	slog.Debug("Decoding images", "args", args, "workers", bc.Workers, "recursive", bc.Recursive)
	res, err := batch.ProcessBatch(ctx, args, bc)
	if err != nil {
		return err
	}

	for _, f := range res.Failures {
		slog.Warn("Image failed", "file", f.Path, "error", f.Err)
	}

	format := stringFlag(cmd, "format", cfg.Output.Format)
	output := stringFlag(cmd, "output", cfg.Output.File)
	if err := res.SaveResults(cmd.OutOrStdout(), format, output); err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats && !quiet {
		res.PrintStats(cmd.ErrOrStderr())
	}

	if doPublish, _ := cmd.Flags().GetBool("publish"); doPublish {
		if err := publishResults(ctx, cfg, res.Decoded()); err != nil {
			slog.Warn("Publishing results failed", "error", err)
		}
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		return strictCheck(res.Results, res.ImagePaths)
	}
	return nil
}

// batchConfig merges the decode flags into the loaded configuration.
func batchConfig(cmd *cobra.Command, cfg *config.Config) (*batch.Config, error) {
	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = pCfg
	bc.Constraints = cfg.ToImageConstraints()
	bc.Workers = cfg.Batch.Workers
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.ShowProgress = cfg.Batch.Progress
	bc.OverlayDir = cfg.Output.OverlayDir
	bc.Overlay = cfg.ToOverlayOptions()
	bc.Progress = cmd.ErrOrStderr()

	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("progress") {
		bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	}
	if stop, _ := cmd.Flags().GetBool("stop-on-error"); stop {
		bc.ContinueOnError = false
	}
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.OverlayDir = stringFlag(cmd, "overlay-dir", bc.OverlayDir)
	bc.Overlay.Color = stringFlag(cmd, "overlay-color", bc.Overlay.Color)
	bc.Overlay.MismatchColor = stringFlag(cmd, "mismatch-color", bc.Overlay.MismatchColor)
	bc.Pipeline.Parallel.MaxWorkers = bc.Workers

	return bc, nil
}

// stringFlag returns the flag value when it was set, otherwise fallback.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

// publishResults sends results to the configured broker. Without a broker
// it does nothing.
func publishResults(ctx context.Context, cfg *config.Config, results []*pipeline.Result) error {
	if cfg.Publish.Broker == "" || len(results) == 0 {
		return nil
	}
	p, err := publish.Connect(cfg.ToPublishConfig())
	if err != nil {
		return err
	}
	defer p.Close()
	return p.PublishAll(ctx, results)
}

// strictCheck fails for every input without a checksum-valid bar reading or
// with disagreeing readings.
func strictCheck(results []*pipeline.Result, paths []string) error {
	var errs []error
	for i, r := range results {
		switch {
		case r == nil:
			errs = append(errs, fmt.Errorf("%s: not decoded", paths[i]))
		case r.BarNumber == nil:
			errs = append(errs, fmt.Errorf("%s: no bar reading", paths[i]))
		case !r.ChecksumValid:
			errs = append(errs, fmt.Errorf("%s: bad checksum", paths[i]))
		case r.Mismatch:
			errs = append(errs, fmt.Errorf("%s: bars read %s but digits read %s", paths[i], *r.BarNumber, *r.GlyphNumber))
		}
	}
	return errors.Join(errs...)
}
