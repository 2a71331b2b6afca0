package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "barscan",
	Short: "EAN-13 barcode reader for photographs and scans",
	Long: `barscan reads EAN-13 barcodes from photographs and scanned documents.

Every image is read twice: once from the bars and once from the printed
digits below them. When both readings exist and disagree the result is
flagged as a mismatch.

This tool provides:
- Skew correction for barcodes photographed at an angle
- Bar decoding with check digit validation
- Digit glyph matching as an independent second reading
- PDF processing for scanned documents
- Both CLI and server modes, with optional MQTT publishing

Examples:
  barscan decode shelf.jpg
  barscan decode photos/ --recursive --format csv
  barscan pdf invoice.pdf --pages 1-2
  barscan generate 400638133393 --output sample.png
  barscan serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/barscan, /etc/barscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	// Decode settings shared by decode, pdf and serve
	d := config.DefaultConfig().Decode
	rootCmd.PersistentFlags().Float64("snap-degrees", d.SnapDegrees, "ignore skew below this many degrees")
	rootCmd.PersistentFlags().Int("noise-threshold", d.NoiseThreshold, "minimum run length in pixels kept by the bit extractor")
	rootCmd.PersistentFlags().String("interpolation", d.Interpolation, "derotation interpolation: nearest or bilinear")
	rootCmd.PersistentFlags().Float64("median-radius", d.MedianRadius, "median smoothing radius before thresholding (0 = off)")
	rootCmd.PersistentFlags().Bool("glyphs", d.GlyphsEnabled, "read the printed digits as a second opinion")
	rootCmd.PersistentFlags().String("glyph-dir", d.GlyphDir, "directory of reference digit images (0.png .. 9.png)")
	rootCmd.PersistentFlags().Bool("cross-check", d.CrossCheck, "also decode with the ZXing reader")
	rootCmd.PersistentFlags().Int("max-image-size", d.MaxImageSize, "scale larger images down to this many pixels per side")

	bindRootFlags(rootCmd)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(globalConfig),
		}))
		slog.SetDefault(logger)
	}
}

// bindRootFlags binds the persistent flags to viper configuration keys.
func bindRootFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
		{"decode.snap_degrees", "snap-degrees"},
		{"decode.noise_threshold", "noise-threshold"},
		{"decode.interpolation", "interpolation"},
		{"decode.median_radius", "median-radius"},
		{"decode.glyphs_enabled", "glyphs"},
		{"decode.glyph_dir", "glyph-dir"},
		{"decode.cross_check", "cross-check"},
		{"decode.max_image_size", "max-image-size"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.PersistentFlags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

// logLevel maps the configured level; verbose wins over log_level.
func logLevel(cfg *config.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration with the command line flags of
// the running command applied.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flags are bound after the first load, so unmarshal again.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// commandContext returns the context the command was executed with.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
