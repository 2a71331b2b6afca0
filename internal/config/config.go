package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/orientation"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/publish"
	"github.com/MeKo-Tech/barscan/internal/transform"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Decode:   defaultDecodeConfig(),
		Output: OutputConfig{
			Format:        "text",
			OverlayColor:  pipeline.DefaultOverlayOptions().Color,
			MismatchColor: pipeline.DefaultOverlayOptions().MismatchColor,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit:       0,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
		Publish: PublishConfig{
			ClientID:   "barscan",
			Topic:      "barscan/results",
			QoS:        1,
			TimeoutSec: 5,
		},
	}
}

// defaultDecodeConfig mirrors pipeline.DefaultConfig.
func defaultDecodeConfig() DecodeConfig {
	p := pipeline.DefaultConfig()
	return DecodeConfig{
		NoiseThreshold: p.Extractor.NoiseThreshold,
		SampleRows:     p.Extractor.Rows,
		BitWindow:      p.Extractor.Window,
		WidenX:         p.Locator.WidenX,
		WidenY:         p.Locator.WidenY,
		Nudge:          p.Locator.Nudge,
		SnapDegrees:    p.Orientation.SnapDegrees,
		Interpolation:  p.Interpolation.String(),
		GlyphsEnabled:  p.EnableGlyphs,
		GlyphScale:     p.GlyphScale,
		GlyphInset:     p.Glyph.Inset,
		GlyphMinHeight: p.Glyph.MinHeight,
		ReadLeading:    p.Glyph.ReadLeading,
		Workers:        p.Workers,
		MaxImageSize:   utils.DefaultImageConstraints().MaxWidth,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	for name, col := range map[string]string{
		"output.overlay_color":  c.Output.OverlayColor,
		"output.mismatch_color": c.Output.MismatchColor,
	} {
		if _, err := pipeline.ParseColor(col); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if _, err := transform.ParseInterpolation(c.Decode.Interpolation); err != nil {
		return fmt.Errorf("invalid decode.interpolation: %w", err)
	}
	if c.Decode.MaxImageSize < utils.DefaultImageConstraints().MinWidth {
		return fmt.Errorf("invalid decode.max_image_size: %d", c.Decode.MaxImageSize)
	}
	if c.Decode.MedianRadius < 0 {
		return fmt.Errorf("invalid decode.median_radius: %.2f (must not be negative)", c.Decode.MedianRadius)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
		return fmt.Errorf("invalid publish qos: %d (must be 0, 1 or 2)", c.Publish.QoS)
	}
	if c.Publish.Broker != "" && c.Publish.Topic == "" {
		return fmt.Errorf("publish topic must be set when a broker is configured")
	}

	// The pipeline checks its own ranges.
	cfg, err := c.ToPipelineConfig()
	if err != nil {
		return err
	}
	return pipeline.NewBuilder().WithConfig(cfg).Validate()
}

// ToPipelineConfig converts the config to the pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	interp, err := transform.ParseInterpolation(c.Decode.Interpolation)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.DefaultConfig()
	cfg.Extractor = barcode.ExtractorConfig{
		NoiseThreshold: c.Decode.NoiseThreshold,
		Rows:           c.Decode.SampleRows,
		Window:         c.Decode.BitWindow,
	}
	cfg.Locator = barcode.LocatorConfig{
		WidenX: c.Decode.WidenX,
		WidenY: c.Decode.WidenY,
		Nudge:  c.Decode.Nudge,
	}
	cfg.Glyph = barcode.GlyphConfig{
		Inset:       c.Decode.GlyphInset,
		MinHeight:   c.Decode.GlyphMinHeight,
		ReadLeading: c.Decode.ReadLeading,
	}
	cfg.Orientation = orientation.DefaultConfig()
	cfg.Orientation.SnapDegrees = c.Decode.SnapDegrees
	cfg.Interpolation = interp
	cfg.MedianRadius = c.Decode.MedianRadius
	cfg.EnableGlyphs = c.Decode.GlyphsEnabled
	cfg.GlyphDir = c.Decode.GlyphDir
	cfg.GlyphScale = c.Decode.GlyphScale
	cfg.CrossCheck = c.Decode.CrossCheck
	cfg.Workers = c.Decode.Workers
	cfg.Parallel.MaxWorkers = c.Batch.Workers
	return cfg, nil
}

// ToOverlayOptions converts output settings to overlay options.
func (c *Config) ToOverlayOptions() pipeline.OverlayOptions {
	opts := pipeline.DefaultOverlayOptions()
	if c.Output.OverlayColor != "" {
		opts.Color = c.Output.OverlayColor
	}
	if c.Output.MismatchColor != "" {
		opts.MismatchColor = c.Output.MismatchColor
	}
	return opts
}

// ToImageConstraints converts the decode limits to image constraints.
func (c *Config) ToImageConstraints() utils.ImageConstraints {
	ic := utils.DefaultImageConstraints()
	if c.Decode.MaxImageSize > 0 {
		ic.MaxWidth = c.Decode.MaxImageSize
		ic.MaxHeight = c.Decode.MaxImageSize
	}
	return ic
}

// ToPublishConfig converts the publish section for the MQTT publisher.
func (c *Config) ToPublishConfig() publish.Config {
	return publish.Config{
		Broker:   c.Publish.Broker,
		ClientID: c.Publish.ClientID,
		Topic:    c.Publish.Topic,
		QoS:      byte(c.Publish.QoS),
		Retained: c.Publish.Retained,
		Timeout:  time.Duration(c.Publish.TimeoutSec) * time.Second,
	}
}
