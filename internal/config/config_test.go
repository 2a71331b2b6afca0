package config

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/transform"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "bilinear", cfg.Decode.Interpolation)
	assert.Empty(t, cfg.Publish.Broker)
}

func TestToPipelineConfig_RoundTripsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	got, err := cfg.ToPipelineConfig()
	require.NoError(t, err)

	want := pipeline.DefaultConfig()
	want.Parallel.MaxWorkers = cfg.Batch.Workers
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pipeline config mismatch (-want +got):\n%s", diff)
	}
}

func TestToPipelineConfig_Overrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decode.NoiseThreshold = 12
	cfg.Decode.Interpolation = "nearest"
	cfg.Decode.SnapDegrees = 3
	cfg.Decode.GlyphsEnabled = false
	cfg.Decode.CrossCheck = true
	cfg.Decode.MedianRadius = 1.5

	got, err := cfg.ToPipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, got.Extractor.NoiseThreshold)
	assert.Equal(t, transform.Nearest, got.Interpolation)
	assert.InDelta(t, 3.0, got.Orientation.SnapDegrees, 1e-12)
	assert.False(t, got.EnableGlyphs)
	assert.True(t, got.CrossCheck)
	assert.InDelta(t, 1.5, got.MedianRadius, 1e-12)

	cfg.Decode.Interpolation = "cubic"
	_, err = cfg.ToPipelineConfig()
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"colour", func(c *Config) { c.Output.OverlayColor = "green" }, "output.overlay_color"},
		{"interpolation", func(c *Config) { c.Decode.Interpolation = "cubic" }, "decode.interpolation"},
		{"image size", func(c *Config) { c.Decode.MaxImageSize = 10 }, "decode.max_image_size"},
		{"median", func(c *Config) { c.Decode.MedianRadius = -1 }, "decode.median_radius"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"batch workers", func(c *Config) { c.Batch.Workers = 0 }, "invalid batch workers"},
		{"qos", func(c *Config) { c.Publish.QoS = 3 }, "invalid publish qos"},
		{"topic", func(c *Config) { c.Publish.Broker = "tcp://localhost:1883"; c.Publish.Topic = "" }, "publish topic"},
		{"snap", func(c *Config) { c.Decode.SnapDegrees = 50 }, "snap degrees"},
		{"noise", func(c *Config) { c.Decode.NoiseThreshold = -5 }, "noise threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestToOverlayOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.OverlayColor = "#112233"
	cfg.Output.MismatchColor = ""

	opts := cfg.ToOverlayOptions()
	assert.Equal(t, "#112233", opts.Color)
	assert.Equal(t, pipeline.DefaultOverlayOptions().MismatchColor, opts.MismatchColor)
}

func TestToImageConstraints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decode.MaxImageSize = 1000
	ic := cfg.ToImageConstraints()
	assert.Equal(t, 1000, ic.MaxWidth)
	assert.Equal(t, 1000, ic.MaxHeight)
	assert.Equal(t, 95, ic.MinWidth)
}

func TestToPublishConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Publish.Broker = "tcp://localhost:1883"
	cfg.Publish.QoS = 2

	pc := cfg.ToPublishConfig()
	assert.Equal(t, "tcp://localhost:1883", pc.Broker)
	assert.Equal(t, "barscan/results", pc.Topic)
	assert.Equal(t, byte(2), pc.QoS)
	assert.Equal(t, 5*time.Second, pc.Timeout)
}
