//nolint:lll
package config

// Config represents the complete configuration for the barscan application.
// It includes settings for all commands (decode, pdf, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Decode pipeline configuration
	Decode DecodeConfig `mapstructure:"decode" yaml:"decode" json:"decode"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Result publishing
	Publish PublishConfig `mapstructure:"publish" yaml:"publish" json:"publish"`
}

// DecodeConfig contains barcode reading settings.
type DecodeConfig struct {
	// Bar extraction
	NoiseThreshold int     `mapstructure:"noise_threshold" yaml:"noise_threshold" json:"noise_threshold"`
	SampleRows     int     `mapstructure:"sample_rows" yaml:"sample_rows" json:"sample_rows"`
	BitWindow      float64 `mapstructure:"bit_window" yaml:"bit_window" json:"bit_window"`

	// Locator corrections
	WidenX float64 `mapstructure:"widen_x" yaml:"widen_x" json:"widen_x"`
	WidenY float64 `mapstructure:"widen_y" yaml:"widen_y" json:"widen_y"`
	Nudge  float64 `mapstructure:"nudge" yaml:"nudge" json:"nudge"`

	// Orientation
	SnapDegrees   float64 `mapstructure:"snap_degrees" yaml:"snap_degrees" json:"snap_degrees"`
	Interpolation string  `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`

	// Glyph matching
	GlyphsEnabled  bool    `mapstructure:"glyphs_enabled" yaml:"glyphs_enabled" json:"glyphs_enabled"`
	GlyphDir       string  `mapstructure:"glyph_dir" yaml:"glyph_dir" json:"glyph_dir"`
	GlyphScale     int     `mapstructure:"glyph_scale" yaml:"glyph_scale" json:"glyph_scale"`
	GlyphInset     float64 `mapstructure:"glyph_inset" yaml:"glyph_inset" json:"glyph_inset"`
	GlyphMinHeight float64 `mapstructure:"glyph_min_height" yaml:"glyph_min_height" json:"glyph_min_height"`
	ReadLeading    bool    `mapstructure:"read_leading" yaml:"read_leading" json:"read_leading"`

	CrossCheck bool `mapstructure:"cross_check" yaml:"cross_check" json:"cross_check"`
	Workers    int  `mapstructure:"workers" yaml:"workers" json:"workers"`

	// Input limits
	MaxImageSize int `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	MedianRadius float64 `mapstructure:"median_radius" yaml:"median_radius" json:"median_radius"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format        string `mapstructure:"format" yaml:"format" json:"format"`
	File          string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir    string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor  string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	MismatchColor string `mapstructure:"mismatch_color" yaml:"mismatch_color" json:"mismatch_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Progress        bool `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// PublishConfig contains MQTT publishing settings. An empty broker disables publishing.
type PublishConfig struct {
	Broker     string `mapstructure:"broker" yaml:"broker" json:"broker"`
	ClientID   string `mapstructure:"client_id" yaml:"client_id" json:"client_id"`
	Topic      string `mapstructure:"topic" yaml:"topic" json:"topic"`
	QoS        int    `mapstructure:"qos" yaml:"qos" json:"qos"`
	Retained   bool   `mapstructure:"retained" yaml:"retained" json:"retained"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}
