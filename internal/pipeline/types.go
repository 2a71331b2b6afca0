package pipeline

import (
	"strings"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

// Stage names a step of the decode sequence.
type Stage string

const (
	StageBinarize    Stage = "binarize"
	StageOrientation Stage = "orientation"
	StageDerotate    Stage = "derotate"
	StageLocate      Stage = "locate"
	StageExtract     Stage = "extract"
	StageDecode      Stage = "decode"
	StageGlyphs      Stage = "glyphs"
	StageCrossCheck  Stage = "cross_check"
)

// StageError records a failed stage. Stage failures never abort a decode;
// later stages run on whatever geometry is available.
type StageError struct {
	Stage   Stage  `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
	Err     error  `json:"-" yaml:"-"`
}

func (e StageError) Error() string { return string(e.Stage) + ": " + e.Message }

func (e StageError) Unwrap() error { return e.Err }

// Timing holds per-stage durations in nanoseconds.
type Timing struct {
	BinarizeNs    int64 `json:"binarize_ns" yaml:"binarize_ns"`
	OrientationNs int64 `json:"orientation_ns" yaml:"orientation_ns"`
	DerotateNs    int64 `json:"derotate_ns" yaml:"derotate_ns"`
	DecodeNs      int64 `json:"decode_ns" yaml:"decode_ns"`
	GlyphsNs      int64 `json:"glyphs_ns" yaml:"glyphs_ns"`
	CrossCheckNs  int64 `json:"cross_check_ns,omitempty" yaml:"cross_check_ns,omitempty"`
	TotalNs       int64 `json:"total_ns" yaml:"total_ns"`
}

// GlyphResult is one digit read from the printed text.
type GlyphResult struct {
	Digit   string `json:"digit" yaml:"digit"`
	Score   int    `json:"score" yaml:"score"`
	Leading bool   `json:"leading,omitempty" yaml:"leading,omitempty"`
	Box     struct {
		X int `json:"x" yaml:"x"`
		Y int `json:"y" yaml:"y"`
		W int `json:"w" yaml:"w"`
		H int `json:"h" yaml:"h"`
	} `json:"box" yaml:"box"`
}

// Result is the outcome of one decode attempt. Numbers are nil when the
// corresponding path could not produce one.
type Result struct {
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`

	// Region is the barcode geometry in input image coordinates.
	Region  barcode.Region   `json:"region" yaml:"region"`
	Corners [4]barcode.Point `json:"corners" yaml:"corners"`

	BarNumber     *string `json:"bar_number" yaml:"bar_number"`
	Parity        string  `json:"parity,omitempty" yaml:"parity,omitempty"`
	ChecksumValid bool    `json:"checksum_valid" yaml:"checksum_valid"`
	Extractor     string  `json:"extractor,omitempty" yaml:"extractor,omitempty"`
	// LeftDigits and RightDigits are the digits each half yielded, kept
	// when the other half or a later codeword failed.
	LeftDigits  string `json:"left_digits,omitempty" yaml:"left_digits,omitempty"`
	RightDigits string `json:"right_digits,omitempty" yaml:"right_digits,omitempty"`

	GlyphNumber *string       `json:"glyph_number" yaml:"glyph_number"`
	Glyphs      []GlyphResult `json:"glyphs,omitempty" yaml:"glyphs,omitempty"`

	// Mismatch is set when both readings exist and disagree.
	Mismatch bool `json:"mismatch" yaml:"mismatch"`

	// CrossCheck is the number read by the ZXing decoder, if enabled.
	CrossCheck *string `json:"cross_check,omitempty" yaml:"cross_check,omitempty"`

	// Angle is the applied skew correction in radians.
	Angle        float64 `json:"angle" yaml:"angle"`
	AngleDegrees float64 `json:"angle_degrees" yaml:"angle_degrees"`
	Threshold    int     `json:"threshold" yaml:"threshold"`

	Errors []StageError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Timing Timing       `json:"timing" yaml:"timing"`
}

// Number returns the best available reading: the bar number when present,
// otherwise the glyph number. ok is false when neither exists.
func (r *Result) Number() (string, bool) {
	switch {
	case r.BarNumber != nil:
		return *r.BarNumber, true
	case r.GlyphNumber != nil:
		return *r.GlyphNumber, true
	default:
		return "", false
	}
}

// Decoded reports whether the bars yielded a number.
func (r *Result) Decoded() bool { return r.BarNumber != nil }

// StageFailed reports whether stage recorded an error.
func (r *Result) StageFailed(stage Stage) bool {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return true
		}
	}
	return false
}

func (r *Result) fail(stage Stage, err error) {
	r.Errors = append(r.Errors, StageError{Stage: stage, Message: err.Error(), Err: err})
}

// reconcile compares the two readings. A glyph reading without the leading
// digit is compared against the bar number's suffix; unmatched glyphs
// always disagree.
func (r *Result) reconcile() {
	if r.BarNumber == nil || r.GlyphNumber == nil {
		r.Mismatch = false
		return
	}
	bar, glyph := *r.BarNumber, *r.GlyphNumber
	if len(glyph) < len(bar) {
		r.Mismatch = !strings.HasSuffix(bar, glyph)
		return
	}
	r.Mismatch = bar != glyph
}

func glyphResults(readings []barcode.GlyphReading) []GlyphResult {
	out := make([]GlyphResult, len(readings))
	for i, g := range readings {
		out[i].Digit = string(g.Digit)
		out[i].Score = g.Score
		out[i].Leading = g.Leading
		out[i].Box.X = g.Box.Min.X
		out[i].Box.Y = g.Box.Min.Y
		out[i].Box.W = g.Box.Dx()
		out[i].Box.H = g.Box.Dy()
	}
	return out
}
