package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToJSONResult serializes a single result to pretty JSON.
func ToJSONResult(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple results to pretty JSON.
func ToJSONResults(results []*Result) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAMLResults serializes results as a YAML sequence.
func ToYAMLResults(results []*Result) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainText renders a result as one human readable line.
func ToPlainText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	if res.Source != "" {
		sb.WriteString(res.Source)
		sb.WriteString(": ")
	}
	switch n, ok := res.Number(); {
	case !ok:
		sb.WriteString("no barcode")
	case res.BarNumber == nil:
		fmt.Fprintf(&sb, "%s (glyphs only)", n)
	default:
		sb.WriteString(n)
	}
	if res.Mismatch {
		fmt.Fprintf(&sb, " [mismatch: glyphs read %s]", deref(res.GlyphNumber))
	}
	if res.BarNumber != nil && !res.ChecksumValid {
		sb.WriteString(" [bad checksum]")
	}
	if res.Angle != 0 {
		fmt.Fprintf(&sb, " angle=%.2f°", res.AngleDegrees)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(&sb, "\n  %s", e.Error())
	}
	return sb.String(), nil
}

// ToPlainTextResults renders each result on its own line.
func ToPlainTextResults(results []*Result) (string, error) {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		line, err := ToPlainText(r)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

var csvHeader = []string{
	"source", "bar_number", "glyph_number", "mismatch", "checksum_valid",
	"center_x", "center_y", "width", "height", "angle_deg", "threshold", "errors",
}

// ToCSVResults exports one row per result with a header.
func ToCSVResults(results []*Result) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Error()
		}
		row := []string{
			r.Source,
			deref(r.BarNumber),
			deref(r.GlyphNumber),
			strconv.FormatBool(r.Mismatch),
			strconv.FormatBool(r.ChecksumValid),
			fmt.Sprintf("%.1f", r.Region.Center.X),
			fmt.Sprintf("%.1f", r.Region.Center.Y),
			fmt.Sprintf("%.1f", r.Region.Size.W),
			fmt.Sprintf("%.1f", r.Region.Size.H),
			fmt.Sprintf("%.2f", r.AngleDegrees),
			strconv.Itoa(r.Threshold),
			strings.Join(msgs, "; "),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders results in one of text, json, csv or yaml.
func Format(results []*Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return ToPlainTextResults(results)
	case "json":
		return ToJSONResults(results)
	case "csv":
		return ToCSVResults(results)
	case "yaml", "yml":
		return ToYAMLResults(results)
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// ValidateResult performs simple consistency checks.
func ValidateResult(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	if res.BarNumber != nil && len(*res.BarNumber) != 13 {
		return fmt.Errorf("bar number %q is not 13 digits", *res.BarNumber)
	}
	if res.Mismatch && (res.BarNumber == nil || res.GlyphNumber == nil) {
		return errors.New("mismatch flagged without both readings")
	}
	if res.Threshold < 0 || res.Threshold > 255 {
		return fmt.Errorf("threshold %d out of range", res.Threshold)
	}
	return nil
}
