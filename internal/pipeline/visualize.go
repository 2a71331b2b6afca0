package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/barscan/internal/transform"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/lucasb-eyer/go-colorful"
)

// OverlayOptions controls RenderOverlay.
type OverlayOptions struct {
	// Color outlines an agreeing or bar-only decode, MismatchColor a
	// disagreeing one. Both are hex strings such as "#00c853".
	Color         string `mapstructure:"color" yaml:"color" json:"color"`
	MismatchColor string `mapstructure:"mismatch_color" yaml:"mismatch_color" json:"mismatch_color"`
	Thickness     int    `mapstructure:"thickness" yaml:"thickness" json:"thickness"`
	DrawGlyphs    bool   `mapstructure:"draw_glyphs" yaml:"draw_glyphs" json:"draw_glyphs"`
}

// DefaultOverlayOptions returns green and red outlines with glyph boxes.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{Color: "#00c853", MismatchColor: "#d50000", Thickness: 2, DrawGlyphs: true}
}

// ParseColor parses a hex colour.
func ParseColor(s string) (colorful.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c, nil
}

// RenderOverlay draws the located region and the glyph boxes of res over a
// copy of img.
func RenderOverlay(img image.Image, res *Result, opts OverlayOptions) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNilInput
	}
	box, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Mismatch {
		if box, err = ParseColor(opts.MismatchColor); err != nil {
			return nil, err
		}
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if res == nil || res.Region.Empty() {
		return dst, nil
	}

	pts := make([]utils.Point, 0, 4)
	for _, c := range res.Region.Corners() {
		pts = append(pts, utils.Point{X: c.X, Y: c.Y})
	}
	utils.DrawPolygon(dst, pts, box, opts.Thickness)

	if opts.DrawGlyphs {
		drawGlyphBoxes(dst, res, box.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.4))
	}
	return dst, nil
}

// drawGlyphBoxes maps glyph boxes from the derotated frame back onto the
// input image.
func drawGlyphBoxes(dst *image.RGBA, res *Result, col color.Color) {
	toSource := func(x, y float64) (float64, float64) { return x, y }
	if res.Angle != 0 {
		cx, cy := float64(res.Width-1)/2, float64(res.Height-1)/2
		toSource = transform.RotateMapping(res.Angle, cx, cy)
	}
	for _, g := range res.Glyphs {
		x0, y0 := float64(g.Box.X), float64(g.Box.Y)
		x1, y1 := x0+float64(g.Box.W), y0+float64(g.Box.H)
		pts := make([]utils.Point, 0, 4)
		for _, c := range [4][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}} {
			sx, sy := toSource(c[0], c[1])
			pts = append(pts, utils.Point{X: sx, Y: sy})
		}
		utils.DrawPolygon(dst, pts, col, 1)
	}
}
