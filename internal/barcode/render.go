package barcode

import (
	"image"
	"image/color"
	"image/draw"
)

// RenderOptions controls synthetic symbol rendering.
type RenderOptions struct {
	ModuleWidth int  `mapstructure:"module_width" yaml:"module_width" json:"module_width"`
	BarHeight   int  `mapstructure:"bar_height" yaml:"bar_height" json:"bar_height"`
	QuietZone   int  `mapstructure:"quiet_zone" yaml:"quiet_zone" json:"quiet_zone"`
	Margin      int  `mapstructure:"margin" yaml:"margin" json:"margin"`
	DigitScale  int  `mapstructure:"digit_scale" yaml:"digit_scale" json:"digit_scale"`
	Digits      bool `mapstructure:"digits" yaml:"digits" json:"digits"`
}

// DefaultRenderOptions returns a layout that both decode paths can read.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ModuleWidth: 4,
		BarHeight:   150,
		QuietZone:   12,
		Margin:      40,
		DigitScale:  2,
		Digits:      true,
	}
}

// Layout is the pixel geometry of a rendered symbol.
type Layout struct {
	Width, Height int
	// SymbolStart is the x of the first start guard module.
	SymbolStart int
	ModuleWidth int
	BarTop      int
	// BarBottom is exclusive.
	BarBottom int
	// GuardBottom is the exclusive bottom of the extended guard bars.
	GuardBottom int
	DigitTop    int
	DigitBottom int
}

func (o RenderOptions) normalized() RenderOptions {
	d := DefaultRenderOptions()
	if o.ModuleWidth < 1 {
		o.ModuleWidth = d.ModuleWidth
	}
	if o.BarHeight < 1 {
		o.BarHeight = d.BarHeight
	}
	if o.QuietZone < 0 {
		o.QuietZone = d.QuietZone
	}
	if o.Margin < 0 {
		o.Margin = d.Margin
	}
	if o.DigitScale < 1 {
		o.DigitScale = d.DigitScale
	}
	return o
}

// Layout computes the geometry Render will produce.
func (o RenderOptions) Layout() Layout {
	o = o.normalized()
	m := o.ModuleWidth
	l := Layout{
		Width:       (2*o.QuietZone + TotalModules) * m,
		SymbolStart: o.QuietZone * m,
		ModuleWidth: m,
		BarTop:      o.Margin,
		BarBottom:   o.Margin + o.BarHeight,
	}
	l.GuardBottom = l.BarBottom
	l.Height = l.BarBottom + o.Margin
	if o.Digits {
		digitH := basicGlyphHeight * o.DigitScale
		l.DigitTop = l.BarBottom + m
		l.DigitBottom = l.DigitTop + digitH
		l.GuardBottom = l.DigitTop + digitH/2
		l.Height = l.DigitBottom + o.Margin
	}
	return l
}

const (
	basicGlyphWidth  = 7
	basicGlyphHeight = 13
)

func isGuardModule(k int) bool {
	return k < GuardModules ||
		(k >= GuardModules+BitsPerHalf && k < RightStart) ||
		k >= TotalModules-GuardModules
}

// Render draws number as an upright EAN-13 symbol, black on white, with the
// human-readable digits below the bars. A 12-digit number gets its check
// digit appended.
func Render(number string, opts RenderOptions) (*image.NRGBA, error) {
	n, err := Normalize(number)
	if err != nil {
		return nil, err
	}
	modules, err := Encode(n)
	if err != nil {
		return nil, err
	}
	opts = opts.normalized()
	l := opts.Layout()

	img := image.NewNRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	black := image.NewUniform(color.Black)

	for k, bar := range modules {
		if !bar {
			continue
		}
		bottom := l.BarBottom
		if isGuardModule(k) {
			bottom = l.GuardBottom
		}
		x := l.SymbolStart + k*l.ModuleWidth
		draw.Draw(img, image.Rect(x, l.BarTop, x+l.ModuleWidth, bottom), black, image.Point{}, draw.Src)
	}

	if opts.Digits {
		for i, c := range n {
			stampDigit(img, int(c-'0'), digitCentre(i, l), l.DigitTop, opts.DigitScale)
		}
	}
	return img, nil
}

// digitCentre returns the x centre of the i-th human-readable digit.
func digitCentre(i int, l Layout) float64 {
	m := float64(l.ModuleWidth)
	start := float64(l.SymbolStart)
	switch {
	case i == 0:
		return start - 4*m
	case i <= DigitsPerHalf:
		return start + (float64(GuardModules+(i-1)*ModulesPerDigit)+3.5)*m
	default:
		return start + (float64(RightStart+(i-7)*ModulesPerDigit)+3.5)*m
	}
}

func stampDigit(dst *image.NRGBA, d int, centre float64, top, scale int) {
	glyph := RenderDigit(d, scale)
	left := int(centre - float64(basicGlyphWidth*scale)/2)
	b := glyph.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if glyph.NRGBAAt(x, y).R < 128 {
				dst.SetNRGBA(left+x, top+y, color.NRGBA{A: 255})
			}
		}
	}
}
