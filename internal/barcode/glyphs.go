package barcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
)

// GlyphProvider supplies one reference raster per digit.
type GlyphProvider interface {
	Glyph(digit int) (image.Image, error)
}

// RenderDigit draws digit d in the 7x13 fixed font, black on white, scaled
// by an integer factor with nearest-neighbour blocks.
func RenderDigit(d, scale int) *image.NRGBA {
	face := basicfont.Face7x13
	cell := image.NewNRGBA(image.Rect(0, 0, face.Advance, face.Height))
	draw.Draw(cell, cell.Bounds(), image.White, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  cell,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(string(rune('0' + d)))

	if scale <= 1 {
		return cell
	}
	return imaging.Resize(cell, face.Advance*scale, face.Height*scale, imaging.NearestNeighbor)
}

// FontGlyphs renders reference digits from the built-in fixed font.
type FontGlyphs struct {
	Scale int
}

// NewFontGlyphs returns a provider rendering glyphs at the given scale.
func NewFontGlyphs(scale int) FontGlyphs {
	if scale < 1 {
		scale = 1
	}
	return FontGlyphs{Scale: scale}
}

func (f FontGlyphs) Glyph(digit int) (image.Image, error) {
	if digit < 0 || digit > 9 {
		return nil, fmt.Errorf("glyph: digit %d out of range", digit)
	}
	return RenderDigit(digit, f.Scale), nil
}

var digitNames = [10]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// DirGlyphs loads reference digits from image files in a directory. A file
// matches digit d when its name without extension, compared case-insensitively,
// is the digit itself, the English word, or "digit" followed by the digit.
type DirGlyphs struct {
	Dir string

	once  sync.Once
	index map[int]string
	err   error
}

// NewDirGlyphs creates a provider backed by dir.
func NewDirGlyphs(dir string) *DirGlyphs {
	return &DirGlyphs{Dir: dir}
}

func (g *DirGlyphs) scan() {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		g.err = fmt.Errorf("glyph directory %s: %w", g.Dir, err)
		return
	}
	fold := cases.Fold()
	names := make(map[string]int, 30)
	for d := 0; d < 10; d++ {
		names[fmt.Sprint(d)] = d
		names[fold.String(digitNames[d])] = d
		names[fmt.Sprintf("digit%d", d)] = d
	}

	g.index = make(map[int]string, 10)
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if d, ok := names[fold.String(stem)]; ok {
			if _, dup := g.index[d]; !dup {
				g.index[d] = filepath.Join(g.Dir, e.Name())
			}
		}
	}
}

func (g *DirGlyphs) Glyph(digit int) (image.Image, error) {
	g.once.Do(g.scan)
	if g.err != nil {
		return nil, g.err
	}
	path, ok := g.index[digit]
	if !ok {
		return nil, fmt.Errorf("glyph directory %s: no image for digit %d", g.Dir, digit)
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("glyph %d: %w", digit, err)
	}
	return img, nil
}

// CachedGlyphs loads every digit from a provider at most once.
type CachedGlyphs struct {
	Provider GlyphProvider

	mu     sync.Mutex
	glyphs map[int]image.Image
}

// NewCachedGlyphs wraps p with a load-once cache. A literal
// &CachedGlyphs{Provider: p} works as well.
func NewCachedGlyphs(p GlyphProvider) *CachedGlyphs {
	return &CachedGlyphs{Provider: p}
}

func (c *CachedGlyphs) Glyph(digit int) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.glyphs[digit]; ok {
		return img, nil
	}
	img, err := c.Provider.Glyph(digit)
	if err != nil {
		return nil, err
	}
	if c.glyphs == nil {
		c.glyphs = make(map[int]image.Image, 10)
	}
	c.glyphs[digit] = img
	return img, nil
}
