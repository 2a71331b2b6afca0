package testutil

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Scene describes a synthetic barcode photograph.
type Scene struct {
	Name   string
	Number string
	// Degrees turns the rendered symbol counter-clockwise.
	Degrees float64
	Options barcode.RenderOptions
}

// StandardScenes are the upright scenes every decoder path must read.
var StandardScenes = []Scene{
	{Name: "ean13", Number: "4006381333931"},
	{Name: "ean13-five", Number: "5901234123457"},
	{Name: "upca-as-ean13", Number: "0012345678905"},
	{Name: "isbn", Number: "9780201379624"},
	{Name: "ean13-seven", Number: "7622210449283"},
}

// SkewedScenes are scenes that require orientation correction. All of them
// print the human-readable digits.
var SkewedScenes = []Scene{
	{Name: "ccw-10", Number: "4006381333931", Degrees: 10, Options: wideModules},
	{Name: "cw-8", Number: "5901234123457", Degrees: -8, Options: wideModules},
	{Name: "ccw-3", Number: "4006381333931", Degrees: 3},
	{Name: "cw-15", Number: "9780201379624", Degrees: -15},
}

var wideModules = barcode.RenderOptions{
	ModuleWidth: 5,
	BarHeight:   150,
	QuietZone:   12,
	Margin:      40,
	DigitScale:  2,
	Digits:      true,
}

// Render draws the scene. Zero Options render with the defaults, digits
// included. A non-zero rotation enlarges the canvas to fit and fills the
// exposed corners white.
func (s Scene) Render() (image.Image, error) {
	img, err := barcode.Render(s.Number, s.RenderOptions())
	if err != nil {
		return nil, err
	}
	if s.Degrees == 0 {
		return img, nil
	}
	return imaging.Rotate(img, s.Degrees, color.White), nil
}

// RenderOptions returns the options Render uses.
func (s Scene) RenderOptions() barcode.RenderOptions {
	if s.Options == (barcode.RenderOptions{}) {
		return barcode.DefaultRenderOptions()
	}
	return s.Options
}

// RenderScene renders s and fails the test on error.
func RenderScene(t testing.TB, s Scene) image.Image {
	t.Helper()

	img, err := s.Render()
	require.NoError(t, err, "render scene %s", s.Name)
	return img
}
