package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// ErrNotFound is returned by a Backend that found no symbol.
var ErrNotFound = errors.New("barcode: no symbol found")

// ZXingBackend decodes EAN/UPC symbols with gozxing. It serves as an
// independent cross-check of the bar and glyph paths.
type ZXingBackend struct{}

// NewZXingBackend returns the gozxing-backed decoder.
func NewZXingBackend() *ZXingBackend { return &ZXingBackend{} }

func (b *ZXingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.ROI.Empty() {
		if roi, ok := subImage(img, opts.ROI); ok {
			img = roi
		}
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("zxing bitmap: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = []gozxing.BarcodeFormat{
		gozxing.BarcodeFormat_EAN_13,
		gozxing.BarcodeFormat_EAN_8,
		gozxing.BarcodeFormat_UPC_A,
		gozxing.BarcodeFormat_UPC_E,
	}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	reader := oned.NewMultiFormatUPCEANReader(hints)
	r, err := reader.Decode(bitmap, hints)
	if err != nil {
		var nf gozxing.NotFoundException
		if errors.As(err, &nf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("zxing decode: %w", err)
	}

	var points []image.Point
	for _, p := range r.GetResultPoints() {
		points = append(points, image.Pt(int(p.GetX()), int(p.GetY())))
	}
	return []Result{{
		Type:  mapFormatFromZXing(r.GetBarcodeFormat()),
		Value: r.GetText(),
		BBox:  rectFromPoints(points),
	}}, nil
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	default:
		return FormatUnknown
	}
}

func rectFromPoints(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// subImage returns the part of img inside r, copying when the image type
// offers no SubImage method.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	dst := image.NewRGBA(image.Rect(0, 0, rb.Dx(), rb.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rb.Min, draw.Src)
	return dst, true
}
