// Package barcode locates and decodes EAN-13 symbols in binary raster buffers.
//
// Decoding follows two independent paths. The bar path quantizes the bar
// widths of the symbol into two 42-bit halves and looks the codewords up in
// the L/G/R tables. The glyph path segments the human-readable digits printed
// below the bars and classifies each one against reference glyphs supplied by
// a GlyphProvider. Callers compare both readings.
//
// A gozxing-backed Backend is also provided as an independent cross-check.
package barcode
