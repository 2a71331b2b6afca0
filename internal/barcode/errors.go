package barcode

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBarcode is returned when no start bar rises above the noise
	// threshold or the foreground is empty.
	ErrMalformedBarcode = errors.New("malformed barcode")
	// ErrAmbiguousCodeword is returned for a 7-bit pattern missing from the
	// symbol tables or carrying an unexpected parity.
	ErrAmbiguousCodeword = errors.New("ambiguous codeword")
	// ErrGlyphMismatch is returned when no reference glyph matches a crop.
	ErrGlyphMismatch = errors.New("glyph mismatch")
	// ErrInvalidNumber is returned when encoding a malformed digit string.
	ErrInvalidNumber = errors.New("invalid number")
)

// Half identifies one six-digit half of a symbol.
type Half int

const (
	LeftHalf Half = iota
	RightHalf
)

func (h Half) String() string {
	if h == LeftHalf {
		return "left"
	}
	return "right"
}

// CodewordError reports the codeword that could not be decoded.
type CodewordError struct {
	Half     Half
	Index    int
	Codeword uint8
	Reason   string
}

func (e *CodewordError) Error() string {
	return fmt.Sprintf("%v: %s half digit %d pattern %07b: %s",
		ErrAmbiguousCodeword, e.Half, e.Index, e.Codeword, e.Reason)
}

func (e *CodewordError) Unwrap() error { return ErrAmbiguousCodeword }
