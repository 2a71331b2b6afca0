package barcode

import (
	"errors"
	"fmt"
	"strings"
)

// Parity is the encoding variant of a single digit.
type Parity byte

const (
	ParityL Parity = 'L'
	ParityG Parity = 'G'
	ParityR Parity = 'R'
)

// Codeword is the decoded meaning of a 7-bit pattern.
type Codeword struct {
	Digit  byte
	Parity Parity
}

// Symbol layout in modules.
const (
	ModulesPerDigit = 7
	DigitsPerHalf   = 6
	GuardModules    = 3
	MiddleModules   = 5
	TotalModules    = 2*GuardModules + MiddleModules + 2*DigitsPerHalf*ModulesPerDigit
	// RightStart is the module index of the first right-half module.
	RightStart = GuardModules + BitsPerHalf + MiddleModules
)

var lCodes = [10]uint8{0x0D, 0x19, 0x13, 0x3D, 0x23, 0x31, 0x2F, 0x3B, 0x37, 0x0B}

var gCodes = [10]uint8{0x27, 0x33, 0x1B, 0x21, 0x1D, 0x39, 0x05, 0x11, 0x09, 0x17}

var rCodes = [10]uint8{0x72, 0x66, 0x6C, 0x42, 0x5C, 0x4E, 0x50, 0x44, 0x48, 0x74}

// codewords maps every 7-bit pattern of the three parity sets to its digit.
var codewords = func() map[uint8]Codeword {
	m := make(map[uint8]Codeword, 30)
	for d := 0; d < 10; d++ {
		m[lCodes[d]] = Codeword{Digit: byte('0' + d), Parity: ParityL}
		m[gCodes[d]] = Codeword{Digit: byte('0' + d), Parity: ParityG}
		m[rCodes[d]] = Codeword{Digit: byte('0' + d), Parity: ParityR}
	}
	return m
}()

// leadingParities lists the left-half parity sequence for each leading digit.
var leadingParities = [10]string{
	"LLLLLL", "LLGLGG", "LLGGLG", "LLGGGL", "LGLLGG",
	"LGGLLG", "LGGGLL", "LGLGLG", "LGLGGL", "LGGLGL",
}

var leadingDigits = func() map[string]byte {
	m := make(map[string]byte, len(leadingParities))
	for d, p := range leadingParities {
		m[p] = byte('0' + d)
	}
	return m
}()

// LookupCodeword returns the digit and parity of a 7-bit pattern.
func LookupCodeword(c uint8) (Codeword, bool) {
	cw, ok := codewords[c]
	return cw, ok
}

// EncodeDigit returns the 7-bit pattern of digit d in parity p.
func EncodeDigit(d byte, p Parity) (uint8, error) {
	if d < '0' || d > '9' {
		return 0, fmt.Errorf("%w: digit %q", ErrInvalidNumber, d)
	}
	switch p {
	case ParityL:
		return lCodes[d-'0'], nil
	case ParityG:
		return gCodes[d-'0'], nil
	case ParityR:
		return rCodes[d-'0'], nil
	default:
		return 0, fmt.Errorf("%w: parity %q", ErrInvalidNumber, p)
	}
}

// DecodeHalf decodes six codewords. The left half accepts L and G parities,
// the right half only R. It returns the digits and the parity string.
func DecodeHalf(bits Bits, half Half) (digits, parity string, err error) {
	var d, p strings.Builder
	for i := 0; i < DigitsPerHalf; i++ {
		c := bits.Codeword(i)
		cw, ok := codewords[c]
		if !ok {
			return d.String(), p.String(), &CodewordError{Half: half, Index: i, Codeword: c, Reason: "unknown pattern"}
		}
		if (half == RightHalf) != (cw.Parity == ParityR) {
			return d.String(), p.String(), &CodewordError{
				Half: half, Index: i, Codeword: c,
				Reason: fmt.Sprintf("unexpected parity %c", cw.Parity),
			}
		}
		d.WriteByte(cw.Digit)
		p.WriteByte(byte(cw.Parity))
	}
	return d.String(), p.String(), nil
}

// LeadingDigit maps a left-half parity string to the implicit first digit.
func LeadingDigit(parity string) (byte, error) {
	d, ok := leadingDigits[parity]
	if !ok {
		return 0, fmt.Errorf("%w: parity sequence %q has no leading digit", ErrAmbiguousCodeword, parity)
	}
	return d, nil
}

// Symbol is a decoded 13-digit number.
type Symbol struct {
	Number        string `json:"number" yaml:"number"`
	Left          string `json:"left" yaml:"left"`
	Right         string `json:"right" yaml:"right"`
	Parity        string `json:"parity" yaml:"parity"`
	ChecksumValid bool   `json:"checksum_valid" yaml:"checksum_valid"`
}

// DecodeSymbol decodes both halves into a 13-digit number. The halves are
// decoded independently: when either fails Number stays empty, Left and
// Right keep the digits read up to the failing codeword, and the error joins
// the failures of both halves.
func DecodeSymbol(left, right Bits) (Symbol, error) {
	var s Symbol
	var leftErr, rightErr error
	s.Left, s.Parity, leftErr = DecodeHalf(left, LeftHalf)
	s.Right, _, rightErr = DecodeHalf(right, RightHalf)

	var lead byte
	if leftErr == nil {
		lead, leftErr = LeadingDigit(s.Parity)
	}
	if err := errors.Join(leftErr, rightErr); err != nil {
		return s, err
	}
	s.Number = string(lead) + s.Left + s.Right
	s.ChecksumValid = ValidChecksum(s.Number)
	return s, nil
}

// Checksum computes the check digit for the first twelve digits of number.
func Checksum(number string) (byte, error) {
	if len(number) < 12 {
		return 0, fmt.Errorf("%w: need 12 digits, got %d", ErrInvalidNumber, len(number))
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := number[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += w * int(c-'0')
	}
	return byte('0' + (10-sum%10)%10), nil
}

// ValidChecksum reports whether a 13-digit number carries a correct check digit.
func ValidChecksum(number string) bool {
	if len(number) != 13 {
		return false
	}
	c, err := Checksum(number)
	return err == nil && c == number[12]
}

// Normalize validates a 12 or 13 digit number, appending the check digit
// to 12-digit input.
func Normalize(number string) (string, error) {
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
	}
	switch len(number) {
	case 12:
		c, err := Checksum(number)
		if err != nil {
			return "", err
		}
		return number + string(c), nil
	case 13:
		return number, nil
	default:
		return "", fmt.Errorf("%w: want 12 or 13 digits, got %d", ErrInvalidNumber, len(number))
	}
}

// Encode returns the 95 modules of number; true is a bar. The check digit is
// not validated, so arbitrary 13-digit strings can be rendered.
func Encode(number string) ([]bool, error) {
	n, err := Normalize(number)
	if err != nil {
		return nil, err
	}
	modules := make([]bool, 0, TotalModules)
	appendBits := func(c uint8, width int) {
		for i := width - 1; i >= 0; i-- {
			modules = append(modules, c&(1<<i) != 0)
		}
	}

	parities := leadingParities[n[0]-'0']
	appendBits(0x5, GuardModules)
	for i := 0; i < DigitsPerHalf; i++ {
		c, err := EncodeDigit(n[1+i], Parity(parities[i]))
		if err != nil {
			return nil, err
		}
		appendBits(c, ModulesPerDigit)
	}
	appendBits(0x0A, MiddleModules)
	for i := 0; i < DigitsPerHalf; i++ {
		c, err := EncodeDigit(n[7+i], ParityR)
		if err != nil {
			return nil, err
		}
		appendBits(c, ModulesPerDigit)
	}
	appendBits(0x5, GuardModules)
	return modules, nil
}

// SplitModules returns the two 42-bit halves of a 95-module pattern.
func SplitModules(modules []bool) (left, right Bits, err error) {
	if len(modules) != TotalModules {
		return left, right, fmt.Errorf("%w: want %d modules, got %d", ErrMalformedBarcode, TotalModules, len(modules))
	}
	copy(left[:], modules[GuardModules:GuardModules+BitsPerHalf])
	copy(right[:], modules[RightStart:RightStart+BitsPerHalf])
	return left, right, nil
}
