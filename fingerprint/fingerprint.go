// Package fingerprint provides the fixed-width perceptual fingerprint type
// and the average-hash encoder that derives fingerprints from raw image bytes.
//
// A fingerprint is a bit sequence of length hashSize². All fingerprints in one
// store share the same bit length; scoring fingerprints of different lengths
// is rejected with a LengthMismatchError.
package fingerprint

import (
	"fmt"
	"math/bits"
	"strings"
)

// Fingerprint is a fixed-length bit sequence in raster order.
// The zero value is an empty fingerprint (Bits() == 0).
type Fingerprint struct {
	n     int
	words []uint64
}

// LengthMismatchError indicates an attempt to score two fingerprints of
// different bit lengths. Mixing lengths means the stores were built with
// different hash sizes, which is a schema violation, not a low score.
type LengthMismatchError struct {
	A, B int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("fingerprint length mismatch: %d vs %d bits", e.A, e.B)
}

// ParseError indicates a malformed canonical string form.
type ParseError struct {
	Pos  int
	Char byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid fingerprint character %q at position %d", e.Char, e.Pos)
}

// Parse decodes the canonical string form ("0101...") produced by String.
func Parse(s string) (Fingerprint, error) {
	if len(s) == 0 {
		return Fingerprint{}, fmt.Errorf("empty fingerprint string")
	}
	f := Fingerprint{
		n:     len(s),
		words: make([]uint64, (len(s)+63)/64),
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '1':
			f.setBit(i)
		case '0':
		default:
			return Fingerprint{}, &ParseError{Pos: i, Char: s[i]}
		}
	}
	return f, nil
}

// FromBits builds a fingerprint from a raster-order bit slice.
func FromBits(b []bool) Fingerprint {
	f := Fingerprint{
		n:     len(b),
		words: make([]uint64, (len(b)+63)/64),
	}
	for i, set := range b {
		if set {
			f.setBit(i)
		}
	}
	return f
}

func (f *Fingerprint) setBit(i int) {
	f.words[i>>6] |= 1 << (63 - uint(i&63))
}

// Bits returns the bit length of the fingerprint.
func (f Fingerprint) Bits() int { return f.n }

// IsZero reports whether f is the zero (empty) fingerprint.
func (f Fingerprint) IsZero() bool { return f.n == 0 }

// String returns the canonical storage form, one '0'/'1' per bit in raster order.
func (f Fingerprint) String() string {
	var sb strings.Builder
	sb.Grow(f.n)
	for i := 0; i < f.n; i++ {
		if f.words[i>>6]&(1<<(63-uint(i&63))) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Score returns the similarity score between f and other in [0, Bits()].
//
// Let d be the number of differing bits and s = Bits() - d the number of
// agreeing bits. The score is max(s, d): a fingerprint and its exact bitwise
// inverse score as strongly as an identical one. This inversion insensitivity
// is intentional and load-bearing for existing stored indexes (the mean
// threshold flips globally on some pathological images), even though it lets
// a fully different image score a perfect match.
func (f Fingerprint) Score(other Fingerprint) (int, error) {
	if f.n != other.n {
		return 0, &LengthMismatchError{A: f.n, B: other.n}
	}
	d := 0
	for i, w := range f.words {
		d += bits.OnesCount64(w ^ other.words[i])
	}
	s := f.n - d
	if s > d {
		return s, nil
	}
	return d, nil
}

// Invert returns the bitwise complement of f.
func (f Fingerprint) Invert() Fingerprint {
	inv := Fingerprint{
		n:     f.n,
		words: make([]uint64, len(f.words)),
	}
	for i, w := range f.words {
		inv.words[i] = ^w
	}
	// Clear bits past n so Equal and String stay canonical.
	if rem := f.n & 63; rem != 0 {
		inv.words[len(inv.words)-1] &= ^uint64(0) << (64 - uint(rem))
	}
	return inv
}

// Equal reports whether f and other have identical length and bits.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.n != other.n {
		return false
	}
	for i, w := range f.words {
		if w != other.words[i] {
			return false
		}
	}
	return true
}
