package fingerprint

import (
	"bytes"
	"fmt"
	"image"

	// Raster formats accepted by the encoder. Anything image.Decode cannot
	// handle is a DecodeError.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError indicates that the input bytes are not a decodable raster image.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable image: %v", e.cause)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// Encoder computes average-hash fingerprints of hashSize² bits.
//
// The transform is deterministic for identical input bytes: decode to
// luminance, resample to hashSize × hashSize with Catmull-Rom, take the
// arithmetic mean intensity, then set bit i iff pixel i (raster order) is
// strictly greater than the mean. Changing the hash size or the resampling
// kernel invalidates every previously stored fingerprint; do not mix.
type Encoder struct {
	hashSize int
}

// NewEncoder creates an Encoder producing fingerprints of hashSize² bits.
func NewEncoder(hashSize int) *Encoder {
	if hashSize <= 0 {
		hashSize = 16
	}
	return &Encoder{hashSize: hashSize}
}

// HashSize returns the configured edge length.
func (e *Encoder) HashSize() int { return e.hashSize }

// Bits returns the bit length of fingerprints produced by this encoder.
func (e *Encoder) Bits() int { return e.hashSize * e.hashSize }

// Encode computes the fingerprint of the given image bytes.
func (e *Encoder) Encode(data []byte) (Fingerprint, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Fingerprint{}, &DecodeError{cause: err}
	}

	gray := image.NewGray(image.Rect(0, 0, e.hashSize, e.hashSize))
	draw.CatmullRom.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range gray.Pix {
		sum += int(p)
	}
	mean := float64(sum) / float64(len(gray.Pix))

	bits := make([]bool, len(gray.Pix))
	for i, p := range gray.Pix {
		bits[i] = float64(p) > mean
	}
	return FromBits(bits), nil
}

// Similarity encodes both images and returns their score as a fraction of the
// maximum, in [0.5, 1]. Useful for ad-hoc comparison of two files.
func Similarity(e *Encoder, a, b []byte) (float64, error) {
	fa, err := e.Encode(a)
	if err != nil {
		return 0, err
	}
	fb, err := e.Encode(b)
	if err != nil {
		return 0, err
	}
	score, err := fa.Score(fb)
	if err != nil {
		return 0, err
	}
	return float64(score) / float64(fa.Bits()), nil
}
