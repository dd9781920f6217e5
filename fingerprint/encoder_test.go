package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPNG renders a half-dark, half-light gradient so the average hash has a
// meaningful mix of set and cleared bits.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255 * x / w)
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(16)
	data := testPNG(t, 64, 64)

	a, err := enc.Encode(data)
	require.NoError(t, err)
	b, err := enc.Encode(data)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, 256, a.Bits())
}

func TestEncodeBitLayout(t *testing.T) {
	enc := NewEncoder(8)
	fp, err := enc.Encode(testPNG(t, 32, 32))
	require.NoError(t, err)

	// A horizontal gradient: the left half of each row is below the mean, the
	// right half above, so each 8-bit row reads 0s then 1s.
	require.Equal(t, 64, fp.Bits())
	s := fp.String()
	for row := 0; row < 8; row++ {
		assert.Equal(t, "00001111", s[row*8:row*8+8], "row %d", row)
	}
}

func TestEncodeScaleInvariance(t *testing.T) {
	// The same gradient at different resolutions lands on a near-identical
	// fingerprint after resampling.
	enc := NewEncoder(16)

	small, err := enc.Encode(testPNG(t, 32, 32))
	require.NoError(t, err)
	large, err := enc.Encode(testPNG(t, 256, 256))
	require.NoError(t, err)

	score, err := small.Score(large)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, small.Bits()*9/10)
}

func TestEncodeUndecodable(t *testing.T) {
	enc := NewEncoder(16)

	_, err := enc.Encode([]byte("definitely not an image"))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestSimilarityIdentical(t *testing.T) {
	enc := NewEncoder(16)
	data := testPNG(t, 64, 64)

	sim, err := Similarity(enc, data, data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestNewEncoderDefault(t *testing.T) {
	assert.Equal(t, 16, NewEncoder(0).HashSize())
	assert.Equal(t, 256, NewEncoder(0).Bits())
	assert.Equal(t, 8, NewEncoder(8).HashSize())
}
