package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"none", "zstd", "lz4"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("snappy")
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("0101010101111100001"), 500)

	incompressible := make([]byte, 4096)
	_, err := rand.Read(incompressible)
	require.NoError(t, err)

	for _, c := range []Compressor{None{}, Zstd{}, LZ4{}} {
		for _, tt := range []struct {
			name string
			data []byte
		}{
			{"Compressible", compressible},
			{"Incompressible", incompressible},
			{"Empty", []byte{}},
		} {
			t.Run(c.Name()+"/"+tt.name, func(t *testing.T) {
				packed, err := c.Compress(tt.data)
				require.NoError(t, err)

				got, err := c.Decompress(packed, len(tt.data))
				require.NoError(t, err)
				assert.Equal(t, tt.data, got)
			})
		}
	}
}

func TestZstdShrinksRedundantInput(t *testing.T) {
	data := bytes.Repeat([]byte("fingerprint"), 1000)
	packed, err := Zstd{}.Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))
}
