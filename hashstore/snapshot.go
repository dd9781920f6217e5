package hashstore

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/ordsim/codec"
	"github.com/hupe1980/ordsim/internal/compress"
)

// snapshot is the persisted payload: the fingerprint bit length and the
// ID → canonical bit string mapping.
type snapshot struct {
	Bits int               `json:"bits"`
	Data map[string]string `json:"data"`
}

// Snapshot layout:
//
//	[4]byte  magic "OSH1"
//	uint8    codec name length, followed by the name
//	uint8    compression name length, followed by the name
//	uint32   uncompressed payload length (little endian)
//	[]byte   compressed payload
//
// Codec and compression are recorded by name so a snapshot written with one
// configuration still opens under another.
var snapshotMagic = [4]byte{'O', 'S', 'H', '1'}

func encodeSnapshot(snap *snapshot, compression string) ([]byte, error) {
	comp, ok := compress.ByName(compression)
	if !ok {
		return nil, fmt.Errorf("unknown snapshot compression %q", compression)
	}

	payload, err := codec.Default.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot payload: %w", err)
	}
	compressed, err := comp.Compress(payload)
	if err != nil {
		return nil, err
	}

	codecName := codec.Default.Name()
	out := make([]byte, 0, 4+2+len(codecName)+len(comp.Name())+4+len(compressed))
	out = append(out, snapshotMagic[:]...)
	out = append(out, byte(len(codecName)))
	out = append(out, codecName...)
	out = append(out, byte(len(comp.Name())))
	out = append(out, comp.Name()...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, compressed...)
	return out, nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	if len(data) < 4 || [4]byte(data[:4]) != snapshotMagic {
		return nil, &CorruptError{Reason: "bad magic"}
	}
	data = data[4:]

	codecName, data, err := readName(data)
	if err != nil {
		return nil, &CorruptError{Reason: "truncated codec name", cause: err}
	}
	compName, data, err := readName(data)
	if err != nil {
		return nil, &CorruptError{Reason: "truncated compression name", cause: err}
	}
	if len(data) < 4 {
		return nil, &CorruptError{Reason: "truncated payload length"}
	}
	size := binary.LittleEndian.Uint32(data)
	data = data[4:]

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, &CorruptError{Reason: fmt.Sprintf("unknown codec %q", codecName)}
	}
	comp, ok := compress.ByName(compName)
	if !ok {
		return nil, &CorruptError{Reason: fmt.Sprintf("unknown compression %q", compName)}
	}

	payload, err := comp.Decompress(data, int(size))
	if err != nil {
		return nil, &CorruptError{Reason: "decompress payload", cause: err}
	}

	var snap snapshot
	if err := c.Unmarshal(payload, &snap); err != nil {
		return nil, &CorruptError{Reason: "decode payload", cause: err}
	}
	if snap.Bits <= 0 && len(snap.Data) > 0 {
		return nil, &CorruptError{Reason: "snapshot declares no bit length"}
	}
	return &snap, nil
}

func readName(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, fmt.Errorf("missing length byte")
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, fmt.Errorf("name shorter than declared length %d", n)
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}
