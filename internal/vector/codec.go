package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

const float32Size = 4

// EncodeEmbedding serializes v as little-endian float32 values. A nil vector encodes to nil.
func EncodeEmbedding(v []float32) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v)*float32Size)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*float32Size:], math.Float32bits(x))
	}
	return out
}

// DecodeEmbedding is the inverse of EncodeEmbedding. Empty input decodes to nil.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%float32Size != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of %d", len(b), float32Size)
	}
	out := make([]float32, len(b)/float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Size:]))
	}
	return out, nil
}
