package memory

import (
	"encoding/binary"
	"math"
)

// Embedding vectors are stored as little-endian float32 blobs. The width
// is whatever the embedding model produces; the store never compares
// vectors of different widths (Cosine returns 0 for them).

func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	if len(blob) < 4 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
