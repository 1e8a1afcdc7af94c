// Package sqlcodec encodes float32 vectors and JSON payloads for storage in
// SQLite BLOB/TEXT columns. Adapted from the teacher's
// internal/encoding/utils.go length-prefixed vector format; this is a
// database column encoding, independent of the snapshot package's raw
// little-endian-concatenation sidecar format (spec §6).
package sqlcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidVector is returned when a vector blob is malformed.
var ErrInvalidVector = errors.New("sqlcodec: invalid vector blob")

// EncodeVector encodes vector as a length-prefixed little-endian float32
// sequence.
func EncodeVector(vector []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("sqlcodec: encode vector length: %w", err)
	}
	for _, v := range vector {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("sqlcodec: encode vector value: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}
	r := bytes.NewReader(data)
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("sqlcodec: decode vector length: %w", err)
	}
	if length < 0 || r.Len() < int(length)*4 {
		return nil, ErrInvalidVector
	}
	vector := make([]float32, length)
	for i := range vector {
		if err := binary.Read(r, binary.LittleEndian, &vector[i]); err != nil {
			return nil, fmt.Errorf("sqlcodec: decode vector value at %d: %w", i, err)
		}
	}
	return vector, nil
}
