package sqlcodec

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := []float32{0.5, -0.25, 1.0, 0.0}
	blob, err := EncodeVector(want)
	if err != nil {
		t.Fatalf("EncodeVector: %v", err)
	}
	got, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DecodeVector() = %v, want %v", got, want)
	}
}

func TestEncodeDecodeEmptyVector(t *testing.T) {
	blob, err := EncodeVector(nil)
	if err != nil {
		t.Fatalf("EncodeVector: %v", err)
	}
	got, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("DecodeVector(empty) = %v, want empty", got)
	}
}

func TestDecodeVectorTooShort(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2}); err != ErrInvalidVector {
		t.Fatalf("DecodeVector(short) err = %v, want ErrInvalidVector", err)
	}
}

func TestDecodeVectorTruncatedPayload(t *testing.T) {
	blob, _ := EncodeVector([]float32{1, 2, 3})
	truncated := blob[:len(blob)-4] // declares 3 floats but only carries 2
	if _, err := DecodeVector(truncated); err != ErrInvalidVector {
		t.Fatalf("DecodeVector(truncated) err = %v, want ErrInvalidVector", err)
	}
}
