// Package knomerr defines the error taxonomy shared across the memory
// engine: ValidationError, ExtractionError, EmbeddingError, StorageError
// and DeserializationError, each wrapping an operation name and an
// underlying cause the way the teacher's StoreError does.
package knomerr

import (
	"errors"
	"fmt"
)

// Sentinel errors tested with errors.Is.
var (
	ErrNotFound          = errors.New("knomem: not found")
	ErrClosed            = errors.New("knomem: provider is closed")
	ErrDimensionMismatch = errors.New("knomem: embedding dimension mismatch")
	ErrEmptyQuery        = errors.New("knomem: empty query")
)

// taggedError wraps an operation name and an underlying cause, matching the
// teacher's StoreError{Op, Err} shape across every error kind in this
// taxonomy.
type taggedError struct {
	kind string
	op   string
	err  error
}

func (e *taggedError) Error() string {
	if e.op == "" {
		return fmt.Sprintf("knomem: %s: %v", e.kind, e.err)
	}
	return fmt.Sprintf("knomem: %s: %s: %v", e.kind, e.op, e.err)
}

func (e *taggedError) Unwrap() error { return e.err }

func (e *taggedError) Is(target error) bool {
	if t, ok := target.(*taggedError); ok {
		return e.kind == t.kind
	}
	return errors.Is(e.err, target)
}

func newTagged(kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{kind: kind, op: op, err: err}
}

// ValidationError wraps malformed input: a missing name, empty verb list,
// unknown knowledge type, or a negative ordinal. Fatal for the offending
// item; never retried.
func ValidationError(op string, err error) error { return newTagged("validation", op, err) }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool { return isKind(err, "validation") }

// ExtractionError wraps a language-model extraction failure: non-conforming
// JSON or a transport error. Per-message; the indexing pipeline logs it via
// an event handler and continues with intrinsic knowledge only.
func ExtractionError(op string, err error) error { return newTagged("extraction", op, err) }

func IsExtraction(err error) bool { return isKind(err, "extraction") }

// EmbeddingError wraps an embedding client failure that survived retries.
// The batch that produced it aborts without partial writes.
func EmbeddingError(op string, err error) error { return newTagged("embedding", op, err) }

func IsEmbedding(err error) bool { return isKind(err, "embedding") }

// StorageError wraps an underlying file/DB failure. Fatal for the current
// operation; the caller decides whether to re-open the provider.
func StorageError(op string, err error) error { return newTagged("storage", op, err) }

func IsStorage(err error) bool { return isKind(err, "storage") }

// DeserializationError wraps a snapshot format mismatch, a missing required
// field, or an embedding sidecar size mismatch. Fatal at load time; no
// partial conversation is returned.
func DeserializationError(op string, err error) error {
	return newTagged("deserialization", op, err)
}

func IsDeserialization(err error) bool { return isKind(err, "deserialization") }

func isKind(err error, kind string) bool {
	var te *taggedError
	if errors.As(err, &te) {
		return te.kind == kind
	}
	return false
}
