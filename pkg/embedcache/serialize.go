package embedcache

import (
	"sort"

	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

// VectorBaseItems returns the vector base's keys and vectors in a stable
// order (sorted by key), the shape package snapshot writes into the JSON
// body's textItems array and the embeddings sidecar.
func (c *Cache) VectorBaseItems() ([]string, [][]float32) {
	keys := c.base.Keys()
	sort.Strings(keys)
	vectors := make([][]float32, len(keys))
	for i, k := range keys {
		v, _ := c.base.Get(k)
		vectors[i] = v
	}
	return keys, vectors
}

// LoadVectorBase replaces the vector base's contents with the given
// parallel keys/vectors arrays, as read back from a snapshot.
func (c *Cache) LoadVectorBase(keys []string, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return knomerr.DeserializationError("vector_base", errLengthMismatch(len(keys), len(vectors)))
	}
	c.base.Clear()
	for i, k := range keys {
		if err := c.base.Insert(k, vectors[i]); err != nil {
			return knomerr.DeserializationError("vector_base", err)
		}
	}
	return nil
}

type lengthMismatchError struct{ keys, vectors int }

func errLengthMismatch(keys, vectors int) error { return &lengthMismatchError{keys, vectors} }

func (e *lengthMismatchError) Error() string {
	return "vector base keys/vectors length mismatch"
}
