// Package memprovider implements storage.Provider entirely in memory,
// wrapping the concrete index types (termindex.Index and siblings) that
// already hold their own locking, the way the teacher's pkg/memory.Store
// wraps in-process maps behind the Store interface.
package memprovider

import (
	"context"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

// messages is the in-memory MessageCollection: an append-only slice under a
// single mutex.
type messages struct {
	mu   sync.RWMutex
	list []know.Message
}

func newMessages() *messages { return &messages{} }

func (m *messages) Append(_ context.Context, msg know.Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordinal := len(m.list)
	m.list = append(m.list, msg)
	return ordinal, nil
}

func (m *messages) Get(_ context.Context, ordinal int) (know.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ordinal < 0 || ordinal >= len(m.list) {
		return know.Message{}, knomerr.StorageError("get_message", knomerr.ErrNotFound)
	}
	return m.list[ordinal], nil
}

func (m *messages) GetSlice(_ context.Context, start, end int) ([]know.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if start < 0 || end > len(m.list) || start > end {
		return nil, knomerr.StorageError("get_message_slice", knomerr.ErrNotFound)
	}
	out := make([]know.Message, end-start)
	copy(out, m.list[start:end])
	return out, nil
}

func (m *messages) All(_ context.Context) ([]know.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]know.Message, len(m.list))
	copy(out, m.list)
	return out, nil
}

func (m *messages) Size(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.list), nil
}

// semanticRefs is the in-memory SemanticRefCollection.
type semanticRefs struct {
	mu   sync.RWMutex
	list []know.SemanticRef
}

func newSemanticRefs() *semanticRefs { return &semanticRefs{} }

func (s *semanticRefs) Append(_ context.Context, ref know.SemanticRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ordinal := len(s.list)
	ref.Ordinal = ordinal
	s.list = append(s.list, ref)
	return ordinal, nil
}

func (s *semanticRefs) Get(_ context.Context, ordinal int) (know.SemanticRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ordinal < 0 || ordinal >= len(s.list) {
		return know.SemanticRef{}, knomerr.StorageError("get_semantic_ref", knomerr.ErrNotFound)
	}
	return s.list[ordinal], nil
}

func (s *semanticRefs) GetMultiple(_ context.Context, ordinals []int) ([]know.SemanticRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]know.SemanticRef, 0, len(ordinals))
	for _, o := range ordinals {
		if o < 0 || o >= len(s.list) {
			return nil, knomerr.StorageError("get_semantic_refs", knomerr.ErrNotFound)
		}
		out = append(out, s.list[o])
	}
	return out, nil
}

func (s *semanticRefs) All(_ context.Context) ([]know.SemanticRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]know.SemanticRef, len(s.list))
	copy(out, s.list)
	return out, nil
}

func (s *semanticRefs) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list), nil
}
