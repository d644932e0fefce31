// Package memory holds in-memory persistence used for development and tests.
package memory

import (
	"context"
	"sync"
)

// BlobStore keeps saved objects in a map. It implements the storage Provider
// interface.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys []string
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Save stores a copy of data under objectName.
func (s *BlobStore) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[objectName]; !exists {
		s.keys = append(s.keys, objectName)
	}
	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Object returns the stored bytes for objectName.
func (s *BlobStore) Object(objectName string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[objectName]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Keys returns the saved object names in first-save order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Len reports how many objects are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
