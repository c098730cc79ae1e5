package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// MemBlobStore is an in-memory BlobStore. Put drains the reader, so a
// tripped http.MaxBytesReader surfaces through Put exactly as it does
// with the real streaming client.
type MemBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// Failure hooks. When set, the corresponding call returns the error.
	FailPut    error
	FailGet    error
	FailDelete error
}

func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if s.FailPut != nil {
		return 0, s.FailPut
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = data
	return int64(len(data)), nil
}

func (s *MemBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.FailGet != nil {
		return nil, s.FailGet
	}

	s.mu.Lock()
	data, exists := s.blobs[key]
	s.mu.Unlock()

	if !exists {
		return nil, errors.New("blob not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemBlobStore) Delete(ctx context.Context, key string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *MemBlobStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.blobs[key]
	return exists
}

// Len reports how many blobs the store holds.
func (s *MemBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
