package testutil

import (
	"context"
	"crypto/hmac"
	"sync"
	"time"

	"github.com/google/uuid"

	"filegate/internal/server"
)

// MemFileStore is an in-memory FileRegistry. It mirrors the Postgres
// store's behavior: Create stamps the access code and timestamp,
// ListForOwner returns only listing columns, Delete is owner-scoped
// and GetForDownload answers ErrInvalidCode for wrong code and absent
// file alike.
type MemFileStore struct {
	mu    sync.Mutex
	files map[uuid.UUID]server.StoredFile

	// FailCreate, when set, makes Create return that error.
	FailCreate error
}

func NewMemFileStore() *MemFileStore {
	return &MemFileStore{files: make(map[uuid.UUID]server.StoredFile)}
}

func (s *MemFileStore) Create(ctx context.Context, f server.StoredFile) (server.StoredFile, error) {
	if s.FailCreate != nil {
		return server.StoredFile{}, s.FailCreate
	}

	code, err := server.GenerateAccessCode()
	if err != nil {
		return server.StoredFile{}, err
	}
	f.AccessCode = code
	f.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[f.ID] = f
	return f, nil
}

func (s *MemFileStore) ListForOwner(ctx context.Context, owner uuid.UUID) ([]server.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]server.StoredFile, 0)
	for _, f := range s.files {
		if f.OwnerID != owner {
			continue
		}
		// Same columns the SQL listing selects.
		out = append(out, server.StoredFile{
			ID:        f.ID,
			OwnerID:   f.OwnerID,
			OrigName:  f.OrigName,
			SizeBytes: f.SizeBytes,
			CreatedAt: f.CreatedAt,
		})
	}
	return out, nil
}

func (s *MemFileStore) Delete(ctx context.Context, owner, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.files[id]
	if !exists || f.OwnerID != owner {
		return "", server.ErrFileNotFound
	}
	delete(s.files, id)
	return f.ObjectKey, nil
}

func (s *MemFileStore) GetForDownload(ctx context.Context, id uuid.UUID, code string) (server.StoredFile, error) {
	s.mu.Lock()
	f, exists := s.files[id]
	s.mu.Unlock()

	if !exists {
		return server.StoredFile{}, server.ErrInvalidCode
	}
	if !hmac.Equal([]byte(f.AccessCode), []byte(code)) {
		return server.StoredFile{}, server.ErrInvalidCode
	}
	return f, nil
}

// Code returns the access code stored for a file id, for tests that
// need the code without parsing the upload response.
func (s *MemFileStore) Code(id uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.files[id]
	if !exists {
		return "", false
	}
	return f.AccessCode, true
}

// Len reports how many files the store holds.
func (s *MemFileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
