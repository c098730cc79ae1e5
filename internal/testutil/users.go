// Package testutil provides in-memory stand-ins for the server's
// Postgres and MinIO backed stores. The fakes keep the store
// interfaces' error contracts so handler tests exercise the same
// branches the real stores trigger.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"filegate/internal/server"
)

type memUser struct {
	id   uuid.UUID
	hash []byte
}

// MemUserStore is an in-memory CredentialStore. Passwords are hashed
// with bcrypt.MinCost so tests stay fast but still never hold a
// plaintext credential.
type MemUserStore struct {
	mu    sync.Mutex
	users map[string]memUser
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[string]memUser)}
}

func (s *MemUserStore) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return uuid.Nil, server.ErrDuplicateUser
	}

	u := memUser{id: uuid.New(), hash: hash}
	s.users[username] = u
	return u.id, nil
}

func (s *MemUserStore) Verify(ctx context.Context, username, password string) (uuid.UUID, error) {
	s.mu.Lock()
	u, exists := s.users[username]
	s.mu.Unlock()

	if !exists {
		return uuid.Nil, server.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return uuid.Nil, server.ErrInvalidCredentials
	}
	return u.id, nil
}

// Hash returns the stored password hash for a username, for tests that
// assert plaintext never reaches storage.
func (s *MemUserStore) Hash(username string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[username]
	if !exists {
		return nil, false
	}
	return u.hash, true
}
