// users.go - credential store backed by Postgres
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrDuplicateUser indicates the username is already taken.
	ErrDuplicateUser = errors.New("username already registered")

	// ErrUserNotFound indicates no user exists with that username.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates the password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CredentialStore persists user credentials and verifies login attempts.
type CredentialStore interface {
	Register(ctx context.Context, username, password string) (uuid.UUID, error)
	Verify(ctx context.Context, username, password string) (uuid.UUID, error)
}

// UserStore is the Postgres-backed CredentialStore.
type UserStore struct {
	db   *sql.DB
	cost int
}

// NewUserStore creates a store hashing with the given bcrypt cost.
// Costs outside bcrypt's valid range fall back to the default.
func NewUserStore(db *sql.DB, bcryptCost int) *UserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserStore{db: db, cost: bcryptCost}
}

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Register hashes the password and inserts a new user. Uniqueness is the
// column constraint itself: two concurrent registrations of the same name
// race inside the database and exactly one wins. The plaintext never leaves
// this function.
func (s *UserStore) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, username, string(hash), time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return uuid.Nil, ErrDuplicateUser
		}
		return uuid.Nil, fmt.Errorf("inserting user: %w", err)
	}
	return id, nil
}

// Verify looks up the user and compares the password against the stored
// bcrypt hash (a constant-time comparison). The unknown-user and bad-password
// failures stay distinct here; the login handler collapses them into one
// response so callers cannot probe for usernames.
func (s *UserStore) Verify(ctx context.Context, username, password string) (uuid.UUID, error) {
	var (
		id   uuid.UUID
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return id, nil
}
