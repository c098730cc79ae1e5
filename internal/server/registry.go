// registry.go - file metadata registry backed by Postgres
package server

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrFileNotFound indicates no file with that id is owned by the caller.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidCode is the single download-gate failure. It covers both a
	// missing file and a wrong code: a downloader must not be able to tell
	// which ids exist by probing.
	ErrInvalidCode = errors.New("invalid code")
)

// StoredFile is one uploaded file's metadata. The access code never appears
// in JSON: it is shown exactly once, in the upload response.
type StoredFile struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"-"`
	OrigName    string    `json:"filename"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256Hex   string    `json:"-"`
	AccessCode  string    `json:"-"`
	CreatedAt   time.Time `json:"uploaded_at"`
}

// FileRegistry persists file metadata and enforces ownership.
type FileRegistry interface {
	Create(ctx context.Context, f StoredFile) (StoredFile, error)
	ListForOwner(ctx context.Context, owner uuid.UUID) ([]StoredFile, error)
	Delete(ctx context.Context, owner, id uuid.UUID) (string, error)
	GetForDownload(ctx context.Context, id uuid.UUID, code string) (StoredFile, error)
}

// FileStore is the Postgres-backed FileRegistry.
type FileStore struct {
	db *sql.DB
}

// NewFileStore creates a registry over the given database.
func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

// Create generates the access code, stamps the record and inserts it. The
// returned StoredFile carries the code; this is the only place it surfaces.
func (s *FileStore) Create(ctx context.Context, f StoredFile) (StoredFile, error) {
	code, err := GenerateAccessCode()
	if err != nil {
		return StoredFile{}, err
	}
	f.AccessCode = code
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, orig_name, object_key, content_type, size_bytes, sha256_hex, access_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.OwnerID, f.OrigName, f.ObjectKey, f.ContentType, f.SizeBytes, f.SHA256Hex, f.AccessCode, f.CreatedAt,
	)
	if err != nil {
		return StoredFile{}, fmt.Errorf("inserting file: %w", err)
	}
	return f, nil
}

// ListForOwner returns every file owned by owner. No ordering is guaranteed.
// Access codes are not selected.
func (s *FileStore) ListForOwner(ctx context.Context, owner uuid.UUID) ([]StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, orig_name, size_bytes, created_at FROM files WHERE owner_id = $1`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	files := make([]StoredFile, 0)
	for rows.Next() {
		var f StoredFile
		if err := rows.Scan(&f.ID, &f.OrigName, &f.SizeBytes, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		f.OwnerID = owner
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file rows: %w", err)
	}
	return files, nil
}

// Delete removes the file iff it belongs to owner, in a single statement.
// Ownership lives in the WHERE clause, never in a fetch-then-compare, so
// another user's file id answers exactly like a nonexistent one. The object
// key is returned for the caller's best-effort blob deletion.
func (s *FileStore) Delete(ctx context.Context, owner, id uuid.UUID) (string, error) {
	var objectKey string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM files WHERE id = $1 AND owner_id = $2 RETURNING object_key`,
		id, owner,
	).Scan(&objectKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("deleting file: %w", err)
	}
	return objectKey, nil
}

// GetForDownload fetches the file by id and checks the supplied code.
// No authentication: possession of {id, code} is the whole credential.
func (s *FileStore) GetForDownload(ctx context.Context, id uuid.UUID, code string) (StoredFile, error) {
	var f StoredFile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, orig_name, object_key, content_type, size_bytes, sha256_hex, access_code, created_at
		 FROM files WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.OwnerID, &f.OrigName, &f.ObjectKey, &f.ContentType, &f.SizeBytes, &f.SHA256Hex, &f.AccessCode, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredFile{}, ErrInvalidCode
	}
	if err != nil {
		return StoredFile{}, fmt.Errorf("querying file: %w", err)
	}

	if !hmac.Equal([]byte(f.AccessCode), []byte(code)) {
		return StoredFile{}, ErrInvalidCode
	}
	return f, nil
}
