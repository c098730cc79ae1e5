// upload.go - authenticated multipart upload into blob storage
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// uploadResp is the JSON response returned after a successful upload.
// The access code appears here exactly once; recipients need it to
// download the file.
type uploadResp struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// uploadHandler streams the multipart "file" part into blob storage,
// hashing it on the way through, then records the metadata row. The
// blob is written first: a crash in between leaves an orphaned blob,
// never a metadata row pointing at nothing. Orphans are swept by the
// cleanup job.
func (s *Server) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner, ok := currentUser(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		var filePart io.Reader
		var origName, contentType string

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}
			defer func() { _ = part.Close() }()

			if part.FormName() != "file" {
				continue
			}

			filePart = part
			origName = SanitizeFilename(part.FileName())
			contentType = part.Header.Get("Content-Type")
			break
		}

		if filePart == nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		id := uuid.New()
		objectKey := "uploads/" + id.String()

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		start := time.Now()
		hasher := sha256.New()
		written, err := s.blobs.Put(ctx, objectKey, io.TeeReader(filePart, hasher), -1, contentType)
		if err != nil {
			GetMetrics().RecordUploadError()

			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "blob_put_failed", err)

			// If MaxBytesReader tripped, surface 413.
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "upload failed", http.StatusBadGateway)
			return
		}

		f, err := s.files.Create(ctx, StoredFile{
			ID:          id,
			OwnerID:     owner,
			OrigName:    origName,
			ObjectKey:   objectKey,
			ContentType: contentType,
			SizeBytes:   written,
			SHA256Hex:   hex.EncodeToString(hasher.Sum(nil)),
		})
		if err != nil {
			GetMetrics().RecordUploadError()

			// The insert failed, remove the blob we just wrote.
			if derr := s.blobs.Delete(ctx, objectKey); derr != nil {
				GetMetrics().RecordOrphanedBlob()
			}

			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "file_create_failed", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		GetMetrics().RecordUpload(written, time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(uploadResp{
			Message: "uploaded",
			Code:    f.AccessCode,
		})
	}
}
