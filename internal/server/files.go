// files.go - listing and deleting a user's files
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// listFilesHandler returns the caller's files. The access code and
// object key never appear in the listing.
func (s *Server) listFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner, ok := currentUser(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		files, err := s.files.ListForOwner(r.Context(), owner)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "file_list_failed", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(files)
	}
}

// deleteFileHandler removes one of the caller's files. The metadata row
// goes first; the blob delete is best-effort and a leftover blob is
// swept later by the cleanup job.
func (s *Server) deleteFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner, ok := currentUser(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/files/")
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}

		objectKey, err := s.files.Delete(r.Context(), owner, id)
		if err != nil {
			if errors.Is(err, ErrFileNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "file_delete_failed", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if err := s.blobs.Delete(r.Context(), objectKey); err != nil {
			GetMetrics().RecordOrphanedBlob()
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q key=%s err=%v", rid, "blob_delete_failed", objectKey, err)
		}

		GetMetrics().RecordDelete()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "file deleted"})
	}
}
