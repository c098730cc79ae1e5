// download.go - anonymous, code-gated file download
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// downloadRequest carries the access code for POST /files/{id}/download.
type downloadRequest struct {
	Code string `json:"code"`
}

// downloadHandler streams a file to anyone holding its access code. A
// wrong code and a file that does not exist produce byte-identical 403
// responses, so probing ids learns nothing.
func (s *Server) downloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), "/download")
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}

		var req downloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		f, err := s.files.GetForDownload(r.Context(), id, req.Code)
		if err != nil {
			if errors.Is(err, ErrInvalidCode) {
				GetMetrics().RecordCodeRejection()
				http.Error(w, "invalid code", http.StatusForbidden)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "download_lookup_failed", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		start := time.Now()
		obj, err := s.blobs.Get(ctx, f.ObjectKey)
		if err != nil {
			GetMetrics().RecordDownloadError()
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q key=%s err=%v", rid, "blob_get_failed", f.ObjectKey, err)
			if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "storage error", http.StatusBadGateway)
			return
		}
		defer func() { _ = obj.Close() }()

		if f.ContentType != "" {
			w.Header().Set("Content-Type", f.ContentType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		if f.SizeBytes > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
		}
		if f.SHA256Hex != "" {
			w.Header().Set("X-Checksum-Sha256", f.SHA256Hex)
		}

		// Encourage safe download behavior in browsers.
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.OrigName))

		w.WriteHeader(http.StatusOK)

		n, _ := io.Copy(w, obj)
		GetMetrics().RecordDownload(n, time.Since(start))
	}
}
