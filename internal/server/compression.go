// compression.go - gzip response compression for JSON endpoints.
package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

type compressionResponseWriter struct {
	http.ResponseWriter
	writer io.Writer
}

func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	return crw.writer.Write(b)
}

// compressionMiddleware gzips responses for clients that accept it.
// Download streams and upload bodies are exempt: file bytes are opaque and
// often already compressed, and the download path sets Content-Length.
func compressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || skipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzip.NewWriter(w)
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		next.ServeHTTP(&compressionResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

func skipCompression(r *http.Request) bool {
	if strings.HasSuffix(r.URL.Path, "/download") {
		return true
	}
	if r.URL.Path == "/upload" {
		return true
	}
	// Prometheus scrapers negotiate their own encoding.
	return r.URL.Path == "/metrics"
}
