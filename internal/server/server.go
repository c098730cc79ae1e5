package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"strings"
	"time"
)

// defaultMaxUploadBytes caps request bodies on /upload when the
// deployment does not configure its own limit.
const defaultMaxUploadBytes = 100 << 20 // 100 MiB

// BuildInfo identifies the running binary in /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr           string // e.g. ":8080"
	Build          BuildInfo
	DB             *sql.DB
	Users          CredentialStore
	Files          FileRegistry
	Blobs          BlobStore
	Tokens         TokenConfig
	Revoked        *TokenBlacklist
	MaxUploadBytes int64
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler

	build          BuildInfo
	db             *sql.DB
	users          CredentialStore
	files          FileRegistry
	blobs          BlobStore
	tokens         TokenConfig
	revoked        *TokenBlacklist
	maxUploadBytes int64
}

func New(cfg Config) *Server {
	s := &Server{
		build:          cfg.Build,
		db:             cfg.DB,
		users:          cfg.Users,
		files:          cfg.Files,
		blobs:          cfg.Blobs,
		tokens:         cfg.Tokens,
		revoked:        cfg.Revoked,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	if s.revoked == nil {
		s.revoked = NewTokenBlacklist(nil)
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}

	mux := http.NewServeMux()

	// Accounts.
	mux.Handle("/register", s.registerHandler())
	mux.Handle("/login", s.loginHandler())
	mux.Handle("/logout", s.requireAuth(s.logoutHandler()))

	// Files. Download sits outside requireAuth: possession of the
	// access code is the only credential the recipient has.
	mux.Handle("/upload", s.requireAuth(s.uploadHandler()))
	mux.Handle("/files", s.requireAuth(s.listFilesHandler()))
	mux.Handle("/files/", s.filesSubtree())

	// Operational endpoints.
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/ready", s.HandleReady)
	mux.HandleFunc("/live", s.HandleLive)
	mux.Handle("/metrics", NewPrometheusExporter(cfg.Build).Handler())

	// Wrap middleware: requestID -> logging -> security headers -> compression -> mux
	var handler http.Handler = mux
	handler = compressionMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// filesSubtree routes /files/{id} (authenticated delete) and
// /files/{id}/download (anonymous, code-gated).
func (s *Server) filesSubtree() http.Handler {
	deleteFile := s.requireAuth(s.deleteFileHandler())
	download := s.downloadHandler()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/files/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			deleteFile.ServeHTTP(w, r)
		case len(parts) == 2 && parts[1] == "download":
			download.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// Handler exposes the fully wired handler chain so tests can mount it
// on an httptest.Server instead of binding a port.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
