package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"filegate/internal/db"
	"filegate/internal/server"
)

func main() {
	// Fail fast on bad configuration before anything connects anywhere.
	if err := server.ValidateAllConfiguration(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "invalid_configuration", err)
		os.Exit(1)
	}
	server.WarnOnOptionalMissingConfig()

	addr := getenvDefault("FG_ADDR", ":8080")

	build := server.BuildInfo{
		Version: getenvDefault("FG_VERSION", "dev"),
		Commit:  getenvDefault("FG_COMMIT", "unknown"),
	}

	// Database
	dsn := getenvDefault("DATABASE_URL", "")
	dbConn, err := server.OpenDB(dsn)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	// Run migrations
	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	// Blob storage
	blobs, err := server.NewMinioStore()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "storage_connect_failed", err)
		os.Exit(1)
	}

	// Token revocation is optional: without Redis, logout is client-side
	// only and tokens age out at their natural expiry.
	revoked := server.NewTokenBlacklist(nil)
	if redisAddr := os.Getenv("FG_REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Printf("service=backend msg=%q addr=%s err=%v", "redis_connect_failed", redisAddr, err)
			os.Exit(1)
		}
		revoked = server.NewTokenBlacklist(rdb)
		log.Printf("service=backend msg=%q addr=%s", "token_revocation_enabled", redisAddr)
	}

	tokens := server.TokenConfig{
		Secret: []byte(os.Getenv("FG_TOKEN_SECRET")),
		TTL:    getenvDuration("FG_TOKEN_TTL", 12*time.Hour),
		Issuer: "filegate",
	}

	srv := server.New(server.Config{
		Addr:           addr,
		Build:          build,
		DB:             dbConn,
		Users:          server.NewUserStore(dbConn, getenvInt("FG_BCRYPT_COST", bcrypt.DefaultCost)),
		Files:          server.NewFileStore(dbConn),
		Blobs:          blobs,
		Tokens:         tokens,
		Revoked:        revoked,
		MaxUploadBytes: getenvInt64("FG_MAX_UPLOAD_BYTES", 100<<20),
	})

	// Orphaned-blob sweeper, stopped with the server.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go server.StartCleanupJob(cleanupCtx, server.CleanupConfigFromEnv(dbConn, blobs))

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	// Set up signal handling for graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (container stop).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Block until either a shutdown signal is received or the server encounters an error.
	select {
	case sig := <-sigCh:
		// Signal received: initiate graceful shutdown.
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		stopCleanup()
		// Give the server 5 seconds to finish in-flight requests and cleanup.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		// Server error: exit immediately.
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvDuration parses a duration from the environment, falling back to
// def when the variable is unset or unparseable.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getenvInt parses an int from the environment, falling back to def.
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getenvInt64 parses an int64 from the environment, falling back to def.
func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
