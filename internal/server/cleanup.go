package server

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
)

// CleanupConfig holds configuration for the orphaned-blob sweeper
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	MinAge   time.Duration
	DB       *sql.DB
	Blobs    *MinioStore
}

// StartCleanupJob starts a background goroutine that periodically removes
// blobs with no metadata row. Uploads write the blob before the row and
// deletes remove the row before the blob, so an orphaned blob is the only
// kind of debris either path can leave behind.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	if !cfg.Enabled {
		log.Printf("service=cleanup msg=%q", "disabled")
		return
	}

	log.Printf("service=cleanup msg=%q interval=%s min_age=%s",
		"starting", cfg.Interval, cfg.MinAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runCleanup(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=cleanup msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runCleanup(ctx, cfg)
		}
	}
}

func runCleanup(ctx context.Context, cfg CleanupConfig) {
	start := time.Now()
	log.Printf("service=cleanup msg=%q", "starting_cleanup_run")

	cutoff := time.Now().Add(-cfg.MinAge)

	client := cfg.Blobs.Client()
	bucket := cfg.Blobs.Bucket()

	var removed int64
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: "uploads/"}) {
		if obj.Err != nil {
			log.Printf("service=cleanup msg=%q err=%v", "list_failed", obj.Err)
			return
		}

		// An in-flight upload has a blob but no row yet; leave young
		// objects alone.
		if obj.LastModified.After(cutoff) {
			continue
		}

		var exists bool
		err := cfg.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM files WHERE object_key = $1)`,
			obj.Key,
		).Scan(&exists)
		if err != nil {
			log.Printf("service=cleanup msg=%q key=%s err=%v", "query_failed", obj.Key, err)
			continue
		}
		if exists {
			continue
		}

		log.Printf("service=cleanup msg=%q key=%s age=%s",
			"removing_orphaned_blob", obj.Key, time.Since(obj.LastModified))

		if err := client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("service=cleanup msg=%q key=%s err=%v", "remove_failed", obj.Key, err)
			continue
		}

		removed++
	}

	if removed > 0 {
		GetMetrics().RecordCleanupRemoved(removed)
	}

	duration := time.Since(start)
	log.Printf("service=cleanup msg=%q removed=%d duration_ms=%d",
		"cleanup_complete", removed, duration.Milliseconds())
}

// CleanupConfigFromEnv reads cleanup configuration from environment variables
func CleanupConfigFromEnv(db *sql.DB, blobs *MinioStore) CleanupConfig {
	enabled := os.Getenv("FG_CLEANUP_ENABLED") == "true"

	interval := 1 * time.Hour
	if v := os.Getenv("FG_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}

	minAge := 24 * time.Hour
	if v := os.Getenv("FG_CLEANUP_MIN_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			minAge = d
		}
	}

	return CleanupConfig{
		Enabled:  enabled,
		Interval: interval,
		MinAge:   minAge,
		DB:       db,
		Blobs:    blobs,
	}
}
