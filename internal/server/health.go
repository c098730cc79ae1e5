package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   interface{}     `json:"details,omitempty"`
}

// storageChecker is implemented by blob stores that can probe their
// backend. MinioStore implements it; test fakes need not.
type storageChecker interface {
	Check(ctx context.Context) error
}

// HandleHealth provides a detailed health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth()

	// Degraded still answers 200; only unhealthy flips the status code.
	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// HandleReady provides a simple readiness probe for Kubernetes/load balancers
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"status":"not_ready","message":"database unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	// Quick check: can we query the database?
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var result int
	err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		http.Error(w, `{"status":"not_ready","message":"database unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	// Always returns OK if the process is running
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// checkHealth performs health checks on all components
func (s *Server) checkHealth() Health {
	health := Health{
		Timestamp:  time.Now(),
		Version:    s.build.Version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["database"] = s.checkDatabaseHealth()
	health.Components["storage"] = s.checkStorageHealth()

	health.Status = s.determineOverallHealth(health.Components)

	return health
}

// checkDatabaseHealth checks PostgreSQL connectivity and performance
func (s *Server) checkDatabaseHealth() ComponentHealth {
	if s.db == nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database not configured",
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Simple ping
	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	// Check if we can query
	var userCount int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "database query failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()

	// Check connection pool stats
	stats := s.db.Stats()
	details := map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}

	status := ComponentStatusUp
	message := "database healthy"

	// Warn if latency is high
	if latency > 1000 {
		status = ComponentStatusDegraded
		message = "database latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
		Details:   details,
	}
}

// checkStorageHealth probes the blob store backend. The probe bypasses
// the circuit breaker: health checks should see the backend directly,
// not the breaker's cached verdict.
func (s *Server) checkStorageHealth() ComponentHealth {
	checker, ok := s.blobs.(storageChecker)
	if !ok {
		return ComponentHealth{
			Status:  ComponentStatusUp,
			Message: "storage check not supported",
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := checker.Check(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "storage check failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()

	status := ComponentStatusUp
	message := "storage healthy"

	if latency > 2000 {
		status = ComponentStatusDegraded
		message = "storage latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
	}
}

// determineOverallHealth calculates overall health from component statuses
func (s *Server) determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var (
		downCount     int
		degradedCount int
	)

	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}

	return HealthStatusHealthy
}
