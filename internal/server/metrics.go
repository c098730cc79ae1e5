package server

import (
	"sync"
	"time"
)

// Metrics holds in-process application counters. Everything is cumulative
// since process start; the Prometheus handler exposes the snapshot.
type Metrics struct {
	mu sync.RWMutex

	// Account metrics
	registrationsTotal  int64
	loginAttemptsTotal  int64
	loginSuccessTotal   int64
	loginFailuresTotal  int64
	authRejectionsTotal int64

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Download metrics
	downloadsTotal        int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	codeRejectionsTotal   int64
	downloadDurationTotal time.Duration

	// File lifecycle metrics
	deletesTotal         int64
	orphanedBlobsTotal   int64
	cleanupRemovedTotal  int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordRegistration records a completed registration.
func (m *Metrics) RecordRegistration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrationsTotal++
}

// RecordLoginAttempt records a login attempt and its outcome.
func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// RecordAuthRejection records a request denied by the auth middleware.
func (m *Metrics) RecordAuthRejection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authRejectionsTotal++
}

// RecordUpload records a successful upload.
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records an upload failure.
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordDownload records a successful download.
func (m *Metrics) RecordDownload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += duration
}

// RecordDownloadError records a storage-side download failure.
func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordCodeRejection records a download denied by the access-code gate.
func (m *Metrics) RecordCodeRejection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codeRejectionsTotal++
}

// RecordDelete records a completed file deletion.
func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

// RecordOrphanedBlob records a blob left behind by a failed best-effort delete.
func (m *Metrics) RecordOrphanedBlob() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphanedBlobsTotal++
}

// RecordCleanupRemoved records blobs collected by the cleanup sweeper.
func (m *Metrics) RecordCleanupRemoved(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupRemovedTotal += count
}

// RecordRequest records one HTTP request by status class.
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		RegistrationsTotal:    m.registrationsTotal,
		LoginAttemptsTotal:    m.loginAttemptsTotal,
		LoginSuccessTotal:     m.loginSuccessTotal,
		LoginFailuresTotal:    m.loginFailuresTotal,
		AuthRejectionsTotal:   m.authRejectionsTotal,
		UploadsTotal:          m.uploadsTotal,
		UploadBytesTotal:      m.uploadBytesTotal,
		UploadErrorsTotal:     m.uploadErrorsTotal,
		UploadAvgDurationMs:   avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsTotal:        m.downloadsTotal,
		DownloadBytesTotal:    m.downloadBytesTotal,
		DownloadErrorsTotal:   m.downloadErrorsTotal,
		CodeRejectionsTotal:   m.codeRejectionsTotal,
		DownloadAvgDurationMs: avgDuration(m.downloadDurationTotal, m.downloadsTotal),
		DeletesTotal:          m.deletesTotal,
		OrphanedBlobsTotal:    m.orphanedBlobsTotal,
		CleanupRemovedTotal:   m.cleanupRemovedTotal,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
	}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RegistrationsTotal  int64 `json:"registrations_total"`
	LoginAttemptsTotal  int64 `json:"login_attempts_total"`
	LoginSuccessTotal   int64 `json:"login_success_total"`
	LoginFailuresTotal  int64 `json:"login_failures_total"`
	AuthRejectionsTotal int64 `json:"auth_rejections_total"`

	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	DownloadsTotal        int64   `json:"downloads_total"`
	DownloadBytesTotal    int64   `json:"download_bytes_total"`
	DownloadErrorsTotal   int64   `json:"download_errors_total"`
	CodeRejectionsTotal   int64   `json:"code_rejections_total"`
	DownloadAvgDurationMs float64 `json:"download_avg_duration_ms"`

	DeletesTotal        int64 `json:"deletes_total"`
	OrphanedBlobsTotal  int64 `json:"orphaned_blobs_total"`
	CleanupRemovedTotal int64 `json:"cleanup_removed_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
