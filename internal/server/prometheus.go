// prometheus.go - Prometheus text-format exporter over the in-process counters
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PrometheusExporter renders the metrics snapshot in Prometheus text format.
type PrometheusExporter struct {
	build BuildInfo
}

// NewPrometheusExporter creates an exporter stamping the given build info.
func NewPrometheusExporter(build BuildInfo) *PrometheusExporter {
	return &PrometheusExporter{build: build}
}

type promMetric struct {
	name  string
	help  string
	typ   string
	value string
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s := GetMetrics().Snapshot()

		metrics := []promMetric{
			{"fg_info", "Application version info", "gauge",
				fmt.Sprintf("fg_info{version=%q,commit=%q} 1", prometheusLabel(p.build.Version), prometheusLabel(p.build.Commit))},
			{"fg_requests_total", "Total number of HTTP requests", "counter",
				fmt.Sprintf("fg_requests_total %d", s.RequestsTotal)},
			{"fg_request_errors_total", "HTTP requests by error class", "counter",
				fmt.Sprintf("fg_request_errors_total{class=\"4xx\"} %d\nfg_request_errors_total{class=\"5xx\"} %d",
					s.RequestErrors4xx, s.RequestErrors5xx)},
			{"fg_registrations_total", "Total number of registered users", "counter",
				fmt.Sprintf("fg_registrations_total %d", s.RegistrationsTotal)},
			{"fg_login_attempts_total", "Total number of login attempts", "counter",
				fmt.Sprintf("fg_login_attempts_total %d", s.LoginAttemptsTotal)},
			{"fg_login_failures_total", "Total number of failed logins", "counter",
				fmt.Sprintf("fg_login_failures_total %d", s.LoginFailuresTotal)},
			{"fg_auth_rejections_total", "Requests denied by the auth middleware", "counter",
				fmt.Sprintf("fg_auth_rejections_total %d", s.AuthRejectionsTotal)},
			{"fg_uploads_total", "Total number of file uploads", "counter",
				fmt.Sprintf("fg_uploads_total %d", s.UploadsTotal)},
			{"fg_upload_bytes_total", "Total bytes uploaded", "counter",
				fmt.Sprintf("fg_upload_bytes_total %d", s.UploadBytesTotal)},
			{"fg_upload_errors_total", "Total number of failed uploads", "counter",
				fmt.Sprintf("fg_upload_errors_total %d", s.UploadErrorsTotal)},
			{"fg_downloads_total", "Total number of file downloads", "counter",
				fmt.Sprintf("fg_downloads_total %d", s.DownloadsTotal)},
			{"fg_download_bytes_total", "Total bytes downloaded", "counter",
				fmt.Sprintf("fg_download_bytes_total %d", s.DownloadBytesTotal)},
			{"fg_download_errors_total", "Total number of failed downloads", "counter",
				fmt.Sprintf("fg_download_errors_total %d", s.DownloadErrorsTotal)},
			{"fg_code_rejections_total", "Downloads denied by the access-code gate", "counter",
				fmt.Sprintf("fg_code_rejections_total %d", s.CodeRejectionsTotal)},
			{"fg_deletes_total", "Total number of file deletions", "counter",
				fmt.Sprintf("fg_deletes_total %d", s.DeletesTotal)},
			{"fg_orphaned_blobs_total", "Blobs left behind by failed best-effort deletes", "counter",
				fmt.Sprintf("fg_orphaned_blobs_total %d", s.OrphanedBlobsTotal)},
			{"fg_cleanup_removed_total", "Orphaned blobs collected by the cleanup job", "counter",
				fmt.Sprintf("fg_cleanup_removed_total %d", s.CleanupRemovedTotal)},
			{"fg_uptime_seconds", "Application uptime in seconds", "counter",
				fmt.Sprintf("fg_uptime_seconds %.0f", time.Since(serverStartTime).Seconds())},
		}

		var output strings.Builder
		for _, m := range metrics {
			fmt.Fprintf(&output, "# HELP %s %s\n", m.name, m.help)
			fmt.Fprintf(&output, "# TYPE %s %s\n", m.name, m.typ)
			output.WriteString(m.value)
			output.WriteString("\n\n")
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	}
}

var serverStartTime = time.Now()

// prometheusLabel escapes a value for use inside a Prometheus label.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
