// validation.go - input sanitization helpers
package server

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename strips path separators and control characters from a
// client-supplied filename. Any file type is accepted for upload; the name
// only has to be safe to store and to echo back in a Content-Disposition
// header.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.ReplaceAll(filename, "\"", "_")
	filename = strings.ReplaceAll(filename, "\r", "")
	filename = strings.ReplaceAll(filename, "\n", "")

	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		nameWithoutExt := filename[:len(filename)-len(ext)]
		filename = nameWithoutExt[:255-len(ext)] + ext
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}
