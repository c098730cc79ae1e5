// config_validation.go - startup validation of environment configuration.
//
// All configuration problems are collected and reported together so a bad
// deployment fails once with the full list instead of dying on the first
// missing key, getting fixed, and dying on the next.
package server

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a single configuration problem.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator accumulates configuration problems.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates an empty validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{errors: make([]ConfigValidationError, 0)}
}

// AddError records a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

// HasErrors reports whether any problem was recorded.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all recorded problems.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString formats all problems as one report.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidateRequired checks that a required environment variable is set.
func (v *ConfigValidator) ValidateRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// ValidateURL checks that a value parses as an http(s) URL.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}

// ValidatePort checks that a value is a valid port, accepting ":8080" form.
func (v *ConfigValidator) ValidatePort(key, value string) {
	if value == "" {
		return
	}
	portStr := value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		portStr = value[i+1:]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateMinLength checks a minimum string length.
func (v *ConfigValidator) ValidateMinLength(key, value string, minLen int) {
	if value == "" {
		return
	}
	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters long (got %d)", minLen, len(value)))
	}
}

// ValidateEnum checks that a value is one of the allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidatePositiveInt checks that a value is a positive integer.
func (v *ConfigValidator) ValidatePositiveInt(key, value string) {
	if value == "" {
		return
	}
	num, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	if num <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// ValidateIntRange checks that a value is an integer within [min, max].
func (v *ConfigValidator) ValidateIntRange(key, value string, min, max int) {
	if value == "" {
		return
	}
	num, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	if num < min || num > max {
		v.AddError(key, fmt.Sprintf("must be between %d and %d (got %d)", min, max, num))
	}
}

// ValidateDuration checks that a value parses as a Go duration.
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g. 30m, 12h)")
		return
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
	}
}

// ValidateAllConfiguration validates every configuration key the process
// reads. Called once from main before anything connects anywhere.
func ValidateAllConfiguration() error {
	v := NewConfigValidator()

	v.ValidateRequired("DATABASE_URL")
	v.ValidateRequired("FG_TOKEN_SECRET")
	v.ValidateRequired("FG_S3_ENDPOINT")
	v.ValidateRequired("FG_S3_ACCESS_KEY")
	v.ValidateRequired("FG_S3_SECRET_KEY")

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if !strings.HasPrefix(dbURL, "postgres://") && !strings.HasPrefix(dbURL, "postgresql://") {
			v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	}

	v.ValidateMinLength("FG_TOKEN_SECRET", os.Getenv("FG_TOKEN_SECRET"), 32)
	v.ValidateDuration("FG_TOKEN_TTL", os.Getenv("FG_TOKEN_TTL"))
	v.ValidateIntRange("FG_BCRYPT_COST", os.Getenv("FG_BCRYPT_COST"), 4, 31)

	if addr := os.Getenv("FG_ADDR"); addr != "" {
		v.ValidatePort("FG_ADDR", addr)
	}

	// Endpoint may be host:port or a URL; only the URL form is parseable.
	if endpoint := os.Getenv("FG_S3_ENDPOINT"); strings.Contains(endpoint, "://") {
		v.ValidateURL("FG_S3_ENDPOINT", endpoint)
	}

	v.ValidatePositiveInt("FG_MAX_UPLOAD_BYTES", os.Getenv("FG_MAX_UPLOAD_BYTES"))

	v.ValidateEnum("FG_LOG_FORMAT", os.Getenv("FG_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("FG_LOG_LEVEL", os.Getenv("FG_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("FG_ENV", os.Getenv("FG_ENV"), []string{"dev", "development", "staging", "production"})

	v.ValidateEnum("FG_CLEANUP_ENABLED", os.Getenv("FG_CLEANUP_ENABLED"), []string{"true", "false"})
	v.ValidateDuration("FG_CLEANUP_INTERVAL", os.Getenv("FG_CLEANUP_INTERVAL"))
	v.ValidateDuration("FG_CLEANUP_MIN_AGE", os.Getenv("FG_CLEANUP_MIN_AGE"))

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}

// WarnOnOptionalMissingConfig logs warnings for optional but recommended config.
func WarnOnOptionalMissingConfig() {
	warnings := make([]string, 0)

	if os.Getenv("FG_REDIS_ADDR") == "" {
		warnings = append(warnings, "FG_REDIS_ADDR not set - token revocation disabled, logout is client-side only")
	}
	if os.Getenv("FG_CLEANUP_ENABLED") != "true" {
		warnings = append(warnings, "FG_CLEANUP_ENABLED not set to 'true' - orphaned blobs will accumulate")
	}
	if os.Getenv("FG_LOG_FORMAT") == "" {
		warnings = append(warnings, "FG_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
