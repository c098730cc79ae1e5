package server

import (
	"strings"
	"testing"
)

// setValidConfig sets the minimum configuration ValidateAllConfiguration
// accepts. t.Setenv restores the previous values when the test ends.
func setValidConfig(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://fg:fg@localhost:5432/filegate?sslmode=disable")
	t.Setenv("FG_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("FG_S3_ENDPOINT", "localhost:9000")
	t.Setenv("FG_S3_ACCESS_KEY", "minioadmin")
	t.Setenv("FG_S3_SECRET_KEY", "minioadmin")

	// Clear optional keys so ambient values cannot leak into the run.
	for _, key := range []string{
		"FG_ADDR", "FG_TOKEN_TTL", "FG_BCRYPT_COST", "FG_MAX_UPLOAD_BYTES",
		"FG_LOG_FORMAT", "FG_LOG_LEVEL", "FG_ENV",
		"FG_CLEANUP_ENABLED", "FG_CLEANUP_INTERVAL", "FG_CLEANUP_MIN_AGE",
	} {
		t.Setenv(key, "")
	}
}

func TestValidateAllConfigurationValid(t *testing.T) {
	setValidConfig(t)

	if err := ValidateAllConfiguration(); err != nil {
		t.Fatalf("expected valid configuration, got: %v", err)
	}
}

func TestValidateAllConfigurationMissingRequired(t *testing.T) {
	setValidConfig(t)
	t.Setenv("FG_TOKEN_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	err := ValidateAllConfiguration()
	if err == nil {
		t.Fatal("expected error for missing required config")
	}
	if !strings.Contains(err.Error(), "FG_TOKEN_SECRET") {
		t.Errorf("error does not mention FG_TOKEN_SECRET: %v", err)
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error does not mention DATABASE_URL: %v", err)
	}
}

func TestValidateAllConfigurationShortSecret(t *testing.T) {
	setValidConfig(t)
	t.Setenv("FG_TOKEN_SECRET", "tooshort")

	err := ValidateAllConfiguration()
	if err == nil {
		t.Fatal("expected error for short token secret")
	}
	if !strings.Contains(err.Error(), "at least 32") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateAllConfigurationBadDatabaseScheme(t *testing.T) {
	setValidConfig(t)
	t.Setenv("DATABASE_URL", "mysql://root@localhost/filegate")

	if err := ValidateAllConfiguration(); err == nil {
		t.Fatal("expected error for non-postgres DATABASE_URL")
	}
}

func TestValidateAllConfigurationCollectsAllErrors(t *testing.T) {
	setValidConfig(t)
	t.Setenv("FG_TOKEN_TTL", "soon")
	t.Setenv("FG_BCRYPT_COST", "99")
	t.Setenv("FG_LOG_FORMAT", "xml")

	err := ValidateAllConfiguration()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, key := range []string{"FG_TOKEN_TTL", "FG_BCRYPT_COST", "FG_LOG_FORMAT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error report missing %s: %v", key, err)
		}
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "addr form", value: ":8080", wantErr: false},
		{name: "host and port", value: "0.0.0.0:8080", wantErr: false},
		{name: "not a number", value: ":http", wantErr: true},
		{name: "out of range", value: ":70000", wantErr: true},
		{name: "zero", value: ":0", wantErr: true},
		{name: "empty skipped", value: "", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewConfigValidator()
			v.ValidatePort("FG_ADDR", tt.value)
			if v.HasErrors() != tt.wantErr {
				t.Errorf("ValidatePort(%q) errors = %v, want %v", tt.value, v.Errors(), tt.wantErr)
			}
		})
	}
}

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "hours", value: "12h", wantErr: false},
		{name: "minutes", value: "30m", wantErr: false},
		{name: "bare number", value: "12", wantErr: true},
		{name: "negative", value: "-1h", wantErr: true},
		{name: "empty skipped", value: "", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewConfigValidator()
			v.ValidateDuration("FG_TOKEN_TTL", tt.value)
			if v.HasErrors() != tt.wantErr {
				t.Errorf("ValidateDuration(%q) errors = %v, want %v", tt.value, v.Errors(), tt.wantErr)
			}
		})
	}
}

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "in range", value: "10", wantErr: false},
		{name: "at lower bound", value: "4", wantErr: false},
		{name: "at upper bound", value: "31", wantErr: false},
		{name: "below range", value: "3", wantErr: true},
		{name: "above range", value: "32", wantErr: true},
		{name: "not a number", value: "high", wantErr: true},
		{name: "empty skipped", value: "", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewConfigValidator()
			v.ValidateIntRange("FG_BCRYPT_COST", tt.value, 4, 31)
			if v.HasErrors() != tt.wantErr {
				t.Errorf("ValidateIntRange(%q) errors = %v, want %v", tt.value, v.Errors(), tt.wantErr)
			}
		})
	}
}

func TestValidateEnum(t *testing.T) {
	v := NewConfigValidator()
	v.ValidateEnum("FG_LOG_FORMAT", "json", []string{"json", "text"})
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}

	v = NewConfigValidator()
	v.ValidateEnum("FG_LOG_FORMAT", "xml", []string{"json", "text"})
	if !v.HasErrors() {
		t.Error("expected error for disallowed value")
	}
}
