package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no header", header: "", want: ""},
		{name: "valid bearer", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "wrong scheme", header: "Basic abc", want: ""},
		{name: "lowercase scheme", header: "bearer abc", want: ""},
		{name: "missing token", header: "Bearer", want: ""},
		{name: "extra parts", header: "Bearer abc def", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/files", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	tc := TokenConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
		Issuer: "filegate",
	}
	s := &Server{tokens: tc, revoked: NewTokenBlacklist(nil)}

	userID := uuid.New()
	token, err := tc.Issue(userID)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	wrong := TokenConfig{Secret: []byte("ffffffffffffffffffffffffffffffff"), TTL: time.Hour, Issuer: "filegate"}
	wrongToken, err := wrong.Issue(userID)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	var gotUser uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := currentUser(r.Context())
		if !ok {
			t.Errorf("currentUser not set in protected handler")
		}
		gotUser = id
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer not.a.token", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", authHeader: "Bearer " + wrongToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/files", nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			s.requireAuth(next).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotUser != userID {
				t.Errorf("context user = %s, want %s", gotUser, userID)
			}
		})
	}
}
