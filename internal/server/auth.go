// auth.go - Bearer-token authentication: middleware plus login/logout.
//
// Identity is a signed stateless token (tokens.go). The middleware is the
// single gate for protected routes: requests are rejected before any core
// logic runs, and accepted requests carry the resolved user id in the
// request context.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const authClaimsKey ctxKey = "auth_claims"

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Anything else returns the empty string.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.Split(h, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// requireAuth verifies the Bearer token and injects the caller's claims into
// the request context. Missing, invalid and revoked tokens all answer the
// same 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.Verify(bearerToken(r))
		if err != nil {
			GetMetrics().RecordAuthRejection()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if s.revoked.IsRevoked(r.Context(), claims.ID) {
			GetMetrics().RecordAuthRejection()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentClaims returns the verified token claims stored by requireAuth.
func currentClaims(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(authClaimsKey).(*jwt.RegisteredClaims)
	return claims, ok
}

// currentUser returns the authenticated caller's user id.
func currentUser(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := currentClaims(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return SubjectID(claims), true
}

// loginHandler verifies credentials and issues a session token. Unknown
// username and wrong password produce byte-identical responses: a login
// probe learns nothing about which usernames exist.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body.Username = strings.TrimSpace(body.Username)

		userID, err := s.users.Verify(r.Context(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidCredentials) {
				GetMetrics().RecordLoginAttempt(false)
				http.Error(w, "invalid username or password", http.StatusUnauthorized)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "login_store_error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		token, err := s.tokens.Issue(userID)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "token_issue_failed", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		GetMetrics().RecordLoginAttempt(true)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

// logoutHandler revokes the presented token until its natural expiry. With
// no revocation backend configured the token simply ages out client-side.
func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		claims, ok := currentClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if s.revoked.Enabled() && claims.ExpiresAt != nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := s.revoked.Revoke(r.Context(), claims.ID, ttl); err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=%q err=%v", rid, "token_revoke_failed", err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "logged out"})
	}
}
