// register.go - account creation
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
)

// RegisterRequest is the JSON payload for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// validateUsername checks username requirements.
func validateUsername(username string) (bool, string) {
	if len(username) < 3 {
		return false, "username must be at least 3 characters long"
	}
	if len(username) > 50 {
		return false, "username must be less than 50 characters"
	}
	if !usernameRegex.MatchString(username) {
		return false, "username can only contain letters, numbers, and underscores"
	}
	return true, ""
}

// validatePassword rejects only what bcrypt cannot hash: empty input
// and anything over bcrypt's 72-byte cap.
func validatePassword(password string) (bool, string) {
	if password == "" {
		return false, "password must not be empty"
	}
	if len(password) > 72 {
		return false, "password must be at most 72 bytes"
	}
	return true, ""
}

// registerHandler creates a new account. Usernames are unique; the
// database constraint is the final arbiter under concurrent signups.
func (s *Server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)

		if ok, msg := validateUsername(req.Username); !ok {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		if ok, msg := validatePassword(req.Password); !ok {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		if _, err := s.users.Register(r.Context(), req.Username, req.Password); err != nil {
			if errors.Is(err, ErrDuplicateUser) {
				http.Error(w, "username already registered", http.StatusConflict)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q err=%v", rid, "register_store_error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		GetMetrics().RecordRegistration()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "registered"})
	}
}
